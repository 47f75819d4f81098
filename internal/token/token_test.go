package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

var user = &domain.User{ID: "u-1", Role: domain.RoleEmployer}

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("secret", time.Hour, "job-board", "job-board-api")

	ss, issued, err := iss.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	claims, err := iss.Parse(ss)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "employer", claims.Role)
	assert.Equal(t, issued.ID, claims.ID)

	_, second, err := iss.Issue(user)
	require.NoError(t, err)
	assert.NotEqual(t, issued.ID, second.ID)
}

func TestParseRejectsTampering(t *testing.T) {
	iss := NewIssuer("secret", time.Hour, "job-board", "job-board-api")
	ss, _, err := iss.Issue(user)
	require.NoError(t, err)

	parts := strings.Split(ss, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	_, err = iss.Parse(parts[0] + "." + parts[1] + "." + string(sig))
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewIssuer("other-secret", time.Hour, "job-board", "job-board-api")
	_, err = other.Parse(ss)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongAudience := NewIssuer("secret", time.Hour, "job-board", "another-api")
	_, err = wrongAudience.Parse(ss)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	iss := NewIssuer("secret", time.Hour, "job-board", "job-board-api")
	claims := &Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ID:        "jti",
			Issuer:    "job-board",
			Audience:  jwt.ClaimStrings{"job-board-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.Parse(ss)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	iss := NewIssuer("secret", time.Hour, "job-board", "job-board-api")
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	ss, _, err := iss.Issue(user)
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Parse(ss)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
