package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"bad email", RegisterInput{Email: "nope", Password: testPassword, ConfirmPassword: testPassword, Role: "job_seeker"}, "email"},
		{"weak password", RegisterInput{Email: "a@x.com", Password: "password", ConfirmPassword: "password", Role: "job_seeker"}, "password"},
		{"mismatch", RegisterInput{Email: "a@x.com", Password: testPassword, ConfirmPassword: "Passw0rd?", Role: "job_seeker"}, "confirmPassword"},
		{"admin role", RegisterInput{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Role: "admin"}, "role"},
		{"unknown role", RegisterInput{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Role: "recruiter"}, "role"},
		{"employer without company", RegisterInput{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Role: "employer"}, "companyName"},
		{"short username", RegisterInput{Username: "ab", Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Role: "job_seeker"}, "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Register(ctx, tt.in)
			requireKind(t, err, domain.ErrValidation)
			assert.Contains(t, domain.FieldErrors(err), tt.field)
		})
	}
}

func TestRegisterDefaults(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	seeker, err := e.svc.Register(ctx, RegisterInput{Email: "Alice@X.com", Password: testPassword, ConfirmPassword: testPassword, Role: "job_seeker"})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", seeker.Email)
	assert.Equal(t, "alice", seeker.Username)
	assert.True(t, seeker.IsApproved)
	assert.False(t, seeker.EmailVerified)
	assert.NotEqual(t, testPassword, seeker.PasswordHash)
	assert.NotEmpty(t, seeker.VerificationTokenHash)

	mail := e.mailer.last(t, domain.MailVerifyEmail)
	assert.Equal(t, "alice@x.com", mail.To)
	data := mail.Data.(domain.VerifyEmailMailData)
	assert.Equal(t, 24, data.Expiration)
	assert.Contains(t, data.Link, testPublicURL+"/api/auth/verify-email?token=")
	assert.NotEqual(t, tokenFromLink(t, data.Link), seeker.VerificationTokenHash)

	employer, err := e.svc.Register(ctx, RegisterInput{Email: "boss@x.com", Password: testPassword, ConfirmPassword: testPassword, Role: "employer", CompanyName: " Acme "})
	require.NoError(t, err)
	assert.False(t, employer.IsApproved)
	assert.Equal(t, "Acme", employer.CompanyName)
}

func TestRegisterDuplicateEmailAnyCase(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Role: "job_seeker"})
	require.NoError(t, err)

	_, err = e.svc.Register(ctx, RegisterInput{Email: "A@X.COM", Password: testPassword, ConfirmPassword: testPassword, Role: "employer", CompanyName: "Acme"})
	requireKind(t, err, domain.ErrConflict)

	users, err := e.svc.ListUsers(ctx, e.admin, "")
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestRegisterSucceedsWhenMailFails(t *testing.T) {
	e := newTestEnv(t)
	e.mailer.err = errors.New("broker down")

	_, err := e.svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Role: "job_seeker"})
	require.NoError(t, err)
}

func TestLoginDoesNotRevealWhichPartWasWrong(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	ctx := context.Background()

	_, _, wrongPassword := e.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Wr0ng!pass"})
	_, _, unknownEmail := e.svc.Login(ctx, LoginInput{Email: "nobody@x.com", Password: testPassword})

	requireKind(t, wrongPassword, domain.ErrUnauthenticated)
	requireKind(t, unknownEmail, domain.ErrUnauthenticated)
	assert.Equal(t, domain.Message(wrongPassword), domain.Message(unknownEmail))
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLoginWithUnknownEmailStillComparesPassword(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	ctx := context.Background()

	var compares int
	compare := e.svc.compareHash
	e.svc.compareHash = func(hash, password []byte) error {
		compares++
		return compare(hash, password)
	}

	_, _, err := e.svc.Login(ctx, LoginInput{Email: "nobody@x.com", Password: testPassword})
	requireKind(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, 1, compares)

	_, _, err = e.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Wr0ng!pass"})
	requireKind(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, 2, compares)

	_, _, err = e.svc.Login(ctx, LoginInput{Email: "ghost@x.com", Password: "Wr0ng!pass"})
	requireKind(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, 3, compares)
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Role: "job_seeker"})
	require.NoError(t, err)

	_, _, err = e.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: testPassword})
	requireKind(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, "email not verified", domain.Message(err))
}

func TestLoginRecordsAndIssuesToken(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	ctx := context.Background()

	u, tok, err := e.svc.Login(ctx, LoginInput{Email: "A@x.com", Password: testPassword, IP: "10.0.0.1", UserAgent: "curl"})
	require.NoError(t, err)
	require.Len(t, u.LoginLogs, 1)
	assert.Equal(t, "10.0.0.1", u.LoginLogs[0].IP)
	assert.Equal(t, "curl", u.LoginLogs[0].UserAgent)
	require.NotNil(t, u.LastLogin)

	got, claims, err := e.svc.Authenticate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "job_seeker", claims.Role)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	e := newTestEnv(t)
	u := e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	ctx := context.Background()

	_, tok, err := e.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)

	off := false
	_, err = e.svc.ModerateUser(ctx, e.admin, u.ID, ModerationInput{IsActive: &off})
	require.NoError(t, err)

	_, _, err = e.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: testPassword})
	requireKind(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, "account disabled", domain.Message(err))

	_, _, err = e.svc.Authenticate(ctx, tok)
	requireKind(t, err, domain.ErrUnauthenticated)
}

func TestVerifyEmailIsSingleUseAndExpires(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Role: "job_seeker"})
	require.NoError(t, err)
	first := tokenFromLink(t, e.mailer.last(t, domain.MailVerifyEmail).Data.(domain.VerifyEmailMailData).Link)

	require.NoError(t, e.svc.VerifyEmail(ctx, first))
	requireKind(t, e.svc.VerifyEmail(ctx, first), domain.ErrUnauthenticated)
	requireKind(t, e.svc.VerifyEmail(ctx, ""), domain.ErrUnauthenticated)

	_, err = e.svc.Register(ctx, RegisterInput{Email: "b@x.com", Password: testPassword, ConfirmPassword: testPassword, Role: "job_seeker"})
	require.NoError(t, err)
	second := tokenFromLink(t, e.mailer.last(t, domain.MailVerifyEmail).Data.(domain.VerifyEmailMailData).Link)

	e.clock.Advance(25 * time.Hour)
	requireKind(t, e.svc.VerifyEmail(ctx, second), domain.ErrUnauthenticated)
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	ctx := context.Background()

	_, tok, err := e.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)
	_, claims, err := e.svc.Authenticate(ctx, tok)
	require.NoError(t, err)

	require.NoError(t, e.svc.Logout(ctx, claims))
	_, _, err = e.svc.Authenticate(ctx, tok)
	requireKind(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, "token has been revoked", domain.Message(err))
}

func TestAuthenticateRejectsGarbageAndDeletedUsers(t *testing.T) {
	e := newTestEnv(t)
	u := e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	ctx := context.Background()

	_, _, err := e.svc.Authenticate(ctx, "garbage")
	requireKind(t, err, domain.ErrUnauthenticated)

	_, tok, err := e.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)
	require.NoError(t, e.svc.DeleteUser(ctx, e.admin, u.ID))

	_, _, err = e.svc.Authenticate(ctx, tok)
	requireKind(t, err, domain.ErrUnauthenticated)
}

func TestPasswordResetFlow(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	ctx := context.Background()

	tok, err := e.svc.RequestPasswordReset(ctx, "A@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	data := e.mailer.last(t, domain.MailResetPassword).Data.(domain.ResetPasswordMailData)
	assert.Equal(t, 60, data.Expiration)
	assert.Equal(t, testFrontend+"/reset-password?token="+tok, data.Link)

	err = e.svc.ResetPassword(ctx, tok, "short", "short")
	requireKind(t, err, domain.ErrValidation)

	const newPassword = "N3w!password"
	require.NoError(t, e.svc.ResetPassword(ctx, tok, newPassword, newPassword))
	requireKind(t, e.svc.ResetPassword(ctx, tok, newPassword, newPassword), domain.ErrUnauthenticated)

	_, _, err = e.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: testPassword})
	requireKind(t, err, domain.ErrUnauthenticated)
	_, _, err = e.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: newPassword})
	require.NoError(t, err)
}

func TestPasswordResetExpires(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	ctx := context.Background()

	tok, err := e.svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)

	e.clock.Advance(61 * time.Minute)
	err = e.svc.ResetPassword(ctx, tok, "N3w!password", "N3w!password")
	requireKind(t, err, domain.ErrUnauthenticated)
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	e := newTestEnv(t)

	tok, err := e.svc.RequestPasswordReset(context.Background(), "ghost@x.com")
	require.NoError(t, err)
	assert.Empty(t, tok)
	assert.Empty(t, e.mailer.msgs)
}

func TestChangePassword(t *testing.T) {
	e := newTestEnv(t)
	u := e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	ctx := context.Background()

	err := e.svc.ChangePassword(ctx, u, "Wr0ng!pass", "N3w!password", "N3w!password")
	requireKind(t, err, domain.ErrUnauthenticated)

	require.NoError(t, e.svc.ChangePassword(ctx, u, testPassword, "N3w!password", "N3w!password"))
	_, _, err = e.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "N3w!password"})
	require.NoError(t, err)
}

func TestHashPasswordTimesOut(t *testing.T) {
	e := newTestEnv(t)
	e.svc.opts.HashTimeout = time.Nanosecond
	e.svc.opts.BcryptCost = 14

	_, err := e.svc.hashPassword(context.Background(), testPassword)
	requireKind(t, err, domain.ErrTimeout)
}

func TestLocalSession(t *testing.T) {
	e := newTestEnv(t)
	u := e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	ctx := context.Background()
	session := e.svc.LocalSession(e.store)

	cur, err := session.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)

	_, err = session.Login(ctx, LoginInput{Email: "a@x.com", Password: "bad"})
	requireKind(t, err, domain.ErrUnauthenticated)

	_, err = session.Login(ctx, LoginInput{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)
	cur, err = session.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, u.ID, cur.ID)

	require.NoError(t, session.Logout(ctx))
	cur, err = session.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)

	_, err = session.Login(ctx, LoginInput{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)
	require.NoError(t, e.svc.DeleteUser(ctx, e.admin, u.ID))
	cur, err = session.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}
