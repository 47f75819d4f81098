package mailqueue

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

func writeTemplates(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"verify_email.html":      `<a href="{{.Link}}">{{.Username}}</a> {{.Expiration}}h`,
		"reset_password.html":    `<a href="{{.Link}}">{{.Username}}</a> {{.Expiration}}m`,
		"employer_approved.html": `{{.Username}} {{.CompanyName}} {{.LoginLink}}`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestDecode(t *testing.T) {
	dir := writeTemplates(t)

	body := []byte(`{"type":"verify_email","to":"a@example.com","data":{"username":"alice","link":"http://api/verify?token=x","expiration":24}}`)
	m, err := Decode(body, dir)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", m.To)
	assert.Equal(t, "Job Board - Verify your email", m.Subject)
	require.IsType(t, &domain.VerifyEmailMailData{}, m.Data)
	assert.Equal(t, 24, m.Data.(*domain.VerifyEmailMailData).Expiration)

	var buf bytes.Buffer
	require.NoError(t, m.Template.Execute(&buf, m.Data))
	assert.Equal(t, `<a href="http://api/verify?token=x">alice</a> 24h`, buf.String())

	body = []byte(`{"type":"employer_approved","to":"e@example.com","data":{"username":"boss","companyName":"Tech Corp","loginLink":"http://web/login"}}`)
	m, err = Decode(body, dir)
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, m.Template.Execute(&buf, m.Data))
	assert.Equal(t, "boss Tech Corp http://web/login", buf.String())
}

func TestDecodeRejectsBadMessages(t *testing.T) {
	dir := writeTemplates(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing recipient", `{"type":"verify_email","data":{}}`},
		{"unknown type", `{"type":"create_user","to":"a@example.com"}`},
		{"bad data", `{"type":"reset_password","to":"a@example.com","data":{"expiration":"soon"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body), dir)
			assert.Error(t, err)
		})
	}

	_, err := Decode([]byte(`{"type":"verify_email","to":"a@example.com"}`), t.TempDir())
	assert.Error(t, err, "missing template file")
}
