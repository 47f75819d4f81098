package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/memstore"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPassword    = "Passw0rd!"
	adminEmail      = "admin@example.com"
	adminPassword   = "Adm1n!pass"
	testFrontend    = "http://frontend.test"
	testPublicURL   = "http://api.test"
	testJWTSecret   = "test-secret"
	testJWTIssuer   = "job-board"
	testJWTAudience = "job-board-api"
)

type fakeMailer struct {
	mu   sync.Mutex
	msgs []domain.MailMessage
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg domain.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return m.err
}

func (m *fakeMailer) last(t *testing.T, typ string) domain.MailMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].Type == typ {
			return m.msgs[i]
		}
	}
	t.Fatalf("no %s mail sent", typ)
	return domain.MailMessage{}
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (r *fakeRevoker) Revoke(ctx context.Context, jti string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked == nil {
		r.revoked = map[string]time.Time{}
	}
	r.revoked[jti] = until
	return nil
}

func (r *fakeRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[jti]
	return ok, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc     *Service
	store   *memstore.Store
	mailer  *fakeMailer
	revoker *fakeRevoker
	clock   *clock
	admin   *domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memstore.New()
	mailer := &fakeMailer{}
	revoker := &fakeRevoker{}
	tokens := token.NewIssuer(testJWTSecret, time.Hour, testJWTIssuer, testJWTAudience)
	svc := New(store, mailer, revoker, tokens, Options{
		PublicURL:         testPublicURL,
		FrontendURL:       testFrontend,
		BcryptCost:        bcrypt.MinCost,
		InitialAdminEmail: adminEmail,
	})
	clk := &clock{now: time.Now().UTC().Truncate(time.Second)}
	svc.now = clk.Now

	admin, created, err := svc.EnsureInitialAdmin(context.Background(), "admin", adminEmail, adminPassword)
	require.NoError(t, err)
	require.True(t, created)

	return &testEnv{svc: svc, store: store, mailer: mailer, revoker: revoker, clock: clk, admin: admin}
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	_, tok, ok := strings.Cut(link, "token=")
	require.True(t, ok, link)
	return tok
}

// register signs up and verifies a user, returning the fresh record.
func (e *testEnv) register(t *testing.T, email string, role domain.Role, company string) *domain.User {
	t.Helper()
	ctx := context.Background()

	_, err := e.svc.Register(ctx, RegisterInput{
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
		Role:            string(role),
		CompanyName:     company,
	})
	require.NoError(t, err)

	data := e.mailer.last(t, domain.MailVerifyEmail).Data.(domain.VerifyEmailMailData)
	require.NoError(t, e.svc.VerifyEmail(ctx, tokenFromLink(t, data.Link)))

	u, err := e.store.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	return u
}

func (e *testEnv) seeker(t *testing.T, email string) *domain.User {
	t.Helper()
	u := e.register(t, email, domain.RoleJobSeeker, "")
	u, err := e.svc.UpdateProfile(context.Background(), u, u.ID, ProfilePatch{Profile: rawProfile(`{"legalName":"Alice Seeker","phone":"13800000000"}`)})
	require.NoError(t, err)
	return u
}

func (e *testEnv) approvedEmployer(t *testing.T, email string) *domain.User {
	t.Helper()
	u := e.register(t, email, domain.RoleEmployer, "Acme")
	approve := true
	u, err := e.svc.ModerateUser(context.Background(), e.admin, u.ID, ModerationInput{IsApproved: &approve})
	require.NoError(t, err)
	return u
}

func (e *testEnv) job(t *testing.T, employer *domain.User, title string) *domain.Job {
	t.Helper()
	j, err := e.svc.CreateJob(context.Background(), employer, CreateJobInput{
		Title:       title,
		Description: "Write Go services",
		Location:    "Guangzhou",
		Type:        "full-time",
		Skills:      "go, sql",
		Deadline:    e.clock.Now().Add(30 * 24 * time.Hour).Format(time.DateOnly),
	})
	require.NoError(t, err)
	return j
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, kind), "want %v, got %v", kind, err)
}

func rawProfile(s string) map[string]json.RawMessage {
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		panic(err)
	}
	return m
}
