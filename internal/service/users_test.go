package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/policy"
)

func TestEnsureInitialAdminIsIdempotent(t *testing.T) {
	e := newTestEnv(t)

	again, created, err := e.svc.EnsureInitialAdmin(context.Background(), "admin", "ADMIN@example.com", adminPassword)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, e.admin.ID, again.ID)

	_, _, err = e.svc.Login(context.Background(), LoginInput{Email: adminEmail, Password: adminPassword})
	require.NoError(t, err)
}

func TestUpdateProfileMergesFields(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.register(t, "a@x.com", domain.RoleJobSeeker, "")

	u, err := e.svc.UpdateProfile(ctx, u, u.ID, ProfilePatch{
		Username: ptr("alice_w"),
		Profile:  rawProfile(`{"legalName":"Alice W","city":"Guangzhou","codingLanguages":["Go","SQL"],"isAdult":true}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice_w", u.Username)
	assert.Equal(t, "Alice W", u.Profile.LegalName)
	assert.Equal(t, []string{"Go", "SQL"}, u.Profile.CodingLanguages)
	require.NotNil(t, u.Profile.IsAdult)
	assert.True(t, *u.Profile.IsAdult)

	u, err = e.svc.UpdateProfile(ctx, u, u.ID, ProfilePatch{Profile: rawProfile(`{"city":null,"phone":"555"}`)})
	require.NoError(t, err)
	assert.Equal(t, "Alice W", u.Profile.LegalName)
	assert.Empty(t, u.Profile.City)
	assert.Equal(t, "555", u.Profile.Phone)

	_, err = e.svc.UpdateProfile(ctx, u, u.ID, ProfilePatch{Profile: rawProfile(`{"favouriteColour":"red"}`)})
	requireKind(t, err, domain.ErrValidation)

	_, err = e.svc.UpdateProfile(ctx, u, u.ID, ProfilePatch{Profile: rawProfile(`{"websites":"not-a-list"}`)})
	requireKind(t, err, domain.ErrValidation)
}

func TestUpdateProfileRules(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seeker := e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	employer := e.register(t, "e@x.com", domain.RoleEmployer, "Acme")

	tests := []struct {
		name  string
		actor *domain.User
		id    string
		patch ProfilePatch
		kind  error
	}{
		{"role immutable", seeker, seeker.ID, ProfilePatch{Role: ptr("admin")}, domain.ErrValidation},
		{"email immutable", seeker, seeker.ID, ProfilePatch{Email: ptr("new@x.com")}, domain.ErrValidation},
		{"seeker has no company", seeker, seeker.ID, ProfilePatch{CompanyName: ptr("Acme")}, domain.ErrValidation},
		{"employer company required", employer, employer.ID, ProfilePatch{CompanyName: ptr(" ")}, domain.ErrValidation},
		{"not self", seeker, employer.ID, ProfilePatch{Username: ptr("hacker")}, domain.ErrForbidden},
		{"missing", e.admin, "missing", ProfilePatch{Username: ptr("ghost")}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.UpdateProfile(ctx, tt.actor, tt.id, tt.patch)
			requireKind(t, err, tt.kind)
		})
	}

	updated, err := e.svc.UpdateProfile(ctx, employer, employer.ID, ProfilePatch{CompanyName: ptr("Acme Ltd"), Email: ptr("E@x.com")})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", updated.CompanyName)

	_, err = e.svc.UpdateProfile(ctx, e.admin, seeker.ID, ProfilePatch{Username: ptr("renamed")})
	require.NoError(t, err)
}

func TestGetUser(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seeker := e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	other := e.register(t, "b@x.com", domain.RoleJobSeeker, "")

	_, err := e.svc.GetUser(ctx, seeker, seeker.ID)
	require.NoError(t, err)
	_, err = e.svc.GetUser(ctx, seeker, other.ID)
	requireKind(t, err, domain.ErrForbidden)
	_, err = e.svc.GetUser(ctx, e.admin, other.ID)
	require.NoError(t, err)
}

func TestModerateUser(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seeker := e.register(t, "a@x.com", domain.RoleJobSeeker, "")
	employer := e.register(t, "e@x.com", domain.RoleEmployer, "Acme")

	_, err := e.svc.ModerateUser(ctx, employer, employer.ID, ModerationInput{IsApproved: ptr(true)})
	requireKind(t, err, domain.ErrForbidden)

	_, err = e.svc.ModerateUser(ctx, e.admin, seeker.ID, ModerationInput{IsApproved: ptr(true)})
	requireKind(t, err, domain.ErrValidation)

	_, err = e.svc.ModerateUser(ctx, e.admin, seeker.ID, ModerationInput{})
	requireKind(t, err, domain.ErrValidation)

	_, err = e.svc.ModerateUser(ctx, e.admin, e.admin.ID, ModerationInput{IsActive: ptr(false)})
	requireKind(t, err, domain.ErrForbidden)

	sent := len(e.mailer.msgs)
	u, err := e.svc.ModerateUser(ctx, e.admin, employer.ID, ModerationInput{IsApproved: ptr(true)})
	require.NoError(t, err)
	assert.True(t, u.IsApproved)
	assert.Len(t, e.mailer.msgs, sent+1)
	data := e.mailer.last(t, domain.MailEmployerApproved).Data.(domain.EmployerApprovedMailData)
	assert.Equal(t, "Acme", data.CompanyName)
	assert.Equal(t, testFrontend+"/login", data.LoginLink)

	// approving twice does not mail again
	_, err = e.svc.ModerateUser(ctx, e.admin, employer.ID, ModerationInput{IsApproved: ptr(true)})
	require.NoError(t, err)
	assert.Len(t, e.mailer.msgs, sent+1)

	users, err := e.svc.ListUsers(ctx, e.admin, "employer")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, employer.ID, users[0].ID)

	_, err = e.svc.ListUsers(ctx, e.admin, "robot")
	requireKind(t, err, domain.ErrValidation)
	_, err = e.svc.ListUsers(ctx, seeker, "")
	requireKind(t, err, domain.ErrForbidden)
}

func TestDeleteUser(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	employer := e.approvedEmployer(t, "e@x.com")
	seeker := e.seeker(t, "a@x.com")
	other := e.seeker(t, "b@x.com")
	job := e.job(t, employer, "Cascade")
	_, err := e.svc.Apply(ctx, seeker, job.ID)
	require.NoError(t, err)

	requireKind(t, e.svc.DeleteUser(ctx, e.admin, e.admin.ID), domain.ErrForbidden)
	requireKind(t, e.svc.DeleteUser(ctx, other, seeker.ID), domain.ErrForbidden)
	requireKind(t, e.svc.DeleteUser(ctx, e.admin, "missing"), domain.ErrNotFound)

	require.NoError(t, e.svc.DeleteUser(ctx, e.admin, employer.ID))
	_, err = e.svc.GetJob(ctx, e.admin, job.ID)
	requireKind(t, err, domain.ErrNotFound)
	apps, err := e.svc.ListApplications(ctx, seeker)
	require.NoError(t, err)
	assert.Empty(t, apps)

	require.NoError(t, e.svc.DeleteUser(ctx, other, other.ID))
}

func TestStatsAndDashboard(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	employer := e.approvedEmployer(t, "e@x.com")
	pending := e.register(t, "p@x.com", domain.RoleEmployer, "Pending Co")
	seeker := e.seeker(t, "a@x.com")
	job := e.job(t, employer, "Dash")
	_, err := e.svc.Apply(ctx, seeker, job.ID)
	require.NoError(t, err)

	stats, err := e.svc.Stats(ctx, e.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.UsersByRole[domain.RoleEmployer])
	assert.Equal(t, 1, stats.UsersByRole[domain.RoleJobSeeker])
	assert.Equal(t, 1, stats.UsersByRole[domain.RoleAdmin])
	assert.Equal(t, 1, stats.PendingEmployers)
	assert.Equal(t, 1, stats.JobsByStatus[domain.JobStatusActive])
	assert.Equal(t, 1, stats.ApplicationsByStatus[domain.ApplicationPending])

	_, err = e.svc.Stats(ctx, employer)
	requireKind(t, err, domain.ErrForbidden)

	d, err := e.svc.Dashboard(ctx, seeker)
	require.NoError(t, err)
	assert.Equal(t, DashboardJobSeeker, d.View)
	assert.Len(t, d.Applications, 1)

	d, err = e.svc.Dashboard(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, DashboardEmployerPending, d.View)
	assert.Equal(t, policy.ReasonPendingApproval, d.Message)
	assert.Empty(t, d.Jobs)

	d, err = e.svc.Dashboard(ctx, employer)
	require.NoError(t, err)
	assert.Equal(t, DashboardEmployer, d.View)
	assert.Len(t, d.Jobs, 1)
	assert.Len(t, d.Applications, 1)

	d, err = e.svc.Dashboard(ctx, e.admin)
	require.NoError(t, err)
	assert.Equal(t, DashboardAdmin, d.View)
	assert.Len(t, d.Employers, 2)
	assert.Len(t, d.JobSeekers, 1)
	require.NotNil(t, d.Stats)

	_, err = e.svc.Dashboard(ctx, nil)
	requireKind(t, err, domain.ErrUnauthenticated)
}
