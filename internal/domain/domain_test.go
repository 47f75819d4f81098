package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionJob(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusActive, JobStatusPaused, true},
		{JobStatusPaused, JobStatusActive, true},
		{JobStatusActive, JobStatusClosed, true},
		{JobStatusPaused, JobStatusClosed, true},
		{JobStatusClosed, JobStatusActive, false},
		{JobStatusClosed, JobStatusPaused, false},
		{JobStatusClosed, JobStatusClosed, true},
		{JobStatusActive, JobStatusActive, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionJob(tt.from, tt.to))
		})
	}
}

func TestCanTransitionApplication(t *testing.T) {
	assert.True(t, CanTransitionApplication(ApplicationPending, ApplicationAccepted))
	assert.True(t, CanTransitionApplication(ApplicationPending, ApplicationRejected))
	assert.False(t, CanTransitionApplication(ApplicationPending, ApplicationPending))
	assert.False(t, CanTransitionApplication(ApplicationAccepted, ApplicationRejected))
	assert.False(t, CanTransitionApplication(ApplicationRejected, ApplicationAccepted))
}

func TestParseEnums(t *testing.T) {
	jt, err := ParseJobType(" Full-Time ")
	require.NoError(t, err)
	assert.Equal(t, JobTypeFullTime, jt)

	_, err = ParseJobType("freelance")
	assert.Error(t, err)

	_, err = ParseRole("superuser")
	assert.Error(t, err)

	lvl, err := ParseExperienceLevel("SENIOR")
	require.NoError(t, err)
	assert.Equal(t, ExperienceSenior, lvl)
}

func intPtr(v int) *int { return &v }

func TestJobQueryMatches(t *testing.T) {
	job := &Job{
		Title:           "Backend Engineer",
		Description:     "Build APIs in Go",
		CompanyName:     "Acme",
		Location:        "Guangzhou",
		Type:            JobTypeFullTime,
		ExperienceLevel: ExperienceMid,
		SalaryMin:       intPtr(10000),
		SalaryMax:       intPtr(20000),
		Status:          JobStatusActive,
		Deadline:        time.Now().Add(24 * time.Hour),
	}

	tests := []struct {
		name  string
		query JobQuery
		want  bool
	}{
		{"empty", JobQuery{}, true},
		{"status", JobQuery{Statuses: []JobStatus{JobStatusClosed}}, false},
		{"listing keyword company", JobQuery{Keyword: "acme"}, true},
		{"listing keyword ignores description", JobQuery{Keyword: "apis"}, false},
		{"search keyword description", JobQuery{Keyword: "APIS", Scope: ScopeSearch}, true},
		{"search keyword ignores company", JobQuery{Keyword: "acme", Scope: ScopeSearch}, false},
		{"type", JobQuery{Types: []JobType{JobTypeRemote}}, false},
		{"level", JobQuery{ExperienceLevels: []ExperienceLevel{ExperienceMid, ExperienceLead}}, true},
		{"location", JobQuery{Location: "guang"}, true},
		{"salary overlap", JobQuery{MinSalary: intPtr(15000), MaxSalary: intPtr(30000)}, true},
		{"salary above", JobQuery{MinSalary: intPtr(25000)}, false},
		{"salary below", JobQuery{MaxSalary: intPtr(5000)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Matches(job))
		})
	}

	noSalary := job.Clone()
	noSalary.SalaryMin, noSalary.SalaryMax = nil, nil
	assert.False(t, JobQuery{MinSalary: intPtr(1)}.Matches(noSalary))
}

func TestJobQueryOffset(t *testing.T) {
	assert.Equal(t, 0, JobQuery{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 20, JobQuery{Page: 3, Limit: 10}.Offset())
	assert.Equal(t, 0, JobQuery{Page: 3}.Offset())
	assert.Equal(t, math.MaxInt, JobQuery{Page: 1000000000000000000, Limit: 10}.Offset())
	assert.Equal(t, math.MaxInt, JobQuery{Page: math.MaxInt, Limit: 100}.Offset())
}

func TestCloneIsDeep(t *testing.T) {
	u := &User{Profile: Profile{Websites: []string{"a"}}, LoginLogs: []LoginLog{{IP: "1"}}}
	c := u.Clone()
	c.Profile.Websites[0] = "b"
	c.LoginLogs[0].IP = "2"
	assert.Equal(t, "a", u.Profile.Websites[0])
	assert.Equal(t, "1", u.LoginLogs[0].IP)

	j := &Job{SkillsRequired: []string{"go"}, SalaryMin: intPtr(1)}
	jc := j.Clone()
	jc.SkillsRequired[0] = "rust"
	*jc.SalaryMin = 2
	assert.Equal(t, "go", j.SkillsRequired[0])
	assert.Equal(t, 1, *j.SalaryMin)
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Validation("bad input", map[string]string{"title": "required"}))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "bad input", Message(err))
	assert.Equal(t, "required", FieldErrors(err)["title"])

	assert.Equal(t, "internal server error", Message(errors.New("pq: secret detail")))
	assert.True(t, errors.Is(Timeout(errors.New("deadline")), ErrTimeout))
}

func TestMissingForApplication(t *testing.T) {
	assert.Len(t, Profile{}.MissingForApplication(), 2)
	assert.Empty(t, Profile{LegalName: "A", Phone: "1"}.MissingForApplication())
}
