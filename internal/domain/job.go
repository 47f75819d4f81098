package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

type JobType string

const (
	JobTypeFullTime   JobType = "full-time"
	JobTypePartTime   JobType = "part-time"
	JobTypeContract   JobType = "contract"
	JobTypeInternship JobType = "internship"
	JobTypeRemote     JobType = "remote"
)

func ParseJobType(s string) (JobType, error) {
	t := JobType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case JobTypeFullTime, JobTypePartTime, JobTypeContract, JobTypeInternship, JobTypeRemote:
		return t, nil
	}
	return "", fmt.Errorf("unknown job type %q", s)
}

type ExperienceLevel string

const (
	ExperienceEntry  ExperienceLevel = "entry"
	ExperienceMid    ExperienceLevel = "mid"
	ExperienceSenior ExperienceLevel = "senior"
	ExperienceLead   ExperienceLevel = "lead"
)

func ParseExperienceLevel(s string) (ExperienceLevel, error) {
	l := ExperienceLevel(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case ExperienceEntry, ExperienceMid, ExperienceSenior, ExperienceLead:
		return l, nil
	}
	return "", fmt.Errorf("unknown experience level %q", s)
}

// JobStatus graph:
//
//	active ⇄ paused
//	  │        │
//	  └────────┴──► closed
//
// closed is terminal.
type JobStatus string

const (
	JobStatusActive JobStatus = "active"
	JobStatusPaused JobStatus = "paused"
	JobStatusClosed JobStatus = "closed"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusActive: {JobStatusPaused, JobStatusClosed},
	JobStatusPaused: {JobStatusActive, JobStatusClosed},
}

func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	switch st {
	case JobStatusActive, JobStatusPaused, JobStatusClosed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// CanTransitionJob reports whether a job may move from one status to another.
// Staying in the same status is always allowed.
func CanTransitionJob(from, to JobStatus) bool {
	if from == to {
		return true
	}
	return slices.Contains(jobTransitions[from], to)
}

type Job struct {
	ID              string          `json:"id"`
	EmployerID      string          `json:"employerId"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	CompanyName     string          `json:"companyName"`
	Salary          string          `json:"salary"`
	SalaryMin       *int            `json:"salaryMin,omitempty"`
	SalaryMax       *int            `json:"salaryMax,omitempty"`
	Location        string          `json:"location"`
	Type            JobType         `json:"type"`
	SkillsRequired  []string        `json:"skillsRequired"`
	Experience      string          `json:"experience"`
	ExperienceLevel ExperienceLevel `json:"experienceLevel,omitempty"`
	Deadline        time.Time       `json:"deadline"`
	Status          JobStatus       `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Version         int32           `json:"-"`
}

func (j *Job) Clone() *Job {
	c := *j
	c.SkillsRequired = append([]string(nil), j.SkillsRequired...)
	if j.SalaryMin != nil {
		v := *j.SalaryMin
		c.SalaryMin = &v
	}
	if j.SalaryMax != nil {
		v := *j.SalaryMax
		c.SalaryMax = &v
	}
	return &c
}

// Expired reports whether the application deadline has passed.
func (j *Job) Expired(now time.Time) bool {
	return now.After(j.Deadline)
}

// KeywordScope selects which job fields a keyword is matched against.
type KeywordScope int

const (
	// ScopeListing matches title, company name and location.
	ScopeListing KeywordScope = iota
	// ScopeSearch matches title, description and location.
	ScopeSearch
)

type JobQuery struct {
	Statuses         []JobStatus
	EmployerID       string
	Keyword          string
	Scope            KeywordScope
	Types            []JobType
	ExperienceLevels []ExperienceLevel
	Location         string
	MinSalary        *int
	MaxSalary        *int

	// Page starts at 1. A zero Limit disables pagination.
	Page  int
	Limit int
}

// Offset saturates at math.MaxInt instead of overflowing.
func (q JobQuery) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Matches evaluates the query filters against a job in memory. Pagination is
// not considered.
func (q JobQuery) Matches(j *Job) bool {
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, j.Status) {
		return false
	}
	if q.EmployerID != "" && j.EmployerID != q.EmployerID {
		return false
	}
	if kw := strings.ToLower(strings.TrimSpace(q.Keyword)); kw != "" {
		fields := []string{j.Title, j.CompanyName, j.Location}
		if q.Scope == ScopeSearch {
			fields = []string{j.Title, j.Description, j.Location}
		}
		found := false
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Types) > 0 && !slices.Contains(q.Types, j.Type) {
		return false
	}
	if len(q.ExperienceLevels) > 0 && !slices.Contains(q.ExperienceLevels, j.ExperienceLevel) {
		return false
	}
	if loc := strings.ToLower(strings.TrimSpace(q.Location)); loc != "" && !strings.Contains(strings.ToLower(j.Location), loc) {
		return false
	}
	return q.salaryOverlaps(j)
}

// salaryOverlaps treats a job's salary as the range [SalaryMin, SalaryMax]
// with open ends when unset. Jobs without any numeric salary never match a
// salary filter.
func (q JobQuery) salaryOverlaps(j *Job) bool {
	if q.MinSalary == nil && q.MaxSalary == nil {
		return true
	}
	if j.SalaryMin == nil && j.SalaryMax == nil {
		return false
	}
	if q.MinSalary != nil && j.SalaryMax != nil && *j.SalaryMax < *q.MinSalary {
		return false
	}
	if q.MaxSalary != nil && j.SalaryMin != nil && *j.SalaryMin > *q.MaxSalary {
		return false
	}
	return true
}
