package service

import (
	"context"
	"math"
	"strings"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/policy"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/utils"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type CreateJobInput struct {
	Title           string
	Description     string
	Location        string
	Type            string
	Salary          string
	SalaryMin       *int
	SalaryMax       *int
	Skills          string
	Experience      string
	ExperienceLevel string
	Deadline        string
}

// JobPatch holds the fields to change. Nil means unchanged.
type JobPatch struct {
	Title           *string
	Description     *string
	Location        *string
	Type            *string
	Salary          *string
	SalaryMin       *int
	SalaryMax       *int
	Skills          *string
	Experience      *string
	ExperienceLevel *string
	Deadline        *string
	Status          *string
}

func requireText(fields map[string]string, name, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		fields[name] = name + " is required"
	}
	return value
}

func (s *Service) CreateJob(ctx context.Context, actor *domain.User, in CreateJobInput) (*domain.Job, error) {
	if err := authorize(actor, policy.ActionCreateJob, policy.Resource{}); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	now := s.now()
	job := &domain.Job{
		ID:             s.newID(),
		EmployerID:     actor.ID,
		CompanyName:    actor.CompanyName,
		Title:          requireText(fields, "title", in.Title),
		Description:    requireText(fields, "description", in.Description),
		Location:       requireText(fields, "location", in.Location),
		Salary:         strings.TrimSpace(in.Salary),
		SalaryMin:      in.SalaryMin,
		SalaryMax:      in.SalaryMax,
		SkillsRequired: utils.ParseSkills(in.Skills),
		Experience:     strings.TrimSpace(in.Experience),
		Status:         domain.JobStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}

	if t, err := domain.ParseJobType(in.Type); err != nil {
		fields["type"] = "type must be one of full-time, part-time, contract, internship, remote"
	} else {
		job.Type = t
	}
	if in.ExperienceLevel != "" {
		if l, err := domain.ParseExperienceLevel(in.ExperienceLevel); err != nil {
			fields["experienceLevel"] = "experienceLevel must be one of entry, mid, senior, lead"
		} else {
			job.ExperienceLevel = l
		}
	}
	if strings.TrimSpace(in.Deadline) == "" {
		fields["deadline"] = "deadline is required"
	} else if d, err := utils.ParseDeadline(in.Deadline); err != nil {
		fields["deadline"] = err.Error()
	} else if !d.After(now) {
		fields["deadline"] = "deadline must be in the future"
	} else {
		job.Deadline = d
	}
	if err := utils.ValidateSalaryRange(in.SalaryMin, in.SalaryMax); err != nil {
		fields["salaryMin"] = err.Error()
	}

	if len(fields) > 0 {
		return nil, domain.Validation("validation failed", fields)
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, storeErr(err)
	}
	return job, nil
}

// GetJob returns a job. Jobs the caller may not see are reported missing.
func (s *Service) GetJob(ctx context.Context, actor *domain.User, id string) (*domain.Job, error) {
	job, err := s.store.GetJobByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if d := policy.CanPerform(actor, policy.ActionViewJob, policy.Resource{Job: job}); !d.Allowed {
		return nil, domain.NotFound("job not found")
	}
	return job, nil
}

func (s *Service) UpdateJob(ctx context.Context, actor *domain.User, id string, patch JobPatch) (*domain.Job, error) {
	return s.mutateJob(ctx, id, func(job *domain.Job) error {
		if err := authorize(actor, policy.ActionUpdateJob, policy.Resource{Job: job}); err != nil {
			return err
		}
		return s.applyJobPatch(job, patch)
	})
}

func (s *Service) applyJobPatch(job *domain.Job, p JobPatch) error {
	fields := map[string]string{}

	if p.Title != nil {
		job.Title = requireText(fields, "title", *p.Title)
	}
	if p.Description != nil {
		job.Description = requireText(fields, "description", *p.Description)
	}
	if p.Location != nil {
		job.Location = requireText(fields, "location", *p.Location)
	}
	if p.Type != nil {
		if t, err := domain.ParseJobType(*p.Type); err != nil {
			fields["type"] = "type must be one of full-time, part-time, contract, internship, remote"
		} else {
			job.Type = t
		}
	}
	if p.Salary != nil {
		job.Salary = strings.TrimSpace(*p.Salary)
	}
	if p.SalaryMin != nil {
		job.SalaryMin = p.SalaryMin
	}
	if p.SalaryMax != nil {
		job.SalaryMax = p.SalaryMax
	}
	if err := utils.ValidateSalaryRange(job.SalaryMin, job.SalaryMax); err != nil {
		fields["salaryMin"] = err.Error()
	}
	if p.Skills != nil {
		job.SkillsRequired = utils.ParseSkills(*p.Skills)
	}
	if p.Experience != nil {
		job.Experience = strings.TrimSpace(*p.Experience)
	}
	if p.ExperienceLevel != nil {
		if *p.ExperienceLevel == "" {
			job.ExperienceLevel = ""
		} else if l, err := domain.ParseExperienceLevel(*p.ExperienceLevel); err != nil {
			fields["experienceLevel"] = "experienceLevel must be one of entry, mid, senior, lead"
		} else {
			job.ExperienceLevel = l
		}
	}
	if p.Deadline != nil {
		if d, err := utils.ParseDeadline(*p.Deadline); err != nil {
			fields["deadline"] = err.Error()
		} else {
			job.Deadline = d
		}
	}

	var status domain.JobStatus
	if p.Status != nil {
		st, err := domain.ParseJobStatus(*p.Status)
		if err != nil {
			fields["status"] = "status must be one of active, paused, closed"
		}
		status = st
	}

	if len(fields) > 0 {
		return domain.Validation("validation failed", fields)
	}

	if status != "" {
		if !domain.CanTransitionJob(job.Status, status) {
			return domain.InvalidTransition("cannot move job from " + string(job.Status) + " to " + string(status))
		}
		job.Status = status
	}
	return nil
}

func (s *Service) DeleteJob(ctx context.Context, actor *domain.User, id string) error {
	job, err := s.store.GetJobByID(ctx, id)
	if err != nil {
		return storeErr(err)
	}
	if err := authorize(actor, policy.ActionDeleteJob, policy.Resource{Job: job}); err != nil {
		return err
	}
	return storeErr(s.store.DeleteJob(ctx, id))
}

type ListJobsInput struct {
	Keyword string
	// Status is honoured for admins only; everyone else sees active jobs.
	Status string
	Page   int
	Limit  int
}

type JobPage struct {
	Jobs  []*domain.Job `json:"jobs"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (s *Service) ListJobs(ctx context.Context, actor *domain.User, in ListJobsInput) (*JobPage, error) {
	q := domain.JobQuery{
		Statuses: []domain.JobStatus{domain.JobStatusActive},
		Keyword:  in.Keyword,
		Scope:    domain.ScopeListing,
		Page:     in.Page,
		Limit:    in.Limit,
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return nil, domain.Validation("validation failed", map[string]string{"page": "page is out of range"})
	}

	if in.Status != "" && policy.CanPerform(actor, policy.ActionFilterJobStatus, policy.Resource{}).Allowed {
		if in.Status == "all" {
			q.Statuses = nil
		} else {
			st, err := domain.ParseJobStatus(in.Status)
			if err != nil {
				return nil, domain.Validation("validation failed", map[string]string{"status": "status must be one of all, active, paused, closed"})
			}
			q.Statuses = []domain.JobStatus{st}
		}
	}

	jobs, total, err := s.store.ListJobs(ctx, q)
	if err != nil {
		return nil, storeErr(err)
	}
	return &JobPage{Jobs: jobs, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

type SearchJobsInput struct {
	Query            string
	Types            []string
	ExperienceLevels []string
	Location         string
	MinSalary        *int
	MaxSalary        *int
}

// SearchJobs filters active jobs. Every filter narrows the result.
func (s *Service) SearchJobs(ctx context.Context, actor *domain.User, in SearchJobsInput) ([]*domain.Job, error) {
	fields := map[string]string{}
	q := domain.JobQuery{
		Statuses:  []domain.JobStatus{domain.JobStatusActive},
		Keyword:   in.Query,
		Scope:     domain.ScopeSearch,
		Location:  in.Location,
		MinSalary: in.MinSalary,
		MaxSalary: in.MaxSalary,
	}
	for _, raw := range in.Types {
		t, err := domain.ParseJobType(raw)
		if err != nil {
			fields["jobType"] = err.Error()
			continue
		}
		q.Types = append(q.Types, t)
	}
	for _, raw := range in.ExperienceLevels {
		l, err := domain.ParseExperienceLevel(raw)
		if err != nil {
			fields["experienceLevel"] = err.Error()
			continue
		}
		q.ExperienceLevels = append(q.ExperienceLevels, l)
	}
	if err := utils.ValidateSalaryRange(in.MinSalary, in.MaxSalary); err != nil {
		fields["minSalary"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, domain.Validation("validation failed", fields)
	}

	jobs, _, err := s.store.ListJobs(ctx, q)
	if err != nil {
		return nil, storeErr(err)
	}
	return jobs, nil
}

// ListEmployerJobs returns the caller's own jobs in every status.
func (s *Service) ListEmployerJobs(ctx context.Context, actor *domain.User) ([]*domain.Job, error) {
	if err := authorize(actor, policy.ActionListOwnJobs, policy.Resource{}); err != nil {
		return nil, err
	}
	jobs, _, err := s.store.ListJobs(ctx, domain.JobQuery{EmployerID: actor.ID})
	if err != nil {
		return nil, storeErr(err)
	}
	return jobs, nil
}

// CloseExpiredJobs closes active and paused jobs whose deadline has passed.
func (s *Service) CloseExpiredJobs(ctx context.Context) (int, error) {
	n, err := s.store.CloseExpiredJobs(ctx, s.now())
	return n, storeErr(err)
}
