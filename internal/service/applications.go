package service

import (
	"context"
	"errors"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/policy"
)

// Apply creates a pending application from the caller to the job.
func (s *Service) Apply(ctx context.Context, actor *domain.User, jobID string) (*domain.Application, error) {
	if err := authorize(actor, policy.ActionApply, policy.Resource{}); err != nil {
		return nil, err
	}

	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, storeErr(err)
	}
	now := s.now()
	if job.Status != domain.JobStatusActive || job.Expired(now) {
		return nil, domain.Validation("job is not accepting applications", map[string]string{"jobId": "job is not accepting applications"})
	}
	if missing := actor.Profile.MissingForApplication(); len(missing) > 0 {
		return nil, domain.Validation("complete your profile before applying", missing)
	}

	app := &domain.Application{
		ID:          s.newID(),
		JobID:       job.ID,
		JobSeekerID: actor.ID,
		Status:      domain.ApplicationPending,
		AppliedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.Conflict("you have already applied to this job")
		}
		return nil, storeErr(err)
	}
	return app, nil
}

// UpdateApplicationStatus accepts or rejects a pending application. Only one
// decision can ever win.
func (s *Service) UpdateApplicationStatus(ctx context.Context, actor *domain.User, id string, status string) (*domain.Application, error) {
	to, err := domain.ParseApplicationStatus(status)
	if err != nil || !to.IsDecision() {
		return nil, domain.Validation("validation failed", map[string]string{"status": "status must be accepted or rejected"})
	}

	app, err := s.store.GetApplicationByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	job, err := s.store.GetJobByID(ctx, app.JobID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := authorize(actor, policy.ActionDecideApplication, policy.Resource{Job: job}); err != nil {
		return nil, err
	}
	if !domain.CanTransitionApplication(app.Status, to) {
		return nil, domain.InvalidTransition("application has already been " + string(app.Status))
	}

	updated, err := s.store.TransitionApplication(ctx, id, domain.ApplicationPending, to, s.now())
	if err != nil {
		return nil, storeErr(err)
	}
	return updated, nil
}

// ListMyApplications returns the applications the caller has made.
func (s *Service) ListMyApplications(ctx context.Context, actor *domain.User) ([]*domain.Application, error) {
	if err := authorize(actor, policy.ActionListOwnApplications, policy.Resource{}); err != nil {
		return nil, err
	}
	return s.listApplications(ctx, domain.ApplicationQuery{JobSeekerID: actor.ID})
}

func (s *Service) ListJobApplicants(ctx context.Context, actor *domain.User, jobID string) ([]*domain.Application, error) {
	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := authorize(actor, policy.ActionViewApplicants, policy.Resource{Job: job}); err != nil {
		return nil, err
	}
	return s.listApplications(ctx, domain.ApplicationQuery{JobID: job.ID})
}

// ListApplications returns what the caller is allowed to see: a seeker's own
// applications, everything sent to an employer's jobs, or all of them for an
// admin.
func (s *Service) ListApplications(ctx context.Context, actor *domain.User) ([]*domain.Application, error) {
	switch v := policy.Resolve(actor).(type) {
	case policy.JobSeekerView:
		return s.listApplications(ctx, domain.ApplicationQuery{JobSeekerID: v.User.ID})
	case policy.EmployerView:
		if !v.Approved {
			return nil, domain.Forbidden(policy.ReasonPendingApproval)
		}
		return s.listApplications(ctx, domain.ApplicationQuery{EmployerID: v.User.ID})
	case policy.AdminView:
		return s.listApplications(ctx, domain.ApplicationQuery{})
	default:
		return nil, domain.Unauthenticated(policy.ReasonAuthenticationRequired)
	}
}

func (s *Service) listApplications(ctx context.Context, q domain.ApplicationQuery) ([]*domain.Application, error) {
	apps, err := s.store.ListApplications(ctx, q)
	if err != nil {
		return nil, storeErr(err)
	}
	return apps, nil
}
