// Package policy decides who may do what. Callers resolve the acting user into
// a View once and every rule switches over that view.
package policy

import (
	"fmt"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

type View interface {
	isView()
}

type AnonymousView struct{}

type JobSeekerView struct {
	User *domain.User
}

type EmployerView struct {
	User     *domain.User
	Approved bool
}

type AdminView struct {
	User *domain.User
}

func (AnonymousView) isView() {}
func (JobSeekerView) isView() {}
func (EmployerView) isView()  {}
func (AdminView) isView()     {}

// Resolve maps a user to its view. A nil or inactive user is anonymous.
func Resolve(u *domain.User) View {
	if u == nil || !u.IsActive {
		return AnonymousView{}
	}
	switch u.Role {
	case domain.RoleJobSeeker:
		return JobSeekerView{User: u}
	case domain.RoleEmployer:
		return EmployerView{User: u, Approved: u.IsApproved}
	case domain.RoleAdmin:
		return AdminView{User: u}
	}
	return AnonymousView{}
}

type Action string

const (
	ActionViewJob             Action = "job:view"
	ActionFilterJobStatus     Action = "job:filter-status"
	ActionCreateJob           Action = "job:create"
	ActionUpdateJob           Action = "job:update"
	ActionDeleteJob           Action = "job:delete"
	ActionListOwnJobs         Action = "job:list-own"
	ActionApply               Action = "application:create"
	ActionListOwnApplications Action = "application:list-own"
	ActionViewApplicants      Action = "application:list-job"
	ActionDecideApplication   Action = "application:decide"
	ActionViewUser            Action = "user:view"
	ActionUpdateUser          Action = "user:update"
	ActionDeleteUser          Action = "user:delete"
	ActionListUsers           Action = "user:list"
	ActionModerateUser        Action = "user:moderate"
	ActionViewStats           Action = "stats:view"
)

// Resource is the object an action targets. Job is the job itself, or the job
// an application belongs to; User is the target account.
type Resource struct {
	Job  *domain.Job
	User *domain.User
}

type Decision struct {
	Allowed bool
	Reason  string
}

const (
	ReasonAuthenticationRequired = "authentication required"
	ReasonPendingApproval        = "employer account is pending approval"
	ReasonNotOwner               = "you do not own this resource"
	ReasonAdminOnly              = "admin privileges required"
	ReasonSeekerOnly             = "only job seekers can apply to jobs"
	ReasonEmployerOnly           = "only employers can manage jobs"
	ReasonJobNotVisible          = "job is not available"
)

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// CanPerform decides whether user may perform action on res.
func CanPerform(user *domain.User, action Action, res Resource) Decision {
	return Decide(Resolve(user), action, res)
}

// Decide is CanPerform for an already resolved view.
func Decide(view View, action Action, res Resource) Decision {
	switch v := view.(type) {
	case AnonymousView:
		return anonymous(action, res)
	case JobSeekerView:
		return jobSeeker(v, action, res)
	case EmployerView:
		return employer(v, action, res)
	case AdminView:
		return allow()
	default:
		panic(fmt.Sprintf("policy: unhandled view %T", view))
	}
}

func anonymous(action Action, res Resource) Decision {
	if action == ActionViewJob && jobActive(res.Job) {
		return allow()
	}
	if action == ActionViewJob {
		return deny(ReasonJobNotVisible)
	}
	return deny(ReasonAuthenticationRequired)
}

func jobSeeker(v JobSeekerView, action Action, res Resource) Decision {
	switch action {
	case ActionViewJob:
		if jobActive(res.Job) {
			return allow()
		}
		return deny(ReasonJobNotVisible)
	case ActionApply:
		return allow()
	case ActionListOwnApplications:
		return allow()
	case ActionViewUser, ActionUpdateUser, ActionDeleteUser:
		return self(v.User, res.User)
	case ActionCreateJob, ActionUpdateJob, ActionDeleteJob, ActionListOwnJobs,
		ActionViewApplicants, ActionDecideApplication:
		return deny(ReasonEmployerOnly)
	}
	return deny(ReasonAdminOnly)
}

func employer(v EmployerView, action Action, res Resource) Decision {
	switch action {
	case ActionViewJob:
		if jobActive(res.Job) || owns(v.User, res.Job) {
			return allow()
		}
		return deny(ReasonJobNotVisible)
	case ActionViewUser, ActionUpdateUser, ActionDeleteUser:
		return self(v.User, res.User)
	case ActionApply, ActionListOwnApplications:
		return deny(ReasonSeekerOnly)
	case ActionCreateJob, ActionListOwnJobs:
		if !v.Approved {
			return deny(ReasonPendingApproval)
		}
		return allow()
	case ActionUpdateJob, ActionDeleteJob, ActionViewApplicants, ActionDecideApplication:
		if !v.Approved {
			return deny(ReasonPendingApproval)
		}
		if !owns(v.User, res.Job) {
			return deny(ReasonNotOwner)
		}
		return allow()
	}
	return deny(ReasonAdminOnly)
}

func self(actor, target *domain.User) Decision {
	if target != nil && target.ID == actor.ID {
		return allow()
	}
	return deny(ReasonNotOwner)
}

func owns(u *domain.User, j *domain.Job) bool {
	return j != nil && j.EmployerID == u.ID
}

func jobActive(j *domain.Job) bool {
	return j != nil && j.Status == domain.JobStatusActive
}
