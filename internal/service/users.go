package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/policy"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/utils"
)

func (s *Service) isInitialAdmin(u *domain.User) bool {
	return u.Role == domain.RoleAdmin && s.opts.InitialAdminEmail != "" && strings.EqualFold(u.Email, s.opts.InitialAdminEmail)
}

// EnsureInitialAdmin creates the configured administrator unless an account
// with that email already exists.
func (s *Service) EnsureInitialAdmin(ctx context.Context, username, email, password string) (*domain.User, bool, error) {
	email, err := utils.NormalizeEmail(email)
	if err != nil {
		return nil, false, domain.Validation("invalid initial admin email", map[string]string{"email": err.Error()})
	}

	existing, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, storeErr(err)
	}

	passwordHash, err := s.hashPassword(ctx, password)
	if err != nil {
		return nil, false, err
	}
	now := s.now()
	admin := &domain.User{
		ID:            s.newID(),
		Username:      username,
		Email:         email,
		PasswordHash:  passwordHash,
		Role:          domain.RoleAdmin,
		IsApproved:    true,
		EmailVerified: true,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	if err := s.store.CreateUser(ctx, admin); err != nil {
		return nil, false, storeErr(err)
	}
	return admin, true, nil
}

func (s *Service) GetUser(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := authorize(actor, policy.ActionViewUser, policy.Resource{User: u}); err != nil {
		return nil, err
	}
	return u, nil
}

// ProfilePatch changes the editable parts of an account. Profile entries are
// merged key by key into the stored profile; a JSON null clears a field.
type ProfilePatch struct {
	Username    *string
	CompanyName *string
	Email       *string
	Role        *string
	Profile     map[string]json.RawMessage
}

func (s *Service) UpdateProfile(ctx context.Context, actor *domain.User, id string, patch ProfilePatch) (*domain.User, error) {
	return s.mutateUser(ctx, id, func(u *domain.User) error {
		if err := authorize(actor, policy.ActionUpdateUser, policy.Resource{User: u}); err != nil {
			return err
		}

		fields := map[string]string{}
		if patch.Email != nil && !strings.EqualFold(strings.TrimSpace(*patch.Email), u.Email) {
			fields["email"] = "email cannot be changed"
		}
		if patch.Role != nil && *patch.Role != string(u.Role) {
			fields["role"] = "role cannot be changed"
		}
		if patch.Username != nil {
			name := strings.TrimSpace(*patch.Username)
			if msg := validateUsername(name); msg != "" {
				fields["username"] = msg
			}
			u.Username = name
		}
		if patch.CompanyName != nil {
			name := strings.TrimSpace(*patch.CompanyName)
			switch {
			case u.Role != domain.RoleEmployer:
				fields["companyName"] = "only employers have a company name"
			case name == "":
				fields["companyName"] = "company name is required for employers"
			}
			u.CompanyName = name
		}
		if len(patch.Profile) > 0 {
			profile, err := mergeProfile(u.Profile, patch.Profile)
			if err != nil {
				fields["profile"] = err.Error()
			} else {
				u.Profile = profile
			}
		}

		if len(fields) > 0 {
			return domain.Validation("validation failed", fields)
		}
		return nil
	})
}

func mergeProfile(current domain.Profile, patch map[string]json.RawMessage) (domain.Profile, error) {
	b, err := json.Marshal(current)
	if err != nil {
		return current, err
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &merged); err != nil {
		return current, err
	}
	for k, v := range patch {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	b, err = json.Marshal(merged)
	if err != nil {
		return current, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var out domain.Profile
	if err := dec.Decode(&out); err != nil {
		return current, errors.New("invalid profile: " + err.Error())
	}
	return out, nil
}

func (s *Service) ListUsers(ctx context.Context, actor *domain.User, role string) ([]*domain.User, error) {
	if err := authorize(actor, policy.ActionListUsers, policy.Resource{}); err != nil {
		return nil, err
	}

	var filter domain.UserFilter
	if role != "" {
		r, err := domain.ParseRole(role)
		if err != nil {
			return nil, domain.Validation("validation failed", map[string]string{"role": err.Error()})
		}
		filter.Role = r
	}

	users, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

type ModerationInput struct {
	IsApproved *bool
	IsActive   *bool
}

// ModerateUser lets an admin approve employers and enable or disable
// accounts. Approving an employer mails them.
func (s *Service) ModerateUser(ctx context.Context, actor *domain.User, id string, in ModerationInput) (*domain.User, error) {
	if in.IsApproved == nil && in.IsActive == nil {
		return nil, domain.Validation("validation failed", map[string]string{"isApproved": "nothing to update"})
	}

	approvedNow := false
	u, err := s.mutateUser(ctx, id, func(u *domain.User) error {
		approvedNow = false
		if err := authorize(actor, policy.ActionModerateUser, policy.Resource{User: u}); err != nil {
			return err
		}
		if in.IsActive != nil && !*in.IsActive && s.isInitialAdmin(u) {
			return domain.Forbidden("the initial administrator cannot be deactivated")
		}
		if in.IsApproved != nil {
			if u.Role != domain.RoleEmployer {
				return domain.Validation("validation failed", map[string]string{"isApproved": "only employers require approval"})
			}
			approvedNow = *in.IsApproved && !u.IsApproved
			u.IsApproved = *in.IsApproved
		}
		if in.IsActive != nil {
			u.IsActive = *in.IsActive
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if approvedNow {
		s.sendMail(ctx, domain.MailMessage{
			Type: domain.MailEmployerApproved,
			To:   u.Email,
			Data: domain.EmployerApprovedMailData{
				Username:    u.Username,
				CompanyName: u.CompanyName,
				LoginLink:   strings.TrimRight(s.opts.FrontendURL, "/") + "/login",
			},
		})
	}
	return u, nil
}

// DeleteUser removes an account together with its jobs and applications.
func (s *Service) DeleteUser(ctx context.Context, actor *domain.User, id string) error {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return storeErr(err)
	}
	if err := authorize(actor, policy.ActionDeleteUser, policy.Resource{User: u}); err != nil {
		return err
	}
	if s.isInitialAdmin(u) {
		return domain.Forbidden("the initial administrator cannot be deleted")
	}
	return storeErr(s.store.DeleteUser(ctx, id))
}

func (s *Service) Stats(ctx context.Context, actor *domain.User) (*domain.Stats, error) {
	if err := authorize(actor, policy.ActionViewStats, policy.Resource{}); err != nil {
		return nil, err
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return stats, nil
}

type Dashboard struct {
	View         string                `json:"view"`
	Message      string                `json:"message,omitempty"`
	User         *domain.User          `json:"user"`
	Jobs         []*domain.Job         `json:"jobs,omitempty"`
	Applications []*domain.Application `json:"applications,omitempty"`
	Stats        *domain.Stats         `json:"stats,omitempty"`
	Employers    []*domain.User        `json:"employers,omitempty"`
	JobSeekers   []*domain.User        `json:"jobSeekers,omitempty"`
}

const (
	DashboardJobSeeker       = "job_seeker"
	DashboardEmployer        = "employer"
	DashboardEmployerPending = "employer_pending"
	DashboardAdmin           = "admin"
)

// Dashboard assembles the landing data for the caller's role.
func (s *Service) Dashboard(ctx context.Context, actor *domain.User) (*Dashboard, error) {
	switch v := policy.Resolve(actor).(type) {
	case policy.JobSeekerView:
		apps, err := s.listApplications(ctx, domain.ApplicationQuery{JobSeekerID: v.User.ID})
		if err != nil {
			return nil, err
		}
		return &Dashboard{View: DashboardJobSeeker, User: v.User, Applications: apps}, nil

	case policy.EmployerView:
		if !v.Approved {
			return &Dashboard{View: DashboardEmployerPending, User: v.User, Message: policy.ReasonPendingApproval}, nil
		}
		jobs, _, err := s.store.ListJobs(ctx, domain.JobQuery{EmployerID: v.User.ID})
		if err != nil {
			return nil, storeErr(err)
		}
		apps, err := s.listApplications(ctx, domain.ApplicationQuery{EmployerID: v.User.ID})
		if err != nil {
			return nil, err
		}
		return &Dashboard{View: DashboardEmployer, User: v.User, Jobs: jobs, Applications: apps}, nil

	case policy.AdminView:
		stats, err := s.store.Stats(ctx)
		if err != nil {
			return nil, storeErr(err)
		}
		employers, err := s.store.ListUsers(ctx, domain.UserFilter{Role: domain.RoleEmployer})
		if err != nil {
			return nil, storeErr(err)
		}
		seekers, err := s.store.ListUsers(ctx, domain.UserFilter{Role: domain.RoleJobSeeker})
		if err != nil {
			return nil, storeErr(err)
		}
		return &Dashboard{View: DashboardAdmin, User: v.User, Stats: stats, Employers: employers, JobSeekers: seekers}, nil

	default:
		return nil, domain.Unauthenticated(policy.ReasonAuthenticationRequired)
	}
}
