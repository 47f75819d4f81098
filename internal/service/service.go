// Package service holds the job board's business operations. Every operation
// takes the acting user (nil when anonymous), checks it against the policy
// package and talks to storage through the Store interface.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/policy"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/token"
	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence boundary shared by the postgres repository and the
// in-memory store. Implementations report failures as *domain.Error values:
// NotFound for missing rows, Conflict for uniqueness or stale versions, and
// InvalidTransition when a conditional status update does not apply.
type Store interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByVerificationTokenHash(ctx context.Context, hash string) (*domain.User, error)
	GetUserByResetTokenHash(ctx context.Context, hash string) (*domain.User, error)
	// UpdateUser writes u if its version is still current and bumps it.
	UpdateUser(ctx context.Context, u *domain.User) error
	// RecordLogin appends a login log and sets lastLogin in one step.
	RecordLogin(ctx context.Context, id string, log domain.LoginLog) (*domain.User, error)
	// DeleteUser removes the user with the jobs they own and the
	// applications they made or received.
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, filter domain.UserFilter) ([]*domain.User, error)

	CreateJob(ctx context.Context, j *domain.Job) error
	GetJobByID(ctx context.Context, id string) (*domain.Job, error)
	UpdateJob(ctx context.Context, j *domain.Job) error
	DeleteJob(ctx context.Context, id string) error
	// ListJobs returns one page of matching jobs, newest first, and the
	// number of matches across all pages.
	ListJobs(ctx context.Context, q domain.JobQuery) ([]*domain.Job, int, error)
	CloseExpiredJobs(ctx context.Context, now time.Time) (int, error)

	CreateApplication(ctx context.Context, a *domain.Application) error
	GetApplicationByID(ctx context.Context, id string) (*domain.Application, error)
	ListApplications(ctx context.Context, q domain.ApplicationQuery) ([]*domain.Application, error)
	// TransitionApplication moves the application to status to only if it
	// is currently in status from.
	TransitionApplication(ctx context.Context, id string, from, to domain.ApplicationStatus, at time.Time) (*domain.Application, error)

	Stats(ctx context.Context) (*domain.Stats, error)
}

type Mailer interface {
	Send(ctx context.Context, msg domain.MailMessage) error
}

type Revoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type Options struct {
	// PublicURL is where this API is reachable; verification links point
	// at it.
	PublicURL         string
	FrontendURL       string
	VerificationTTL   time.Duration
	ResetTTL          time.Duration
	HashTimeout       time.Duration
	BcryptCost        int
	TokenBytes        int
	InitialAdminEmail string
}

type Service struct {
	store   Store
	mailer  Mailer
	revoker Revoker
	tokens  *token.Issuer
	opts    Options

	now         func() time.Time
	newID       func() string
	compareHash func(hash, password []byte) error

	dummyOnce sync.Once
	dummyHash []byte
}

func New(store Store, mailer Mailer, revoker Revoker, tokens *token.Issuer, opts Options) *Service {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.TokenBytes == 0 {
		opts.TokenBytes = 32
	}
	if opts.VerificationTTL == 0 {
		opts.VerificationTTL = 24 * time.Hour
	}
	if opts.ResetTTL == 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.HashTimeout == 0 {
		opts.HashTimeout = 5 * time.Second
	}

	return &Service{
		store:   store,
		mailer:  mailer,
		revoker: revoker,
		tokens:  tokens,
		opts:    opts,
		now:     time.Now,
		newID:   uuid.NewString,

		compareHash: bcrypt.CompareHashAndPassword,
	}
}

// maxUpdateAttempts bounds the reload-and-retry loop on stale versions.
const maxUpdateAttempts = 3

// storeErr normalizes errors coming back from the store.
func storeErr(err error) error {
	var de *domain.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Timeout(err)
	default:
		return domain.Internal(err)
	}
}

// authorize turns a policy denial into the matching error kind: anonymous
// callers are unauthenticated, everyone else is forbidden.
func authorize(actor *domain.User, action policy.Action, res policy.Resource) error {
	d := policy.CanPerform(actor, action, res)
	if d.Allowed {
		return nil
	}
	if _, ok := policy.Resolve(actor).(policy.AnonymousView); ok {
		return domain.Unauthenticated(d.Reason)
	}
	return domain.Forbidden(d.Reason)
}

// mutateUser reloads the user, applies fn and writes it back, retrying when
// a concurrent writer got there first.
func (s *Service) mutateUser(ctx context.Context, id string, fn func(u *domain.User) error) (*domain.User, error) {
	for attempt := 1; ; attempt++ {
		u, err := s.store.GetUserByID(ctx, id)
		if err != nil {
			return nil, storeErr(err)
		}
		if err := fn(u); err != nil {
			return nil, err
		}
		u.UpdatedAt = s.now()

		err = s.store.UpdateUser(ctx, u)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt == maxUpdateAttempts {
			return nil, storeErr(err)
		}
	}
}

func (s *Service) mutateJob(ctx context.Context, id string, fn func(j *domain.Job) error) (*domain.Job, error) {
	for attempt := 1; ; attempt++ {
		j, err := s.store.GetJobByID(ctx, id)
		if err != nil {
			return nil, storeErr(err)
		}
		if err := fn(j); err != nil {
			return nil, err
		}
		j.UpdatedAt = s.now()

		err = s.store.UpdateJob(ctx, j)
		if err == nil {
			return j, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt == maxUpdateAttempts {
			return nil, storeErr(err)
		}
	}
}
