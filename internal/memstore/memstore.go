// Package memstore is the in-process implementation of service.Store used
// when the board runs client-local. All state lives in one container; every
// mutation is applied to a copy under a lock and committed only after the
// optional persister accepted it.
package memstore

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

// ErrSnapshotConflict is returned by a Persister when the stored snapshot is
// newer than the one the write was based on.
var ErrSnapshotConflict = errors.New("memstore: snapshot was modified concurrently")

type Persister interface {
	// Load returns the stored snapshot, or nil when nothing is stored yet.
	Load(ctx context.Context) (*Snapshot, error)
	// Save stores snap if the stored version still equals expected.
	Save(ctx context.Context, snap *Snapshot, expected int64) error
}

const defaultMaxAttempts = 3

type Store struct {
	mu          sync.Mutex
	st          *state
	persister   Persister
	maxAttempts int
}

type Option func(*Store)

func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{st: &state{}, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// reload replaces the in-memory state with the persisted one. Callers hold mu.
func (s *Store) reload(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}
	if snap != nil {
		s.st = fromSnapshot(snap)
	}
	return nil
}

func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reload(ctx); err != nil {
		return err
	}
	return fn(s.st)
}

// mutate runs fn against a copy of the freshest state and commits it. A
// snapshot conflict reloads and runs fn again.
func (s *Store) mutate(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		if err := s.reload(ctx); err != nil {
			return err
		}

		work := s.st.clone()
		if err := fn(work); err != nil {
			return err
		}
		expected := work.version
		work.version++

		if s.persister != nil {
			err := s.persister.Save(ctx, work.snapshot(), expected)
			if errors.Is(err, ErrSnapshotConflict) {
				if attempt < s.maxAttempts {
					continue
				}
				return &domain.Error{Kind: domain.ErrConflict, Message: "storage was modified concurrently, please retry", Err: err}
			}
			if err != nil {
				return err
			}
		}

		s.st = work
		return nil
	}
}

func (st *state) userIndex(id string) int {
	return slices.IndexFunc(st.users, func(u *domain.User) bool { return u.ID == id })
}

func (st *state) jobIndex(id string) int {
	return slices.IndexFunc(st.jobs, func(j *domain.Job) bool { return j.ID == id })
}

func (st *state) applicationIndex(id string) int {
	return slices.IndexFunc(st.applications, func(a *domain.Application) bool { return a.ID == id })
}

func errUserNotFound() error {
	return domain.NotFound("user not found")
}

func errJobNotFound() error {
	return domain.NotFound("job not found")
}

func errApplicationNotFound() error {
	return domain.NotFound("application not found")
}

func (s *Store) findUser(ctx context.Context, match func(u *domain.User) bool) (*domain.User, error) {
	var found *domain.User
	err := s.read(ctx, func(st *state) error {
		i := slices.IndexFunc(st.users, match)
		if i < 0 {
			return errUserNotFound()
		}
		found = st.users[i].Clone()
		return nil
	})
	return found, err
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	return s.mutate(ctx, func(st *state) error {
		if slices.ContainsFunc(st.users, func(e *domain.User) bool { return strings.EqualFold(e.Email, u.Email) }) {
			return domain.Conflict("email is already registered")
		}
		if st.userIndex(u.ID) >= 0 {
			return domain.Conflict("user already exists")
		}
		st.users = append(st.users, u.Clone())
		return nil
	})
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.findUser(ctx, func(u *domain.User) bool { return u.ID == id })
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Store) GetUserByVerificationTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	if hash == "" {
		return nil, errUserNotFound()
	}
	return s.findUser(ctx, func(u *domain.User) bool { return u.VerificationTokenHash == hash })
}

func (s *Store) GetUserByResetTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	if hash == "" {
		return nil, errUserNotFound()
	}
	return s.findUser(ctx, func(u *domain.User) bool { return u.ResetTokenHash == hash })
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	err := s.mutate(ctx, func(st *state) error {
		i := st.userIndex(u.ID)
		if i < 0 {
			return errUserNotFound()
		}
		if st.users[i].Version != u.Version {
			return domain.Conflict("user was modified concurrently")
		}
		next := u.Clone()
		next.Version++
		st.users[i] = next
		return nil
	})
	if err == nil {
		u.Version++
	}
	return err
}

func (s *Store) RecordLogin(ctx context.Context, id string, log domain.LoginLog) (*domain.User, error) {
	var out *domain.User
	err := s.mutate(ctx, func(st *state) error {
		i := st.userIndex(id)
		if i < 0 {
			return errUserNotFound()
		}
		u := st.users[i]
		u.LoginLogs = append(u.LoginLogs, log)
		ts := log.Timestamp
		u.LastLogin = &ts
		u.Version++
		out = u.Clone()
		return nil
	})
	return out, err
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.mutate(ctx, func(st *state) error {
		if st.userIndex(id) < 0 {
			return errUserNotFound()
		}
		owned := map[string]bool{}
		for _, j := range st.jobs {
			if j.EmployerID == id {
				owned[j.ID] = true
			}
		}
		st.users = slices.DeleteFunc(st.users, func(u *domain.User) bool { return u.ID == id })
		st.jobs = slices.DeleteFunc(st.jobs, func(j *domain.Job) bool { return owned[j.ID] })
		st.applications = slices.DeleteFunc(st.applications, func(a *domain.Application) bool {
			return a.JobSeekerID == id || owned[a.JobID]
		})
		if st.currentUserID == id {
			st.currentUserID = ""
		}
		return nil
	})
}

func (s *Store) ListUsers(ctx context.Context, filter domain.UserFilter) ([]*domain.User, error) {
	users := []*domain.User{}
	err := s.read(ctx, func(st *state) error {
		for _, u := range st.users {
			if filter.Role == "" || u.Role == filter.Role {
				users = append(users, u.Clone())
			}
		}
		return nil
	})
	return users, err
}

func (s *Store) CreateJob(ctx context.Context, j *domain.Job) error {
	return s.mutate(ctx, func(st *state) error {
		if st.userIndex(j.EmployerID) < 0 {
			return errUserNotFound()
		}
		if st.jobIndex(j.ID) >= 0 {
			return domain.Conflict("job already exists")
		}
		st.jobs = append(st.jobs, j.Clone())
		return nil
	})
}

func (s *Store) GetJobByID(ctx context.Context, id string) (*domain.Job, error) {
	var found *domain.Job
	err := s.read(ctx, func(st *state) error {
		i := st.jobIndex(id)
		if i < 0 {
			return errJobNotFound()
		}
		found = st.jobs[i].Clone()
		return nil
	})
	return found, err
}

func (s *Store) UpdateJob(ctx context.Context, j *domain.Job) error {
	err := s.mutate(ctx, func(st *state) error {
		i := st.jobIndex(j.ID)
		if i < 0 {
			return errJobNotFound()
		}
		cur := st.jobs[i]
		if cur.Version != j.Version {
			return domain.Conflict("job was modified concurrently")
		}
		next := j.Clone()
		next.EmployerID = cur.EmployerID
		next.CreatedAt = cur.CreatedAt
		next.Version++
		st.jobs[i] = next
		return nil
	})
	if err == nil {
		j.Version++
	}
	return err
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return s.mutate(ctx, func(st *state) error {
		if st.jobIndex(id) < 0 {
			return errJobNotFound()
		}
		st.jobs = slices.DeleteFunc(st.jobs, func(j *domain.Job) bool { return j.ID == id })
		st.applications = slices.DeleteFunc(st.applications, func(a *domain.Application) bool { return a.JobID == id })
		return nil
	})
}

func (s *Store) ListJobs(ctx context.Context, q domain.JobQuery) ([]*domain.Job, int, error) {
	var (
		page  []*domain.Job
		total int
	)
	err := s.read(ctx, func(st *state) error {
		matched := []*domain.Job{}
		// 倒序遍历，创建时间相同时后创建的排在前面
		for i := len(st.jobs) - 1; i >= 0; i-- {
			if q.Matches(st.jobs[i]) {
				matched = append(matched, st.jobs[i])
			}
		}
		slices.SortStableFunc(matched, func(a, b *domain.Job) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})

		total = len(matched)
		if q.Limit > 0 {
			start := min(q.Offset(), total)
			end := start + min(q.Limit, total-start)
			matched = matched[start:end]
		}

		page = make([]*domain.Job, len(matched))
		for i, j := range matched {
			page[i] = j.Clone()
		}
		return nil
	})
	return page, total, err
}

func (s *Store) CloseExpiredJobs(ctx context.Context, now time.Time) (int, error) {
	closed := 0
	err := s.mutate(ctx, func(st *state) error {
		closed = 0
		for _, j := range st.jobs {
			if j.Status != domain.JobStatusClosed && j.Expired(now) {
				j.Status = domain.JobStatusClosed
				j.UpdatedAt = now
				j.Version++
				closed++
			}
		}
		return nil
	})
	return closed, err
}

func (s *Store) CreateApplication(ctx context.Context, a *domain.Application) error {
	return s.mutate(ctx, func(st *state) error {
		if st.jobIndex(a.JobID) < 0 {
			return errJobNotFound()
		}
		if st.userIndex(a.JobSeekerID) < 0 {
			return errUserNotFound()
		}
		if slices.ContainsFunc(st.applications, func(e *domain.Application) bool {
			return e.JobID == a.JobID && e.JobSeekerID == a.JobSeekerID
		}) {
			return domain.Conflict("you have already applied to this job")
		}
		v := *a
		st.applications = append(st.applications, &v)
		return nil
	})
}

func (s *Store) GetApplicationByID(ctx context.Context, id string) (*domain.Application, error) {
	var found *domain.Application
	err := s.read(ctx, func(st *state) error {
		i := st.applicationIndex(id)
		if i < 0 {
			return errApplicationNotFound()
		}
		v := *st.applications[i]
		found = &v
		return nil
	})
	return found, err
}

func (s *Store) ListApplications(ctx context.Context, q domain.ApplicationQuery) ([]*domain.Application, error) {
	apps := []*domain.Application{}
	err := s.read(ctx, func(st *state) error {
		owned := map[string]bool{}
		if q.EmployerID != "" {
			for _, j := range st.jobs {
				if j.EmployerID == q.EmployerID {
					owned[j.ID] = true
				}
			}
		}
		for i := len(st.applications) - 1; i >= 0; i-- {
			a := st.applications[i]
			if q.JobID != "" && a.JobID != q.JobID {
				continue
			}
			if q.JobSeekerID != "" && a.JobSeekerID != q.JobSeekerID {
				continue
			}
			if q.EmployerID != "" && !owned[a.JobID] {
				continue
			}
			v := *a
			apps = append(apps, &v)
		}
		slices.SortStableFunc(apps, func(a, b *domain.Application) int {
			return b.AppliedAt.Compare(a.AppliedAt)
		})
		return nil
	})
	return apps, err
}

func (s *Store) TransitionApplication(ctx context.Context, id string, from, to domain.ApplicationStatus, at time.Time) (*domain.Application, error) {
	var out *domain.Application
	err := s.mutate(ctx, func(st *state) error {
		i := st.applicationIndex(id)
		if i < 0 {
			return errApplicationNotFound()
		}
		a := st.applications[i]
		if a.Status != from {
			return domain.InvalidTransition("application has already been " + string(a.Status))
		}
		a.Status = to
		a.UpdatedAt = at
		v := *a
		out = &v
		return nil
	})
	return out, err
}

func (s *Store) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{
		UsersByRole:          map[domain.Role]int{},
		JobsByStatus:         map[domain.JobStatus]int{},
		ApplicationsByStatus: map[domain.ApplicationStatus]int{},
	}
	err := s.read(ctx, func(st *state) error {
		for _, u := range st.users {
			stats.UsersByRole[u.Role]++
			if u.Role == domain.RoleEmployer && !u.IsApproved {
				stats.PendingEmployers++
			}
		}
		for _, j := range st.jobs {
			stats.JobsByStatus[j.Status]++
		}
		for _, a := range st.applications {
			stats.ApplicationsByStatus[a.Status]++
		}
		return nil
	})
	return stats, err
}

func (s *Store) SetCurrentUser(ctx context.Context, id string) error {
	return s.mutate(ctx, func(st *state) error {
		if st.userIndex(id) < 0 {
			return errUserNotFound()
		}
		st.currentUserID = id
		return nil
	})
}

func (s *Store) CurrentUserID(ctx context.Context) (string, error) {
	var id string
	err := s.read(ctx, func(st *state) error {
		id = st.currentUserID
		return nil
	})
	return id, err
}

func (s *Store) ClearCurrentUser(ctx context.Context) error {
	return s.mutate(ctx, func(st *state) error {
		st.currentUserID = ""
		return nil
	})
}
