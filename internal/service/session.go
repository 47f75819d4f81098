package service

import (
	"context"
	"errors"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

// SessionState persists which user is signed in when the board runs
// client-local, without bearer tokens.
type SessionState interface {
	SetCurrentUser(ctx context.Context, id string) error
	CurrentUserID(ctx context.Context) (string, error)
	ClearCurrentUser(ctx context.Context) error
}

type LocalSession struct {
	svc   *Service
	state SessionState
}

func (s *Service) LocalSession(state SessionState) *LocalSession {
	return &LocalSession{svc: s, state: state}
}

func (l *LocalSession) Login(ctx context.Context, in LoginInput) (*domain.User, error) {
	u, _, err := l.svc.Login(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := l.state.SetCurrentUser(ctx, u.ID); err != nil {
		return nil, storeErr(err)
	}
	return u, nil
}

// Current returns the signed-in user, or nil when nobody is. A reference to
// a deleted or disabled account is dropped.
func (l *LocalSession) Current(ctx context.Context) (*domain.User, error) {
	id, err := l.state.CurrentUserID(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	if id == "" {
		return nil, nil
	}

	u, err := l.svc.store.GetUserByID(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, storeErr(l.state.ClearCurrentUser(ctx))
	case err != nil:
		return nil, storeErr(err)
	case !u.IsActive:
		return nil, storeErr(l.state.ClearCurrentUser(ctx))
	}
	return u, nil
}

func (l *LocalSession) Logout(ctx context.Context) error {
	return storeErr(l.state.ClearCurrentUser(ctx))
}
