package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// hashPassword runs bcrypt off the caller's goroutine so a slow hash is cut
// off at HashTimeout.
func (s *Service) hashPassword(ctx context.Context, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.HashTimeout)
	defer cancel()

	type result struct {
		hash []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
		done <- result{hash, err}
	}()

	select {
	case <-ctx.Done():
		return "", domain.Timeout(ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", domain.Internal(fmt.Errorf("failed to hash password: %w", r.err))
		}
		return string(r.hash), nil
	}
}

// checkPassword reports whether password matches hash.
func (s *Service) checkPassword(ctx context.Context, hash, password string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.HashTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.compareHash([]byte(hash), []byte(password))
	}()

	select {
	case <-ctx.Done():
		return false, domain.Timeout(ctx.Err())
	case err := <-done:
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, domain.Internal(err)
		}
	}
}

// spendCompare runs one comparison against a fixed hash of the configured
// cost, so a login for an unknown email takes as long as a wrong password.
func (s *Service) spendCompare(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("job-board-unknown-account"), s.opts.BcryptCost)
	})
	if s.dummyHash == nil {
		return
	}
	_, _ = s.checkPassword(ctx, string(s.dummyHash), password)
}
