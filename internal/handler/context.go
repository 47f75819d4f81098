package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/token"
)

type ContextKey string

var (
	UserCtxKey   ContextKey = "user"
	ClaimsCtxKey ContextKey = "claims"
)

// currentUser returns the authenticated caller, or nil for anonymous
// requests.
func currentUser(r *http.Request) *domain.User {
	u, _ := r.Context().Value(UserCtxKey).(*domain.User)
	return u
}

func currentClaims(r *http.Request) *token.Claims {
	c, _ := r.Context().Value(ClaimsCtxKey).(*token.Claims)
	return c
}
