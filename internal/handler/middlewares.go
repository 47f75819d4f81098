package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

// TokenCookieName carries the session token for browser clients that do not
// send an Authorization header.
const TokenCookieName = "__job_board_token"

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		slog.Info("已处理请求", "status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", duration)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				stackTrace := string(debug.Stack())
				fmt.Print(stackTrace) // 这里如果用 slog 的话会很乱
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// bearerToken reads the token from the Authorization header, falling back
// to the session cookie.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, tok, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (h *Handler) authenticate(r *http.Request) (*http.Request, error) {
	tok := bearerToken(r)
	if tok == "" {
		return nil, domain.Unauthenticated("authentication required")
	}

	user, claims, err := h.service.Authenticate(r.Context(), tok)
	if err != nil {
		return nil, err
	}

	// 将用户和 claims 附在 context 中
	ctx := context.WithValue(r.Context(), UserCtxKey, user)
	ctx = context.WithValue(ctx, ClaimsCtxKey, claims)
	return r.WithContext(ctx), nil
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authed, err := h.authenticate(r)
		if err != nil {
			h.serviceError(w, r, err)
			return
		}
		next.ServeHTTP(w, authed)
	})
}

// optionalAuth attaches the caller when a valid token is present. Requests
// without one, or with a stale one, continue as anonymous.
func (h *Handler) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authed, err := h.authenticate(r); err == nil {
			r = authed
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) RequiredRole(roles ...domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r)
			if user == nil {
				h.errorResponse(w, r, http.StatusUnauthorized, "authentication required", nil)
				return
			}
			if !slices.Contains(roles, user.Role) {
				h.errorResponse(w, r, http.StatusForbidden, "insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
