package handler

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/service"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username        string `json:"username"`
		Email           string `json:"email" validate:"required"`
		Password        string `json:"password" validate:"required"`
		ConfirmPassword string `json:"confirmPassword" validate:"required"`
		Role            string `json:"role" validate:"required"`
		CompanyName     string `json:"companyName"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            req.Role,
		CompanyName:     req.CompanyName,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	msg := "registration successful, please check your email to verify your account"
	if user.Role == domain.RoleEmployer {
		msg = "registration successful, please verify your email; your employer account is pending approval"
	}
	h.successResponse(w, r, http.StatusCreated, msg, envelope{"user": user})
}

// clientIP prefers the first X-Forwarded-For hop when behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	user, tok, err := h.service.Login(r.Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	// 同时通过 http-only 的 cookie 返回给浏览器
	cookie := &http.Cookie{
		Name:     TokenCookieName,
		Value:    tok,
		Expires:  time.Now().Add(time.Duration(h.config.JWT.Expiration) * time.Second),
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
	}

	if h.config.IsProduction() {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}

	http.SetCookie(w, cookie)

	h.successResponse(w, r, http.StatusOK, "login successful", envelope{"user": user, "token": tok})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), currentClaims(r)); err != nil {
		h.serviceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:    TokenCookieName,
		Value:   "",
		Expires: time.Now().Add(-time.Hour),
		Path:    "/",
	})

	h.successResponse(w, r, http.StatusOK, "logout successful", nil)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	rawToken, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	// 不论邮箱是否存在都返回相同的提示，防止接口被用来探测账号
	data := envelope{}
	if rawToken != "" && !h.config.IsProduction() {
		data["resetLink"] = h.service.ResetLink(rawToken)
	}
	h.successResponse(w, r, http.StatusOK, "if that email is registered, a password reset link has been sent", data)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token           string `json:"token" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required"`
		ConfirmPassword string `json:"confirmPassword" validate:"required"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "password has been reset", nil)
}

// VerifyEmail is opened from the mail link, so it answers with a redirect
// to the frontend login page instead of JSON.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimRight(h.config.FrontendURL, "/") + "/login?"
	q := url.Values{}

	err := h.service.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	switch {
	case err == nil:
		q.Set("verified", "true")
	case isClientError(err):
		q.Set("error", domain.Message(err))
	default:
		h.logInternalServerError(r, err)
		q.Set("error", "verification failed")
	}

	http.Redirect(w, r, target+q.Encode(), http.StatusFound)
}

func isClientError(err error) bool {
	for _, kind := range []error{domain.ErrUnauthenticated, domain.ErrValidation, domain.ErrNotFound} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
