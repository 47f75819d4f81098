package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/token"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/utils"
)

const invalidCredentials = "invalid email or password"

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
	CompanyName     string
}

// validatePasswordPair checks that password and confirmation match and that
// the password is strong enough.
func validatePasswordPair(fields map[string]string, password, confirm string) {
	for k, v := range utils.ValidatePassword("password", password) {
		fields[k] = v
	}
	if password != confirm {
		fields["confirmPassword"] = "passwords do not match"
	}
}

func validateUsername(name string) string {
	if n := utf8.RuneCountInString(name); n < 3 || n > 30 {
		return "username must be between 3 and 30 characters"
	}
	return ""
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	fields := map[string]string{}

	email, err := utils.NormalizeEmail(in.Email)
	if err != nil {
		fields["email"] = err.Error()
	}
	validatePasswordPair(fields, in.Password, in.ConfirmPassword)

	role, err := domain.ParseRole(in.Role)
	if err != nil || role == domain.RoleAdmin {
		fields["role"] = "role must be job_seeker or employer"
	}
	companyName := strings.TrimSpace(in.CompanyName)
	if role == domain.RoleEmployer && companyName == "" {
		fields["companyName"] = "company name is required for employers"
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = utils.UsernameFromEmail(email)
	} else if msg := validateUsername(username); msg != "" {
		fields["username"] = msg
	}

	if len(fields) > 0 {
		return nil, domain.Validation("validation failed", fields)
	}

	passwordHash, err := s.hashPassword(ctx, in.Password)
	if err != nil {
		return nil, err
	}
	rawToken, err := utils.GenerateSecureToken(s.opts.TokenBytes)
	if err != nil {
		return nil, domain.Internal(err)
	}

	now := s.now()
	expires := now.Add(s.opts.VerificationTTL)
	user := &domain.User{
		ID:                       s.newID(),
		Username:                 username,
		Email:                    email,
		PasswordHash:             passwordHash,
		Role:                     role,
		IsApproved:               role != domain.RoleEmployer,
		EmailVerified:            false,
		VerificationTokenHash:    utils.HashToken(rawToken),
		VerificationTokenExpires: &expires,
		IsActive:                 true,
		CreatedAt:                now,
		UpdatedAt:                now,
		Version:                  1,
	}
	if role == domain.RoleEmployer {
		user.CompanyName = companyName
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.Conflict("email is already registered")
		}
		return nil, storeErr(err)
	}

	s.sendMail(ctx, domain.MailMessage{
		Type: domain.MailVerifyEmail,
		To:   user.Email,
		Data: domain.VerifyEmailMailData{
			Username:   user.Username,
			Link:       s.VerificationLink(rawToken),
			Expiration: int(s.opts.VerificationTTL.Hours()),
		},
	})

	return user, nil
}

func (s *Service) VerificationLink(rawToken string) string {
	return strings.TrimRight(s.opts.PublicURL, "/") + "/api/auth/verify-email?token=" + rawToken
}

func (s *Service) ResetLink(rawToken string) string {
	return strings.TrimRight(s.opts.FrontendURL, "/") + "/reset-password?token=" + rawToken
}

// sendMail publishes a mail message. Delivery problems are logged and never
// fail the calling operation.
func (s *Service) sendMail(ctx context.Context, msg domain.MailMessage) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		slog.Error("无法发送邮件到消息队列", "type", msg.Type, "to", msg.To, "error", err)
	}
}

func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	const invalid = "invalid or expired verification token"
	if rawToken == "" {
		return domain.Unauthenticated(invalid)
	}
	digest := utils.HashToken(rawToken)

	u, err := s.store.GetUserByVerificationTokenHash(ctx, digest)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Unauthenticated(invalid)
		}
		return storeErr(err)
	}

	_, err = s.mutateUser(ctx, u.ID, func(u *domain.User) error {
		// 重新读取后再次校验，保证令牌只能使用一次
		if u.VerificationTokenHash != digest || u.VerificationTokenExpires == nil || s.now().After(*u.VerificationTokenExpires) {
			return domain.Unauthenticated(invalid)
		}
		u.EmailVerified = true
		u.VerificationTokenHash = ""
		u.VerificationTokenExpires = nil
		return nil
	})
	return err
}

type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

// Login checks credentials and returns the user with a signed session token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*domain.User, string, error) {
	email, err := utils.NormalizeEmail(in.Email)
	if err != nil || in.Password == "" {
		return nil, "", domain.Unauthenticated(invalidCredentials)
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.spendCompare(ctx, in.Password)
			return nil, "", domain.Unauthenticated(invalidCredentials)
		}
		return nil, "", storeErr(err)
	}

	ok, err := s.checkPassword(ctx, u.PasswordHash, in.Password)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", domain.Unauthenticated(invalidCredentials)
	}
	if !u.EmailVerified {
		return nil, "", domain.Unauthenticated("email not verified")
	}
	if !u.IsActive {
		return nil, "", domain.Unauthenticated("account disabled")
	}

	u, err = s.store.RecordLogin(ctx, u.ID, domain.LoginLog{
		Timestamp: s.now(),
		IP:        in.IP,
		UserAgent: in.UserAgent,
	})
	if err != nil {
		return nil, "", storeErr(err)
	}

	ss, _, err := s.tokens.Issue(u)
	if err != nil {
		return nil, "", domain.Internal(err)
	}

	return u, ss, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*domain.User, *token.Claims, error) {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return nil, nil, domain.Unauthenticated("token has expired")
		}
		return nil, nil, domain.Unauthenticated("invalid token")
	}

	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, storeErr(err)
		}
		if revoked {
			return nil, nil, domain.Unauthenticated("token has been revoked")
		}
	}

	u, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.Unauthenticated("user no longer exists")
		}
		return nil, nil, storeErr(err)
	}
	if !u.IsActive {
		return nil, nil, domain.Unauthenticated("account disabled")
	}
	if string(u.Role) != claims.Role {
		return nil, nil, domain.Unauthenticated("invalid token")
	}

	return u, claims, nil
}

// Logout revokes the token described by claims until it expires.
func (s *Service) Logout(ctx context.Context, claims *token.Claims) error {
	if s.revoker == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return storeErr(s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time))
}

// RequestPasswordReset issues a reset token and mails it. Unknown addresses
// succeed silently with an empty token so callers cannot probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email, err := utils.NormalizeEmail(email)
	if err != nil {
		return "", domain.Validation("validation failed", map[string]string{"email": err.Error()})
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", storeErr(err)
	}

	rawToken, err := utils.GenerateSecureToken(s.opts.TokenBytes)
	if err != nil {
		return "", domain.Internal(err)
	}

	u, err = s.mutateUser(ctx, u.ID, func(u *domain.User) error {
		expires := s.now().Add(s.opts.ResetTTL)
		u.ResetTokenHash = utils.HashToken(rawToken)
		u.ResetTokenExpires = &expires
		return nil
	})
	if err != nil {
		return "", err
	}

	s.sendMail(ctx, domain.MailMessage{
		Type: domain.MailResetPassword,
		To:   u.Email,
		Data: domain.ResetPasswordMailData{
			Username:   u.Username,
			Link:       s.ResetLink(rawToken),
			Expiration: int(s.opts.ResetTTL.Minutes()),
		},
	})

	return rawToken, nil
}

func (s *Service) ResetPassword(ctx context.Context, rawToken, password, confirm string) error {
	const invalid = "invalid or expired reset token"

	fields := map[string]string{}
	validatePasswordPair(fields, password, confirm)
	if len(fields) > 0 {
		return domain.Validation("validation failed", fields)
	}
	if rawToken == "" {
		return domain.Unauthenticated(invalid)
	}
	digest := utils.HashToken(rawToken)

	u, err := s.store.GetUserByResetTokenHash(ctx, digest)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Unauthenticated(invalid)
		}
		return storeErr(err)
	}
	if u.ResetTokenExpires == nil || s.now().After(*u.ResetTokenExpires) {
		return domain.Unauthenticated(invalid)
	}

	passwordHash, err := s.hashPassword(ctx, password)
	if err != nil {
		return err
	}

	_, err = s.mutateUser(ctx, u.ID, func(u *domain.User) error {
		if u.ResetTokenHash != digest || u.ResetTokenExpires == nil || s.now().After(*u.ResetTokenExpires) {
			return domain.Unauthenticated(invalid)
		}
		u.PasswordHash = passwordHash
		u.ResetTokenHash = ""
		u.ResetTokenExpires = nil
		return nil
	})
	return err
}

func (s *Service) ChangePassword(ctx context.Context, actor *domain.User, current, password, confirm string) error {
	if actor == nil {
		return domain.Unauthenticated("authentication required")
	}

	fields := map[string]string{}
	validatePasswordPair(fields, password, confirm)
	if len(fields) > 0 {
		return domain.Validation("validation failed", fields)
	}

	ok, err := s.checkPassword(ctx, actor.PasswordHash, current)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Unauthenticated("current password is incorrect")
	}

	passwordHash, err := s.hashPassword(ctx, password)
	if err != nil {
		return err
	}

	_, err = s.mutateUser(ctx, actor.ID, func(u *domain.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
	return err
}
