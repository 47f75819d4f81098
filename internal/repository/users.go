package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

const userColumns = `
	id, username, email, password_hash, role, company_name, is_approved, profile,
	email_verified, verification_token_hash, verification_token_expires,
	reset_token_hash, reset_token_expires, login_logs, last_login, is_active,
	created_at, updated_at, version
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user                  domain.User
		profile, loginLogs    []byte
		verifyHash, resetHash sql.NullString
		verifyExp, resetExp   sql.NullTime
		lastLogin             sql.NullTime
	)

	dst := []any{
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CompanyName, &user.IsApproved, &profile,
		&user.EmailVerified, &verifyHash, &verifyExp,
		&resetHash, &resetExp, &loginLogs, &lastLogin, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt, &user.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(profile, &user.Profile); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(loginLogs, &user.LoginLogs); err != nil {
		return nil, err
	}
	user.VerificationTokenHash = verifyHash.String
	user.VerificationTokenExpires = timePtr(verifyExp)
	user.ResetTokenHash = resetHash.String
	user.ResetTokenExpires = timePtr(resetExp)
	user.LastLogin = timePtr(lastLogin)

	return &user, nil
}

func encodeUserJSON(u *domain.User) (profile string, loginLogs string, err error) {
	p, err := json.Marshal(u.Profile)
	if err != nil {
		return "", "", err
	}
	logs := u.LoginLogs
	if logs == nil {
		logs = []domain.LoginLog{}
	}
	l, err := json.Marshal(logs)
	if err != nil {
		return "", "", err
	}
	return string(p), string(l), nil
}

func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	profile, loginLogs, err := encodeUserJSON(u)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (
			id, username, email, password_hash, role, company_name, is_approved, profile,
			email_verified, verification_token_hash, verification_token_expires,
			reset_token_hash, reset_token_expires, login_logs, last_login, is_active,
			created_at, updated_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12, $13, $14::jsonb, $15, $16, $17, $18, $19)
	`

	args := []any{
		u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.CompanyName, u.IsApproved, profile,
		u.EmailVerified, nullString(u.VerificationTokenHash), nullTime(u.VerificationTokenExpires),
		nullString(u.ResetTokenHash), nullTime(u.ResetTokenExpires), loginLogs, nullTime(u.LastLogin), u.IsActive,
		u.CreatedAt, u.UpdatedAt, u.Version,
	}
	if _, err := r.dbpool.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, errUserNotFound())
	}

	return nil
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(r.dbpool.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, mapError(err, errUserNotFound())
	}

	return user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getUser(ctx, `id = $1`, id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, `LOWER(email) = LOWER($1)`, email)
}

func (r *Repository) GetUserByVerificationTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	if hash == "" {
		return nil, errUserNotFound()
	}
	return r.getUser(ctx, `verification_token_hash = $1`, hash)
}

func (r *Repository) GetUserByResetTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	if hash == "" {
		return nil, errUserNotFound()
	}
	return r.getUser(ctx, `reset_token_hash = $1`, hash)
}

func (r *Repository) UpdateUser(ctx context.Context, u *domain.User) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	profile, loginLogs, err := encodeUserJSON(u)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET
			username = $1,
			email = $2,
			password_hash = $3,
			company_name = $4,
			is_approved = $5,
			profile = $6::jsonb,
			email_verified = $7,
			verification_token_hash = $8,
			verification_token_expires = $9,
			reset_token_hash = $10,
			reset_token_expires = $11,
			login_logs = $12::jsonb,
			last_login = $13,
			is_active = $14,
			updated_at = $15,
			version = version + 1
		WHERE id = $16 AND version = $17
		RETURNING version
	`

	args := []any{
		u.Username, u.Email, u.PasswordHash, u.CompanyName, u.IsApproved, profile,
		u.EmailVerified, nullString(u.VerificationTokenHash), nullTime(u.VerificationTokenExpires),
		nullString(u.ResetTokenHash), nullTime(u.ResetTokenExpires),
		loginLogs, nullTime(u.LastLogin), u.IsActive, u.UpdatedAt,
		u.ID, u.Version,
	}
	err = r.dbpool.QueryRowContext(ctx, query, args...).Scan(&u.Version)
	if err == sql.ErrNoRows {
		// 区分记录不存在和版本冲突
		ok, existsErr := r.exists(ctx, "users", u.ID)
		if existsErr != nil {
			return existsErr
		}
		if !ok {
			return errUserNotFound()
		}
		return domain.Conflict("user was modified concurrently")
	}

	return mapError(err, errUserNotFound())
}

func (r *Repository) RecordLogin(ctx context.Context, id string, log domain.LoginLog) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	entry, err := json.Marshal([]domain.LoginLog{log})
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE users
		SET
			login_logs = login_logs || $2::jsonb,
			last_login = $3,
			version = version + 1
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.dbpool.QueryRowContext(ctx, query, id, string(entry), log.Timestamp))
	if err != nil {
		return nil, mapError(err, errUserNotFound())
	}

	return user, nil
}

// DeleteUser relies on ON DELETE CASCADE to remove the user's jobs and
// applications.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err, errUserNotFound())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errUserNotFound()
	}

	return nil
}

func (r *Repository) ListUsers(ctx context.Context, filter domain.UserFilter) ([]*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if filter.Role != "" {
		query += ` WHERE role = $1`
		args = append(args, string(filter.Role))
	}
	query += ` ORDER BY created_at`

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}
