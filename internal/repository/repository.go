// Package repository is the postgres implementation of service.Store.
package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/config"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

//go:embed schema.sql
var schema string

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}

// Migrate creates the tables and indexes if they do not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, schema)
	return err
}

// mapError translates driver errors into domain errors. notFound is returned
// for sql.ErrNoRows so each caller can name the missing entity.
func mapError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "users_email_key":
			return domain.Conflict("email is already registered")
		case "applications_job_id_job_seeker_id_key":
			return domain.Conflict("you have already applied to this job")
		default:
			return domain.Conflict("record already exists")
		}
	case pgForeignKeyViolation:
		switch pgErr.ConstraintName {
		case "jobs_employer_id_fkey", "applications_job_seeker_id_fkey":
			return errUserNotFound()
		case "applications_job_id_fkey":
			return errJobNotFound()
		default:
			return notFound
		}
	case pgInvalidText:
		return notFound
	}
	return err
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

// exists reports whether a row with the given id is present in table.
func (r *Repository) exists(ctx context.Context, table, id string) (bool, error) {
	var ok bool
	query := `SELECT EXISTS (SELECT 1 FROM ` + table + ` WHERE id = $1)`
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
