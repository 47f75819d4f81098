package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

func scanApplication(row rowScanner) (*domain.Application, error) {
	a := &domain.Application{}
	if err := row.Scan(&a.ID, &a.JobID, &a.JobSeekerID, &a.Status, &a.AppliedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateApplication relies on the (job_id, job_seeker_id) unique constraint
// so that concurrent submissions leave exactly one row.
func (r *Repository) CreateApplication(ctx context.Context, a *domain.Application) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO applications (id, job_id, job_seeker_id, status, applied_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	args := []any{a.ID, a.JobID, a.JobSeekerID, string(a.Status), a.AppliedAt, a.UpdatedAt}
	if _, err := r.dbpool.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, errJobNotFound())
	}

	return nil
}

func (r *Repository) GetApplicationByID(ctx context.Context, id string) (*domain.Application, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, job_id, job_seeker_id, status, applied_at, updated_at
		FROM applications WHERE id = $1
	`
	a, err := scanApplication(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, errApplicationNotFound())
	}

	return a, nil
}

func applicationFilter(q domain.ApplicationQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.JobID != "" {
		args = append(args, q.JobID)
		conds = append(conds, fmt.Sprintf("a.job_id = $%d", len(args)))
	}
	if q.JobSeekerID != "" {
		args = append(args, q.JobSeekerID)
		conds = append(conds, fmt.Sprintf("a.job_seeker_id = $%d", len(args)))
	}
	if q.EmployerID != "" {
		args = append(args, q.EmployerID)
		conds = append(conds, fmt.Sprintf("j.employer_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repository) ListApplications(ctx context.Context, q domain.ApplicationQuery) ([]*domain.Application, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	where, args := applicationFilter(q)
	query := `
		SELECT a.id, a.job_id, a.job_seeker_id, a.status, a.applied_at, a.updated_at
		FROM applications a
		JOIN jobs j ON j.id = a.job_id
	` + where + ` ORDER BY a.applied_at DESC, a.id`

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := make([]*domain.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return apps, nil
}

// TransitionApplication is a conditional update: the row only changes when
// it is still in status from, so concurrent decisions have a single winner.
func (r *Repository) TransitionApplication(ctx context.Context, id string, from, to domain.ApplicationStatus, at time.Time) (*domain.Application, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE applications
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING id, job_id, job_seeker_id, status, applied_at, updated_at
	`
	a, err := scanApplication(r.dbpool.QueryRowContext(ctx, query, string(to), at, id, string(from)))
	if err == nil {
		return a, nil
	}
	if err != sql.ErrNoRows {
		return nil, mapError(err, errApplicationNotFound())
	}

	var current string
	err = r.dbpool.QueryRowContext(ctx, `SELECT status FROM applications WHERE id = $1`, id).Scan(&current)
	if err != nil {
		return nil, mapError(err, errApplicationNotFound())
	}
	return nil, domain.InvalidTransition("application has already been " + current)
}

func (r *Repository) Stats(ctx context.Context) (*domain.Stats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	stats := &domain.Stats{
		UsersByRole:          map[domain.Role]int{},
		JobsByStatus:         map[domain.JobStatus]int{},
		ApplicationsByStatus: map[domain.ApplicationStatus]int{},
	}

	groups := []struct {
		query string
		add   func(key string, n int)
	}{
		{`SELECT role, COUNT(*) FROM users GROUP BY role`, func(k string, n int) { stats.UsersByRole[domain.Role(k)] = n }},
		{`SELECT status, COUNT(*) FROM jobs GROUP BY status`, func(k string, n int) { stats.JobsByStatus[domain.JobStatus(k)] = n }},
		{`SELECT status, COUNT(*) FROM applications GROUP BY status`, func(k string, n int) {
			stats.ApplicationsByStatus[domain.ApplicationStatus(k)] = n
		}},
	}
	for _, g := range groups {
		if err := r.countGroups(ctx, g.query, g.add); err != nil {
			return nil, err
		}
	}

	query := `SELECT COUNT(*) FROM users WHERE role = 'employer' AND NOT is_approved`
	if err := r.dbpool.QueryRowContext(ctx, query).Scan(&stats.PendingEmployers); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *Repository) countGroups(ctx context.Context, query string, add func(key string, n int)) error {
	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		add(key, n)
	}

	return rows.Err()
}
