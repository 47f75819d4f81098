package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

const jobColumns = `
	id, employer_id, title, description, company_name, salary, salary_min, salary_max,
	location, type, skills_required, experience, experience_level, deadline, status,
	created_at, updated_at, version
`

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job                  domain.Job
		salaryMin, salaryMax sql.NullInt64
		skills               []string
	)

	// database/sql 无法直接扫描 text[]，借助 pgtype.Map 完成
	dst := []any{
		&job.ID, &job.EmployerID, &job.Title, &job.Description, &job.CompanyName, &job.Salary, &salaryMin, &salaryMax,
		&job.Location, &job.Type, pgtype.NewMap().SQLScanner(&skills), &job.Experience, &job.ExperienceLevel, &job.Deadline, &job.Status,
		&job.CreatedAt, &job.UpdatedAt, &job.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	job.SalaryMin = intPtr(salaryMin)
	job.SalaryMax = intPtr(salaryMax)
	if skills == nil {
		skills = []string{}
	}
	job.SkillsRequired = skills

	return &job, nil
}

func skillsArg(skills []string) []string {
	if skills == nil {
		return []string{}
	}
	return skills
}

func (r *Repository) CreateJob(ctx context.Context, j *domain.Job) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO jobs (
			id, employer_id, title, description, company_name, salary, salary_min, salary_max,
			location, type, skills_required, experience, experience_level, deadline, status,
			created_at, updated_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	args := []any{
		j.ID, j.EmployerID, j.Title, j.Description, j.CompanyName, j.Salary, nullInt(j.SalaryMin), nullInt(j.SalaryMax),
		j.Location, string(j.Type), skillsArg(j.SkillsRequired), j.Experience, string(j.ExperienceLevel), j.Deadline, string(j.Status),
		j.CreatedAt, j.UpdatedAt, j.Version,
	}
	if _, err := r.dbpool.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, errUserNotFound())
	}

	return nil
}

func (r *Repository) GetJobByID(ctx context.Context, id string) (*domain.Job, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, errJobNotFound())
	}

	return job, nil
}

// UpdateJob never changes the owner or the creation time.
func (r *Repository) UpdateJob(ctx context.Context, j *domain.Job) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE jobs
		SET
			title = $1,
			description = $2,
			company_name = $3,
			salary = $4,
			salary_min = $5,
			salary_max = $6,
			location = $7,
			type = $8,
			skills_required = $9,
			experience = $10,
			experience_level = $11,
			deadline = $12,
			status = $13,
			updated_at = $14,
			version = version + 1
		WHERE id = $15 AND version = $16
		RETURNING version
	`

	args := []any{
		j.Title, j.Description, j.CompanyName, j.Salary, nullInt(j.SalaryMin), nullInt(j.SalaryMax),
		j.Location, string(j.Type), skillsArg(j.SkillsRequired), j.Experience, string(j.ExperienceLevel),
		j.Deadline, string(j.Status), j.UpdatedAt,
		j.ID, j.Version,
	}
	err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&j.Version)
	if err == sql.ErrNoRows {
		ok, existsErr := r.exists(ctx, "jobs", j.ID)
		if existsErr != nil {
			return existsErr
		}
		if !ok {
			return errJobNotFound()
		}
		return domain.Conflict("job was modified concurrently")
	}

	return mapError(err, errJobNotFound())
}

func (r *Repository) DeleteJob(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return mapError(err, errJobNotFound())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errJobNotFound()
	}

	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(s)) + "%"
}

// jobFilter renders the WHERE clause for q with numbered placeholders. It
// mirrors domain.JobQuery.Matches.
func jobFilter(q domain.JobQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "status = ANY("+arg(statuses)+")")
	}
	if q.EmployerID != "" {
		conds = append(conds, "employer_id = "+arg(q.EmployerID))
	}
	if strings.TrimSpace(q.Keyword) != "" {
		p := arg(containsPattern(q.Keyword))
		second := "company_name"
		if q.Scope == domain.ScopeSearch {
			second = "description"
		}
		conds = append(conds, fmt.Sprintf("(title ILIKE %[1]s OR %[2]s ILIKE %[1]s OR location ILIKE %[1]s)", p, second))
	}
	if len(q.Types) > 0 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = string(t)
		}
		conds = append(conds, "type = ANY("+arg(types)+")")
	}
	if len(q.ExperienceLevels) > 0 {
		levels := make([]string, len(q.ExperienceLevels))
		for i, l := range q.ExperienceLevels {
			levels[i] = string(l)
		}
		conds = append(conds, "experience_level = ANY("+arg(levels)+")")
	}
	if strings.TrimSpace(q.Location) != "" {
		conds = append(conds, "location ILIKE "+arg(containsPattern(q.Location)))
	}
	if q.MinSalary != nil || q.MaxSalary != nil {
		conds = append(conds, "(salary_min IS NOT NULL OR salary_max IS NOT NULL)")
		if q.MinSalary != nil {
			conds = append(conds, "(salary_max IS NULL OR salary_max >= "+arg(*q.MinSalary)+")")
		}
		if q.MaxSalary != nil {
			conds = append(conds, "(salary_min IS NULL OR salary_min <= "+arg(*q.MaxSalary)+")")
		}
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repository) ListJobs(ctx context.Context, q domain.JobQuery) ([]*domain.Job, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	where, args := jobFilter(q)

	total := 0
	if err := r.dbpool.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + where + ` ORDER BY created_at DESC, id`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset())
	}

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	jobs := make([]*domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

func (r *Repository) CloseExpiredJobs(ctx context.Context, now time.Time) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE jobs
		SET status = 'closed', updated_at = $1, version = version + 1
		WHERE status <> 'closed' AND deadline < $1
	`
	res, err := r.dbpool.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(n), nil
}
