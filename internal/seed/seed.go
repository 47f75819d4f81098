// Package seed fills a store with demo accounts and jobs.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/service"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// RequiredColumns lists the CSV header cells ImportJobs needs. Other columns
// (salary, experience, experienceLevel) are optional.
var RequiredColumns = []string{"title", "description", "location", "type", "skills", "deadline"}

type Seeder struct {
	store       service.Store
	password    string
	emailDomain string
	bcryptCost  int
	now         func() time.Time
}

func New(store service.Store, password, emailDomain string) *Seeder {
	return &Seeder{
		store:       store,
		password:    password,
		emailDomain: emailDomain,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// RandomUsers inserts n verified users with the given role and returns how
// many were inserted. Email collisions are logged and skipped.
func (s *Seeder) RandomUsers(ctx context.Context, role domain.Role, n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("请输入合法的用户数量")
	}

	inserted := 0
	for i := 0; i < n; i++ {
		user, err := utils.GenerateRandomUser(role, s.password, s.emailDomain)
		if err != nil {
			return inserted, err
		}
		s.stamp(user)

		if err := s.store.CreateUser(ctx, user); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				slog.Warn("跳过重复用户", slog.String("email", user.Email))
				continue
			}
			return inserted, err
		}
		inserted++
	}

	return inserted, nil
}

func (s *Seeder) stamp(u *domain.User) {
	now := s.now()
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Version = 1
}

type mockEmployer struct {
	id, company, email string
}

type mockJob struct {
	id, employerID, title, description, salary, location string
	jobType                                              domain.JobType
	skills                                               []string
	experience                                           string
	daysOpen                                             int
}

var (
	mockEmployers = []mockEmployer{
		{id: "emp-1", company: "Tech Corp", email: "hr@techcorp.example"},
		{id: "emp-2", company: "Startup Inc", email: "jobs@startup.example"},
	}
	mockJobs = []mockJob{
		{
			id:          "job-1",
			employerID:  "emp-1",
			title:       "Frontend Developer",
			description: "We are looking for a skilled React developer.",
			salary:      "$80,000 - $120,000",
			location:    "New York, NY",
			jobType:     domain.JobTypeFullTime,
			skills:      []string{"React", "TypeScript", "Tailwind"},
			experience:  "2 years",
			daysOpen:    60,
		},
		{
			id:          "job-2",
			employerID:  "emp-2",
			title:       "Backend Intern",
			description: "Join our team to learn Node.js and Databases.",
			salary:      "$30/hr",
			location:    "Remote",
			jobType:     domain.JobTypeInternship,
			skills:      []string{"Node.js", "SQL"},
			experience:  "0 years",
			daysOpen:    30,
		},
	}
)

// MockJobs inserts the two demo employers and their jobs. Rows that already
// exist are left alone, so it is safe to run repeatedly.
func (s *Seeder) MockJobs(ctx context.Context) (int, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(s.password), s.bcryptCost)
	if err != nil {
		return 0, err
	}

	now := s.now()
	for _, e := range mockEmployers {
		_, err := s.store.GetUserByID(ctx, e.id)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}

		u := &domain.User{
			ID:            e.id,
			Username:      strings.ToLower(strings.ReplaceAll(e.company, " ", "_")),
			Email:         e.email,
			PasswordHash:  string(hash),
			Role:          domain.RoleEmployer,
			CompanyName:   e.company,
			IsApproved:    true,
			EmailVerified: true,
			IsActive:      true,
			CreatedAt:     now,
			UpdatedAt:     now,
			Version:       1,
		}
		if err := s.store.CreateUser(ctx, u); err != nil {
			return 0, fmt.Errorf("无法插入雇主 %s: %w", e.id, err)
		}
	}

	inserted := 0
	for _, m := range mockJobs {
		_, err := s.store.GetJobByID(ctx, m.id)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return inserted, err
		}

		employer, err := s.store.GetUserByID(ctx, m.employerID)
		if err != nil {
			return inserted, err
		}
		job := &domain.Job{
			ID:             m.id,
			EmployerID:     m.employerID,
			Title:          m.title,
			Description:    m.description,
			CompanyName:    employer.CompanyName,
			Salary:         m.salary,
			Location:       m.location,
			Type:           m.jobType,
			SkillsRequired: m.skills,
			Experience:     m.experience,
			Deadline:       now.AddDate(0, 0, m.daysOpen),
			Status:         domain.JobStatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
			Version:        1,
		}
		if err := s.store.CreateJob(ctx, job); err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, nil
}

// ImportJobs reads jobs from CSV and posts them as the given employer. The
// first row is the header; see RequiredColumns. Invalid rows are logged and
// skipped.
func (s *Seeder) ImportJobs(ctx context.Context, r io.Reader, employerID string) (int, error) {
	employer, err := s.store.GetUserByID(ctx, employerID)
	if err != nil {
		return 0, err
	}
	if employer.Role != domain.RoleEmployer {
		return 0, fmt.Errorf("用户 %s 不是雇主", employerID)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("读取表头失败: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	for _, col := range RequiredColumns {
		if !slices.Contains(headers, col) {
			return 0, fmt.Errorf("没有找到列 %q", col)
		}
	}

	inserted := 0
	line := 1
	for {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return inserted, fmt.Errorf("读取文件失败: %w", err)
		}
		line++

		record := make(map[string]string, len(headers))
		for i, value := range row {
			record[headers[i]] = strings.TrimSpace(value)
		}

		job, err := s.jobFromRecord(employer, record)
		if err != nil {
			slog.Error("跳过无效的职位", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		if err := s.store.CreateJob(ctx, job); err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, nil
}

func (s *Seeder) jobFromRecord(employer *domain.User, record map[string]string) (*domain.Job, error) {
	for _, col := range []string{"title", "description", "location"} {
		if record[col] == "" {
			return nil, fmt.Errorf("%s 不能为空", col)
		}
	}
	jobType, err := domain.ParseJobType(record["type"])
	if err != nil {
		return nil, err
	}
	deadline, err := utils.ParseDeadline(record["deadline"])
	if err != nil {
		return nil, err
	}
	var level domain.ExperienceLevel
	if raw := record["experienceLevel"]; raw != "" {
		if level, err = domain.ParseExperienceLevel(raw); err != nil {
			return nil, err
		}
	}

	now := s.now()
	status := domain.JobStatusActive
	if !deadline.After(now) {
		status = domain.JobStatusClosed
	}

	return &domain.Job{
		ID:              uuid.NewString(),
		EmployerID:      employer.ID,
		Title:           record["title"],
		Description:     record["description"],
		CompanyName:     employer.CompanyName,
		Salary:          record["salary"],
		Location:        record["location"],
		Type:            jobType,
		SkillsRequired:  utils.ParseSkills(record["skills"]),
		Experience:      record["experience"],
		ExperienceLevel: level,
		Deadline:        deadline,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}, nil
}
