package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleJobSeeker Role = "job_seeker"
	RoleEmployer  Role = "employer"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleJobSeeker, RoleEmployer, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type LoginLog struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
}

// Profile holds the job-seeker profile. Every field is optional until an
// action (applying to a job) requires it.
type Profile struct {
	LegalName       string   `json:"legalName,omitempty"`
	PreferredName   string   `json:"preferredName,omitempty"`
	Country         string   `json:"country,omitempty"`
	City            string   `json:"city,omitempty"`
	State           string   `json:"state,omitempty"`
	ZipCode         string   `json:"zipCode,omitempty"`
	PhoneCode       string   `json:"phoneCode,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	LinkedIn        string   `json:"linkedIn,omitempty"`
	Websites        []string `json:"websites,omitempty"`
	IsAdult         *bool    `json:"isAdult,omitempty"`
	University      string   `json:"university,omitempty"`
	Degree          string   `json:"degree,omitempty"`
	Major           string   `json:"major,omitempty"`
	StartYear       string   `json:"startYear,omitempty"`
	EndYear         string   `json:"endYear,omitempty"`
	GPA             string   `json:"gpa,omitempty"`
	Resume          string   `json:"resume,omitempty"`
	CoverLetter     string   `json:"coverLetter,omitempty"`
	PortfolioLinks  []string `json:"portfolioLinks,omitempty"`
	CodingLanguages []string `json:"codingLanguages,omitempty"`
	PreferredAreas  []string `json:"preferredAreas,omitempty"`
	Assessments     []string `json:"assessments,omitempty"`
	SATScore        string   `json:"satScore,omitempty"`
	HackerRank      string   `json:"hackerRank,omitempty"`
}

// MissingForApplication returns the profile fields that must be filled in
// before the owner may apply to a job.
func (p Profile) MissingForApplication() map[string]string {
	missing := map[string]string{}
	if p.LegalName == "" {
		missing["legalName"] = "legal name is required to apply"
	}
	if p.Phone == "" {
		missing["phone"] = "phone is required to apply"
	}
	return missing
}

type User struct {
	ID                       string     `json:"id"`
	Username                 string     `json:"username"`
	Email                    string     `json:"email"`
	PasswordHash             string     `json:"-"`
	Role                     Role       `json:"role"`
	CompanyName              string     `json:"companyName,omitempty"`
	IsApproved               bool       `json:"isApproved"`
	Profile                  Profile    `json:"profile"`
	EmailVerified            bool       `json:"emailVerified"`
	VerificationTokenHash    string     `json:"-"`
	VerificationTokenExpires *time.Time `json:"-"`
	ResetTokenHash           string     `json:"-"`
	ResetTokenExpires        *time.Time `json:"-"`
	LoginLogs                []LoginLog `json:"loginLogs,omitempty"`
	LastLogin                *time.Time `json:"lastLogin,omitempty"`
	IsActive                 bool       `json:"isActive"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
	Version                  int32      `json:"-"`
}

// CanPostJobs reports whether the approval gate is open for this user.
func (u *User) CanPostJobs() bool {
	return u.Role == RoleEmployer && u.IsApproved
}

// Clone returns a deep copy so callers can mutate it without touching shared
// state.
func (u *User) Clone() *User {
	c := *u
	c.Profile.Websites = append([]string(nil), u.Profile.Websites...)
	c.Profile.PortfolioLinks = append([]string(nil), u.Profile.PortfolioLinks...)
	c.Profile.CodingLanguages = append([]string(nil), u.Profile.CodingLanguages...)
	c.Profile.PreferredAreas = append([]string(nil), u.Profile.PreferredAreas...)
	c.Profile.Assessments = append([]string(nil), u.Profile.Assessments...)
	if u.Profile.IsAdult != nil {
		v := *u.Profile.IsAdult
		c.Profile.IsAdult = &v
	}
	c.LoginLogs = append([]LoginLog(nil), u.LoginLogs...)
	c.VerificationTokenExpires = cloneTime(u.VerificationTokenExpires)
	c.ResetTokenExpires = cloneTime(u.ResetTokenExpires)
	c.LastLogin = cloneTime(u.LastLogin)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type UserFilter struct {
	Role Role
}
