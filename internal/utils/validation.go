package utils

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"
)

const (
	MinPasswordLength = 8
	// bcrypt rejects longer inputs.
	MaxPasswordBytes = 72
)

// ValidatePassword checks password complexity. Failures are reported as a
// single message keyed by field; an empty map means the password is fine.
func ValidatePassword(field, password string) map[string]string {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	var problems []string
	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, "at least 8 characters")
	}
	if len(password) > MaxPasswordBytes {
		return map[string]string{field: "password must be at most 72 bytes"}
	}
	if !hasUpper {
		problems = append(problems, "an uppercase letter")
	}
	if !hasLower {
		problems = append(problems, "a lowercase letter")
	}
	if !hasDigit {
		problems = append(problems, "a digit")
	}
	if !hasSymbol {
		problems = append(problems, "a special character")
	}

	if len(problems) == 0 {
		return map[string]string{}
	}
	return map[string]string{field: "password must contain " + strings.Join(problems, ", ")}
}

// NormalizeEmail lowercases and trims an address and rejects malformed ones.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", errors.New("invalid email address")
	}
	return email, nil
}

// UsernameFromEmail derives a display name from the local part of an email.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	for len([]rune(local)) < 3 {
		local += "_"
	}
	if r := []rune(local); len(r) > 30 {
		local = string(r[:30])
	}
	return local
}

// ParseSkills splits a comma-delimited list, trimming entries and dropping
// empty ones.
func ParseSkills(s string) []string {
	skills := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			skills = append(skills, part)
		}
	}
	return skills
}

// ParseDeadline accepts a calendar date or an RFC 3339 timestamp. A calendar
// date covers the whole day, so it resolves to 23:59:59 UTC.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Add(24*time.Hour - time.Second), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.New("deadline must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
	}
	return t, nil
}

// ValidateSalaryRange reports an error when both bounds are set and min > max
// or either is negative.
func ValidateSalaryRange(min, max *int) error {
	if (min != nil && *min < 0) || (max != nil && *max < 0) {
		return errors.New("salary cannot be negative")
	}
	if min != nil && max != nil && *min > *max {
		return errors.New("salaryMin cannot be greater than salaryMax")
	}
	return nil
}
