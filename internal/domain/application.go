package domain

import (
	"fmt"
	"time"
)

// ApplicationStatus graph:
//
//	pending ──► accepted
//	   │
//	   └──────► rejected
//
// accepted and rejected are terminal.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	st := ApplicationStatus(s)
	switch st {
	case ApplicationPending, ApplicationAccepted, ApplicationRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// IsDecision reports whether s is a status an application can be moved to.
func (s ApplicationStatus) IsDecision() bool {
	return s == ApplicationAccepted || s == ApplicationRejected
}

// CanTransitionApplication reports whether an application in status from may
// be moved to status to.
func CanTransitionApplication(from, to ApplicationStatus) bool {
	return from == ApplicationPending && to.IsDecision()
}

type Application struct {
	ID          string            `json:"id"`
	JobID       string            `json:"jobId"`
	JobSeekerID string            `json:"jobSeekerId"`
	Status      ApplicationStatus `json:"status"`
	AppliedAt   time.Time         `json:"appliedAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

type ApplicationQuery struct {
	JobID       string
	JobSeekerID string
	// EmployerID selects applications to any job owned by the employer.
	EmployerID string
}

type Stats struct {
	UsersByRole          map[Role]int              `json:"usersByRole"`
	PendingEmployers     int                       `json:"pendingEmployers"`
	JobsByStatus         map[JobStatus]int         `json:"jobsByStatus"`
	ApplicationsByStatus map[ApplicationStatus]int `json:"applicationsByStatus"`
}
