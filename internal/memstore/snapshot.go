package memstore

import (
	"time"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

// DefaultKey namespaces the persisted snapshot.
const DefaultKey = "job-portal-storage"

// Snapshot is the persisted form of the store. Unlike the API types it keeps
// password hashes, token digests and row versions.
type Snapshot struct {
	Version       int64                 `json:"version"`
	Users         []*userRecord         `json:"users"`
	Jobs          []*jobRecord          `json:"jobs"`
	Applications  []*domain.Application `json:"applications"`
	CurrentUserID string                `json:"currentUser,omitempty"`
}

type userRecord struct {
	domain.User
	PasswordHash             string     `json:"passwordHash"`
	VerificationTokenHash    string     `json:"verificationTokenHash,omitempty"`
	VerificationTokenExpires *time.Time `json:"verificationTokenExpires,omitempty"`
	ResetTokenHash           string     `json:"resetTokenHash,omitempty"`
	ResetTokenExpires        *time.Time `json:"resetTokenExpires,omitempty"`
	Version                  int32      `json:"version"`
}

type jobRecord struct {
	domain.Job
	Version int32 `json:"version"`
}

type state struct {
	version       int64
	users         []*domain.User
	jobs          []*domain.Job
	applications  []*domain.Application
	currentUserID string
}

func (st *state) clone() *state {
	c := &state{
		version:       st.version,
		users:         make([]*domain.User, len(st.users)),
		jobs:          make([]*domain.Job, len(st.jobs)),
		applications:  make([]*domain.Application, len(st.applications)),
		currentUserID: st.currentUserID,
	}
	for i, u := range st.users {
		c.users[i] = u.Clone()
	}
	for i, j := range st.jobs {
		c.jobs[i] = j.Clone()
	}
	for i, a := range st.applications {
		v := *a
		c.applications[i] = &v
	}
	return c
}

func (st *state) snapshot() *Snapshot {
	snap := &Snapshot{
		Version:       st.version,
		Users:         make([]*userRecord, len(st.users)),
		Jobs:          make([]*jobRecord, len(st.jobs)),
		Applications:  st.applications,
		CurrentUserID: st.currentUserID,
	}
	for i, u := range st.users {
		snap.Users[i] = &userRecord{
			User:                     *u,
			PasswordHash:             u.PasswordHash,
			VerificationTokenHash:    u.VerificationTokenHash,
			VerificationTokenExpires: u.VerificationTokenExpires,
			ResetTokenHash:           u.ResetTokenHash,
			ResetTokenExpires:        u.ResetTokenExpires,
			Version:                  u.Version,
		}
	}
	for i, j := range st.jobs {
		snap.Jobs[i] = &jobRecord{Job: *j, Version: j.Version}
	}
	return snap
}

func fromSnapshot(snap *Snapshot) *state {
	st := &state{
		version:       snap.Version,
		users:         make([]*domain.User, 0, len(snap.Users)),
		jobs:          make([]*domain.Job, 0, len(snap.Jobs)),
		applications:  make([]*domain.Application, 0, len(snap.Applications)),
		currentUserID: snap.CurrentUserID,
	}
	for _, r := range snap.Users {
		u := r.User
		u.PasswordHash = r.PasswordHash
		u.VerificationTokenHash = r.VerificationTokenHash
		u.VerificationTokenExpires = r.VerificationTokenExpires
		u.ResetTokenHash = r.ResetTokenHash
		u.ResetTokenExpires = r.ResetTokenExpires
		u.Version = r.Version
		st.users = append(st.users, &u)
	}
	for _, r := range snap.Jobs {
		j := r.Job
		j.Version = r.Version
		st.jobs = append(st.jobs, &j)
	}
	for _, a := range snap.Applications {
		if a != nil {
			st.applications = append(st.applications, a)
		}
	}
	return st
}
