package domain

import (
	"time"

	"github.com/google/uuid"
)

// FreezeStatus tracks the lifecycle of a freeze from creation to completion.
type FreezeStatus string

const (
	// FreezeScheduled means the freeze is waiting for its start time.
	FreezeScheduled FreezeStatus = "scheduled"
	// FreezeActive means the freeze is currently blocking merges.
	FreezeActive FreezeStatus = "active"
	// FreezeExpired means the freeze passed its expiry without being ended.
	FreezeExpired FreezeStatus = "expired"
	// FreezeEnded means the freeze was explicitly lifted by a user.
	FreezeEnded FreezeStatus = "ended"
)

// Scope is the (repository, branch-or-all) unit a freeze applies to.
// An empty Branch means the freeze covers every branch of the repository.
// A repo-wide scope and a branch-specific scope are independent: both may
// hold active freezes at the same time.
type Scope struct {
	Repository string
	Branch     string
}

// Equal reports whether two scopes are the same unit. A repo-wide scope is
// only equal to another repo-wide scope, never to a branch scope.
func (s Scope) Equal(other Scope) bool {
	return s.Repository == other.Repository && s.Branch == other.Branch
}

// Covers reports whether a PR targeting the given branch falls under this
// scope. A repo-wide scope covers every branch.
func (s Scope) Covers(branch string) bool {
	return s.Branch == "" || s.Branch == branch
}

// FreezeRecord is one freeze instance. Records are never deleted; ended and
// expired freezes are retained for audit.
type FreezeRecord struct {
	ID             uuid.UUID
	Repository     string
	InstallationID int64
	Branch         *string
	StartedAt      time.Time
	ExpiresAt      *time.Time
	EndedAt        *time.Time
	Reason         *string
	InitiatedBy    string
	EndedBy        *string
	Status         FreezeStatus
	CreatedAt      time.Time
}

// NewFreezeRecord creates an active freeze record starting at startedAt.
func NewFreezeRecord(repository string, installationID int64, branch *string, startedAt time.Time, expiresAt *time.Time, reason *string, initiatedBy string) *FreezeRecord {
	return &FreezeRecord{
		ID:             uuid.New(),
		Repository:     repository,
		InstallationID: installationID,
		Branch:         branch,
		StartedAt:      startedAt,
		ExpiresAt:      expiresAt,
		Reason:         reason,
		InitiatedBy:    initiatedBy,
		Status:         FreezeActive,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewScheduledFreezeRecord creates a freeze record that waits for a future
// start time before a tick promotes it to active.
func NewScheduledFreezeRecord(repository string, installationID int64, branch *string, startedAt time.Time, expiresAt *time.Time, reason *string, initiatedBy string) *FreezeRecord {
	rec := NewFreezeRecord(repository, installationID, branch, startedAt, expiresAt, reason, initiatedBy)
	rec.Status = FreezeScheduled
	return rec
}

// Scope returns the scope this record applies to.
func (r *FreezeRecord) Scope() Scope {
	s := Scope{Repository: r.Repository}
	if r.Branch != nil {
		s.Branch = *r.Branch
	}
	return s
}

// FreezingAt reports whether this record blocks merges at the given instant:
// the record is active, its window has started, it has not expired, and it
// was not explicitly ended.
func (r *FreezeRecord) FreezingAt(at time.Time) bool {
	if r.Status != FreezeActive || r.EndedAt != nil {
		return false
	}
	if r.StartedAt.After(at) {
		return false
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(at) {
		return false
	}
	return true
}

// UnlockedPr removes a single pull request from freeze enforcement. The
// override only applies to freezes that started before it was recorded; a
// newer freeze on the same scope supersedes it.
type UnlockedPr struct {
	ID             uuid.UUID
	Repository     string
	InstallationID int64
	PRNumber       int
	UnlockedBy     string
	UnlockedAt     time.Time
}

// AppliesTo reports whether this override suppresses the given freeze.
func (u *UnlockedPr) AppliesTo(freeze *FreezeRecord) bool {
	return u.Repository == freeze.Repository &&
		u.InstallationID == freeze.InstallationID &&
		u.UnlockedAt.After(freeze.StartedAt)
}

// PullRequest is the view of an open pull request the reconciler works with.
type PullRequest struct {
	Number       int
	TargetBranch string
	HeadSHA      string
}
