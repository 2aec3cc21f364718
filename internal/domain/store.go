package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FreezeStore is the contract for the persisted freeze-record collection.
// It is the single source of truth for freeze state; callers never cache
// freeze status beyond one reconciliation pass.
type FreezeStore interface {
	// Create persists a new freeze record.
	Create(ctx context.Context, record *FreezeRecord) error
	// FindByScope returns records matching the exact scope (branch nil
	// matches only repo-wide records) with any of the given statuses.
	FindByScope(ctx context.Context, installationID int64, repository string, branch *string, statuses ...FreezeStatus) ([]*FreezeRecord, error)
	// FindForRepository returns all records for the repository, any scope,
	// with any of the given statuses.
	FindForRepository(ctx context.Context, installationID int64, repository string, statuses ...FreezeStatus) ([]*FreezeRecord, error)
	// ListActive returns every record with active status across all
	// installations, ordered by start time.
	ListActive(ctx context.Context) ([]*FreezeRecord, error)
	// FindExpiring returns active records whose expiry has passed as of the
	// given instant.
	FindExpiring(ctx context.Context, before time.Time) ([]*FreezeRecord, error)
	// FindDueScheduled returns scheduled records whose start time has passed
	// as of the given instant.
	FindDueScheduled(ctx context.Context, asOf time.Time) ([]*FreezeRecord, error)
	// UpdateStatus transitions a record from expect to next, returning false
	// when the record was not in the expected status. The conditional update
	// keeps concurrent transitions on the same scope serialized without
	// in-process locks.
	UpdateStatus(ctx context.Context, id uuid.UUID, expect, next FreezeStatus, endedBy *string) (bool, error)
}

// UnlockStore is the contract for per-PR unlock overrides.
type UnlockStore interface {
	// CreateUnlock records an unlock override, replacing any previous one
	// for the same (installation, repository, pr_number).
	CreateUnlock(ctx context.Context, unlock *UnlockedPr) error
	// FindUnlock returns the override for a PR, or nil when none exists.
	FindUnlock(ctx context.Context, installationID int64, repository string, prNumber int) (*UnlockedPr, error)
}

// PlatformClient is the contract with the code-hosting platform. All calls
// block on the network and honor the caller's context deadline.
type PlatformClient interface {
	// ApplyProtection enables merge-blocking branch protection for the scope.
	ApplyProtection(ctx context.Context, repo Repository, branch *string) error
	// RemoveProtection disables the merge-blocking protection for the scope.
	RemoveProtection(ctx context.Context, repo Repository, branch *string) error
	// ListOpenPullRequests enumerates open PRs with their target branches.
	ListOpenPullRequests(ctx context.Context, repo Repository) ([]PullRequest, error)
	// PushMergeSignal sets the PR's merge-readiness signal. Pushing the same
	// signal twice is a no-op from the caller's perspective.
	PushMergeSignal(ctx context.Context, repo Repository, pr PullRequest, block bool, freeze *FreezeRecord) error
	// ListInstallationRepositories returns every repository of the
	// installation, for freeze-all without an explicit --repo list.
	ListInstallationRepositories(ctx context.Context, installationID int64) ([]Repository, error)
	// CreateComment posts a rendered result message back to the conversation.
	CreateComment(ctx context.Context, repo Repository, issueNumber int, body string) error
}
