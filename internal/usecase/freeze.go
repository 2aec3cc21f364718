package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"repo-freeze-service/internal/domain"
	"repo-freeze-service/internal/metrics"
)

// FreezeManager is the freeze state machine. It applies intents to the
// store, enforces the per-scope overlap rule, and drives protection toggles
// and PR reconciliation after every committed transition.
//
// A transition only counts as applied once the store confirms it. When a
// protection toggle fails after the store commit, the stored record stays
// the source of truth and the next tick converges the drift.
type FreezeManager struct {
	freezes    domain.FreezeStore
	unlocks    domain.UnlockStore
	platform   domain.PlatformClient
	reconciler *Reconciler
	logger     *logrus.Logger

	// now is the clock; replaced in tests.
	now func() time.Time
	// parallelism bounds the freeze-all / unfreeze-all fan-out.
	parallelism int
}

// NewFreezeManager creates a FreezeManager.
func NewFreezeManager(freezes domain.FreezeStore, unlocks domain.UnlockStore, platform domain.PlatformClient, reconciler *Reconciler, logger *logrus.Logger) *FreezeManager {
	return &FreezeManager{
		freezes:     freezes,
		unlocks:     unlocks,
		platform:    platform,
		reconciler:  reconciler,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		parallelism: 5,
	}
}

// FreezeRequest describes one freeze intent for a single repository.
type FreezeRequest struct {
	InstallationID int64
	Repository     domain.Repository
	Branch         *string
	Duration       *time.Duration
	Reason         *string
	InitiatedBy    string
}

// ScheduleRequest describes a freeze that starts at a given instant. To
// takes precedence over Duration when both are set.
type ScheduleRequest struct {
	FreezeRequest
	From time.Time
	To   *time.Time
}

// UnfreezeRequest describes an unfreeze intent. A nil Branch targets only
// the repo-wide scope, never branch-specific freezes.
type UnfreezeRequest struct {
	InstallationID int64
	Repository     domain.Repository
	Branch         *string
	EndedBy        string
}

// UnlockRequest exempts one PR from the current freeze.
type UnlockRequest struct {
	InstallationID int64
	Repository     domain.Repository
	PRNumber       int
	UnlockedBy     string
}

// RepoFailure records one repository that failed inside a multi-repository
// operation.
type RepoFailure struct {
	Repository string
	Error      string
}

// MultiRepoReport aggregates a freeze-all / unfreeze-all fan-out. Failures
// never cancel sibling repositories.
type MultiRepoReport struct {
	Succeeded []string
	Failed    []RepoFailure
}

// TickReport summarizes one scheduler tick.
type TickReport struct {
	Promoted  int
	Expired   int
	Conflicts []string
}

// Freeze creates an active freeze for the requested scope. It fails with
// ErrFreezeAlreadyActive when an unsuperseded active or scheduled record
// already holds the exact same scope.
func (m *FreezeManager) Freeze(ctx context.Context, req FreezeRequest) (*domain.FreezeRecord, error) {
	now := m.now()

	if err := m.checkScopeFree(ctx, req.InstallationID, req.Repository.FullName(), req.Branch, now); err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if req.Duration != nil {
		t := now.Add(*req.Duration)
		expiresAt = &t
	}

	record := domain.NewFreezeRecord(req.Repository.FullName(), req.InstallationID, req.Branch, now, expiresAt, req.Reason, req.InitiatedBy)
	if err := m.freezes.Create(ctx, record); err != nil {
		return nil, err
	}
	metrics.TransitionsTotal.WithLabelValues("freeze").Inc()

	m.logger.WithFields(logrus.Fields{
		"repository": record.Repository,
		"branch":     branchLabel(record.Branch),
		"expires_at": record.ExpiresAt,
		"actor":      record.InitiatedBy,
	}).Info("Freeze created")

	m.applyScope(ctx, req.InstallationID, req.Repository, req.Branch)
	return record, nil
}

// Schedule creates a freeze that becomes enforceable at req.From. When the
// start time is not in the future the record starts directly active, with
// protection applied immediately.
func (m *FreezeManager) Schedule(ctx context.Context, req ScheduleRequest) (*domain.FreezeRecord, error) {
	now := m.now()

	var expiresAt *time.Time
	switch {
	case req.To != nil:
		expiresAt = req.To
	case req.Duration != nil:
		t := req.From.Add(*req.Duration)
		expiresAt = &t
	}
	if expiresAt != nil && !expiresAt.After(req.From) {
		return nil, fmt.Errorf("%w: freeze window ends before it starts", domain.ErrInvalidTimestamp)
	}

	if err := m.checkScopeFree(ctx, req.InstallationID, req.Repository.FullName(), req.Branch, now); err != nil {
		return nil, err
	}

	record := domain.NewScheduledFreezeRecord(req.Repository.FullName(), req.InstallationID, req.Branch, req.From, expiresAt, req.Reason, req.InitiatedBy)
	if !req.From.After(now) {
		// Start time already passed: skip the scheduled state entirely.
		record.Status = domain.FreezeActive
	}

	if err := m.freezes.Create(ctx, record); err != nil {
		return nil, err
	}
	metrics.TransitionsTotal.WithLabelValues("schedule").Inc()

	m.logger.WithFields(logrus.Fields{
		"repository": record.Repository,
		"branch":     branchLabel(record.Branch),
		"starts_at":  record.StartedAt,
		"expires_at": record.ExpiresAt,
		"status":     record.Status,
	}).Info("Freeze scheduled")

	if record.Status == domain.FreezeActive {
		m.applyScope(ctx, req.InstallationID, req.Repository, req.Branch)
	}
	return record, nil
}

// Unfreeze ends the active freeze matching the requested scope. It fails
// with ErrNoActiveFreeze when the scope holds no active record, or when a
// concurrent instance already ended it.
func (m *FreezeManager) Unfreeze(ctx context.Context, req UnfreezeRequest) ([]*domain.FreezeRecord, error) {
	records, err := m.freezes.FindByScope(ctx, req.InstallationID, req.Repository.FullName(), req.Branch, domain.FreezeActive)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrNoActiveFreeze
	}

	var ended []*domain.FreezeRecord
	for _, record := range records {
		ok, err := m.freezes.UpdateStatus(ctx, record.ID, domain.FreezeActive, domain.FreezeEnded, &req.EndedBy)
		if err != nil {
			return nil, err
		}
		if ok {
			ended = append(ended, record)
			metrics.TransitionsTotal.WithLabelValues("unfreeze").Inc()
		}
	}
	if len(ended) == 0 {
		// Every candidate lost the compare-and-set to a concurrent unfreeze.
		return nil, domain.ErrNoActiveFreeze
	}

	m.logger.WithFields(logrus.Fields{
		"repository": req.Repository.FullName(),
		"branch":     branchLabel(req.Branch),
		"ended":      len(ended),
		"actor":      req.EndedBy,
	}).Info("Freeze ended")

	m.removeScope(ctx, req.InstallationID, req.Repository, req.Branch)
	return ended, nil
}

// FreezeMany freezes each listed repository as an independent unit of work
// with bounded parallelism. Per-repository failures, including scope
// conflicts, are aggregated rather than canceling siblings.
func (m *FreezeManager) FreezeMany(ctx context.Context, repositories []string, base FreezeRequest) *MultiRepoReport {
	report := &MultiRepoReport{}
	var mu sync.Mutex

	var group errgroup.Group
	group.SetLimit(m.parallelism)

	for _, fullName := range repositories {
		group.Go(func() error {
			req := base
			repo, err := domain.ParseRepository(fullName)
			if err == nil {
				req.Repository = repo
				_, err = m.Freeze(ctx, req)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, RepoFailure{Repository: fullName, Error: err.Error()})
			} else {
				report.Succeeded = append(report.Succeeded, fullName)
			}
			return nil
		})
	}

	_ = group.Wait()
	return report
}

// UnfreezeAll ends every active freeze of the installation, across all
// scopes, aggregating per-repository results.
func (m *FreezeManager) UnfreezeAll(ctx context.Context, installationID int64, endedBy string) (*MultiRepoReport, error) {
	records, err := m.freezes.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	report := &MultiRepoReport{}
	touched := make(map[string]domain.Repository)

	for _, record := range records {
		if record.InstallationID != installationID {
			continue
		}
		repo, err := domain.ParseRepository(record.Repository)
		if err != nil {
			report.Failed = append(report.Failed, RepoFailure{Repository: record.Repository, Error: err.Error()})
			continue
		}

		ok, err := m.freezes.UpdateStatus(ctx, record.ID, domain.FreezeActive, domain.FreezeEnded, &endedBy)
		if err != nil {
			report.Failed = append(report.Failed, RepoFailure{Repository: record.Repository, Error: err.Error()})
			continue
		}
		if !ok {
			continue
		}
		metrics.TransitionsTotal.WithLabelValues("unfreeze").Inc()

		if err := m.platform.RemoveProtection(ctx, repo, record.Branch); err != nil {
			m.logger.WithError(err).WithField("repository", record.Repository).Warn("Failed to remove protection, next tick will converge")
		}
		if _, seen := touched[record.Repository]; !seen {
			touched[record.Repository] = repo
			report.Succeeded = append(report.Succeeded, record.Repository)
		}
	}

	for _, repo := range touched {
		m.reconcileScope(ctx, installationID, repo)
	}
	return report, nil
}

// UnlockPr records an unlock override for one pull request and refreshes the
// repository's signals so the exemption takes effect immediately.
func (m *FreezeManager) UnlockPr(ctx context.Context, req UnlockRequest) (*domain.UnlockedPr, error) {
	unlock := &domain.UnlockedPr{
		ID:             uuid.New(),
		Repository:     req.Repository.FullName(),
		InstallationID: req.InstallationID,
		PRNumber:       req.PRNumber,
		UnlockedBy:     req.UnlockedBy,
		UnlockedAt:     m.now(),
	}
	if err := m.unlocks.CreateUnlock(ctx, unlock); err != nil {
		return nil, err
	}
	metrics.TransitionsTotal.WithLabelValues("unlock_pr").Inc()

	m.logger.WithFields(logrus.Fields{
		"repository": unlock.Repository,
		"pr":         unlock.PRNumber,
		"actor":      unlock.UnlockedBy,
	}).Info("PR unlocked")

	m.reconcileScope(ctx, req.InstallationID, req.Repository)
	return unlock, nil
}

// IsFrozen reports whether the (repository, branch) pair is frozen at the
// given instant, and returns the newest record freezing it. A PR is frozen
// when any scope covering its branch has an enforceable record; the
// repo-wide and branch scopes compose with OR.
func (m *FreezeManager) IsFrozen(ctx context.Context, installationID int64, repository, branch string, at time.Time) (bool, *domain.FreezeRecord, error) {
	records, err := m.freezes.FindForRepository(ctx, installationID, repository, domain.FreezeActive)
	if err != nil {
		return false, nil, err
	}

	var newest *domain.FreezeRecord
	for _, record := range records {
		if record.FreezingAt(at) && record.Scope().Covers(branch) {
			if newest == nil || record.StartedAt.After(newest.StartedAt) {
				newest = record
			}
		}
	}
	return newest != nil, newest, nil
}

// StatusEntry is one row of the status report.
type StatusEntry struct {
	Repository string
	Branch     string
	State      string
	Start      string
	End        string
	Reason     string
}

// Status reports the freeze state of each listed repository.
func (m *FreezeManager) Status(ctx context.Context, installationID int64, repositories []string) ([]StatusEntry, error) {
	now := m.now()
	var entries []StatusEntry

	for _, repository := range repositories {
		records, err := m.freezes.FindForRepository(ctx, installationID, repository, domain.FreezeActive, domain.FreezeScheduled)
		if err != nil {
			entries = append(entries, StatusEntry{Repository: repository, State: "❌ Error: " + err.Error()})
			continue
		}

		found := false
		for _, record := range records {
			var state string
			switch {
			case record.Status == domain.FreezeScheduled:
				state = "⏰ Scheduled"
			case record.FreezingAt(now):
				state = "🔒 Active"
			default:
				continue
			}
			found = true
			entry := StatusEntry{
				Repository: repository,
				Branch:     branchLabel(record.Branch),
				State:      state,
				Start:      record.StartedAt.Format("2006-01-02 15:04:05 UTC"),
			}
			if record.ExpiresAt != nil {
				entry.End = record.ExpiresAt.Format("2006-01-02 15:04:05 UTC")
			}
			if record.Reason != nil {
				entry.Reason = *record.Reason
			}
			entries = append(entries, entry)
		}
		if !found {
			entries = append(entries, StatusEntry{Repository: repository, State: "🌞 Off"})
		}
	}
	return entries, nil
}

// Tick expires active freezes past their window and promotes due scheduled
// freezes. Every transition is a compare-and-set, so concurrent ticks from
// multiple instances are safe: the duplicate loses the CAS and skips the
// side effects.
func (m *FreezeManager) Tick(ctx context.Context) (*TickReport, error) {
	now := m.now()
	report := &TickReport{}
	touched := make(map[string]struct {
		installationID int64
		repo           domain.Repository
	})

	expiring, err := m.freezes.FindExpiring(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, record := range expiring {
		ok, err := m.freezes.UpdateStatus(ctx, record.ID, domain.FreezeActive, domain.FreezeExpired, nil)
		if err != nil {
			m.logger.WithError(err).WithField("freeze_id", record.ID).Error("Failed to expire freeze")
			continue
		}
		if !ok {
			continue
		}
		report.Expired++
		metrics.TransitionsTotal.WithLabelValues("expire").Inc()

		repo, err := domain.ParseRepository(record.Repository)
		if err != nil {
			continue
		}
		if err := m.platform.RemoveProtection(ctx, repo, record.Branch); err != nil {
			m.logger.WithError(err).WithField("repository", record.Repository).Warn("Failed to remove protection, next tick will converge")
		}
		touched[record.Repository] = struct {
			installationID int64
			repo           domain.Repository
		}{record.InstallationID, repo}
	}

	due, err := m.freezes.FindDueScheduled(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, record := range due {
		conflicting, err := m.freezes.FindByScope(ctx, record.InstallationID, record.Repository, record.Branch, domain.FreezeActive)
		if err != nil {
			m.logger.WithError(err).WithField("freeze_id", record.ID).Error("Failed to check scope before promotion")
			continue
		}
		if hasEnforceable(conflicting, now) {
			// Promotion would overlap an active freeze on the same scope.
			// Flag for manual resolution instead of silently dropping it.
			report.Conflicts = append(report.Conflicts, record.Repository)
			m.logger.WithFields(logrus.Fields{
				"repository": record.Repository,
				"branch":     branchLabel(record.Branch),
				"freeze_id":  record.ID,
			}).Warn("Scheduled freeze conflicts with an active freeze, needs manual resolution")
			continue
		}

		ok, err := m.freezes.UpdateStatus(ctx, record.ID, domain.FreezeScheduled, domain.FreezeActive, nil)
		if err != nil {
			m.logger.WithError(err).WithField("freeze_id", record.ID).Error("Failed to promote scheduled freeze")
			continue
		}
		if !ok {
			continue
		}
		report.Promoted++
		metrics.TransitionsTotal.WithLabelValues("promote").Inc()

		repo, err := domain.ParseRepository(record.Repository)
		if err != nil {
			continue
		}
		if err := m.platform.ApplyProtection(ctx, repo, record.Branch); err != nil {
			m.logger.WithError(err).WithField("repository", record.Repository).Warn("Failed to apply protection, next tick will converge")
		}
		touched[record.Repository] = struct {
			installationID int64
			repo           domain.Repository
		}{record.InstallationID, repo}
	}

	for _, t := range touched {
		m.reconcileScope(ctx, t.installationID, t.repo)
	}
	return report, nil
}

// checkScopeFree enforces the overlap rule: at most one enforceable
// active/scheduled record per exact scope. Records whose window already
// ended do not count even before a tick marks them expired.
func (m *FreezeManager) checkScopeFree(ctx context.Context, installationID int64, repository string, branch *string, at time.Time) error {
	existing, err := m.freezes.FindByScope(ctx, installationID, repository, branch, domain.FreezeActive, domain.FreezeScheduled)
	if err != nil {
		return err
	}
	if hasEnforceable(existing, at) {
		return fmt.Errorf("%w: %s (%s)", domain.ErrFreezeAlreadyActive, repository, scopeLabel(branch))
	}
	return nil
}

// applyScope applies protection and reconciles after a committed freeze.
// Both steps are drift-tolerant: the stored record already holds the truth.
func (m *FreezeManager) applyScope(ctx context.Context, installationID int64, repo domain.Repository, branch *string) {
	if err := m.platform.ApplyProtection(ctx, repo, branch); err != nil {
		m.logger.WithError(err).WithField("repository", repo.FullName()).Warn("Failed to apply protection, next tick will converge")
	}
	m.reconcileScope(ctx, installationID, repo)
}

func (m *FreezeManager) removeScope(ctx context.Context, installationID int64, repo domain.Repository, branch *string) {
	if err := m.platform.RemoveProtection(ctx, repo, branch); err != nil {
		m.logger.WithError(err).WithField("repository", repo.FullName()).Warn("Failed to remove protection, next tick will converge")
	}
	m.reconcileScope(ctx, installationID, repo)
}

func (m *FreezeManager) reconcileScope(ctx context.Context, installationID int64, repo domain.Repository) {
	if _, err := m.reconciler.ReconcileRepository(ctx, installationID, repo); err != nil {
		m.logger.WithError(err).WithField("repository", repo.FullName()).Warn("Reconciliation failed, next tick will retry")
	}
}

func hasEnforceable(records []*domain.FreezeRecord, at time.Time) bool {
	for _, record := range records {
		if record.Status == domain.FreezeScheduled {
			return true
		}
		if record.FreezingAt(at) {
			return true
		}
	}
	return false
}

func branchLabel(branch *string) string {
	if branch == nil {
		return ""
	}
	return *branch
}

func scopeLabel(branch *string) string {
	if branch == nil {
		return "all branches"
	}
	return "branch " + *branch
}
