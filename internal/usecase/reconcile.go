package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"repo-freeze-service/internal/domain"
	"repo-freeze-service/internal/metrics"
)

// PRFailure records one pull request the reconciler could not update.
type PRFailure struct {
	Number int
	Error  string
}

// ReconciliationReport summarizes one reconciliation pass over a repository.
// PR-level failures are collected here instead of aborting the pass.
type ReconciliationReport struct {
	Repository string
	TotalPRs   int
	Blocked    int
	Cleared    int
	Failures   []PRFailure
}

// Reconciler pushes the desired merge-block signal onto every open pull
// request so each PR reflects current freeze state and unlock overrides.
// It reads freeze state fresh on every pass; nothing is cached across calls.
type Reconciler struct {
	freezes  domain.FreezeStore
	unlocks  domain.UnlockStore
	platform domain.PlatformClient
	logger   *logrus.Logger

	// now is the clock; replaced in tests.
	now func() time.Time
	// parallelism bounds concurrent repository passes in ReconcileAllActive.
	parallelism int
}

// NewReconciler creates a Reconciler.
func NewReconciler(freezes domain.FreezeStore, unlocks domain.UnlockStore, platform domain.PlatformClient, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		freezes:     freezes,
		unlocks:     unlocks,
		platform:    platform,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		parallelism: 5,
	}
}

// ReconcileRepository computes and pushes the desired signal for every open
// PR of one repository. A failure on one PR is recorded in the report and
// does not stop the remaining PRs.
func (r *Reconciler) ReconcileRepository(ctx context.Context, installationID int64, repo domain.Repository) (*ReconciliationReport, error) {
	at := r.now()
	report := &ReconciliationReport{Repository: repo.FullName()}

	records, err := r.freezes.FindForRepository(ctx, installationID, repo.FullName(), domain.FreezeActive)
	if err != nil {
		return nil, fmt.Errorf("failed to load freeze state for %s: %w", repo.FullName(), err)
	}

	freezing := make([]*domain.FreezeRecord, 0, len(records))
	for _, record := range records {
		if record.FreezingAt(at) {
			freezing = append(freezing, record)
		}
	}

	prs, err := r.platform.ListOpenPullRequests(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to list open PRs for %s: %w", repo.FullName(), err)
	}
	report.TotalPRs = len(prs)

	logEntry := r.logger.WithFields(logrus.Fields{
		"repository":     repo.FullName(),
		"open_prs":       len(prs),
		"active_freezes": len(freezing),
	})
	logEntry.Info("Reconciling pull requests")

	for _, pr := range prs {
		block, freeze, err := r.desiredSignal(ctx, installationID, repo.FullName(), pr, freezing)
		if err != nil {
			report.Failures = append(report.Failures, PRFailure{Number: pr.Number, Error: err.Error()})
			metrics.ReconcileFailuresTotal.Inc()
			continue
		}

		if err := r.platform.PushMergeSignal(ctx, repo, pr, block, freeze); err != nil {
			logEntry.WithError(err).WithField("pr", pr.Number).Warn("Failed to push merge signal")
			report.Failures = append(report.Failures, PRFailure{Number: pr.Number, Error: err.Error()})
			metrics.ReconcileFailuresTotal.Inc()
			continue
		}

		if block {
			report.Blocked++
			metrics.MergeSignalsTotal.WithLabelValues("block").Inc()
		} else {
			report.Cleared++
			metrics.MergeSignalsTotal.WithLabelValues("clear").Inc()
		}
	}

	return report, nil
}

// desiredSignal decides whether one PR must be blocked. The PR is blocked
// when any freezing record covers its target branch, unless an unlock
// override newer than every covering freeze exempts it.
func (r *Reconciler) desiredSignal(ctx context.Context, installationID int64, repository string, pr domain.PullRequest, freezing []*domain.FreezeRecord) (bool, *domain.FreezeRecord, error) {
	var (
		covering    *domain.FreezeRecord
		latestStart time.Time
	)
	for _, record := range freezing {
		if !record.Scope().Covers(pr.TargetBranch) {
			continue
		}
		if covering == nil || record.StartedAt.After(latestStart) {
			covering = record
			latestStart = record.StartedAt
		}
	}
	if covering == nil {
		return false, nil, nil
	}

	unlock, err := r.unlocks.FindUnlock(ctx, installationID, repository, pr.Number)
	if err != nil {
		return false, nil, err
	}
	// An unlock only survives the freeze generation it was issued under: it
	// must postdate the start of every freeze covering this PR.
	if unlock != nil && unlock.UnlockedAt.After(latestStart) {
		return false, nil, nil
	}

	return true, covering, nil
}

// ReconcileSinglePR refreshes one PR's signal, used when a PR is opened or
// updated while a freeze may be in effect.
func (r *Reconciler) ReconcileSinglePR(ctx context.Context, installationID int64, repo domain.Repository, pr domain.PullRequest) error {
	at := r.now()

	records, err := r.freezes.FindForRepository(ctx, installationID, repo.FullName(), domain.FreezeActive)
	if err != nil {
		return fmt.Errorf("failed to load freeze state for %s: %w", repo.FullName(), err)
	}

	freezing := make([]*domain.FreezeRecord, 0, len(records))
	for _, record := range records {
		if record.FreezingAt(at) {
			freezing = append(freezing, record)
		}
	}

	block, freeze, err := r.desiredSignal(ctx, installationID, repo.FullName(), pr, freezing)
	if err != nil {
		return err
	}
	return r.platform.PushMergeSignal(ctx, repo, pr, block, freeze)
}

// ReconcileAllActive runs a reconciliation pass over every repository that
// has at least one active freeze record. Repository passes run with bounded
// parallelism; a failing repository is reported, not fatal.
func (r *Reconciler) ReconcileAllActive(ctx context.Context) map[string]*ReconciliationReport {
	records, err := r.freezes.ListActive(ctx)
	if err != nil {
		r.logger.WithError(err).Error("Failed to list active freezes")
		return nil
	}

	type target struct {
		installationID int64
		repo           domain.Repository
	}
	targets := make(map[string]target)
	for _, record := range records {
		repo, err := domain.ParseRepository(record.Repository)
		if err != nil {
			r.logger.WithField("repository", record.Repository).Warn("Skipping freeze record with invalid repository")
			continue
		}
		targets[record.Repository] = target{installationID: record.InstallationID, repo: repo}
	}

	var (
		group   errgroup.Group
		results = make(map[string]*ReconciliationReport, len(targets))
		resultC = make(chan *ReconciliationReport, len(targets))
	)
	group.SetLimit(r.parallelism)

	for _, t := range targets {
		group.Go(func() error {
			report, err := r.ReconcileRepository(ctx, t.installationID, t.repo)
			if err != nil {
				r.logger.WithError(err).WithField("repository", t.repo.FullName()).Error("Repository reconciliation failed")
				report = &ReconciliationReport{
					Repository: t.repo.FullName(),
					Failures:   []PRFailure{{Error: err.Error()}},
				}
			}
			resultC <- report
			return nil
		})
	}

	_ = group.Wait()
	close(resultC)
	for report := range resultC {
		results[report.Repository] = report
	}
	return results
}
