package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"repo-freeze-service/internal/command"
	"repo-freeze-service/internal/domain"
	"repo-freeze-service/internal/metrics"
	"repo-freeze-service/internal/permission"
)

// Outcome classifies the result of one command execution.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeError        Outcome = "error"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeInfo         Outcome = "info"
)

// Result is the user-visible outcome of one command: a classification plus a
// Markdown message to post back to the originating conversation.
type Result struct {
	Outcome Outcome
	Message string
}

// CommandRequest carries one comment through the interpreter pipeline.
type CommandRequest struct {
	InstallationID int64
	Repository     domain.Repository
	Actor          string
	Body           string
	// CurrentPR is the PR the comment was posted on, when there is one.
	CurrentPR *int
}

// Executor runs the full command pipeline: parse, resolve permissions,
// authorize, dispatch to the freeze manager, render the result message.
type Executor struct {
	manager  *FreezeManager
	resolver *permission.Resolver
	platform domain.PlatformClient
	logger   *logrus.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(manager *FreezeManager, resolver *permission.Resolver, platform domain.PlatformClient, logger *logrus.Logger) *Executor {
	return &Executor{manager: manager, resolver: resolver, platform: platform, logger: logger}
}

// Execute interprets one comment. Comments that are not commands return
// (nil, nil) and must be ignored by the caller; everything else yields a
// Result to post back, including parse errors and permission denials.
func (e *Executor) Execute(ctx context.Context, req CommandRequest) (*Result, error) {
	cmd, err := command.Parse(req.Body, command.Context{CurrentPR: req.CurrentPR})
	if err != nil {
		if errors.Is(err, domain.ErrNotACommand) {
			return nil, nil
		}
		metrics.CommandsTotal.WithLabelValues("parse", string(OutcomeError)).Inc()
		return &Result{Outcome: OutcomeError, Message: commandErrorMessage("Invalid Command", err.Error())}, nil
	}

	logEntry := e.logger.WithFields(logrus.Fields{
		"command":    cmd.Name(),
		"repository": req.Repository.FullName(),
		"actor":      req.Actor,
	})
	logEntry.Info("Executing command")

	perm := e.resolver.Resolve(req.InstallationID, req.Repository.FullName(), req.Actor)
	if denied := permission.Authorize(req.Actor, perm, cmd); denied != nil {
		logEntry.WithField("role", denied.Role).Warn("Command denied")
		metrics.CommandsTotal.WithLabelValues(cmd.Name(), string(OutcomeUnauthorized)).Inc()
		return &Result{Outcome: OutcomeUnauthorized, Message: permissionDeniedMessage(req.Actor, denied.Error())}, nil
	}

	result := e.dispatch(ctx, req, cmd)
	metrics.CommandsTotal.WithLabelValues(cmd.Name(), string(result.Outcome)).Inc()
	if result.Outcome == OutcomeError {
		logEntry.Warn("Command failed")
	}
	return result, nil
}

func (e *Executor) dispatch(ctx context.Context, req CommandRequest, cmd domain.Command) *Result {
	switch c := cmd.(type) {
	case domain.FreezeCommand:
		return e.freeze(ctx, req, c)
	case domain.FreezeAllCommand:
		return e.freezeAll(ctx, req, c)
	case domain.UnfreezeCommand:
		return e.unfreeze(ctx, req, c)
	case domain.UnfreezeAllCommand:
		return e.unfreezeAll(ctx, req)
	case domain.StatusCommand:
		return e.status(ctx, req, c)
	case domain.ScheduleFreezeCommand:
		return e.scheduleFreeze(ctx, req, c)
	case domain.UnlockPrCommand:
		return e.unlockPr(ctx, req, c)
	case domain.HelpCommand:
		return &Result{Outcome: OutcomeInfo, Message: helpMessage()}
	default:
		return &Result{Outcome: OutcomeError, Message: commandErrorMessage("Unknown Command", cmd.Name())}
	}
}

func (e *Executor) freeze(ctx context.Context, req CommandRequest, cmd domain.FreezeCommand) *Result {
	base := FreezeRequest{
		InstallationID: req.InstallationID,
		Branch:         cmd.Branch,
		Duration:       cmd.Duration,
		Reason:         cmd.Reason,
		InitiatedBy:    req.Actor,
	}

	repos := cmd.Repos
	if len(repos) == 0 {
		repos = []string{req.Repository.FullName()}
	}

	if len(repos) == 1 {
		repo, err := domain.ParseRepository(repos[0])
		if err != nil {
			return &Result{Outcome: OutcomeError, Message: commandErrorMessage("Freeze Failed", err.Error())}
		}
		base.Repository = repo
		record, err := e.manager.Freeze(ctx, base)
		if err != nil {
			return &Result{Outcome: OutcomeError, Message: commandErrorMessage("Freeze Failed", err.Error())}
		}
		return &Result{
			Outcome: OutcomeSuccess,
			Message: freezeSuccessMessage(record.Scope(), formatDurationDisplay(cmd.Duration), formatReasonDisplay(cmd.Reason)),
		}
	}

	return e.renderMultiRepo("Freeze", e.manager.FreezeMany(ctx, repos, base), freezeAllSuccessMessage)
}

func (e *Executor) freezeAll(ctx context.Context, req CommandRequest, cmd domain.FreezeAllCommand) *Result {
	repos := cmd.Repos
	if len(repos) == 0 {
		installRepos, err := e.platform.ListInstallationRepositories(ctx, req.InstallationID)
		if err != nil {
			return &Result{Outcome: OutcomeError, Message: commandErrorMessage("Freeze All Failed", err.Error())}
		}
		for _, repo := range installRepos {
			repos = append(repos, repo.FullName())
		}
	}
	if len(repos) == 0 {
		return &Result{Outcome: OutcomeError, Message: commandErrorMessage("Freeze All Failed", "no repositories found for this installation")}
	}

	base := FreezeRequest{
		InstallationID: req.InstallationID,
		Branch:         cmd.Branch,
		Duration:       cmd.Duration,
		Reason:         cmd.Reason,
		InitiatedBy:    req.Actor,
	}
	return e.renderMultiRepo("Freeze", e.manager.FreezeMany(ctx, repos, base), freezeAllSuccessMessage)
}

func (e *Executor) unfreeze(ctx context.Context, req CommandRequest, cmd domain.UnfreezeCommand) *Result {
	_, err := e.manager.Unfreeze(ctx, UnfreezeRequest{
		InstallationID: req.InstallationID,
		Repository:     req.Repository,
		Branch:         cmd.Branch,
		EndedBy:        req.Actor,
	})
	if err != nil {
		return &Result{Outcome: OutcomeError, Message: commandErrorMessage("Unfreeze Failed", err.Error())}
	}

	scope := domain.Scope{Repository: req.Repository.FullName()}
	if cmd.Branch != nil {
		scope.Branch = *cmd.Branch
	}
	return &Result{Outcome: OutcomeSuccess, Message: unfreezeSuccessMessage(scope)}
}

func (e *Executor) unfreezeAll(ctx context.Context, req CommandRequest) *Result {
	report, err := e.manager.UnfreezeAll(ctx, req.InstallationID, req.Actor)
	if err != nil {
		return &Result{Outcome: OutcomeError, Message: commandErrorMessage("Unfreeze All Failed", err.Error())}
	}
	return e.renderMultiRepo("Unfreeze", report, unfreezeAllSuccessMessage)
}

func (e *Executor) status(ctx context.Context, req CommandRequest, cmd domain.StatusCommand) *Result {
	repos := cmd.Repos
	if len(repos) == 0 {
		repos = []string{req.Repository.FullName()}
	}

	entries, err := e.manager.Status(ctx, req.InstallationID, repos)
	if err != nil {
		return &Result{Outcome: OutcomeError, Message: commandErrorMessage("Status Failed", err.Error())}
	}
	return &Result{Outcome: OutcomeInfo, Message: statusTableMessage(entries)}
}

func (e *Executor) scheduleFreeze(ctx context.Context, req CommandRequest, cmd domain.ScheduleFreezeCommand) *Result {
	base := ScheduleRequest{
		FreezeRequest: FreezeRequest{
			InstallationID: req.InstallationID,
			Branch:         cmd.Branch,
			Duration:       cmd.Duration,
			Reason:         cmd.Reason,
			InitiatedBy:    req.Actor,
		},
		From: cmd.From,
		To:   cmd.To,
	}

	repos := cmd.Repos
	if len(repos) == 0 {
		repos = []string{req.Repository.FullName()}
	}

	var (
		lastRecord *domain.FreezeRecord
		report     MultiRepoReport
	)
	for _, fullName := range repos {
		scheduled := base
		repo, err := domain.ParseRepository(fullName)
		if err == nil {
			scheduled.Repository = repo
			lastRecord, err = e.manager.Schedule(ctx, scheduled)
		}
		if err != nil {
			report.Failed = append(report.Failed, RepoFailure{Repository: fullName, Error: err.Error()})
			continue
		}
		report.Succeeded = append(report.Succeeded, fullName)
	}

	if len(report.Failed) > 0 {
		return e.renderMultiRepo("Schedule", &report, func(count int) string {
			return scheduleManyMessage(count)
		})
	}
	if len(repos) > 1 {
		return &Result{Outcome: OutcomeSuccess, Message: scheduleManyMessage(len(report.Succeeded))}
	}
	return &Result{
		Outcome: OutcomeSuccess,
		Message: scheduleSuccessMessage(lastRecord.Scope(), lastRecord.StartedAt, formatUntilDisplay(lastRecord.ExpiresAt), formatReasonDisplay(cmd.Reason)),
	}
}

func (e *Executor) unlockPr(ctx context.Context, req CommandRequest, cmd domain.UnlockPrCommand) *Result {
	if cmd.PRNumber == nil {
		return &Result{Outcome: OutcomeError, Message: commandErrorMessage("Unlock Failed", domain.ErrMissingPrContext.Error())}
	}

	unlock, err := e.manager.UnlockPr(ctx, UnlockRequest{
		InstallationID: req.InstallationID,
		Repository:     req.Repository,
		PRNumber:       *cmd.PRNumber,
		UnlockedBy:     req.Actor,
	})
	if err != nil {
		return &Result{Outcome: OutcomeError, Message: commandErrorMessage("Unlock Failed", err.Error())}
	}
	return &Result{Outcome: OutcomeSuccess, Message: unlockSuccessMessage(unlock.Repository, unlock.PRNumber)}
}

// renderMultiRepo renders a fan-out report: full success uses the supplied
// message builder, anything else the partial-success layout.
func (e *Executor) renderMultiRepo(operation string, report *MultiRepoReport, success func(count int) string) *Result {
	if len(report.Failed) == 0 {
		return &Result{Outcome: OutcomeSuccess, Message: success(len(report.Succeeded))}
	}

	errs := make([]string, 0, len(report.Failed))
	for _, failure := range report.Failed {
		errs = append(errs, fmt.Sprintf("`%s`: %s", failure.Repository, failure.Error))
	}
	return &Result{
		Outcome: OutcomeError,
		Message: partialSuccessMessage(operation, len(report.Succeeded), len(report.Failed), errs),
	}
}

func scheduleManyMessage(count int) string {
	return fmt.Sprintf(
		"## ⏰ Freezes Scheduled\n\n"+
			"🗓 **Scheduled freezes for %d repositories**\n\n"+
			"*Each freeze will be applied automatically when its start time passes.*",
		count,
	)
}

func formatUntilDisplay(expiresAt *time.Time) string {
	if expiresAt == nil {
		return ""
	}
	return fmt.Sprintf(" until **%s**", expiresAt.Format("2006-01-02 15:04:05 UTC"))
}
