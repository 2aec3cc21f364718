package domain

import "time"

// Command is a parsed freeze intent extracted from a review comment.
// Parsing is pure: no command carries any side effect of its own.
type Command interface {
	// Name returns the command keyword as written by the user.
	Name() string
	// Mutating reports whether executing the command changes freeze state.
	Mutating() bool
}

// FreezeCommand freezes the current repository, or the repositories listed
// with --repo.
type FreezeCommand struct {
	Repos    []string
	Branch   *string
	Duration *time.Duration
	Reason   *string
}

func (FreezeCommand) Name() string   { return "freeze" }
func (FreezeCommand) Mutating() bool { return true }

// FreezeAllCommand freezes every repository of the installation, or the
// repositories listed with --repo.
type FreezeAllCommand struct {
	Repos    []string
	Branch   *string
	Duration *time.Duration
	Reason   *string
}

func (FreezeAllCommand) Name() string   { return "freeze-all" }
func (FreezeAllCommand) Mutating() bool { return true }

// UnfreezeCommand lifts the active freeze on the current repository. With no
// --branch it targets only the repo-wide scope, never branch-specific ones.
type UnfreezeCommand struct {
	Branch *string
	Reason *string
}

func (UnfreezeCommand) Name() string   { return "unfreeze" }
func (UnfreezeCommand) Mutating() bool { return true }

// UnfreezeAllCommand lifts active freezes across the installation.
type UnfreezeAllCommand struct {
	Reason *string
}

func (UnfreezeAllCommand) Name() string   { return "unfreeze-all" }
func (UnfreezeAllCommand) Mutating() bool { return true }

// StatusCommand reports freeze status for the current or listed repositories.
type StatusCommand struct {
	Repos []string
}

func (StatusCommand) Name() string   { return "status" }
func (StatusCommand) Mutating() bool { return false }

// ScheduleFreezeCommand creates a freeze that becomes enforceable at a
// future instant. To takes precedence over Duration when both are present.
type ScheduleFreezeCommand struct {
	From     time.Time
	To       *time.Time
	Duration *time.Duration
	Repos    []string
	Branch   *string
	Reason   *string
}

func (ScheduleFreezeCommand) Name() string   { return "schedule-freeze" }
func (ScheduleFreezeCommand) Mutating() bool { return true }

// UnlockPrCommand exempts one pull request from the current freeze. When
// PRNumber is nil the interpreter fills it from the ambient PR context.
type UnlockPrCommand struct {
	PRNumber *int
	Reason   *string
}

func (UnlockPrCommand) Name() string   { return "unlock-pr" }
func (UnlockPrCommand) Mutating() bool { return true }

// HelpCommand lists the available commands.
type HelpCommand struct{}

func (HelpCommand) Name() string   { return "help" }
func (HelpCommand) Mutating() bool { return false }
