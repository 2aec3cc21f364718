// Package command parses freeze commands embedded in review comments.
//
// A command is a comment body starting with '/', followed by one of the
// fixed keywords (freeze, freeze-all, unfreeze, unfreeze-all, status,
// schedule-freeze, unlock-pr, help) and flag-style parameters. Repository
// lists accept comma-separated values and repeated flags interchangeably.
// Parsing is pure: identical input always yields identical output and no
// side effects.
package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/pflag"

	"repo-freeze-service/internal/domain"
)

// Context carries ambient information the interpreter may need, such as the
// PR the comment was posted on.
type Context struct {
	// CurrentPR is the number of the PR the comment belongs to, when the
	// comment was made on a pull request rather than an issue.
	CurrentPR *int
}

// Parse converts a raw comment body into a validated Command.
func Parse(raw string, pctx Context) (domain.Command, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return nil, domain.ErrNotACommand
	}

	words, err := shlex.Split(strings.TrimPrefix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCommand, err)
	}
	if len(words) == 0 {
		return nil, domain.ErrNotACommand
	}

	keyword, args := words[0], words[1:]
	switch keyword {
	case "freeze":
		return parseFreeze(args, false)
	case "freeze-all":
		return parseFreeze(args, true)
	case "unfreeze":
		return parseUnfreeze(args)
	case "unfreeze-all":
		return parseUnfreezeAll(args)
	case "status":
		return parseStatus(args)
	case "schedule-freeze":
		return parseScheduleFreeze(args)
	case "unlock-pr":
		return parseUnlockPr(args, pctx)
	case "help":
		return domain.HelpCommand{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnrecognizedCommand, keyword)
	}
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() {}
	fs.SetOutput(discard{})
	return fs
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func parseFreeze(args []string, all bool) (domain.Command, error) {
	fs := newFlagSet("freeze")
	repos := fs.StringSlice("repo", nil, "")
	branch := fs.String("branch", "", "")
	durationStr := fs.String("duration", "", "")
	reason := fs.String("reason", "", "")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCommand, err)
	}

	var duration *time.Duration
	if fs.Changed("duration") {
		d, err := ParseDuration(*durationStr)
		if err != nil {
			return nil, err
		}
		duration = &d
	}

	if all {
		return domain.FreezeAllCommand{
			Repos:    *repos,
			Branch:   optional(fs, "branch", branch),
			Duration: duration,
			Reason:   optional(fs, "reason", reason),
		}, nil
	}
	return domain.FreezeCommand{
		Repos:    *repos,
		Branch:   optional(fs, "branch", branch),
		Duration: duration,
		Reason:   optional(fs, "reason", reason),
	}, nil
}

func parseUnfreeze(args []string) (domain.Command, error) {
	fs := newFlagSet("unfreeze")
	branch := fs.String("branch", "", "")
	reason := fs.String("reason", "", "")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCommand, err)
	}
	return domain.UnfreezeCommand{
		Branch: optional(fs, "branch", branch),
		Reason: optional(fs, "reason", reason),
	}, nil
}

func parseUnfreezeAll(args []string) (domain.Command, error) {
	fs := newFlagSet("unfreeze-all")
	reason := fs.String("reason", "", "")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCommand, err)
	}
	return domain.UnfreezeAllCommand{Reason: optional(fs, "reason", reason)}, nil
}

func parseStatus(args []string) (domain.Command, error) {
	fs := newFlagSet("status")
	repos := fs.StringSlice("repos", nil, "")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCommand, err)
	}
	return domain.StatusCommand{Repos: *repos}, nil
}

func parseScheduleFreeze(args []string) (domain.Command, error) {
	fs := newFlagSet("schedule-freeze")
	from := fs.String("from", "", "")
	to := fs.String("to", "", "")
	durationStr := fs.String("duration", "", "")
	repos := fs.StringSlice("repo", nil, "")
	branch := fs.String("branch", "", "")
	reason := fs.String("reason", "", "")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCommand, err)
	}
	if !fs.Changed("from") {
		return nil, fmt.Errorf("%w: schedule-freeze requires --from", domain.ErrInvalidTimestamp)
	}

	fromTime, err := ParseTimestamp(*from)
	if err != nil {
		return nil, err
	}

	cmd := domain.ScheduleFreezeCommand{
		From:   fromTime,
		Repos:  *repos,
		Branch: optional(fs, "branch", branch),
		Reason: optional(fs, "reason", reason),
	}
	if fs.Changed("to") {
		toTime, err := ParseTimestamp(*to)
		if err != nil {
			return nil, err
		}
		cmd.To = &toTime
	}
	if fs.Changed("duration") {
		d, err := ParseDuration(*durationStr)
		if err != nil {
			return nil, err
		}
		cmd.Duration = &d
	}
	return cmd, nil
}

func parseUnlockPr(args []string, pctx Context) (domain.Command, error) {
	fs := newFlagSet("unlock-pr")
	prNumber := fs.Int("pr-number", 0, "")
	reason := fs.String("reason", "", "")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCommand, err)
	}

	cmd := domain.UnlockPrCommand{Reason: optional(fs, "reason", reason)}
	switch {
	case fs.Changed("pr-number"):
		cmd.PRNumber = prNumber
	case pctx.CurrentPR != nil:
		cmd.PRNumber = pctx.CurrentPR
	default:
		return nil, domain.ErrMissingPrContext
	}
	return cmd, nil
}

// optional returns the flag value as a pointer only when the user set it.
func optional(fs *pflag.FlagSet, name string, value *string) *string {
	if !fs.Changed(name) {
		return nil
	}
	return value
}
