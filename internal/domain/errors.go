package domain

import "errors"

// Domain errors
var (
	// Parse errors (user-correctable, reported verbatim)
	ErrNotACommand         = errors.New("a command must start with '/'")
	ErrUnrecognizedCommand = errors.New("unrecognized command")
	ErrMalformedCommand    = errors.New("malformed command")
	ErrInvalidDuration     = errors.New("invalid duration")
	ErrInvalidTimestamp    = errors.New("invalid timestamp")
	ErrMissingPrContext    = errors.New("unlock-pr requires a PR number or a PR comment context")
	ErrInvalidRepository   = errors.New("invalid repository, expected owner/repo")

	// State conflicts (informational, not system failures)
	ErrFreezeAlreadyActive = errors.New("a freeze is already active for this scope")
	ErrNoActiveFreeze      = errors.New("no active freeze for this scope")

	// Configuration errors
	ErrUnknownRole = errors.New("unknown role")
)

// IsParseError reports whether err belongs to the command-parse taxonomy.
// Parse errors never reach the state machine.
func IsParseError(err error) bool {
	return errors.Is(err, ErrNotACommand) ||
		errors.Is(err, ErrUnrecognizedCommand) ||
		errors.Is(err, ErrMalformedCommand) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidTimestamp) ||
		errors.Is(err, ErrMissingPrContext) ||
		errors.Is(err, ErrInvalidRepository)
}

// IsStateConflict reports whether err is an informational state conflict
// rather than a system failure.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrFreezeAlreadyActive) || errors.Is(err, ErrNoActiveFreeze)
}
