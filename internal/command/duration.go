package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"repo-freeze-service/internal/domain"
)

var simpleDurationRe = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseDuration parses a freeze duration in either supported grammar:
// simple suffix notation ("45s", "30m", "2h", "1d") or ISO 8601 durations
// ("P1D", "PT2H30M", "P1DT2H30M"). Zero or unparsable spans are rejected.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.Trim(s, `"`)

	d, err := parseDurationSpan(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %q must be a positive span", domain.ErrInvalidDuration, s)
	}
	return d, nil
}

func parseDurationSpan(s string) (time.Duration, error) {
	if m := simpleDurationRe.FindStringSubmatch(s); m != nil {
		value, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", domain.ErrInvalidDuration, s)
		}
		switch m[2] {
		case "s":
			return time.Duration(value) * time.Second, nil
		case "m":
			return time.Duration(value) * time.Minute, nil
		case "h":
			return time.Duration(value) * time.Hour, nil
		case "d":
			return time.Duration(value) * 24 * time.Hour, nil
		}
	}
	return parseISO8601Duration(s)
}

// parseISO8601Duration handles the P[n]DT[n]H[n]M[n]S subset of ISO 8601.
// Years and months are not supported: calendar-relative spans have no fixed
// second count.
func parseISO8601Duration(s string) (time.Duration, error) {
	if !strings.HasPrefix(s, "P") || len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidDuration, s)
	}

	var (
		total   time.Duration
		number  strings.Builder
		inTime  bool
		sawUnit bool
	)

	take := func() (int64, error) {
		if number.Len() == 0 {
			return 0, fmt.Errorf("%w: %q", domain.ErrInvalidDuration, s)
		}
		v, err := strconv.ParseInt(number.String(), 10, 64)
		number.Reset()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", domain.ErrInvalidDuration, s)
		}
		return v, nil
	}

	for _, c := range s[1:] {
		switch {
		case c == 'T':
			inTime = true
		case c >= '0' && c <= '9':
			number.WriteRune(c)
		case c == 'D' && !inTime:
			v, err := take()
			if err != nil {
				return 0, err
			}
			total += time.Duration(v) * 24 * time.Hour
			sawUnit = true
		case c == 'H' && inTime:
			v, err := take()
			if err != nil {
				return 0, err
			}
			total += time.Duration(v) * time.Hour
			sawUnit = true
		case c == 'M' && inTime:
			v, err := take()
			if err != nil {
				return 0, err
			}
			total += time.Duration(v) * time.Minute
			sawUnit = true
		case c == 'S' && inTime:
			v, err := take()
			if err != nil {
				return 0, err
			}
			total += time.Duration(v) * time.Second
			sawUnit = true
		default:
			return 0, fmt.Errorf("%w: %q", domain.ErrInvalidDuration, s)
		}
	}

	if !sawUnit || number.Len() != 0 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidDuration, s)
	}
	return total, nil
}

// ParseTimestamp parses an RFC 3339 instant for scheduled freezes.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.Trim(s, `"`))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidTimestamp, s)
	}
	return t.UTC(), nil
}
