// Package schedule computes the deterministic purchase grid for a plan.
//
// The grid is anchored at the most recent UTC midnight, so the same interval
// string always produces the same absolute timestamps regardless of when a
// plan was created or when the computation is re-run. The executor
// reconstructs due times from the interval string alone, with no session
// state, so any change here must keep both sides in agreement.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInterval is returned for interval strings that don't match the
// accepted format, and for intervals that would produce a zero-length grid
// step.
var ErrInvalidInterval = errors.New("invalid interval format")

var intervalPattern = regexp.MustCompile(`^(\d+)([dhm])$`)

// ParseInterval converts an interval string like "1d", "4h" or "30m" into a
// duration.
//
// Supported suffixes:
//   - m: minutes
//   - h: hours
//   - d: days
func ParseInterval(text string) (time.Duration, error) {
	match := intervalPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if match == nil {
		return 0, fmt.Errorf("%w: %q (expected forms like 1d, 4h, 30m)", ErrInvalidInterval, text)
	}

	num, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, text)
	}

	var d time.Duration
	switch match[2] {
	case "d":
		d = time.Duration(num) * 24 * time.Hour
	case "h":
		d = time.Duration(num) * time.Hour
	case "m":
		d = time.Duration(num) * time.Minute
	}

	// "0h" matches the pattern but a zero grid step is never valid
	if d <= 0 {
		return 0, fmt.Errorf("%w: %q (interval must be positive)", ErrInvalidInterval, text)
	}

	return d, nil
}
