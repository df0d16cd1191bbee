package schedule

import (
	"fmt"
	"time"
)

// NextRuns enumerates the next count grid timestamps strictly after now.
//
// The grid is midnight + k*interval for integer k >= 1, with midnight being
// the most recent UTC midnight relative to now. Results are strictly
// increasing. Re-invoking with a later now yields the same absolute grid
// points minus the ones that have passed.
func NextRuns(interval time.Duration, count int, now time.Time) ([]time.Time, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: grid step must be positive", ErrInvalidInterval)
	}
	if count <= 0 {
		return nil, nil
	}

	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	runs := make([]time.Time, 0, count)
	for k := 1; len(runs) < count; k++ {
		run := midnight.Add(time.Duration(k) * interval)
		if run.After(now) {
			runs = append(runs, run)
		}
	}
	return runs, nil
}
