package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRuns_AnchoredAtMidnight(t *testing.T) {
	// 2024-03-15 10:30 UTC, every 4h -> grid is 04:00, 08:00, 12:00, ...
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	runs, err := NextRuns(4*time.Hour, 5, now)
	require.NoError(t, err)

	expected := []time.Time{
		time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 16, 4, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, expected, runs)
}

func TestNextRuns_StrictlyAfterNow(t *testing.T) {
	// Exactly on a grid point: that point is not included
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	runs, err := NextRuns(4*time.Hour, 3, now)
	require.NoError(t, err)

	require.Len(t, runs, 3)
	assert.Equal(t, time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC), runs[0])
	for _, run := range runs {
		assert.True(t, run.After(now))
	}
}

func TestNextRuns_StrictlyIncreasing(t *testing.T) {
	now := time.Date(2024, 7, 1, 23, 59, 59, 0, time.UTC)

	runs, err := NextRuns(30*time.Minute, 10, now)
	require.NoError(t, err)

	require.Len(t, runs, 10)
	for i := 1; i < len(runs); i++ {
		assert.True(t, runs[i].After(runs[i-1]), "runs must be strictly increasing")
	}
}

func TestNextRuns_SuffixConsistent(t *testing.T) {
	// Re-running slightly later must not shift the grid, only drop passed points
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	first, err := NextRuns(4*time.Hour, 5, now)
	require.NoError(t, err)
	second, err := NextRuns(4*time.Hour, 5, now.Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, first, second, "one second later is still before the next grid point")

	// Jump past the first run: the remaining points are a suffix of the original grid
	third, err := NextRuns(4*time.Hour, 4, first[0].Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first[1:], third)
}

func TestNextRuns_DailyInterval(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	runs, err := NextRuns(24*time.Hour, 2, now)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC),
	}, runs)
}

func TestNextRuns_InvalidStep(t *testing.T) {
	now := time.Now().UTC()

	_, err := NextRuns(0, 5, now)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NextRuns(-time.Hour, 5, now)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestNextRuns_NonPositiveCount(t *testing.T) {
	runs, err := NextRuns(time.Hour, 0, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, runs)
}
