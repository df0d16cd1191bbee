package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "hours", input: "4h", expected: 4 * time.Hour},
		{name: "days", input: "3d", expected: 72 * time.Hour},
		{name: "minutes", input: "30m", expected: 30 * time.Minute},
		{name: "single day", input: "1d", expected: 24 * time.Hour},
		{name: "uppercase accepted", input: "4H", expected: 4 * time.Hour},
		{name: "surrounding whitespace", input: " 4h ", expected: 4 * time.Hour},
		{name: "unknown unit", input: "4x", wantErr: true},
		{name: "missing unit", input: "4", wantErr: true},
		{name: "missing number", input: "h", wantErr: true},
		{name: "negative number", input: "-4h", wantErr: true},
		{name: "decimal number", input: "1.5h", wantErr: true},
		{name: "trailing garbage", input: "4h2", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "zero is not a valid grid step", input: "0h", wantErr: true},
		{name: "zero minutes", input: "0m", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseInterval(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInterval)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestParseInterval_Deterministic(t *testing.T) {
	a, err := ParseInterval("7h")
	require.NoError(t, err)
	b, err := ParseInterval("7h")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
