package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDaysAgo(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	testCases := []struct {
		now      time.Time
		n        int
		expected string
	}{
		{now: time.Date(2024, 3, 10, 23, 59, 0, 0, ny), n: 7, expected: "03/03/2024"},
		{now: time.Date(2024, 3, 1, 0, 1, 0, 0, ny), n: 7, expected: "02/23/2024"},
		{now: time.Date(2025, 1, 3, 12, 0, 0, 0, ny), n: 7, expected: "12/27/2024"},
		{now: time.Date(2025, 1, 3, 12, 0, 0, 0, ny), n: 0, expected: "01/03/2025"},
	}

	for _, test := range testCases {
		day := DaysAgo(FixedImpl{At: test.now}, test.n)
		require.Equal(t, test.expected, FormatDay(day))
	}
}

func TestParseDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	api := FixedImpl{At: time.Date(2024, 1, 1, 0, 0, 0, 0, ny)}

	day, err := ParseDay(api, "07/04/2024")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 7, 4, 0, 0, 0, 0, ny), day)

	_, err = ParseDay(api, "2024-07-04")
	require.Error(t, err)
}
