package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronRejectsWrongFieldCount(t *testing.T) {
	_, err := ParseCron("* * *", "")
	require.Error(t, err)
}

func TestParseCronRejectsUnknownTimezone(t *testing.T) {
	_, err := ParseCron("* * * * *", "Nowhere/Nope")
	require.Error(t, err)
}

func TestMatchesEveryMinute(t *testing.T) {
	spec, err := ParseCron("* * * * *", "")
	require.NoError(t, err)
	assert.True(t, spec.Matches(time.Date(2026, 7, 30, 3, 17, 0, 0, time.UTC)))
}

func TestMatchesInterval(t *testing.T) {
	spec, err := ParseCron("*/15 * * * *", "")
	require.NoError(t, err)
	assert.True(t, spec.Matches(time.Date(2026, 7, 30, 3, 30, 0, 0, time.UTC)))
	assert.False(t, spec.Matches(time.Date(2026, 7, 30, 3, 31, 0, 0, time.UTC)))
}

func TestMatchesDayOfWeek(t *testing.T) {
	// 2026-08-02 is a Sunday.
	spec, err := ParseCron("0 0 * * 0", "")
	require.NoError(t, err)
	assert.True(t, spec.Matches(time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)))
	assert.False(t, spec.Matches(time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)))
}

func TestMatchesAppliesTimezone(t *testing.T) {
	spec, err := ParseCron("0 9 * * *", "America/New_York")
	require.NoError(t, err)
	// 13:00 UTC is 09:00 in America/New_York during EDT (UTC-4) in July.
	assert.True(t, spec.Matches(time.Date(2026, 7, 30, 13, 0, 0, 0, time.UTC)))
}

func TestNilSpecNeverMatches(t *testing.T) {
	var spec *CronSpec
	assert.False(t, spec.Matches(time.Now()))
}
