package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCron(t *testing.T) {
	c, err := parseCron("0 0 * * *")
	require.NoError(t, err)
	assert.True(t, c.matchesTime(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, c.matchesTime(time.Date(2026, 3, 15, 0, 1, 0, 0, time.UTC)))
	assert.False(t, c.matchesTime(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)))
}

func TestParseCronListField(t *testing.T) {
	c, err := parseCron("0 6,18 * * *")
	require.NoError(t, err)
	assert.True(t, c.matchesTime(time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC)))
	assert.True(t, c.matchesTime(time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)))
	assert.False(t, c.matchesTime(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)))
}

func TestParseCronRejectsMalformed(t *testing.T) {
	_, err := parseCron("0 0 * *")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 fields")

	_, err = parseCron("0 x * * *")
	require.Error(t, err)
}

func TestNextCronTimeDailyMidnight(t *testing.T) {
	after := time.Date(2026, 3, 15, 14, 30, 12, 0, time.UTC)
	next, err := nextCronTime("0 0 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), next)
}

func TestNextCronTimeSkipsCurrentMinute(t *testing.T) {
	// Exactly on a matching minute: the next run is a full period later.
	after := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	next, err := nextCronTime("0 0 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), next)
}

func TestNextCronTimeWeekday(t *testing.T) {
	// 2026-03-15 is a Sunday; next Monday 09:00 is the 16th.
	after := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	next, err := nextCronTime("0 9 * * 1", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), next)
}
