package leave_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5xRuby/daikichi-sub000/calendar"
	"github.com/5xRuby/daikichi-sub000/leave"
)

// =============================================================================
// DAILY BREAKDOWN
// =============================================================================

func TestBuildDailyBreakdown_PerDayShares(t *testing.T) {
	// GIVEN: Wednesday 09:30 through Friday 12:30
	// WHEN: decomposing into daily shares
	// THEN: 8 + 8 + 3, one row per working day

	cal := calendar.Default(time.UTC)
	key := uuid.New()

	rows := leave.BuildDailyBreakdown(cal, key,
		time.Date(2016, 8, 17, 9, 30, 0, 0, time.UTC),
		time.Date(2016, 8, 19, 12, 30, 0, 0, time.UTC))

	require.Len(t, rows, 3)
	assert.Equal(t, time.Date(2016, 8, 17, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, 8, rows[0].Hours)
	assert.Equal(t, 8, rows[1].Hours)
	assert.Equal(t, 3, rows[2].Hours)
	for _, r := range rows {
		assert.Equal(t, key, r.RequestKey)
	}
}

func TestBuildDailyBreakdown_WeekendOmitted(t *testing.T) {
	cal := calendar.Default(time.UTC)

	// Friday through Monday: Saturday and Sunday produce no rows.
	rows := leave.BuildDailyBreakdown(cal, uuid.New(),
		time.Date(2016, 8, 19, 9, 30, 0, 0, time.UTC),
		time.Date(2016, 8, 22, 18, 30, 0, 0, time.UTC))

	require.Len(t, rows, 2)
	assert.Equal(t, time.Date(2016, 8, 19, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, time.Date(2016, 8, 22, 0, 0, 0, 0, time.UTC), rows[1].Date)
}

func TestBuildDailyBreakdown_SubHourCarry(t *testing.T) {
	// GIVEN: a span cutting mid-hour through the day boundary
	//        (Wed 10:00 -> Thu 10:00 is 7.5h + 0.5h of working time)
	// WHEN: decomposing
	// THEN: the half hour carries forward so the shares sum to the
	//       whole-hour total

	cal := calendar.Default(time.UTC)
	rows := leave.BuildDailyBreakdown(cal, uuid.New(),
		time.Date(2016, 8, 17, 10, 0, 0, 0, time.UTC),
		time.Date(2016, 8, 18, 10, 0, 0, 0, time.UTC))

	require.Len(t, rows, 2)
	assert.Equal(t, 7, rows[0].Hours)
	assert.Equal(t, 1, rows[1].Hours)

	total := 0
	for _, r := range rows {
		total += r.Hours
	}
	derived, err := leave.DeriveHours(cal,
		time.Date(2016, 8, 17, 10, 0, 0, 0, time.UTC),
		time.Date(2016, 8, 18, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, derived, total, "shares must sum to the request total")
}

func TestBuildDailyBreakdown_NoWorkingTime_Empty(t *testing.T) {
	cal := calendar.Default(time.UTC)
	rows := leave.BuildDailyBreakdown(cal, uuid.New(),
		time.Date(2016, 8, 20, 9, 0, 0, 0, time.UTC),
		time.Date(2016, 8, 21, 18, 0, 0, 0, time.UTC))
	assert.Empty(t, rows)
}

func TestBuildDailyBreakdown_HolidayOmitted(t *testing.T) {
	cal := calendar.Default(time.UTC).
		WithHolidays(time.Date(2016, 8, 18, 0, 0, 0, 0, time.UTC))

	rows := leave.BuildDailyBreakdown(cal, uuid.New(),
		time.Date(2016, 8, 17, 9, 30, 0, 0, time.UTC),
		time.Date(2016, 8, 19, 18, 30, 0, 0, time.UTC))

	require.Len(t, rows, 2)
	assert.Equal(t, time.Date(2016, 8, 17, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, time.Date(2016, 8, 19, 0, 0, 0, 0, time.UTC), rows[1].Date)
}
