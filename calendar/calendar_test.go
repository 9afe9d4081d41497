package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5xRuby/daikichi-sub000/calendar"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// 2016-08-17 is a Wednesday.
func aug(day, hour, min int) time.Time {
	return time.Date(2016, time.August, day, hour, min, 0, 0, time.UTC)
}

func defaultCal() *calendar.BusinessCalendar {
	return calendar.Default(time.UTC)
}

// =============================================================================
// WORKING DURATION
// =============================================================================

func TestWorkingDuration_SingleDay_SpansLunch(t *testing.T) {
	// GIVEN: the default schedule (09:30-12:30, 13:30-18:30)
	// WHEN: measuring Wednesday 09:30 to 17:30
	// THEN: 3h morning + 4h afternoon = 7h; lunch does not count

	cal := defaultCal()
	d := cal.WorkingDuration(aug(17, 9, 30), aug(17, 17, 30))
	assert.Equal(t, 7*time.Hour, d)
}

func TestWorkingDuration_MultiDay_SkipsWeekend(t *testing.T) {
	// GIVEN: a span from Wednesday morning to Sunday evening
	// WHEN: measuring working time
	// THEN: Wed 8h + Thu 8h + Fri 8h = 24h; Saturday and Sunday add nothing

	cal := defaultCal()
	d := cal.WorkingDuration(aug(17, 9, 30), aug(21, 18, 30))
	assert.Equal(t, 24*time.Hour, d)
}

func TestWorkingDuration_StartsBeforeOpening(t *testing.T) {
	cal := defaultCal()
	// 07:00 clips forward to 09:30; full day remains.
	d := cal.WorkingDuration(aug(17, 7, 0), aug(17, 18, 30))
	assert.Equal(t, 8*time.Hour, d)
}

func TestWorkingDuration_InsideLunchBreak(t *testing.T) {
	cal := defaultCal()
	d := cal.WorkingDuration(aug(17, 12, 45), aug(17, 13, 15))
	assert.Equal(t, time.Duration(0), d)
}

func TestWorkingDuration_ReversedRange_Zero(t *testing.T) {
	cal := defaultCal()
	d := cal.WorkingDuration(aug(18, 9, 30), aug(17, 9, 30))
	assert.Equal(t, time.Duration(0), d)
}

func TestWorkingDuration_HolidayExcluded(t *testing.T) {
	// GIVEN: Thursday 08-18 is a holiday
	// WHEN: measuring Wednesday through Friday
	// THEN: only Wednesday and Friday count

	cal := defaultCal().WithHolidays(aug(18, 0, 0))
	d := cal.WorkingDuration(aug(17, 9, 30), aug(19, 18, 30))
	assert.Equal(t, 16*time.Hour, d)
}

func TestWorkingDuration_SubHourRemainder(t *testing.T) {
	cal := defaultCal()
	d := cal.WorkingDuration(aug(17, 9, 30), aug(17, 10, 15))
	assert.Equal(t, 45*time.Minute, d)
}

// =============================================================================
// PERIODS WITHIN
// =============================================================================

func TestPeriodsWithin_EnumeratesSegmentsClipped(t *testing.T) {
	cal := defaultCal()

	periods := cal.PeriodsWithin(aug(17, 11, 0), aug(18, 11, 0))
	require.Len(t, periods, 3)

	// Wednesday remainder of the morning, clipped to the span start.
	assert.Equal(t, aug(17, 11, 0), periods[0].Start)
	assert.Equal(t, aug(17, 12, 30), periods[0].End)

	// Wednesday afternoon in full.
	assert.Equal(t, aug(17, 13, 30), periods[1].Start)
	assert.Equal(t, aug(17, 18, 30), periods[1].End)

	// Thursday morning, clipped to the span end.
	assert.Equal(t, aug(18, 9, 30), periods[2].Start)
	assert.Equal(t, aug(18, 11, 0), periods[2].End)
}

func TestPeriodsWithin_DateIsMidnight(t *testing.T) {
	cal := defaultCal()
	periods := cal.PeriodsWithin(aug(17, 9, 30), aug(17, 18, 30))
	require.Len(t, periods, 2)
	for _, p := range periods {
		assert.Equal(t, aug(17, 0, 0), p.Date)
	}
}

// =============================================================================
// BOUNDARY SNAPPING
// =============================================================================

func TestAdvanceToWorkingTime_Idempotent(t *testing.T) {
	// GIVEN: an instant already inside an open interval
	// WHEN: advancing it
	// THEN: it stays put, and advancing again changes nothing

	cal := defaultCal()
	in := aug(17, 10, 0)
	once := cal.AdvanceToWorkingTime(in)
	assert.Equal(t, in, once)
	assert.Equal(t, once, cal.AdvanceToWorkingTime(once))
}

func TestAdvanceToWorkingTime_SkipsClosedTime(t *testing.T) {
	cal := defaultCal()

	// Before opening: snaps to 09:30 the same day.
	assert.Equal(t, aug(17, 9, 30), cal.AdvanceToWorkingTime(aug(17, 7, 0)))

	// During lunch: snaps to the afternoon interval.
	assert.Equal(t, aug(17, 13, 30), cal.AdvanceToWorkingTime(aug(17, 13, 0)))

	// Friday after close: snaps to Monday morning.
	assert.Equal(t, aug(22, 9, 30), cal.AdvanceToWorkingTime(aug(19, 19, 0)))
}

func TestReturnToWorkingTime_SnapsBackward(t *testing.T) {
	cal := defaultCal()

	// Inside an interval: stays put.
	in := aug(17, 15, 0)
	assert.Equal(t, in, cal.ReturnToWorkingTime(in))

	// During lunch: snaps back to 12:30.
	assert.Equal(t, aug(17, 12, 30), cal.ReturnToWorkingTime(aug(17, 13, 0)))

	// Sunday: snaps back to Friday close.
	assert.Equal(t, aug(19, 18, 30), cal.ReturnToWorkingTime(aug(21, 12, 0)))
}

func TestSnapping_NoOpenInterval_ReturnsZero(t *testing.T) {
	// GIVEN: a calendar with no open intervals at all
	// WHEN: snapping in either direction
	// THEN: the zero time signals "never"

	cal, err := calendar.New(map[time.Weekday][]calendar.Interval{}, time.UTC)
	require.NoError(t, err)

	assert.True(t, cal.AdvanceToWorkingTime(aug(17, 10, 0)).IsZero())
	assert.True(t, cal.ReturnToWorkingTime(aug(17, 10, 0)).IsZero())
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNew_RejectsBadIntervals(t *testing.T) {
	_, err := calendar.New(map[time.Weekday][]calendar.Interval{
		time.Monday: {{Start: calendar.Clock(10, 0), End: calendar.Clock(9, 0)}},
	}, time.UTC)
	assert.Error(t, err, "reversed interval")

	_, err = calendar.New(map[time.Weekday][]calendar.Interval{
		time.Monday: {
			{Start: calendar.Clock(9, 0), End: calendar.Clock(12, 0)},
			{Start: calendar.Clock(11, 0), End: calendar.Clock(14, 0)},
		},
	}, time.UTC)
	assert.Error(t, err, "overlapping intervals")
}

func TestWithHolidays_DoesNotMutateReceiver(t *testing.T) {
	base := defaultCal()
	withHoliday := base.WithHolidays(aug(17, 0, 0))

	assert.True(t, withHoliday.IsHoliday(aug(17, 12, 0)))
	assert.False(t, base.IsHoliday(aug(17, 12, 0)))
}
