/*
Package calendar computes elapsed working time between timestamps.

PURPOSE:
  Every hour figure in the accounting engine flows through this package.
  A BusinessCalendar holds a weekly schedule of open intervals, a holiday
  set, and a timezone, and answers three questions:

  1. How much working time elapses between two instants?
     (WorkingDuration - used to derive request hours)
  2. Which (day, interval) segments does a span touch?
     (PeriodsWithin - used to build per-day breakdowns)
  3. Where is the nearest open-interval boundary?
     (AdvanceToWorkingTime / ReturnToWorkingTime - for callers that
     need a span snapped onto the schedule)

DESIGN:
  The calendar is a pure function of its configuration. It has no side
  effects and no store access. It never rounds: callers that need whole
  hours validate the remainder themselves and reject fractional spans
  as user error rather than silently truncating.

INVARIANT:
  Intervals within one weekday are non-overlapping and chronologically
  ordered. Constructors keep this by sorting; mutating Week directly is
  the caller's risk.

EXAMPLE:
  cal := calendar.Default(time.UTC) // Mon-Fri 09:30-12:30, 13:30-18:30
  d := cal.WorkingDuration(start, end)
  hours := int(d / time.Hour) // validate d % time.Hour == 0 upstream
*/
package calendar

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// CLOCK TIME - Minutes since midnight, the unit of schedule configuration
// =============================================================================

// ClockTime is a time of day expressed as minutes since midnight.
type ClockTime int

// Clock builds a ClockTime from hour and minute.
func Clock(hour, minute int) ClockTime { return ClockTime(hour*60 + minute) }

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Interval is one open span within a working day, e.g. 09:30-12:30.
// End is exclusive.
type Interval struct {
	Start ClockTime
	End   ClockTime
}

func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.End-iv.Start) * time.Minute
}

// =============================================================================
// BUSINESS CALENDAR
// =============================================================================

// BusinessCalendar is the weekly schedule plus holidays and timezone.
// It is immutable after construction and safe for concurrent use.
type BusinessCalendar struct {
	week     map[time.Weekday][]Interval
	holidays map[string]struct{} // keyed by "2006-01-02" in loc
	loc      *time.Location
}

// New builds a calendar from a weekly schedule. Intervals are sorted per
// weekday; overlapping intervals within one day are a configuration error.
func New(week map[time.Weekday][]Interval, loc *time.Location) (*BusinessCalendar, error) {
	if loc == nil {
		loc = time.UTC
	}
	sorted := make(map[time.Weekday][]Interval, len(week))
	for day, ivs := range week {
		cp := append([]Interval(nil), ivs...)
		sort.Slice(cp, func(i, j int) bool { return cp[i].Start < cp[j].Start })
		for i, iv := range cp {
			if iv.End <= iv.Start {
				return nil, fmt.Errorf("calendar: empty interval %s-%s on %s", iv.Start, iv.End, day)
			}
			if i > 0 && iv.Start < cp[i-1].End {
				return nil, fmt.Errorf("calendar: overlapping intervals on %s", day)
			}
		}
		sorted[day] = cp
	}
	return &BusinessCalendar{
		week:     sorted,
		holidays: make(map[string]struct{}),
		loc:      loc,
	}, nil
}

// Default returns the standard workweek: Monday through Friday,
// 09:30-12:30 and 13:30-18:30 (an eight-hour day), no holidays.
func Default(loc *time.Location) *BusinessCalendar {
	week := map[time.Weekday][]Interval{}
	day := []Interval{
		{Start: Clock(9, 30), End: Clock(12, 30)},
		{Start: Clock(13, 30), End: Clock(18, 30)},
	}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		week[wd] = day
	}
	cal, err := New(week, loc)
	if err != nil {
		// Default schedule is statically valid.
		panic(err)
	}
	return cal
}

// Location returns the calendar's timezone.
func (c *BusinessCalendar) Location() *time.Location { return c.loc }

// WithHolidays returns a copy of the calendar with the given dates added
// to the holiday set. Dates are interpreted in the calendar's timezone.
func (c *BusinessCalendar) WithHolidays(dates ...time.Time) *BusinessCalendar {
	cp := &BusinessCalendar{
		week:     c.week,
		holidays: make(map[string]struct{}, len(c.holidays)+len(dates)),
		loc:      c.loc,
	}
	for k := range c.holidays {
		cp.holidays[k] = struct{}{}
	}
	for _, d := range dates {
		cp.holidays[d.In(c.loc).Format("2006-01-02")] = struct{}{}
	}
	return cp
}

// IsHoliday reports whether the date falls on a configured holiday.
func (c *BusinessCalendar) IsHoliday(t time.Time) bool {
	_, ok := c.holidays[t.In(c.loc).Format("2006-01-02")]
	return ok
}

// intervalsOn returns the open intervals for a date, or nil on holidays
// and closed weekdays.
func (c *BusinessCalendar) intervalsOn(t time.Time) []Interval {
	if c.IsHoliday(t) {
		return nil
	}
	return c.week[t.In(c.loc).Weekday()]
}

// =============================================================================
// WORKING DURATION
// =============================================================================

// WorkingDuration returns the working time that elapses between from and
// to: the sum of overlap between [from, to] and the open intervals of
// every non-holiday day in the span. A reversed or empty range yields
// zero; it is not an error here, callers treat it as a validation issue.
func (c *BusinessCalendar) WorkingDuration(from, to time.Time) time.Duration {
	var total time.Duration
	for _, p := range c.PeriodsWithin(from, to) {
		total += p.End.Sub(p.Start)
	}
	return total
}

// WorkPeriod is the portion of one open interval that a span covers.
// Date is midnight of the calendar day in the calendar's timezone.
type WorkPeriod struct {
	Date  time.Time
	Start time.Time
	End   time.Time
}

func (p WorkPeriod) Duration() time.Duration { return p.End.Sub(p.Start) }

// PeriodsWithin enumerates the (day, interval) segments overlapped by
// [from, to], clipped to the span, in chronological order.
func (c *BusinessCalendar) PeriodsWithin(from, to time.Time) []WorkPeriod {
	from = from.In(c.loc)
	to = to.In(c.loc)
	if !to.After(from) {
		return nil
	}

	var periods []WorkPeriod
	day := midnight(from)
	for !day.After(to) {
		for _, iv := range c.intervalsOn(day) {
			start := day.Add(time.Duration(iv.Start) * time.Minute)
			end := day.Add(time.Duration(iv.End) * time.Minute)
			if start.Before(from) {
				start = from
			}
			if end.After(to) {
				end = to
			}
			if end.After(start) {
				periods = append(periods, WorkPeriod{Date: day, Start: start, End: end})
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return periods
}

// =============================================================================
// BOUNDARY SNAPPING - Used for reporting-range clipping
// =============================================================================

// snapHorizon bounds the boundary search; a schedule with no open
// interval within a year of t is treated as permanently closed.
const snapHorizon = 366

// AdvanceToWorkingTime snaps t forward to the nearest working instant:
// t itself when it already falls inside an open interval, otherwise the
// start of the next one. Returns the zero time when no interval exists
// within the search horizon.
func (c *BusinessCalendar) AdvanceToWorkingTime(t time.Time) time.Time {
	t = t.In(c.loc)
	day := midnight(t)
	for i := 0; i < snapHorizon; i++ {
		for _, iv := range c.intervalsOn(day) {
			start := day.Add(time.Duration(iv.Start) * time.Minute)
			end := day.Add(time.Duration(iv.End) * time.Minute)
			if !t.Before(start) && t.Before(end) {
				return t
			}
			if start.After(t) {
				return start
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}
}

// ReturnToWorkingTime snaps t backward to the nearest working instant:
// t itself when inside an open interval, otherwise the end of the
// previous one. Returns the zero time when none exists within the
// search horizon.
func (c *BusinessCalendar) ReturnToWorkingTime(t time.Time) time.Time {
	t = t.In(c.loc)
	day := midnight(t)
	for i := 0; i < snapHorizon; i++ {
		ivs := c.intervalsOn(day)
		for j := len(ivs) - 1; j >= 0; j-- {
			start := day.Add(time.Duration(ivs[j].Start) * time.Minute)
			end := day.Add(time.Duration(ivs[j].End) * time.Minute)
			if t.After(start) && !t.After(end) {
				return t
			}
			if !end.After(t) {
				return end
			}
		}
		day = day.AddDate(0, 0, -1)
	}
	return time.Time{}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
