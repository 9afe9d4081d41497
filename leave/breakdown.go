package leave

import (
	"time"

	"github.com/google/uuid"

	"github.com/5xRuby/daikichi-sub000/calendar"
)

// =============================================================================
// DAILY BREAKDOWN BUILDER
// =============================================================================

// BuildDailyBreakdown decomposes [start, end] into per-calendar-day
// working-hour contributions, in the calendar's timezone. Days outside
// the schedule (weekends, holidays) contribute nothing and are omitted.
//
// The request total is validated to whole hours upstream, but a span
// that cuts mid-hour through a day boundary can leave a single day with
// a fractional share. The sub-hour remainder is carried into the next
// day so the per-day hours always sum to the request's total.
func BuildDailyBreakdown(cal *calendar.BusinessCalendar, key uuid.UUID, start, end time.Time) []DailyBreakdown {
	perDay := make(map[time.Time]time.Duration)
	var order []time.Time

	for _, p := range cal.PeriodsWithin(start, end) {
		if _, seen := perDay[p.Date]; !seen {
			order = append(order, p.Date)
		}
		perDay[p.Date] += p.Duration()
	}

	rows := make([]DailyBreakdown, 0, len(order))
	var carry time.Duration
	for _, day := range order {
		d := perDay[day] + carry
		hours := int(d / time.Hour)
		carry = d % time.Hour
		if hours <= 0 {
			continue
		}
		rows = append(rows, DailyBreakdown{
			RequestKey: key,
			Date:       day,
			Hours:      hours,
		})
	}
	return rows
}
