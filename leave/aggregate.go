/*
aggregate.go - Read-only reporting reducers

PURPOSE:
  Sums approved hours by employee and leave type over a period. A
  request that partially exceeds the period boundary contributes only
  its clipped portion: the business hours between
  max(request.start, period.start) and min(request.end, period.end).
  The two sides of a month boundary therefore always sum to the
  request's stored total.

  Read-only: no mutation, no locking.
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/5xRuby/daikichi-sub000/calendar"
)

// Summary maps employee id -> leave type -> approved hours.
type Summary map[string]map[LeaveType]int

// Aggregator produces period summaries from committed data.
type Aggregator struct {
	Store RequestStore
	Cal   *calendar.BusinessCalendar
}

// MonthlySummary sums approved hours for one calendar month, clipped to
// the month's bounds. Empty employeeID aggregates all employees.
func (g *Aggregator) MonthlySummary(ctx context.Context, employeeID string, year int, month time.Month) (Summary, error) {
	loc := g.Cal.Location()
	from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, 0)
	return g.RangeSummary(ctx, RequestFilter{EmployeeID: employeeID, Kind: KindLeave}, from, to)
}

// RangeSummary sums approved hours over [from, to), clipping requests
// that straddle the bounds.
func (g *Aggregator) RangeSummary(ctx context.Context, f RequestFilter, from, to time.Time) (Summary, error) {
	requests, err := g.Store.ApprovedOverlapping(ctx, f, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading approved requests: %w", err)
	}

	summary := make(Summary)
	for _, r := range requests {
		hours := g.clippedHours(r, from, to)
		if hours == 0 {
			continue
		}
		if summary[r.EmployeeID] == nil {
			summary[r.EmployeeID] = make(map[LeaveType]int)
		}
		summary[r.EmployeeID][r.LeaveType] += hours
	}
	return summary, nil
}

// clippedHours is the request's contribution to [from, to): its full
// stored hours when contained, otherwise the business hours of the
// overlapping portion.
func (g *Aggregator) clippedHours(r *Request, from, to time.Time) int {
	start, end := r.StartTime, r.EndTime
	clipped := false
	if start.Before(from) {
		start = from
		clipped = true
	}
	if end.After(to) {
		end = to
		clipped = true
	}
	if !clipped {
		return r.Hours
	}
	if !end.After(start) {
		return 0
	}

	// Whole hours are credited to the period in which the request's
	// running business-hour total crosses each hour mark. A sub-hour
	// remainder at a boundary carries into the later period, so the
	// shares of a split request always sum to its stored hours.
	before := g.Cal.WorkingDuration(r.StartTime, start)
	upto := before + g.Cal.WorkingDuration(start, end)
	return int(upto/time.Hour) - int(before/time.Hour)
}
