/*
allocator.go - Distributing request hours across quota buckets

PURPOSE:
  When a request enters pending, its hours must be locked somewhere.
  The allocator walks the request's daily breakdown and, for each day,
  draws hours from the buckets eligible for that day, producing Usage
  rows that bind the request to the buckets it holds hours at.

ELIGIBILITY AND PRIORITY:
  A bucket is eligible for a day when its leave type is one of the
  configured sources for the request's type and its validity window
  covers the day. When several buckets are eligible the order is
  deterministic:

    1. configured source order (e.g. annual before bonus)
    2. earlier expiration date first (use-it-or-lose-it)
    3. ascending bucket id

  The order is configuration (AllocationPolicy), not hard-coded law.

ALL OR NOTHING:
  If any day cannot be fully covered the whole allocation fails with an
  InsufficientHoursError and no usage is committed - the failure
  surfaces as a validation error on the request, never a partial lock.

LIFECYCLE WRAPPERS:
  TransferLockedToUsed / ReleaseUsages / RevertUsedToLocked iterate the
  request's usages and apply the matching ledger operation per bucket,
  inside the same transaction as the status change that triggered them.

SEE ALSO:
  - bucket.go: the ledger operations applied per usage
  - service.go: calls these per the transition table
*/
package leave

import (
	"context"
	"fmt"
	"sort"
)

// =============================================================================
// ALLOCATION POLICY - Deterministic bucket selection, as configuration
// =============================================================================

// AllocationPolicy maps each request leave type to the bucket types it
// may draw from, in draw order.
type AllocationPolicy struct {
	Sources map[LeaveType][]LeaveType
}

// DefaultAllocationPolicy lets annual leave spill into bonus hours once
// annual buckets are exhausted; every other type draws only from its
// own buckets.
func DefaultAllocationPolicy() AllocationPolicy {
	return AllocationPolicy{
		Sources: map[LeaveType][]LeaveType{
			TypeAnnual:   {TypeAnnual, TypeBonus},
			TypeBonus:    {TypeBonus},
			TypePersonal: {TypePersonal},
			TypeSick:     {TypeSick},
		},
	}
}

// SourcesFor returns the bucket types a request type may draw from.
func (p AllocationPolicy) SourcesFor(t LeaveType) []LeaveType {
	if src, ok := p.Sources[t]; ok {
		return src
	}
	return []LeaveType{t}
}

// sourceRank returns the draw-order index of a bucket type, for sorting.
func (p AllocationPolicy) sourceRank(requestType, bucketType LeaveType) int {
	for i, t := range p.SourcesFor(requestType) {
		if t == bucketType {
			return i
		}
	}
	return len(p.SourcesFor(requestType))
}

// =============================================================================
// ALLOCATOR
// =============================================================================

// Allocator builds and reclaims usages against the bucket ledger.
type Allocator struct {
	Policy AllocationPolicy
}

// BuildUsages computes, per breakdown day, how many hours to draw from
// which bucket, locking the hours as it goes. Buckets are mutated
// in-memory and saved once each at the end; on any failure nothing is
// persisted (the caller's transaction rolls back).
func (a *Allocator) BuildUsages(ctx context.Context, s Store, req *Request, breakdown []DailyBreakdown) ([]Usage, error) {
	if len(breakdown) == 0 {
		return nil, &ConsistencyError{
			Op:     "allocate",
			Detail: fmt.Sprintf("request %s has hours but an empty daily breakdown", req.Key),
		}
	}

	buckets, err := s.BucketsFor(ctx, req.EmployeeID,
		a.Policy.SourcesFor(req.LeaveType),
		breakdown[0].Date, breakdown[len(breakdown)-1].Date)
	if err != nil {
		return nil, fmt.Errorf("loading buckets: %w", err)
	}
	a.sortBuckets(req.LeaveType, buckets)

	var usages []Usage
	touched := make(map[int64]*QuotaBucket)

	for _, day := range breakdown {
		remaining := day.Hours
		for _, b := range buckets {
			if remaining == 0 {
				break
			}
			if !b.Covers(day.Date) || b.UsableHours <= 0 {
				continue
			}
			draw := remaining
			if b.UsableHours < draw {
				draw = b.UsableHours
			}
			b.Lock(draw)
			touched[b.ID] = b
			date := day.Date
			usages = append(usages, Usage{
				RequestKey: req.Key,
				BucketID:   b.ID,
				UsedHours:  draw,
				Date:       &date,
			})
			remaining -= draw
		}
		if remaining > 0 {
			available := 0
			for _, b := range buckets {
				if b.Covers(day.Date) && b.UsableHours > 0 {
					available += b.UsableHours
				}
			}
			return nil, &InsufficientHoursError{
				EmployeeID: req.EmployeeID,
				LeaveType:  req.LeaveType,
				Date:       day.Date.Format("2006-01-02"),
				Requested:  day.Hours,
				Available:  available,
			}
		}
	}

	for _, b := range touched {
		if err := s.SaveBucketCounters(ctx, b); err != nil {
			return nil, fmt.Errorf("locking hours at bucket %d: %w", b.ID, err)
		}
	}
	if err := s.InsertUsages(ctx, usages); err != nil {
		return nil, fmt.Errorf("recording usages: %w", err)
	}
	return usages, nil
}

func (a *Allocator) sortBuckets(requestType LeaveType, buckets []*QuotaBucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		ri, rj := a.Policy.sourceRank(requestType, buckets[i].LeaveType), a.Policy.sourceRank(requestType, buckets[j].LeaveType)
		if ri != rj {
			return ri < rj
		}
		if !buckets[i].ExpirationDate.Equal(buckets[j].ExpirationDate) {
			return buckets[i].ExpirationDate.Before(buckets[j].ExpirationDate)
		}
		return buckets[i].ID < buckets[j].ID
	})
}

// =============================================================================
// LIFECYCLE WRAPPERS
// =============================================================================

// TransferLockedToUsed converts every usage's locked hours into
// consumption. Fired on approve.
func (a *Allocator) TransferLockedToUsed(ctx context.Context, s Store, req *Request) error {
	return a.forEachUsageBucket(ctx, s, req, "approve", func(b *QuotaBucket, hours int) {
		b.Use(hours)
	})
}

// RevertUsedToLocked reverses consumption back into locks. Fired when
// an approved request is rejected, canceled, or revised.
func (a *Allocator) RevertUsedToLocked(ctx context.Context, s Store, req *Request) error {
	return a.forEachUsageBucket(ctx, s, req, "revert", func(b *QuotaBucket, hours int) {
		b.Unuse(hours)
	})
}

// ReleaseUsages unlocks every usage's hours back to usable and deletes
// the usage rows. For an approved request call RevertUsedToLocked
// first; release only returns locks.
func (a *Allocator) ReleaseUsages(ctx context.Context, s Store, req *Request) error {
	if err := a.forEachUsageBucket(ctx, s, req, "release", func(b *QuotaBucket, hours int) {
		b.Unlock(hours)
	}); err != nil {
		return err
	}
	if err := s.DeleteUsagesByRequest(ctx, req.Key); err != nil {
		return fmt.Errorf("deleting usages: %w", err)
	}
	return nil
}

// forEachUsageBucket loads the request's usages, applies op per bucket
// (batching multiple usages at the same bucket), and saves counters.
func (a *Allocator) forEachUsageBucket(ctx context.Context, s Store, req *Request, opName string, op func(b *QuotaBucket, hours int)) error {
	usages, err := s.UsagesByRequest(ctx, req.Key)
	if err != nil {
		return fmt.Errorf("loading usages: %w", err)
	}

	perBucket := make(map[int64]int)
	var order []int64
	for _, u := range usages {
		if _, seen := perBucket[u.BucketID]; !seen {
			order = append(order, u.BucketID)
		}
		perBucket[u.BucketID] += u.UsedHours
	}

	for _, id := range order {
		b, err := s.GetBucket(ctx, id)
		if err != nil {
			return &ConsistencyError{
				Op:     opName,
				Detail: fmt.Sprintf("usage of request %s references missing bucket %d: %v", req.Key, id, err),
			}
		}
		op(b, perBucket[id])
		if err := s.SaveBucketCounters(ctx, b); err != nil {
			return fmt.Errorf("%s at bucket %d: %w", opName, id, err)
		}
	}
	return nil
}
