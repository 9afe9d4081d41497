/*
bucket.go - Quota bucket ledger

PURPOSE:
  A QuotaBucket is a time-bounded grant of hours for one employee and
  one leave type: "56 hours of annual leave, valid 2016-01-01 through
  2016-12-31". It owns three counters that partition the quota:

    UsableHours  hours available for new locking
    LockedHours  hours reserved by pending requests
    UsedHours    hours consumed by approved requests

THE ZERO-SUM INVARIANT:
  Every operation transfers hours between two counters, so

    UsableHours + LockedHours + UsedHours == Quota

  holds after any sequence of Lock/Unlock/Use/Unuse, provided it held at
  construction. Grants construct buckets with UsableHours == Quota.

TWO CALL SHAPES:
  Each operation has an in-memory variant (trusted arithmetic, never
  fails) and a persisting variant (*AndSave) that writes the counters
  atomically via compare-and-swap on Version. Callers batch several
  in-memory mutations inside one store transaction and save each bucket
  once; the *AndSave helpers revert the in-memory change when the write
  is rejected, so a failed call never partially applies.

OVER-ALLOCATION:
  The ledger itself does not refuse driving UsableHours negative. The
  allocator validates availability before locking; the ledger trusts it.
  Keeping validation out of the arithmetic lets reversal paths (unlock,
  unuse) run unconditionally during reconciliation.

SEE ALSO:
  - allocator.go: validates availability, then drives these operations
  - grant.go: constructs buckets
  - store.go: BucketStore persistence contract
*/
package leave

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// QUOTA BUCKET
// =============================================================================

// QuotaBucket is one (employee, leave type, validity window) grant.
// Mutated only through the ledger operations below; never deleted, only
// superseded by window expiry.
type QuotaBucket struct {
	ID         int64
	EmployeeID string
	LeaveType  LeaveType

	Quota       int // total granted hours
	UsableHours int
	LockedHours int
	UsedHours   int

	// Inclusive validity window; ExpirationDate >= EffectiveDate.
	EffectiveDate  time.Time
	ExpirationDate time.Time

	// Set when the bucket was granted from an approved overtime request.
	OvertimeKey *uuid.UUID

	// Optimistic-lock version, bumped by the store on each counter write.
	Version   int
	CreatedAt time.Time
}

// Covers reports whether the date falls inside the validity window.
func (b *QuotaBucket) Covers(date time.Time) bool {
	d := midnightOf(date)
	return !d.Before(midnightOf(b.EffectiveDate)) && !d.After(midnightOf(b.ExpirationDate))
}

// Overlaps reports whether two windows intersect. Grants reject
// overlapping windows for the same (employee, leave type).
func (b *QuotaBucket) Overlaps(other *QuotaBucket) bool {
	return !midnightOf(b.EffectiveDate).After(midnightOf(other.ExpirationDate)) &&
		!midnightOf(other.EffectiveDate).After(midnightOf(b.ExpirationDate))
}

func midnightOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// =============================================================================
// LEDGER OPERATIONS (in-memory)
// =============================================================================
// Trusted arithmetic: no validation, no failure. Each is a zero-sum
// transfer between two counters.

// Lock reserves n usable hours for a pending request.
func (b *QuotaBucket) Lock(n int) {
	b.UsableHours -= n
	b.LockedHours += n
}

// Unlock returns n reserved hours to usable.
func (b *QuotaBucket) Unlock(n int) {
	b.UsableHours += n
	b.LockedHours -= n
}

// Use converts n locked hours into consumption on approval.
func (b *QuotaBucket) Use(n int) {
	b.LockedHours -= n
	b.UsedHours += n
}

// Unuse reverses a consumption back into a lock.
func (b *QuotaBucket) Unuse(n int) {
	b.LockedHours += n
	b.UsedHours -= n
}

// Deduct debits n hours directly: a lock immediately followed by a use.
// Kept as the single expression of direct debiting so there is exactly
// one three-phase model.
func (b *QuotaBucket) Deduct(n int) {
	b.Lock(n)
	b.Use(n)
}

// =============================================================================
// LEDGER OPERATIONS (persisting)
// =============================================================================
// Apply the in-memory op, then persist the counters atomically. On a
// rejected write (optimistic-lock conflict or store failure) the
// in-memory change is reverted before returning, so the bucket matches
// its stored state.

// LockAndSave locks n hours and persists the counters.
func (b *QuotaBucket) LockAndSave(ctx context.Context, s BucketStore, n int) error {
	b.Lock(n)
	if err := s.SaveBucketCounters(ctx, b); err != nil {
		b.Unlock(n)
		return err
	}
	return nil
}

// UnlockAndSave unlocks n hours and persists the counters.
func (b *QuotaBucket) UnlockAndSave(ctx context.Context, s BucketStore, n int) error {
	b.Unlock(n)
	if err := s.SaveBucketCounters(ctx, b); err != nil {
		b.Lock(n)
		return err
	}
	return nil
}

// UseAndSave consumes n locked hours and persists the counters.
func (b *QuotaBucket) UseAndSave(ctx context.Context, s BucketStore, n int) error {
	b.Use(n)
	if err := s.SaveBucketCounters(ctx, b); err != nil {
		b.Unuse(n)
		return err
	}
	return nil
}

// UnuseAndSave reverts n used hours to locked and persists the counters.
func (b *QuotaBucket) UnuseAndSave(ctx context.Context, s BucketStore, n int) error {
	b.Unuse(n)
	if err := s.SaveBucketCounters(ctx, b); err != nil {
		b.Use(n)
		return err
	}
	return nil
}
