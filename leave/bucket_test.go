package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5xRuby/daikichi-sub000/leave"
	"github.com/5xRuby/daikichi-sub000/leave/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newBucket(quota int) *leave.QuotaBucket {
	return &leave.QuotaBucket{
		EmployeeID:     "emp-1",
		LeaveType:      leave.TypeAnnual,
		Quota:          quota,
		UsableHours:    quota,
		EffectiveDate:  time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(2016, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func invariantHolds(t *testing.T, b *leave.QuotaBucket) {
	t.Helper()
	assert.Equal(t, b.Quota, b.UsableHours+b.LockedHours+b.UsedHours,
		"counters must always partition the quota")
}

// =============================================================================
// IN-MEMORY LEDGER
// =============================================================================

func TestLedger_FullLifecycle_ZeroSum(t *testing.T) {
	// GIVEN: a fresh 56-hour bucket
	// WHEN: walking the full lock -> use -> unuse -> unlock cycle
	// THEN: the invariant holds at every step and the cycle restores the start

	b := newBucket(56)
	invariantHolds(t, b)

	b.Lock(16)
	assert.Equal(t, 40, b.UsableHours)
	assert.Equal(t, 16, b.LockedHours)
	invariantHolds(t, b)

	b.Use(16)
	assert.Equal(t, 0, b.LockedHours)
	assert.Equal(t, 16, b.UsedHours)
	invariantHolds(t, b)

	b.Unuse(16)
	assert.Equal(t, 16, b.LockedHours)
	assert.Equal(t, 0, b.UsedHours)
	invariantHolds(t, b)

	b.Unlock(16)
	assert.Equal(t, 56, b.UsableHours)
	assert.Equal(t, 0, b.LockedHours)
	invariantHolds(t, b)
}

func TestLedger_Deduct_IsLockThenUse(t *testing.T) {
	b := newBucket(8)
	b.Deduct(5)

	assert.Equal(t, 3, b.UsableHours)
	assert.Equal(t, 0, b.LockedHours)
	assert.Equal(t, 5, b.UsedHours)
	invariantHolds(t, b)
}

func TestLedger_LockMayOverdraw(t *testing.T) {
	// GIVEN: a 4-hour bucket
	// WHEN: locking 10 hours
	// THEN: usable goes negative; the ledger itself does not validate

	b := newBucket(4)
	b.Lock(10)

	assert.Equal(t, -6, b.UsableHours)
	assert.Equal(t, 10, b.LockedHours)
	invariantHolds(t, b)
}

// =============================================================================
// WINDOW PREDICATES
// =============================================================================

func TestCovers_InclusiveBounds(t *testing.T) {
	b := newBucket(56)

	assert.True(t, b.Covers(time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, b.Covers(time.Date(2016, 12, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, b.Covers(time.Date(2015, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, b.Covers(time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestOverlaps_TouchingWindowsOverlap(t *testing.T) {
	a := newBucket(56)
	other := newBucket(56)
	other.EffectiveDate = a.ExpirationDate
	other.ExpirationDate = a.ExpirationDate.AddDate(1, 0, 0)

	assert.True(t, a.Overlaps(other), "shared boundary day counts as overlap")

	other.EffectiveDate = a.ExpirationDate.AddDate(0, 0, 1)
	assert.False(t, a.Overlaps(other))
}

// =============================================================================
// PERSISTING OPERATIONS
// =============================================================================

func TestLockAndSave_PersistsAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	b := newBucket(56)
	require.NoError(t, store.InsertBucket(ctx, b))

	require.NoError(t, b.LockAndSave(ctx, store, 8))
	assert.Equal(t, 1, b.Version)

	stored, err := store.GetBucket(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 48, stored.UsableHours)
	assert.Equal(t, 8, stored.LockedHours)
}

func TestLockAndSave_RevertsOnConflict(t *testing.T) {
	// GIVEN: a stale copy of a stored bucket
	// WHEN: the save is rejected by the version guard
	// THEN: the in-memory counters revert to the pre-call state

	ctx := context.Background()
	store := memory.New()

	b := newBucket(56)
	require.NoError(t, store.InsertBucket(ctx, b))

	stale := *b
	require.NoError(t, b.LockAndSave(ctx, store, 8))

	err := stale.LockAndSave(ctx, store, 4)
	require.ErrorIs(t, err, leave.ErrConcurrentModification)

	assert.Equal(t, 56, stale.UsableHours, "failed save must not partially apply")
	assert.Equal(t, 0, stale.LockedHours)
	invariantHolds(t, &stale)
}

func TestUseAndSave_RevertsOnConflict(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	b := newBucket(56)
	require.NoError(t, store.InsertBucket(ctx, b))
	require.NoError(t, b.LockAndSave(ctx, store, 8))

	stale := *b
	stale.Version = 0

	err := stale.UseAndSave(ctx, store, 8)
	require.ErrorIs(t, err, leave.ErrConcurrentModification)
	assert.Equal(t, 8, stale.LockedHours)
	assert.Equal(t, 0, stale.UsedHours)
}

func TestSaveRoundTrip_CycleRestoresQuota(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	b := newBucket(56)
	require.NoError(t, store.InsertBucket(ctx, b))

	require.NoError(t, b.LockAndSave(ctx, store, 16))
	require.NoError(t, b.UseAndSave(ctx, store, 16))
	require.NoError(t, b.UnuseAndSave(ctx, store, 16))
	require.NoError(t, b.UnlockAndSave(ctx, store, 16))

	stored, err := store.GetBucket(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 56, stored.UsableHours)
	assert.Equal(t, 0, stored.LockedHours)
	assert.Equal(t, 0, stored.UsedHours)
	assert.Equal(t, 4, stored.Version)
}
