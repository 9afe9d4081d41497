package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5xRuby/daikichi-sub000/leave"
	"github.com/5xRuby/daikichi-sub000/leave/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func day(d int) time.Time {
	return time.Date(2016, time.August, d, 0, 0, 0, 0, time.UTC)
}

func insertBucket(t *testing.T, s *memory.Memory, lt leave.LeaveType, usable int, from, to time.Time) *leave.QuotaBucket {
	t.Helper()
	b := &leave.QuotaBucket{
		EmployeeID:     "emp-1",
		LeaveType:      lt,
		Quota:          usable,
		UsableHours:    usable,
		EffectiveDate:  from,
		ExpirationDate: to,
	}
	require.NoError(t, s.InsertBucket(context.Background(), b))
	return b
}

func annualRequest(hours int) *leave.Request {
	return &leave.Request{
		Key:        uuid.New(),
		Kind:       leave.KindLeave,
		EmployeeID: "emp-1",
		LeaveType:  leave.TypeAnnual,
		Status:     leave.StatusPending,
		Hours:      hours,
	}
}

func breakdownOf(key uuid.UUID, days map[int]int) []leave.DailyBreakdown {
	var rows []leave.DailyBreakdown
	for d := 1; d <= 31; d++ {
		if h, ok := days[d]; ok {
			rows = append(rows, leave.DailyBreakdown{RequestKey: key, Date: day(d), Hours: h})
		}
	}
	return rows
}

func defaultAllocator() *leave.Allocator {
	return &leave.Allocator{Policy: leave.DefaultAllocationPolicy()}
}

// =============================================================================
// BUCKET PRIORITY
// =============================================================================

func TestBuildUsages_AnnualDrainsBeforeBonus(t *testing.T) {
	// GIVEN: a 4-hour annual bucket and a plentiful bonus bucket
	// WHEN: allocating an 8-hour annual day
	// THEN: annual is drained first and bonus covers the rest

	ctx := context.Background()
	store := memory.New()
	annual := insertBucket(t, store, leave.TypeAnnual, 4, day(1), day(31))
	bonus := insertBucket(t, store, leave.TypeBonus, 40, day(1), day(31))

	req := annualRequest(8)
	usages, err := defaultAllocator().BuildUsages(ctx, store, req, breakdownOf(req.Key, map[int]int{17: 8}))
	require.NoError(t, err)
	require.Len(t, usages, 2)

	assert.Equal(t, annual.ID, usages[0].BucketID)
	assert.Equal(t, 4, usages[0].UsedHours)
	assert.Equal(t, bonus.ID, usages[1].BucketID)
	assert.Equal(t, 4, usages[1].UsedHours)

	a, _ := store.GetBucket(ctx, annual.ID)
	b, _ := store.GetBucket(ctx, bonus.ID)
	assert.Equal(t, 0, a.UsableHours)
	assert.Equal(t, 4, a.LockedHours)
	assert.Equal(t, 36, b.UsableHours)
	assert.Equal(t, 4, b.LockedHours)
}

func TestBuildUsages_EarlierExpirationFirst(t *testing.T) {
	// GIVEN: two annual buckets, one expiring sooner
	// WHEN: allocating hours both could cover
	// THEN: the sooner-expiring bucket is drawn first

	ctx := context.Background()
	store := memory.New()
	later := insertBucket(t, store, leave.TypeAnnual, 40, day(1), day(31))
	sooner := insertBucket(t, store, leave.TypeAnnual, 40, day(1), day(20))

	req := annualRequest(8)
	usages, err := defaultAllocator().BuildUsages(ctx, store, req, breakdownOf(req.Key, map[int]int{17: 8}))
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, sooner.ID, usages[0].BucketID)

	untouched, _ := store.GetBucket(ctx, later.ID)
	assert.Equal(t, 40, untouched.UsableHours)
}

func TestBuildUsages_BonusNeverSpillsIntoAnnual(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	insertBucket(t, store, leave.TypeAnnual, 40, day(1), day(31))
	insertBucket(t, store, leave.TypeBonus, 4, day(1), day(31))

	req := annualRequest(8)
	req.LeaveType = leave.TypeBonus
	_, err := defaultAllocator().BuildUsages(ctx, store, req, breakdownOf(req.Key, map[int]int{17: 8}))
	require.ErrorIs(t, err, leave.ErrInsufficientHours)
}

// =============================================================================
// PER-DAY ELIGIBILITY AND ALL-OR-NOTHING
// =============================================================================

func TestBuildUsages_WindowBoundary_PerDayEligibility(t *testing.T) {
	// GIVEN: one bucket ending the 17th, a second starting the 18th
	// WHEN: a request straddles the boundary
	// THEN: each day draws only from the bucket covering it

	ctx := context.Background()
	store := memory.New()
	first := insertBucket(t, store, leave.TypeAnnual, 40, day(1), day(17))
	second := insertBucket(t, store, leave.TypeAnnual, 40, day(18), day(31))

	req := annualRequest(16)
	usages, err := defaultAllocator().BuildUsages(ctx, store, req,
		breakdownOf(req.Key, map[int]int{17: 8, 18: 8}))
	require.NoError(t, err)
	require.Len(t, usages, 2)
	assert.Equal(t, first.ID, usages[0].BucketID)
	assert.Equal(t, second.ID, usages[1].BucketID)
}

func TestBuildUsages_UncoverableDay_FailsWholly(t *testing.T) {
	// GIVEN: quota covering the first day but not the second
	// WHEN: allocating a two-day request
	// THEN: nothing is locked, not even the coverable first day

	ctx := context.Background()
	store := memory.New()
	b := insertBucket(t, store, leave.TypeAnnual, 40, day(1), day(17))

	req := annualRequest(16)
	_, err := defaultAllocator().BuildUsages(ctx, store, req,
		breakdownOf(req.Key, map[int]int{17: 8, 18: 8}))

	var ihe *leave.InsufficientHoursError
	require.ErrorAs(t, err, &ihe)
	assert.Equal(t, "2016-08-18", ihe.Date)
	assert.Equal(t, 8, ihe.Requested)
	assert.Equal(t, 0, ihe.Available)

	after, _ := store.GetBucket(ctx, b.ID)
	assert.Equal(t, 0, after.LockedHours, "a failed allocation holds nothing")
}

func TestBuildUsages_EmptyBreakdown_IsConsistencyError(t *testing.T) {
	store := memory.New()
	req := annualRequest(8)

	_, err := defaultAllocator().BuildUsages(context.Background(), store, req, nil)
	assert.True(t, leave.IsConsistency(err))
}

// =============================================================================
// LIFECYCLE WRAPPERS
// =============================================================================

func TestLifecycle_LockUseRevertRelease(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	b := insertBucket(t, store, leave.TypeAnnual, 40, day(1), day(31))
	alloc := defaultAllocator()

	req := annualRequest(16)
	_, err := alloc.BuildUsages(ctx, store, req, breakdownOf(req.Key, map[int]int{17: 8, 18: 8}))
	require.NoError(t, err)

	require.NoError(t, alloc.TransferLockedToUsed(ctx, store, req))
	mid, _ := store.GetBucket(ctx, b.ID)
	assert.Equal(t, 16, mid.UsedHours)
	assert.Equal(t, 0, mid.LockedHours)

	require.NoError(t, alloc.RevertUsedToLocked(ctx, store, req))
	require.NoError(t, alloc.ReleaseUsages(ctx, store, req))

	after, _ := store.GetBucket(ctx, b.ID)
	assert.Equal(t, 40, after.UsableHours)
	assert.Equal(t, 0, after.LockedHours)
	assert.Equal(t, 0, after.UsedHours)

	usages, err := store.UsagesByRequest(ctx, req.Key)
	require.NoError(t, err)
	assert.Empty(t, usages)
}

func TestLifecycle_BatchesUsagesPerBucket(t *testing.T) {
	// Two days drawing from the same bucket produce two usages but only
	// one counter write per lifecycle step.

	ctx := context.Background()
	store := memory.New()
	b := insertBucket(t, store, leave.TypeAnnual, 40, day(1), day(31))
	alloc := defaultAllocator()

	req := annualRequest(16)
	usages, err := alloc.BuildUsages(ctx, store, req, breakdownOf(req.Key, map[int]int{17: 8, 18: 8}))
	require.NoError(t, err)
	require.Len(t, usages, 2)

	versionAfterLock := mustBucket(t, store, b.ID).Version

	require.NoError(t, alloc.TransferLockedToUsed(ctx, store, req))
	assert.Equal(t, versionAfterLock+1, mustBucket(t, store, b.ID).Version)
}

func mustBucket(t *testing.T, s *memory.Memory, id int64) *leave.QuotaBucket {
	t.Helper()
	b, err := s.GetBucket(context.Background(), id)
	require.NoError(t, err)
	return b
}
