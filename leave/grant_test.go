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

func grantStore(t *testing.T) *memory.TxMemory {
	t.Helper()
	s := memory.NewTx()
	require.NoError(t, s.PutEmployee(context.Background(), leave.Employee{
		ID: "emp-1", Name: "Alice", Role: leave.RoleEmployee,
		JoinDate: time.Date(2013, 4, 1, 0, 0, 0, 0, time.UTC),
	}))
	return s
}

func fixedClock() leave.Clock {
	return func() time.Time { return time.Date(2016, 8, 1, 10, 0, 0, 0, time.UTC) }
}

func window2016() (time.Time, time.Time) {
	return time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2016, 12, 31, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// ADMINISTRATIVE GRANTS
// =============================================================================

func TestGrant_CreatesBucketFullyUsable(t *testing.T) {
	s := grantStore(t)
	from, to := window2016()

	b, err := leave.Grant(context.Background(), s, fixedClock(), leave.GrantInput{
		EmployeeID:     "emp-1",
		LeaveType:      leave.TypeSick,
		QuotaHours:     240,
		EffectiveDate:  from,
		ExpirationDate: to,
	})
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, 240, b.Quota)
	assert.Equal(t, 240, b.UsableHours)
	assert.Equal(t, 0, b.LockedHours)
	assert.Equal(t, 0, b.UsedHours)

	stored, err := s.GetBucket(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 240, stored.UsableHours)
}

func TestGrant_RejectsBadInput(t *testing.T) {
	s := grantStore(t)
	from, to := window2016()

	cases := map[string]leave.GrantInput{
		"special type": {
			EmployeeID: "emp-1", LeaveType: leave.TypeMarriage,
			QuotaHours: 8, EffectiveDate: from, ExpirationDate: to,
		},
		"zero quota": {
			EmployeeID: "emp-1", LeaveType: leave.TypeAnnual,
			QuotaHours: 0, EffectiveDate: from, ExpirationDate: to,
		},
		"reversed window": {
			EmployeeID: "emp-1", LeaveType: leave.TypeAnnual,
			QuotaHours: 8, EffectiveDate: to, ExpirationDate: from,
		},
		"missing employee id": {
			LeaveType:  leave.TypeAnnual,
			QuotaHours: 8, EffectiveDate: from, ExpirationDate: to,
		},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := leave.Grant(context.Background(), s, fixedClock(), in)
			assert.True(t, leave.IsValidation(err))
		})
	}
}

func TestGrant_UnknownEmployee(t *testing.T) {
	s := memory.NewTx()
	from, to := window2016()

	_, err := leave.Grant(context.Background(), s, fixedClock(), leave.GrantInput{
		EmployeeID: "ghost", LeaveType: leave.TypeAnnual,
		QuotaHours: 8, EffectiveDate: from, ExpirationDate: to,
	})
	assert.True(t, leave.IsNotFound(err))
}

func TestGrant_OverlappingWindowRejected(t *testing.T) {
	// GIVEN: an existing annual bucket for 2016
	// WHEN: granting a second annual bucket overlapping the window
	// THEN: the grant fails; the same window for another type is fine

	s := grantStore(t)
	from, to := window2016()
	ctx := context.Background()

	_, err := leave.Grant(ctx, s, fixedClock(), leave.GrantInput{
		EmployeeID: "emp-1", LeaveType: leave.TypeAnnual,
		QuotaHours: 56, EffectiveDate: from, ExpirationDate: to,
	})
	require.NoError(t, err)

	_, err = leave.Grant(ctx, s, fixedClock(), leave.GrantInput{
		EmployeeID: "emp-1", LeaveType: leave.TypeAnnual,
		QuotaHours: 8,
		EffectiveDate:  time.Date(2016, 6, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(2017, 5, 31, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, leave.ErrOverlappingWindow)
	assert.True(t, leave.IsValidation(err))

	_, err = leave.Grant(ctx, s, fixedClock(), leave.GrantInput{
		EmployeeID: "emp-1", LeaveType: leave.TypeSick,
		QuotaHours: 8, EffectiveDate: from, ExpirationDate: to,
	})
	assert.NoError(t, err, "different leave type may share the window")

	_, err = leave.Grant(ctx, s, fixedClock(), leave.GrantInput{
		EmployeeID: "emp-1", LeaveType: leave.TypeAnnual,
		QuotaHours: 56,
		EffectiveDate:  time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(2017, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	assert.NoError(t, err, "adjacent window does not overlap")
}

// =============================================================================
// OVERTIME COMPENSATION
// =============================================================================

func TestGrantFromOvertime(t *testing.T) {
	s := grantStore(t)
	from, to := window2016()

	base := leave.Request{
		Key:          uuid.New(),
		Kind:         leave.KindOvertime,
		EmployeeID:   "emp-1",
		LeaveType:    leave.TypeBonus,
		Compensation: leave.CompensationLeave,
		Hours:        5,
		Status:       leave.StatusApproved,
	}

	t.Run("approved overtime becomes a linked bonus bucket", func(t *testing.T) {
		req := base
		b, err := leave.GrantFromOvertime(context.Background(), s, fixedClock(), &req, from, to)
		require.NoError(t, err)
		assert.Equal(t, leave.TypeBonus, b.LeaveType)
		assert.Equal(t, 5, b.Quota)
		require.NotNil(t, b.OvertimeKey)
		assert.Equal(t, req.Key, *b.OvertimeKey)
	})

	t.Run("leave request refused", func(t *testing.T) {
		req := base
		req.Kind = leave.KindLeave
		_, err := leave.GrantFromOvertime(context.Background(), s, fixedClock(), &req, from, to)
		assert.True(t, leave.IsValidation(err))
	})

	t.Run("pay-compensated overtime refused", func(t *testing.T) {
		req := base
		req.Compensation = leave.CompensationPay
		_, err := leave.GrantFromOvertime(context.Background(), s, fixedClock(), &req, from, to)
		assert.True(t, leave.IsValidation(err))
	})

	t.Run("pending overtime refused", func(t *testing.T) {
		req := base
		req.Status = leave.StatusPending
		_, err := leave.GrantFromOvertime(context.Background(), s, fixedClock(), &req, from, to)
		assert.True(t, leave.IsBusiness(err))
	})
}

// =============================================================================
// ANNUAL ENTITLEMENT
// =============================================================================

func TestAnnualLeaveDays_SeniorityTable(t *testing.T) {
	join := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		at   time.Time
		days int64
	}{
		{"under half a year", join.AddDate(0, 0, 100), 0},
		{"half a year", join.AddDate(0, 0, 200), 3},
		{"over one year", join.AddDate(1, 7, 0), 7},
		{"over two years", join.AddDate(2, 6, 0), 10},
		{"over three years", join.AddDate(4, 0, 0), 14},
		{"over five years", join.AddDate(7, 0, 0), 15},
		{"eleven and a half years", join.AddDate(11, 6, 0), 16},
		{"cap at thirty", join.AddDate(40, 0, 0), 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := leave.AnnualLeaveDays(join, tc.at)
			assert.Equal(t, tc.days, got.IntPart())
		})
	}

	assert.True(t, leave.AnnualLeaveDays(join, join.AddDate(-1, 0, 0)).IsZero(),
		"grant date before join date")
}

func TestAnnualQuotaHours_DaysTimesEight(t *testing.T) {
	join := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 56, leave.AnnualQuotaHours(join, join.AddDate(1, 7, 0)))
	assert.Equal(t, 112, leave.AnnualQuotaHours(join, join.AddDate(4, 0, 0)))
}

func TestProvisionAnnual(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2016, 8, 1, 0, 0, 0, 0, time.UTC)

	t.Run("new hire has no entitlement yet", func(t *testing.T) {
		s := grantStore(t)
		e := leave.Employee{ID: "emp-1", JoinDate: at.AddDate(0, -2, 0)}
		b, err := leave.ProvisionAnnual(ctx, s, fixedClock(), e, at)
		require.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("creates a one-year window and is idempotent per window", func(t *testing.T) {
		s := grantStore(t)
		e := leave.Employee{ID: "emp-1", JoinDate: time.Date(2013, 4, 1, 0, 0, 0, 0, time.UTC)}

		b, err := leave.ProvisionAnnual(ctx, s, fixedClock(), e, at)
		require.NoError(t, err)
		assert.Equal(t, 112, b.Quota, "three completed years: 14 days")
		assert.Equal(t, at, b.EffectiveDate)
		assert.Equal(t, time.Date(2017, 7, 31, 0, 0, 0, 0, time.UTC), b.ExpirationDate)

		_, err = leave.ProvisionAnnual(ctx, s, fixedClock(), e, at)
		require.ErrorIs(t, err, leave.ErrOverlappingWindow)
	})
}
