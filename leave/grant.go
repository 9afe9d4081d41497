/*
grant.go - Quota bucket creation (the provisioning feed's output)

PURPOSE:
  Buckets enter the system three ways; all of them land here:

  1. Administrative grant: an admin hands an employee N hours of some
     type for a window.
  2. Annual provisioning: the yearly entitlement derived from seniority
     (completed years of service), days x 8 -> hours, pro-rated for the
     first partial year.
  3. Overtime compensation: an approved overtime request compensated as
     leave becomes a bonus-leave bucket of the same hours, linked back
     to the request via OvertimeKey.

  The periodic scheduling that decides WHEN to provision is not here;
  callers (a cron wrapper, an admin endpoint) invoke these functions and
  the engine only guarantees the bucket is valid: positive quota,
  ordered window, and no overlap with an existing bucket of the same
  employee and type.

SENIORITY TABLE (days of annual leave per completed years of service):

  < 0.5y: 0   0.5-1y: 3   1-2y: 7    2-3y: 10
  3-5y: 14    5-10y: 15   10y+: 15 + 1/extra year, capped at 30

  Day rates are decimal so pro-rating a partial first year stays exact;
  only the final conversion to whole hours truncates.
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// GRANTS
// =============================================================================

// HoursPerDay converts an entitlement in days to ledger hours.
const HoursPerDay = 8

// GrantInput describes a bucket to create.
type GrantInput struct {
	EmployeeID     string
	LeaveType      LeaveType
	QuotaHours     int
	EffectiveDate  time.Time
	ExpirationDate time.Time
	OvertimeKey    *uuid.UUID // set when the bucket compensates overtime
}

// Grant validates the input against existing buckets and creates the
// bucket with its full quota usable. Runs inside its own transaction.
func Grant(ctx context.Context, store TxStore, clock Clock, in GrantInput) (*QuotaBucket, error) {
	ve := NewValidationError()
	if in.EmployeeID == "" {
		ve.Add("employee_id", "is required")
	}
	if !in.LeaveType.Valid() || !in.LeaveType.DeductsQuota() {
		ve.Add("leave_type", "must be a quota-deducting leave type")
	}
	if in.QuotaHours <= 0 {
		ve.Add("quota", "must be a positive integer")
	}
	if in.ExpirationDate.Before(in.EffectiveDate) {
		ve.Add("expiration_date", "must not precede effective date")
	}
	if !ve.Empty() {
		return nil, ve
	}

	bucket := &QuotaBucket{
		EmployeeID:     in.EmployeeID,
		LeaveType:      in.LeaveType,
		Quota:          in.QuotaHours,
		UsableHours:    in.QuotaHours,
		EffectiveDate:  in.EffectiveDate,
		ExpirationDate: in.ExpirationDate,
		OvertimeKey:    in.OvertimeKey,
		CreatedAt:      clock(),
	}

	err := store.WithTx(ctx, func(tx Store) error {
		if _, err := tx.GetEmployee(ctx, in.EmployeeID); err != nil {
			return err
		}
		existing, err := tx.BucketsFor(ctx, in.EmployeeID, []LeaveType{in.LeaveType},
			in.EffectiveDate, in.ExpirationDate)
		if err != nil {
			return fmt.Errorf("checking window overlap: %w", err)
		}
		for _, b := range existing {
			if b.Overlaps(bucket) {
				return fmt.Errorf("bucket %d [%s, %s]: %w", b.ID,
					b.EffectiveDate.Format("2006-01-02"),
					b.ExpirationDate.Format("2006-01-02"),
					ErrOverlappingWindow)
			}
		}
		return tx.InsertBucket(ctx, bucket)
	})
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

// GrantFromOvertime creates the bonus-leave bucket for an approved
// overtime request compensated as leave. The bucket's quota equals the
// request's hours and it is linked via OvertimeKey.
func GrantFromOvertime(ctx context.Context, store TxStore, clock Clock, req *Request, effective, expiration time.Time) (*QuotaBucket, error) {
	if req.Kind != KindOvertime {
		return nil, NewValidationError().Add("kind", "must be an overtime request")
	}
	if req.Compensation != CompensationLeave {
		return nil, NewValidationError().Add("compensation", "overtime is not compensated as leave")
	}
	if req.Status != StatusApproved {
		return nil, &BusinessError{Op: "grant", Status: req.Status, Reason: "only approved overtime grants leave"}
	}

	key := req.Key
	return Grant(ctx, store, clock, GrantInput{
		EmployeeID:     req.EmployeeID,
		LeaveType:      TypeBonus,
		QuotaHours:     req.Hours,
		EffectiveDate:  effective,
		ExpirationDate: expiration,
		OvertimeKey:    &key,
	})
}

// =============================================================================
// ANNUAL ENTITLEMENT
// =============================================================================

type seniorityStep struct {
	minYears decimal.Decimal
	days     decimal.Decimal
}

var seniorityTable = []seniorityStep{
	{decimal.NewFromFloat(0.5), decimal.NewFromInt(3)},
	{decimal.NewFromInt(1), decimal.NewFromInt(7)},
	{decimal.NewFromInt(2), decimal.NewFromInt(10)},
	{decimal.NewFromInt(3), decimal.NewFromInt(14)},
	{decimal.NewFromInt(5), decimal.NewFromInt(15)},
}

// AnnualLeaveDays returns the annual-leave entitlement in days for an
// employee with the given service duration at the grant date.
func AnnualLeaveDays(joinDate, at time.Time) decimal.Decimal {
	if at.Before(joinDate) {
		return decimal.Zero
	}
	served := decimal.NewFromFloat(at.Sub(joinDate).Hours() / (24 * 365.25))

	days := decimal.Zero
	for _, step := range seniorityTable {
		if served.GreaterThanOrEqual(step.minYears) {
			days = step.days
		}
	}

	// Past ten years: one extra day per additional completed year, up
	// to thirty days total.
	ten := decimal.NewFromInt(10)
	if served.GreaterThanOrEqual(ten) {
		extra := served.Sub(ten).Floor()
		days = decimal.NewFromInt(15).Add(extra)
		if days.GreaterThan(decimal.NewFromInt(30)) {
			days = decimal.NewFromInt(30)
		}
	}
	return days
}

// AnnualQuotaHours converts the entitlement to whole ledger hours.
func AnnualQuotaHours(joinDate, at time.Time) int {
	return int(AnnualLeaveDays(joinDate, at).Mul(decimal.NewFromInt(HoursPerDay)).IntPart())
}

// ProvisionAnnual creates the annual bucket for one employee covering
// [at, at+1y). Skips employees with no entitlement yet; overlap
// validation inside Grant makes the call idempotent per window.
func ProvisionAnnual(ctx context.Context, store TxStore, clock Clock, e Employee, at time.Time) (*QuotaBucket, error) {
	hours := AnnualQuotaHours(e.JoinDate, at)
	if hours == 0 {
		return nil, nil
	}
	return Grant(ctx, store, clock, GrantInput{
		EmployeeID:     e.ID,
		LeaveType:      TypeAnnual,
		QuotaHours:     hours,
		EffectiveDate:  at,
		ExpirationDate: at.AddDate(1, 0, 0).AddDate(0, 0, -1),
	})
}
