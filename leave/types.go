/*
Package leave is the leave/overtime balance accounting engine.

PURPOSE:
  Employees submit leave or overtime requests; managers approve or reject
  them. The engine drives each request through an approval state machine,
  computes business-hour durations, and keeps a three-phase balance
  ledger per quota bucket:

    usable -> locked   when a request enters pending (hours reserved)
    locked -> used     when the request is approved (hours consumed)
    used/locked -> usable  when it is rejected, canceled, or revised

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveType: the quota category; special types bypass the ledger
  - RequestKind: leave vs. overtime (one polymorphic Request type)
  - Status: the approval state machine's states
  - Usage: binds a request to the buckets it draws hours from
  - DailyBreakdown: per-day working-hour contribution of a request

DESIGN PRINCIPLES:
  1. Whole hours: all ledger quantities are integer hours; fractional
     spans are rejected at validation, never rounded.
  2. Zero-sum ledger: every bucket mutation transfers hours between the
     usable/locked/used counters, preserving their sum against quota.
  3. Stable identity: requests carry a UUID key separate from their
     storage sequence id, so usages and breakdowns survive soft-deletion.
  4. Explicit sequencing: transitions run validate -> mutate ledger ->
     persist -> notify inside one transaction; there is no implicit
     lifecycle-hook registry.

SEE ALSO:
  - bucket.go: quota bucket ledger operations
  - request.go: request entity and state machine guards
  - allocator.go: distributing hours across buckets
  - service.go: the transactional facade callers use
*/
package leave

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

// LeaveType is a quota category. Deducting types draw hours from quota
// buckets; special (statutory) types pass through the same state machine
// without touching the ledger.
type LeaveType string

const (
	TypeAnnual   LeaveType = "annual"
	TypeBonus    LeaveType = "bonus" // granted from approved overtime
	TypePersonal LeaveType = "personal"
	TypeSick     LeaveType = "sick"

	// Special types: no quota deduction.
	TypeOfficial  LeaveType = "official"
	TypeMarriage  LeaveType = "marriage"
	TypeFuneral   LeaveType = "funeral"
	TypeMaternity LeaveType = "maternity"
)

var deductingTypes = map[LeaveType]bool{
	TypeAnnual:   true,
	TypeBonus:    true,
	TypePersonal: true,
	TypeSick:     true,
}

var allTypes = map[LeaveType]bool{
	TypeAnnual: true, TypeBonus: true, TypePersonal: true, TypeSick: true,
	TypeOfficial: true, TypeMarriage: true, TypeFuneral: true, TypeMaternity: true,
}

// DeductsQuota reports whether requests of this type draw from buckets.
func (t LeaveType) DeductsQuota() bool { return deductingTypes[t] }

// Valid reports whether the type is known.
func (t LeaveType) Valid() bool { return allTypes[t] }

// =============================================================================
// REQUEST KIND AND STATUS
// =============================================================================

// RequestKind distinguishes the two request variants. Both share one
// state machine; overtime never draws from quota (it creates quota).
type RequestKind string

const (
	KindLeave    RequestKind = "leave"
	KindOvertime RequestKind = "overtime"
)

// CompensationType is how approved overtime is repaid.
type CompensationType string

const (
	CompensationLeave CompensationType = "leave" // becomes a bonus-leave bucket
	CompensationPay   CompensationType = "pay"
)

// Status is a request's position in the approval state machine.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusCanceled Status = "canceled"
)

// =============================================================================
// USAGE - Binding of a request to a quota bucket
// =============================================================================

// Usage records how many hours a request holds at one bucket. The sum of
// a request's usages always equals its locked/used total. Usages are
// superseded (deleted and recreated) on revise and deleted on
// reject/cancel once the hours are returned.
type Usage struct {
	ID         int64
	RequestKey uuid.UUID
	BucketID   int64
	UsedHours  int        // > 0
	Date       *time.Time // calendar day, for daily attribution
}

// =============================================================================
// DAILY BREAKDOWN - Per-day working-hour contribution
// =============================================================================

// DailyBreakdown is one calendar day's share of a request's hours,
// unique per (request, date). Rebuilt whenever the span changes.
type DailyBreakdown struct {
	RequestKey uuid.UUID
	Date       time.Time
	Hours      int // > 0
}

// =============================================================================
// EMPLOYEE DIRECTORY - Consumed collaborator
// =============================================================================

// Role is the coarse permission level from the employee directory.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Employee is the slice of the user directory the engine consumes:
// identity, role, and join date (seniority input for quota grants).
type Employee struct {
	ID       string
	Name     string
	Role     Role
	JoinDate time.Time
}

// Seniority returns completed years of service at the given date.
func (e Employee) Seniority(at time.Time) int {
	years := at.Year() - e.JoinDate.Year()
	anniversary := e.JoinDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock supplies the current time. Tests pin it; production uses
// time.Now.
type Clock func() time.Time

// SameDate reports whether two instants fall on the same calendar day
// in the given location.
func SameDate(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
