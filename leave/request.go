/*
request.go - Request entity and approval state machine

PURPOSE:
  One polymorphic Request type covers both variants:
  - leave applications (may draw hours from quota buckets)
  - overtime records (create quota when compensated as leave)

  and both flavors of leave:
  - deducting types (annual, bonus, personal, sick) that lock and
    consume bucket hours
  - special statutory types (official, marriage, funeral, maternity)
    that pass through the same state machine without touching buckets

STATE MACHINE:

    pending ──approve──▶ approved
       │ ▲                  │
       │ └──── revise ──────┤ (also from rejected)
       │                    │
       ├──reject──▶ rejected◀┘
       │               │
       └──cancel──▶ canceled◀── cancel (pending, rejected:
                                 unconditional; approved: only
                                 before StartTime)

  Transition legality lives here as pure guards; the side effects
  (ledger mutation, usage rebuild, persistence, notification) are
  sequenced by the Service inside one transaction.

IDENTITY:
  Key (UUID) is the stable external identity; usages, breakdowns and
  audit rows reference it. ID is the storage sequence number. Soft
  deletion clears neither, so dependent rows survive for audit.

SEE ALSO:
  - service.go: runs the transitions transactionally
  - allocator.go: the ledger side effects of each transition
*/
package leave

import (
	"time"

	"github.com/google/uuid"

	"github.com/5xRuby/daikichi-sub000/calendar"
)

// =============================================================================
// REQUEST
// =============================================================================

// Request is a leave application or an overtime record.
type Request struct {
	ID  int64
	Key uuid.UUID

	Kind       RequestKind
	EmployeeID string
	ManagerID  *string // approving/rejecting manager, set on sign

	// For KindLeave: the leave type. For KindOvertime: TypeBonus when
	// Compensation is leave (the bucket type the grant will create).
	LeaveType    LeaveType
	Compensation CompensationType // overtime only

	StartTime   time.Time
	EndTime     time.Time
	Description string
	Hours       int // derived business hours, positive integer

	Status   Status
	SignDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time // soft delete; retained for audit
}

// DrawsFromQuota reports whether this request locks and consumes bucket
// hours. Overtime creates quota rather than consuming it, and special
// leave types are exempt by statute.
func (r *Request) DrawsFromQuota() bool {
	return r.Kind == KindLeave && r.LeaveType.DeductsQuota()
}

// Happened reports whether the request's span has started. Guard for
// cancel: an approved request that already started cannot be canceled.
func (r *Request) Happened(now time.Time) bool {
	return now.After(r.StartTime)
}

// Sign stamps the acting manager and sign date on approve/reject.
func (r *Request) Sign(managerID string, at time.Time) {
	r.ManagerID = &managerID
	r.SignDate = &at
}

// =============================================================================
// TRANSITION GUARDS
// =============================================================================
// Pure: they inspect state and return a *BusinessError when the
// transition is not permitted. The Service applies the side effects.

// CanApprove permits pending -> approved.
func (r *Request) CanApprove() error {
	if r.Status != StatusPending {
		return &BusinessError{Op: "approve", Status: r.Status}
	}
	return nil
}

// CanReject permits {pending, approved} -> rejected.
func (r *Request) CanReject() error {
	if r.Status != StatusPending && r.Status != StatusApproved {
		return &BusinessError{Op: "reject", Status: r.Status}
	}
	return nil
}

// CanRevise permits {pending, approved, rejected} -> pending.
func (r *Request) CanRevise() error {
	switch r.Status {
	case StatusPending, StatusApproved, StatusRejected:
		return nil
	default:
		return &BusinessError{Op: "revise", Status: r.Status}
	}
}

// CanCancel permits {pending, rejected} -> canceled unconditionally and
// approved -> canceled only while now <= StartTime.
func (r *Request) CanCancel(now time.Time) error {
	switch r.Status {
	case StatusPending, StatusRejected:
		return nil
	case StatusApproved:
		if r.Happened(now) {
			return &BusinessError{
				Op:     "cancel",
				Status: r.Status,
				Reason: "the request has already started",
			}
		}
		return nil
	default:
		return &BusinessError{Op: "cancel", Status: r.Status}
	}
}

// =============================================================================
// HOUR DERIVATION AND VALIDATION
// =============================================================================

// DeriveHours computes the request's business hours from its span and
// validates the result: the span must be forward, land on the schedule,
// and contain a positive whole number of hours. Returns the hours or a
// *ValidationError.
func DeriveHours(cal *calendar.BusinessCalendar, start, end time.Time) (int, error) {
	ve := NewValidationError()
	if start.IsZero() {
		ve.Add("start_time", "is required")
	}
	if end.IsZero() {
		ve.Add("end_time", "is required")
	}
	if !ve.Empty() {
		return 0, ve
	}
	if !end.After(start) {
		return 0, ve.Add("end_time", "must be after start time")
	}

	d := cal.WorkingDuration(start, end)
	if d <= 0 {
		return 0, ve.Add("start_time", "span contains no working time")
	}
	if d%time.Hour != 0 {
		return 0, ve.Add("hours", "span must cover a whole number of business hours")
	}
	return int(d / time.Hour), nil
}

// ValidateNew checks submission input beyond the span: employee, type,
// kind. Returns nil or a *ValidationError.
func (r *Request) ValidateNew() error {
	ve := NewValidationError()
	if r.EmployeeID == "" {
		ve.Add("employee_id", "is required")
	}
	switch r.Kind {
	case KindLeave:
		if !r.LeaveType.Valid() {
			ve.Add("leave_type", "is unknown")
		}
	case KindOvertime:
		if r.Compensation != CompensationLeave && r.Compensation != CompensationPay {
			ve.Add("compensation", "must be leave or pay")
		}
	default:
		ve.Add("kind", "must be leave or overtime")
	}
	if r.Hours <= 0 {
		ve.Add("hours", "must be a positive integer")
	}
	if ve.Empty() {
		return nil
	}
	return ve
}
