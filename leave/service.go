/*
service.go - Transactional facade over the accounting engine

PURPOSE:
  The Service is what the web layer calls. Each operation runs the full
  sequence

    validate -> mutate ledger -> persist -> notify

  with everything up to and including persist inside ONE store
  transaction. A failure at any step rolls the whole transition back:
  status, buckets, usages, and breakdowns keep their prior state.
  Notification happens after commit and is best-effort; a failing sink
  is logged and never undoes accounting.

TRANSITION TABLE (ledger side effects for quota-drawing requests):

  submit            lock hours at buckets      (BuildUsages)
  approve           locked -> used             (TransferLockedToUsed)
  reject pending    locked -> usable, drop usages
  reject approved   used -> locked -> usable, drop usages
  cancel pending    locked -> usable, drop usages
  cancel approved   used -> locked -> usable, drop usages
  cancel rejected   nothing (already released)
  revise            undo as above for the prior status, then relock
                    against the new span; insufficient quota fails the
                    whole revise and the prior state survives

  Special leave types and overtime skip every ledger step but share the
  same state machine.

SEE ALSO:
  - request.go: the pure transition guards
  - allocator.go: the ledger side effects
  - grant.go: quota provisioning (bucket creation)
*/
package leave

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/5xRuby/daikichi-sub000/calendar"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store    TxStore
	Cal      *calendar.BusinessCalendar
	Alloc    *Allocator
	Notifier Notifier
	Logger   *slog.Logger
	Now      Clock
}

// NewService wires a Service with the default allocation policy, a
// logging notification sink, and the wall clock.
func NewService(store TxStore, cal *calendar.BusinessCalendar, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:    store,
		Cal:      cal,
		Alloc:    &Allocator{Policy: DefaultAllocationPolicy()},
		Notifier: &LogNotifier{Logger: logger},
		Logger:   logger,
		Now:      time.Now,
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitInput is the submission payload from the caller.
type SubmitInput struct {
	EmployeeID   string
	Kind         RequestKind
	LeaveType    LeaveType
	Compensation CompensationType
	Start        time.Time
	End          time.Time
	Description  string
}

// SubmitRequest validates the input, derives business hours, locks
// quota for deducting leave types, and persists the pending request.
func (s *Service) SubmitRequest(ctx context.Context, in SubmitInput) (*Request, error) {
	hours, err := DeriveHours(s.Cal, in.Start, in.End)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	req := &Request{
		Key:          uuid.New(),
		Kind:         in.Kind,
		EmployeeID:   in.EmployeeID,
		LeaveType:    in.LeaveType,
		Compensation: in.Compensation,
		StartTime:    in.Start,
		EndTime:      in.End,
		Description:  in.Description,
		Hours:        hours,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Kind == KindOvertime && req.Compensation == CompensationLeave {
		req.LeaveType = TypeBonus
	}
	if err := req.ValidateNew(); err != nil {
		return nil, err
	}
	if _, err := s.Store.GetEmployee(ctx, in.EmployeeID); err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.InsertRequest(ctx, req); err != nil {
			return fmt.Errorf("inserting request: %w", err)
		}
		return s.allocate(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, EventSubmitted, req)
	return req, nil
}

// allocate builds the breakdown and locks hours for a quota-drawing
// request. No-op for special types and overtime.
func (s *Service) allocate(ctx context.Context, tx Store, req *Request) error {
	if !req.DrawsFromQuota() {
		return nil
	}
	breakdown := BuildDailyBreakdown(s.Cal, req.Key, req.StartTime, req.EndTime)
	if err := tx.ReplaceBreakdowns(ctx, req.Key, breakdown); err != nil {
		return fmt.Errorf("recording daily breakdown: %w", err)
	}
	if _, err := s.Alloc.BuildUsages(ctx, tx, req, breakdown); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// UPDATE / REVISE
// =============================================================================

// UpdateInput carries the editable fields; nil means "unchanged".
type UpdateInput struct {
	Start       *time.Time
	End         *time.Time
	LeaveType   *LeaveType
	Description *string
}

// spanChanged reports whether the update needs a revise (hours, usages
// and breakdowns re-derived) rather than a plain edit.
func (in UpdateInput) spanChanged() bool {
	return in.Start != nil || in.End != nil || in.LeaveType != nil
}

// UpdateRequest edits a request. Description-only edits keep the status.
// Changing the span or leave type revises: the request returns to
// pending, hours are re-derived, and usages and breakdowns are rebuilt
// against the current buckets. A revise that cannot find sufficient
// usable hours fails wholly; the prior allocation survives.
func (s *Service) UpdateRequest(ctx context.Context, key uuid.UUID, in UpdateInput) (*Request, error) {
	var req *Request
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		req, err = tx.GetRequest(ctx, key)
		if err != nil {
			return err
		}

		if !in.spanChanged() {
			if in.Description != nil {
				req.Description = *in.Description
			}
			req.UpdatedAt = s.Now()
			return tx.UpdateRequest(ctx, req)
		}

		if err := req.CanRevise(); err != nil {
			return err
		}
		return s.revise(ctx, tx, req, in)
	})
	if err != nil {
		return nil, err
	}

	if in.spanChanged() {
		s.notify(ctx, EventRevised, req)
	}
	return req, nil
}

func (s *Service) revise(ctx context.Context, tx Store, req *Request, in UpdateInput) error {
	// Undo the current allocation according to the status being left.
	if req.DrawsFromQuota() {
		switch req.Status {
		case StatusApproved:
			if err := s.Alloc.RevertUsedToLocked(ctx, tx, req); err != nil {
				return err
			}
			fallthrough
		case StatusPending:
			if err := s.Alloc.ReleaseUsages(ctx, tx, req); err != nil {
				return err
			}
		case StatusRejected:
			// Usages were already released on reject.
		}
	}

	if in.Start != nil {
		req.StartTime = *in.Start
	}
	if in.End != nil {
		req.EndTime = *in.End
	}
	if in.LeaveType != nil {
		req.LeaveType = *in.LeaveType
	}
	if in.Description != nil {
		req.Description = *in.Description
	}

	hours, err := DeriveHours(s.Cal, req.StartTime, req.EndTime)
	if err != nil {
		return err
	}
	req.Hours = hours
	req.Status = StatusPending
	req.ManagerID = nil
	req.SignDate = nil
	req.UpdatedAt = s.Now()
	if err := req.ValidateNew(); err != nil {
		return err
	}

	if err := s.allocate(ctx, tx, req); err != nil {
		return err
	}
	if !req.DrawsFromQuota() {
		// The type may have changed to a special one; drop stale rows.
		if err := tx.DeleteBreakdownsByRequest(ctx, req.Key); err != nil {
			return fmt.Errorf("deleting breakdowns: %w", err)
		}
	}
	return tx.UpdateRequest(ctx, req)
}

// =============================================================================
// APPROVE / REJECT / CANCEL
// =============================================================================

// ApproveRequest moves a pending request to approved, stamps the
// manager and sign date, and converts the locked hours to used.
func (s *Service) ApproveRequest(ctx context.Context, key uuid.UUID, managerID string) (*Request, error) {
	var req *Request
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		req, err = tx.GetRequest(ctx, key)
		if err != nil {
			return err
		}
		if err := req.CanApprove(); err != nil {
			return err
		}
		if _, err := tx.GetEmployee(ctx, managerID); err != nil {
			return err
		}

		req.Sign(managerID, s.Now())
		req.Status = StatusApproved
		req.UpdatedAt = s.Now()

		if req.DrawsFromQuota() {
			if err := s.Alloc.TransferLockedToUsed(ctx, tx, req); err != nil {
				return err
			}
		}
		return tx.UpdateRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, EventApproved, req)
	return req, nil
}

// RejectRequest moves a pending or approved request to rejected,
// returning every held hour to usable and dropping the usages.
func (s *Service) RejectRequest(ctx context.Context, key uuid.UUID, managerID string) (*Request, error) {
	var req *Request
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		req, err = tx.GetRequest(ctx, key)
		if err != nil {
			return err
		}
		if err := req.CanReject(); err != nil {
			return err
		}
		if _, err := tx.GetEmployee(ctx, managerID); err != nil {
			return err
		}

		prior := req.Status
		req.Sign(managerID, s.Now())
		req.Status = StatusRejected
		req.UpdatedAt = s.Now()

		if req.DrawsFromQuota() {
			if prior == StatusApproved {
				if err := s.Alloc.RevertUsedToLocked(ctx, tx, req); err != nil {
					return err
				}
			}
			if err := s.Alloc.ReleaseUsages(ctx, tx, req); err != nil {
				return err
			}
		}
		return tx.UpdateRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, EventRejected, req)
	return req, nil
}

// CancelRequest cancels a request. Pending and rejected requests cancel
// unconditionally; an approved request only before its start time.
func (s *Service) CancelRequest(ctx context.Context, key uuid.UUID) (*Request, error) {
	var req *Request
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		req, err = tx.GetRequest(ctx, key)
		if err != nil {
			return err
		}
		if err := req.CanCancel(s.Now()); err != nil {
			return err
		}

		prior := req.Status
		req.Status = StatusCanceled
		req.UpdatedAt = s.Now()

		if req.DrawsFromQuota() {
			switch prior {
			case StatusApproved:
				if err := s.Alloc.RevertUsedToLocked(ctx, tx, req); err != nil {
					return err
				}
				fallthrough
			case StatusPending:
				if err := s.Alloc.ReleaseUsages(ctx, tx, req); err != nil {
					return err
				}
			case StatusRejected:
				// Already released on reject.
			}
		}
		return tx.UpdateRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, EventCanceled, req)
	return req, nil
}

// =============================================================================
// DELETE (soft)
// =============================================================================

// DeleteRequest soft-deletes a request, first returning any held hours.
// The row is retained for audit; usages are dropped with the hours,
// breakdowns are removed.
func (s *Service) DeleteRequest(ctx context.Context, key uuid.UUID) error {
	return s.Store.WithTx(ctx, func(tx Store) error {
		req, err := tx.GetRequest(ctx, key)
		if err != nil {
			return err
		}

		if req.DrawsFromQuota() {
			switch req.Status {
			case StatusApproved:
				if err := s.Alloc.RevertUsedToLocked(ctx, tx, req); err != nil {
					return err
				}
				fallthrough
			case StatusPending:
				if err := s.Alloc.ReleaseUsages(ctx, tx, req); err != nil {
					return err
				}
			}
		}
		if err := tx.DeleteBreakdownsByRequest(ctx, req.Key); err != nil {
			return fmt.Errorf("deleting breakdowns: %w", err)
		}

		now := s.Now()
		req.DeletedAt = &now
		req.UpdatedAt = now
		return tx.UpdateRequest(ctx, req)
	})
}

// =============================================================================
// QUERIES
// =============================================================================

// GetRequest returns the live request with the key.
func (s *Service) GetRequest(ctx context.Context, key uuid.UUID) (*Request, error) {
	return s.Store.GetRequest(ctx, key)
}

// ListRequests returns live requests matching the filter.
func (s *Service) ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error) {
	return s.Store.ListRequests(ctx, f)
}

// Buckets returns the employee's buckets overlapping [from, to].
func (s *Service) Buckets(ctx context.Context, employeeID string, from, to time.Time) ([]*QuotaBucket, error) {
	return s.Store.BucketsFor(ctx, employeeID, nil, from, to)
}

// MonthlySummary sums approved leave hours by employee and type for one
// calendar month, clipping requests that straddle the month boundary.
func (s *Service) MonthlySummary(ctx context.Context, employeeID string, year int, month time.Month) (Summary, error) {
	g := &Aggregator{Store: s.Store, Cal: s.Cal}
	return g.MonthlySummary(ctx, employeeID, year, month)
}

// =============================================================================
// NOTIFICATION
// =============================================================================

func (s *Service) notify(ctx context.Context, kind EventKind, req *Request) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, Event{Kind: kind, Request: req}); err != nil {
		s.Logger.Warn("notification sink failed",
			slog.String("event", string(kind)),
			slog.String("request", req.Key.String()),
			slog.Any("error", err),
		)
	}
}
