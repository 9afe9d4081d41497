/*
store.go - Persistence contracts for the accounting engine

PURPOSE:
  Defines the interface between the engine and the database. Concrete
  implementations live in store/sqlite (production) and
  leave/store/memory (tests, dev).

KEY INTERFACES:
  BucketStore:    quota buckets and their CAS-guarded counters
  RequestStore:   requests (soft-delete aware) and reporting queries
  UsageStore:     request-to-bucket hour bindings
  BreakdownStore: per-day hour rows
  Directory:      the consumed employee/user directory
  Store:          all of the above - the view handed to a transaction
  TxStore:        Store plus WithTx

TRANSACTIONS:
  Every request transition (status change + usage reallocation + bucket
  debit/credit + breakdown rebuild) runs inside one WithTx call. A
  failure at any step rolls back the whole transition: status, buckets,
  and usages all keep their prior state.

CONCURRENCY:
  SaveBucketCounters is a compare-and-swap on Version and returns
  ErrConcurrentModification when another writer got there first.
  Last-writer-wins on quota counters is not acceptable; the store must
  reject stale writes.
*/
package leave

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// BUCKET STORE
// =============================================================================

type BucketStore interface {
	// InsertBucket persists a new bucket and assigns its ID.
	InsertBucket(ctx context.Context, b *QuotaBucket) error

	// GetBucket returns the bucket or ErrBucketNotFound.
	GetBucket(ctx context.Context, id int64) (*QuotaBucket, error)

	// BucketsFor returns the employee's buckets of the given types whose
	// validity windows overlap [from, to], ordered by effective date then
	// id. Nil types means all types.
	BucketsFor(ctx context.Context, employeeID string, types []LeaveType, from, to time.Time) ([]*QuotaBucket, error)

	// SaveBucketCounters writes usable/locked/used atomically, guarded by
	// Version. Returns ErrConcurrentModification on a stale version; on
	// success Version is bumped on the passed bucket.
	SaveBucketCounters(ctx context.Context, b *QuotaBucket) error
}

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestFilter narrows reporting queries. Zero values mean "any".
type RequestFilter struct {
	EmployeeID string
	Kind       RequestKind
	LeaveType  LeaveType
}

type RequestStore interface {
	// InsertRequest persists a new request and assigns its ID.
	InsertRequest(ctx context.Context, r *Request) error

	// UpdateRequest persists the request's current state.
	UpdateRequest(ctx context.Context, r *Request) error

	// GetRequest returns the live (not soft-deleted) request with the
	// key, or ErrRequestNotFound.
	GetRequest(ctx context.Context, key uuid.UUID) (*Request, error)

	// ApprovedOverlapping returns approved, live requests matching the
	// filter whose [StartTime, EndTime] overlaps [from, to].
	ApprovedOverlapping(ctx context.Context, f RequestFilter, from, to time.Time) ([]*Request, error)

	// ListRequests returns live requests matching the filter, newest
	// first.
	ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error)
}

// =============================================================================
// USAGE AND BREAKDOWN STORES
// =============================================================================

type UsageStore interface {
	InsertUsages(ctx context.Context, usages []Usage) error
	UsagesByRequest(ctx context.Context, key uuid.UUID) ([]Usage, error)
	DeleteUsagesByRequest(ctx context.Context, key uuid.UUID) error
}

type BreakdownStore interface {
	// ReplaceBreakdowns deletes any existing rows for the request and
	// inserts the new set (the rebuild on revise).
	ReplaceBreakdowns(ctx context.Context, key uuid.UUID, rows []DailyBreakdown) error
	BreakdownsByRequest(ctx context.Context, key uuid.UUID) ([]DailyBreakdown, error)
	DeleteBreakdownsByRequest(ctx context.Context, key uuid.UUID) error
}

// =============================================================================
// DIRECTORY - Consumed employee/user directory
// =============================================================================

type Directory interface {
	// GetEmployee returns the employee or ErrEmployeeNotFound.
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	PutEmployee(ctx context.Context, e Employee) error
}

// =============================================================================
// COMPOSED STORE
// =============================================================================

// Store is the full persistence surface, as seen from inside a
// transaction.
type Store interface {
	BucketStore
	RequestStore
	UsageStore
	BreakdownStore
	Directory
}

// TxStore is a Store that can open transactions.
type TxStore interface {
	Store

	// WithTx executes fn within one atomic transaction. If fn returns an
	// error the transaction is rolled back and the error returned.
	WithTx(ctx context.Context, fn func(Store) error) error
}
