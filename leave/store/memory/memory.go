// Package memory provides an in-memory leave.TxStore (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/5xRuby/daikichi-sub000/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	buckets      map[int64]*leave.QuotaBucket
	nextBucketID int64

	requests      map[uuid.UUID]*leave.Request
	nextRequestID int64

	usages      map[uuid.UUID][]leave.Usage
	nextUsageID int64

	breakdowns map[uuid.UUID][]leave.DailyBreakdown

	employees map[string]leave.Employee
}

func New() *Memory {
	return &Memory{
		buckets:    make(map[int64]*leave.QuotaBucket),
		requests:   make(map[uuid.UUID]*leave.Request),
		usages:     make(map[uuid.UUID][]leave.Usage),
		breakdowns: make(map[uuid.UUID][]leave.DailyBreakdown),
		employees:  make(map[string]leave.Employee),
	}
}

// -----------------------------------------------------------------------------
// Buckets
// -----------------------------------------------------------------------------

func (m *Memory) InsertBucket(_ context.Context, b *leave.QuotaBucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertBucketLocked(b)
}

func (m *Memory) insertBucketLocked(b *leave.QuotaBucket) error {
	m.nextBucketID++
	b.ID = m.nextBucketID
	stored := *b
	m.buckets[b.ID] = &stored
	return nil
}

func (m *Memory) GetBucket(_ context.Context, id int64) (*leave.QuotaBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBucketLocked(id)
}

func (m *Memory) getBucketLocked(id int64) (*leave.QuotaBucket, error) {
	b, ok := m.buckets[id]
	if !ok {
		return nil, leave.ErrBucketNotFound
	}
	out := *b
	return &out, nil
}

func (m *Memory) BucketsFor(_ context.Context, employeeID string, types []leave.LeaveType, from, to time.Time) ([]*leave.QuotaBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bucketsForLocked(employeeID, types, from, to)
}

func (m *Memory) bucketsForLocked(employeeID string, types []leave.LeaveType, from, to time.Time) ([]*leave.QuotaBucket, error) {
	wanted := make(map[leave.LeaveType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	var result []*leave.QuotaBucket
	for _, b := range m.buckets {
		if b.EmployeeID != employeeID {
			continue
		}
		if len(types) > 0 && !wanted[b.LeaveType] {
			continue
		}
		if b.EffectiveDate.After(to) || b.ExpirationDate.Before(from) {
			continue
		}
		out := *b
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].EffectiveDate.Equal(result[j].EffectiveDate) {
			return result[i].EffectiveDate.Before(result[j].EffectiveDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) SaveBucketCounters(_ context.Context, b *leave.QuotaBucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveBucketCountersLocked(b)
}

func (m *Memory) saveBucketCountersLocked(b *leave.QuotaBucket) error {
	stored, ok := m.buckets[b.ID]
	if !ok {
		return leave.ErrBucketNotFound
	}
	if stored.Version != b.Version {
		return leave.ErrConcurrentModification
	}
	stored.UsableHours = b.UsableHours
	stored.LockedHours = b.LockedHours
	stored.UsedHours = b.UsedHours
	stored.Version++
	b.Version = stored.Version
	return nil
}

// -----------------------------------------------------------------------------
// Requests
// -----------------------------------------------------------------------------

func (m *Memory) InsertRequest(_ context.Context, r *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertRequestLocked(r)
}

func (m *Memory) insertRequestLocked(r *leave.Request) error {
	m.nextRequestID++
	r.ID = m.nextRequestID
	stored := *r
	m.requests[r.Key] = &stored
	return nil
}

func (m *Memory) UpdateRequest(_ context.Context, r *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateRequestLocked(r)
}

func (m *Memory) updateRequestLocked(r *leave.Request) error {
	if _, ok := m.requests[r.Key]; !ok {
		return leave.ErrRequestNotFound
	}
	stored := *r
	m.requests[r.Key] = &stored
	return nil
}

func (m *Memory) GetRequest(_ context.Context, key uuid.UUID) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequestLocked(key)
}

func (m *Memory) getRequestLocked(key uuid.UUID) (*leave.Request, error) {
	r, ok := m.requests[key]
	if !ok || r.DeletedAt != nil {
		return nil, leave.ErrRequestNotFound
	}
	out := *r
	return &out, nil
}

func matches(r *leave.Request, f leave.RequestFilter) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.LeaveType != "" && r.LeaveType != f.LeaveType {
		return false
	}
	return true
}

func (m *Memory) ApprovedOverlapping(_ context.Context, f leave.RequestFilter, from, to time.Time) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.approvedOverlappingLocked(f, from, to)
}

func (m *Memory) approvedOverlappingLocked(f leave.RequestFilter, from, to time.Time) ([]*leave.Request, error) {
	var result []*leave.Request
	for _, r := range m.requests {
		if r.DeletedAt != nil || r.Status != leave.StatusApproved || !matches(r, f) {
			continue
		}
		if r.StartTime.After(to) || r.EndTime.Before(from) {
			continue
		}
		out := *r
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *Memory) ListRequests(_ context.Context, f leave.RequestFilter) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRequestsLocked(f)
}

func (m *Memory) listRequestsLocked(f leave.RequestFilter) ([]*leave.Request, error) {
	var result []*leave.Request
	for _, r := range m.requests {
		if r.DeletedAt != nil || !matches(r, f) {
			continue
		}
		out := *r
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

// -----------------------------------------------------------------------------
// Usages
// -----------------------------------------------------------------------------

func (m *Memory) InsertUsages(_ context.Context, usages []leave.Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertUsagesLocked(usages)
}

func (m *Memory) insertUsagesLocked(usages []leave.Usage) error {
	for _, u := range usages {
		m.nextUsageID++
		u.ID = m.nextUsageID
		m.usages[u.RequestKey] = append(m.usages[u.RequestKey], u)
	}
	return nil
}

func (m *Memory) UsagesByRequest(_ context.Context, key uuid.UUID) ([]leave.Usage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usagesByRequestLocked(key)
}

func (m *Memory) usagesByRequestLocked(key uuid.UUID) ([]leave.Usage, error) {
	result := make([]leave.Usage, len(m.usages[key]))
	copy(result, m.usages[key])
	return result, nil
}

func (m *Memory) DeleteUsagesByRequest(_ context.Context, key uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteUsagesByRequestLocked(key)
}

func (m *Memory) deleteUsagesByRequestLocked(key uuid.UUID) error {
	delete(m.usages, key)
	return nil
}

// -----------------------------------------------------------------------------
// Breakdowns
// -----------------------------------------------------------------------------

func (m *Memory) ReplaceBreakdowns(_ context.Context, key uuid.UUID, rows []leave.DailyBreakdown) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceBreakdownsLocked(key, rows)
}

func (m *Memory) replaceBreakdownsLocked(key uuid.UUID, rows []leave.DailyBreakdown) error {
	stored := make([]leave.DailyBreakdown, len(rows))
	copy(stored, rows)
	m.breakdowns[key] = stored
	return nil
}

func (m *Memory) BreakdownsByRequest(_ context.Context, key uuid.UUID) ([]leave.DailyBreakdown, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.breakdownsByRequestLocked(key)
}

func (m *Memory) breakdownsByRequestLocked(key uuid.UUID) ([]leave.DailyBreakdown, error) {
	result := make([]leave.DailyBreakdown, len(m.breakdowns[key]))
	copy(result, m.breakdowns[key])
	return result, nil
}

func (m *Memory) DeleteBreakdownsByRequest(_ context.Context, key uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteBreakdownsByRequestLocked(key)
}

func (m *Memory) deleteBreakdownsByRequestLocked(key uuid.UUID) error {
	delete(m.breakdowns, key)
	return nil
}

// -----------------------------------------------------------------------------
// Directory
// -----------------------------------------------------------------------------

func (m *Memory) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmployeeLocked(id)
}

func (m *Memory) getEmployeeLocked(id string) (*leave.Employee, error) {
	e, ok := m.employees[id]
	if !ok {
		return nil, leave.ErrEmployeeNotFound
	}
	return &e, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEmployeesLocked()
}

func (m *Memory) listEmployeesLocked() ([]leave.Employee, error) {
	result := make([]leave.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) PutEmployee(_ context.Context, e leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putEmployeeLocked(e)
}

func (m *Memory) putEmployeeLocked(e leave.Employee) error {
	m.employees[e.ID] = e
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTx() *TxMemory {
	return &TxMemory{Memory: New()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on
// error. The store lock is held for the whole call, so a transaction
// also serializes against concurrent readers.
func (tm *TxMemory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()

	if err := fn(&txView{parent: tm.Memory}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	buckets       map[int64]*leave.QuotaBucket
	nextBucketID  int64
	requests      map[uuid.UUID]*leave.Request
	nextRequestID int64
	usages        map[uuid.UUID][]leave.Usage
	nextUsageID   int64
	breakdowns    map[uuid.UUID][]leave.DailyBreakdown
	employees     map[string]leave.Employee
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		buckets:       make(map[int64]*leave.QuotaBucket, len(tm.buckets)),
		nextBucketID:  tm.nextBucketID,
		requests:      make(map[uuid.UUID]*leave.Request, len(tm.requests)),
		nextRequestID: tm.nextRequestID,
		usages:        make(map[uuid.UUID][]leave.Usage, len(tm.usages)),
		nextUsageID:   tm.nextUsageID,
		breakdowns:    make(map[uuid.UUID][]leave.DailyBreakdown, len(tm.breakdowns)),
		employees:     make(map[string]leave.Employee, len(tm.employees)),
	}
	for id, b := range tm.buckets {
		copied := *b
		s.buckets[id] = &copied
	}
	for key, r := range tm.requests {
		copied := *r
		s.requests[key] = &copied
	}
	for key, us := range tm.usages {
		s.usages[key] = append([]leave.Usage(nil), us...)
	}
	for key, rows := range tm.breakdowns {
		s.breakdowns[key] = append([]leave.DailyBreakdown(nil), rows...)
	}
	for id, e := range tm.employees {
		s.employees[id] = e
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.buckets = s.buckets
	tm.nextBucketID = s.nextBucketID
	tm.requests = s.requests
	tm.nextRequestID = s.nextRequestID
	tm.usages = s.usages
	tm.nextUsageID = s.nextUsageID
	tm.breakdowns = s.breakdowns
	tm.employees = s.employees
}

// txView is the Store handed to a transaction body. The parent's lock
// is already held, so it calls the unlocked internals directly.
type txView struct {
	parent *Memory
}

func (tv *txView) InsertBucket(_ context.Context, b *leave.QuotaBucket) error {
	return tv.parent.insertBucketLocked(b)
}

func (tv *txView) GetBucket(_ context.Context, id int64) (*leave.QuotaBucket, error) {
	return tv.parent.getBucketLocked(id)
}

func (tv *txView) BucketsFor(_ context.Context, employeeID string, types []leave.LeaveType, from, to time.Time) ([]*leave.QuotaBucket, error) {
	return tv.parent.bucketsForLocked(employeeID, types, from, to)
}

func (tv *txView) SaveBucketCounters(_ context.Context, b *leave.QuotaBucket) error {
	return tv.parent.saveBucketCountersLocked(b)
}

func (tv *txView) InsertRequest(_ context.Context, r *leave.Request) error {
	return tv.parent.insertRequestLocked(r)
}

func (tv *txView) UpdateRequest(_ context.Context, r *leave.Request) error {
	return tv.parent.updateRequestLocked(r)
}

func (tv *txView) GetRequest(_ context.Context, key uuid.UUID) (*leave.Request, error) {
	return tv.parent.getRequestLocked(key)
}

func (tv *txView) ApprovedOverlapping(_ context.Context, f leave.RequestFilter, from, to time.Time) ([]*leave.Request, error) {
	return tv.parent.approvedOverlappingLocked(f, from, to)
}

func (tv *txView) ListRequests(_ context.Context, f leave.RequestFilter) ([]*leave.Request, error) {
	return tv.parent.listRequestsLocked(f)
}

func (tv *txView) InsertUsages(_ context.Context, usages []leave.Usage) error {
	return tv.parent.insertUsagesLocked(usages)
}

func (tv *txView) UsagesByRequest(_ context.Context, key uuid.UUID) ([]leave.Usage, error) {
	return tv.parent.usagesByRequestLocked(key)
}

func (tv *txView) DeleteUsagesByRequest(_ context.Context, key uuid.UUID) error {
	return tv.parent.deleteUsagesByRequestLocked(key)
}

func (tv *txView) ReplaceBreakdowns(_ context.Context, key uuid.UUID, rows []leave.DailyBreakdown) error {
	return tv.parent.replaceBreakdownsLocked(key, rows)
}

func (tv *txView) BreakdownsByRequest(_ context.Context, key uuid.UUID) ([]leave.DailyBreakdown, error) {
	return tv.parent.breakdownsByRequestLocked(key)
}

func (tv *txView) DeleteBreakdownsByRequest(_ context.Context, key uuid.UUID) error {
	return tv.parent.deleteBreakdownsByRequestLocked(key)
}

func (tv *txView) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	return tv.parent.getEmployeeLocked(id)
}

func (tv *txView) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	return tv.parent.listEmployeesLocked()
}

func (tv *txView) PutEmployee(_ context.Context, e leave.Employee) error {
	return tv.parent.putEmployeeLocked(e)
}
