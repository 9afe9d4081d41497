/*
Package sqlite provides a SQLite-backed implementation of leave.TxStore.

PURPOSE:
  Implements the full persistence surface (buckets, requests, usages,
  daily breakdowns, employee directory) on SQLite. The same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees:        Consumed employee directory
  quota_buckets:    Quota buckets with usable/locked/used counters
  requests:         Leave and overtime requests (soft-deleted)
  usages:           Request-to-bucket hour bindings
  daily_breakdowns: Per-day working-hour rows

CONCURRENCY:
  Counter writes are compare-and-swap on the version column; a stale
  version yields leave.ErrConcurrentModification instead of silently
  overwriting another writer's debit. A sync.RWMutex additionally
  serializes access within the process.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := leave.NewService(store, cal, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/5xRuby/daikichi-sub000/leave"
)

// Store implements leave.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second pooled connection to ":memory:" would open a second,
	// empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees (consumed directory)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		join_date TEXT NOT NULL
	);

	-- Quota buckets
	CREATE TABLE IF NOT EXISTS quota_buckets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		leave_type TEXT NOT NULL,
		quota INTEGER NOT NULL,
		usable_hours INTEGER NOT NULL,
		locked_hours INTEGER NOT NULL,
		used_hours INTEGER NOT NULL,
		effective_date TEXT NOT NULL,
		expiration_date TEXT NOT NULL,
		overtime_key TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Hot path: the allocator's candidate-bucket scan
	CREATE INDEX IF NOT EXISTS idx_buckets_employee_type
		ON quota_buckets(employee_id, leave_type, effective_date);
	CREATE INDEX IF NOT EXISTS idx_buckets_overtime
		ON quota_buckets(overtime_key) WHERE overtime_key IS NOT NULL;

	-- Requests (soft-deleted; key is the stable external identifier)
	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		manager_id TEXT,
		leave_type TEXT NOT NULL,
		compensation TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		hours INTEGER NOT NULL,
		status TEXT NOT NULL,
		sign_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id) WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status) WHERE deleted_at IS NULL;
	-- Monthly report scan: approved requests overlapping a window
	CREATE INDEX IF NOT EXISTS idx_requests_window
		ON requests(employee_id, start_time, end_time)
		WHERE status = 'approved' AND deleted_at IS NULL;

	-- Usages (request-to-bucket hour bindings)
	CREATE TABLE IF NOT EXISTS usages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_key TEXT NOT NULL,
		bucket_id INTEGER NOT NULL REFERENCES quota_buckets(id),
		used_hours INTEGER NOT NULL,
		date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_usages_request
		ON usages(request_key);

	-- Daily breakdowns
	CREATE TABLE IF NOT EXISTS daily_breakdowns (
		request_key TEXT NOT NULL,
		date TEXT NOT NULL,
		hours INTEGER NOT NULL,
		PRIMARY KEY (request_key, date)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every query helper
// runs either standalone or inside WithTx. Reads inside a transaction
// must see the transaction's own writes, so txStore routes reads
// through the *sql.Tx too.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// BUCKET STORE
// =============================================================================

func (s *Store) InsertBucket(ctx context.Context, b *leave.QuotaBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertBucket(ctx, s.db, b)
}

func (s *Store) insertBucket(ctx context.Context, db dbtx, b *leave.QuotaBucket) error {
	query := `
		INSERT INTO quota_buckets
		(employee_id, leave_type, quota, usable_hours, locked_hours, used_hours,
		 effective_date, expiration_date, overtime_key, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var overtimeKey *string
	if b.OvertimeKey != nil {
		k := b.OvertimeKey.String()
		overtimeKey = &k
	}

	res, err := db.ExecContext(ctx, query,
		b.EmployeeID,
		string(b.LeaveType),
		b.Quota,
		b.UsableHours,
		b.LockedHours,
		b.UsedHours,
		b.EffectiveDate.Format(time.RFC3339),
		b.ExpirationDate.Format(time.RFC3339),
		overtimeKey,
		b.Version,
		b.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bucket: %w", err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetBucket(ctx context.Context, id int64) (*leave.QuotaBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBucket(ctx, s.db, id)
}

const bucketColumns = `id, employee_id, leave_type, quota, usable_hours, locked_hours,
	used_hours, effective_date, expiration_date, overtime_key, version, created_at`

func (s *Store) getBucket(ctx context.Context, db dbtx, id int64) (*leave.QuotaBucket, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+bucketColumns+" FROM quota_buckets WHERE id = ?", id)

	b, err := scanBucket(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrBucketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan bucket: %w", err)
	}
	return b, nil
}

func (s *Store) BucketsFor(ctx context.Context, employeeID string, types []leave.LeaveType, from, to time.Time) ([]*leave.QuotaBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bucketsFor(ctx, s.db, employeeID, types, from, to)
}

func (s *Store) bucketsFor(ctx context.Context, db dbtx, employeeID string, types []leave.LeaveType, from, to time.Time) ([]*leave.QuotaBucket, error) {
	query := "SELECT " + bucketColumns + ` FROM quota_buckets
		WHERE employee_id = ? AND effective_date <= ? AND expiration_date >= ?`
	args := []any{employeeID, to.Format(time.RFC3339), from.Format(time.RFC3339)}

	if len(types) > 0 {
		placeholders := strings.Repeat("?, ", len(types))
		query += " AND leave_type IN (" + placeholders[:len(placeholders)-2] + ")"
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	query += " ORDER BY effective_date ASC, id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*leave.QuotaBucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

func (s *Store) SaveBucketCounters(ctx context.Context, b *leave.QuotaBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveBucketCounters(ctx, s.db, b)
}

func (s *Store) saveBucketCounters(ctx context.Context, db dbtx, b *leave.QuotaBucket) error {
	query := `
		UPDATE quota_buckets
		SET usable_hours = ?, locked_hours = ?, used_hours = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	res, err := db.ExecContext(ctx, query,
		b.UsableHours, b.LockedHours, b.UsedHours, b.ID, b.Version)
	if err != nil {
		return fmt.Errorf("failed to save bucket counters: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the bucket is gone or another writer bumped the version.
		var exists int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM quota_buckets WHERE id = ?", b.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return leave.ErrBucketNotFound
		}
		return leave.ErrConcurrentModification
	}
	b.Version++
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBucket(row scannable) (*leave.QuotaBucket, error) {
	var (
		b              leave.QuotaBucket
		leaveType      string
		effectiveDate  string
		expirationDate string
		overtimeKey    sql.NullString
		createdAt      string
	)

	err := row.Scan(
		&b.ID, &b.EmployeeID, &leaveType, &b.Quota, &b.UsableHours,
		&b.LockedHours, &b.UsedHours, &effectiveDate, &expirationDate,
		&overtimeKey, &b.Version, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	b.LeaveType = leave.LeaveType(leaveType)
	if b.EffectiveDate, err = parseTime("effective_date", effectiveDate); err != nil {
		return nil, err
	}
	if b.ExpirationDate, err = parseTime("expiration_date", expirationDate); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if overtimeKey.Valid {
		k, err := uuid.Parse(overtimeKey.String)
		if err != nil {
			return nil, fmt.Errorf("invalid overtime key %q: %w", overtimeKey.String, err)
		}
		b.OvertimeKey = &k
	}
	return &b, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *Store) InsertRequest(ctx context.Context, r *leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertRequest(ctx, s.db, r)
}

func (s *Store) insertRequest(ctx context.Context, db dbtx, r *leave.Request) error {
	query := `
		INSERT INTO requests
		(key, kind, employee_id, manager_id, leave_type, compensation,
		 start_time, end_time, description, hours, status, sign_date,
		 created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := db.ExecContext(ctx, query,
		r.Key.String(),
		string(r.Kind),
		r.EmployeeID,
		r.ManagerID,
		string(r.LeaveType),
		string(r.Compensation),
		r.StartTime.Format(time.RFC3339),
		r.EndTime.Format(time.RFC3339),
		r.Description,
		r.Hours,
		string(r.Status),
		nullTime(r.SignDate),
		r.CreatedAt.Format(time.RFC3339),
		r.UpdatedAt.Format(time.RFC3339),
		nullTime(r.DeletedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("request key %s already exists: %w", r.Key, err)
		}
		return fmt.Errorf("failed to insert request: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UpdateRequest(ctx context.Context, r *leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRequest(ctx, s.db, r)
}

func (s *Store) updateRequest(ctx context.Context, db dbtx, r *leave.Request) error {
	query := `
		UPDATE requests
		SET manager_id = ?, leave_type = ?, compensation = ?, start_time = ?,
		    end_time = ?, description = ?, hours = ?, status = ?, sign_date = ?,
		    updated_at = ?, deleted_at = ?
		WHERE key = ?
	`

	res, err := db.ExecContext(ctx, query,
		r.ManagerID,
		string(r.LeaveType),
		string(r.Compensation),
		r.StartTime.Format(time.RFC3339),
		r.EndTime.Format(time.RFC3339),
		r.Description,
		r.Hours,
		string(r.Status),
		nullTime(r.SignDate),
		r.UpdatedAt.Format(time.RFC3339),
		nullTime(r.DeletedAt),
		r.Key.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return leave.ErrRequestNotFound
	}
	return nil
}

const requestColumns = `id, key, kind, employee_id, manager_id, leave_type, compensation,
	start_time, end_time, description, hours, status, sign_date,
	created_at, updated_at, deleted_at`

func (s *Store) GetRequest(ctx context.Context, key uuid.UUID) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRequest(ctx, s.db, key)
}

func (s *Store) getRequest(ctx context.Context, db dbtx, key uuid.UUID) (*leave.Request, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE key = ? AND deleted_at IS NULL",
		key.String())

	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}
	return r, nil
}

func (s *Store) ApprovedOverlapping(ctx context.Context, f leave.RequestFilter, from, to time.Time) ([]*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approvedOverlapping(ctx, s.db, f, from, to)
}

func (s *Store) approvedOverlapping(ctx context.Context, db dbtx, f leave.RequestFilter, from, to time.Time) ([]*leave.Request, error) {
	query := "SELECT " + requestColumns + ` FROM requests
		WHERE status = 'approved' AND deleted_at IS NULL
		  AND start_time <= ? AND end_time >= ?`
	args := []any{to.Format(time.RFC3339), from.Format(time.RFC3339)}
	query, args = applyFilter(query, args, f)
	query += " ORDER BY start_time ASC"

	return s.queryRequests(ctx, db, query, args...)
}

func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRequests(ctx, s.db, f)
}

func (s *Store) listRequests(ctx context.Context, db dbtx, f leave.RequestFilter) ([]*leave.Request, error) {
	query := "SELECT " + requestColumns + " FROM requests WHERE deleted_at IS NULL"
	var args []any
	query, args = applyFilter(query, args, f)
	query += " ORDER BY id DESC"

	return s.queryRequests(ctx, db, query, args...)
}

func applyFilter(query string, args []any, f leave.RequestFilter) (string, []any) {
	if f.EmployeeID != "" {
		query += " AND employee_id = ?"
		args = append(args, f.EmployeeID)
	}
	if f.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(f.Kind))
	}
	if f.LeaveType != "" {
		query += " AND leave_type = ?"
		args = append(args, string(f.LeaveType))
	}
	return query, args
}

func (s *Store) queryRequests(ctx context.Context, db dbtx, query string, args ...any) ([]*leave.Request, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []*leave.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func scanRequest(row scannable) (*leave.Request, error) {
	var (
		r            leave.Request
		key          string
		kind         string
		managerID    sql.NullString
		leaveType    string
		compensation string
		startTime    string
		endTime      string
		status       string
		signDate     sql.NullString
		createdAt    string
		updatedAt    string
		deletedAt    sql.NullString
	)

	err := row.Scan(
		&r.ID, &key, &kind, &r.EmployeeID, &managerID, &leaveType,
		&compensation, &startTime, &endTime, &r.Description, &r.Hours,
		&status, &signDate, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Key, err = uuid.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("invalid request key %q: %w", key, err)
	}
	r.Kind = leave.RequestKind(kind)
	r.LeaveType = leave.LeaveType(leaveType)
	r.Compensation = leave.CompensationType(compensation)
	r.Status = leave.Status(status)
	if managerID.Valid {
		m := managerID.String
		r.ManagerID = &m
	}
	if r.StartTime, err = parseTime("start_time", startTime); err != nil {
		return nil, err
	}
	if r.EndTime, err = parseTime("end_time", endTime); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	r.SignDate = parseNullTime(signDate)
	r.DeletedAt = parseNullTime(deletedAt)
	return &r, nil
}

// =============================================================================
// USAGE STORE
// =============================================================================

func (s *Store) InsertUsages(ctx context.Context, usages []leave.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertUsages(ctx, s.db, usages)
}

func (s *Store) insertUsages(ctx context.Context, db dbtx, usages []leave.Usage) error {
	query := `
		INSERT INTO usages (request_key, bucket_id, used_hours, date)
		VALUES (?, ?, ?, ?)
	`
	for _, u := range usages {
		if _, err := db.ExecContext(ctx, query,
			u.RequestKey.String(), u.BucketID, u.UsedHours, nullTime(u.Date)); err != nil {
			return fmt.Errorf("failed to insert usage: %w", err)
		}
	}
	return nil
}

func (s *Store) UsagesByRequest(ctx context.Context, key uuid.UUID) ([]leave.Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usagesByRequest(ctx, s.db, key)
}

func (s *Store) usagesByRequest(ctx context.Context, db dbtx, key uuid.UUID) ([]leave.Usage, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, request_key, bucket_id, used_hours, date FROM usages WHERE request_key = ? ORDER BY id ASC",
		key.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query usages: %w", err)
	}
	defer rows.Close()

	var usages []leave.Usage
	for rows.Next() {
		var (
			u       leave.Usage
			reqKey  string
			dateStr sql.NullString
		)
		if err := rows.Scan(&u.ID, &reqKey, &u.BucketID, &u.UsedHours, &dateStr); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		u.RequestKey, err = uuid.Parse(reqKey)
		if err != nil {
			return nil, fmt.Errorf("invalid request key %q: %w", reqKey, err)
		}
		u.Date = parseNullTime(dateStr)
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

func (s *Store) DeleteUsagesByRequest(ctx context.Context, key uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteUsagesByRequest(ctx, s.db, key)
}

func (s *Store) deleteUsagesByRequest(ctx context.Context, db dbtx, key uuid.UUID) error {
	_, err := db.ExecContext(ctx, "DELETE FROM usages WHERE request_key = ?", key.String())
	return err
}

// =============================================================================
// BREAKDOWN STORE
// =============================================================================

func (s *Store) ReplaceBreakdowns(ctx context.Context, key uuid.UUID, rows []leave.DailyBreakdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceBreakdowns(ctx, s.db, key, rows)
}

func (s *Store) replaceBreakdowns(ctx context.Context, db dbtx, key uuid.UUID, rows []leave.DailyBreakdown) error {
	if err := s.deleteBreakdownsByRequest(ctx, db, key); err != nil {
		return err
	}
	query := `
		INSERT INTO daily_breakdowns (request_key, date, hours)
		VALUES (?, ?, ?)
	`
	for _, row := range rows {
		if _, err := db.ExecContext(ctx, query,
			key.String(), row.Date.Format("2006-01-02"), row.Hours); err != nil {
			return fmt.Errorf("failed to insert breakdown: %w", err)
		}
	}
	return nil
}

func (s *Store) BreakdownsByRequest(ctx context.Context, key uuid.UUID) ([]leave.DailyBreakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.breakdownsByRequest(ctx, s.db, key)
}

func (s *Store) breakdownsByRequest(ctx context.Context, db dbtx, key uuid.UUID) ([]leave.DailyBreakdown, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT request_key, date, hours FROM daily_breakdowns WHERE request_key = ? ORDER BY date ASC",
		key.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query breakdowns: %w", err)
	}
	defer rows.Close()

	var result []leave.DailyBreakdown
	for rows.Next() {
		var (
			b       leave.DailyBreakdown
			reqKey  string
			dateStr string
		)
		if err := rows.Scan(&reqKey, &dateStr, &b.Hours); err != nil {
			return nil, fmt.Errorf("failed to scan breakdown: %w", err)
		}
		b.RequestKey, err = uuid.Parse(reqKey)
		if err != nil {
			return nil, fmt.Errorf("invalid request key %q: %w", reqKey, err)
		}
		b.Date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid breakdown date %q: %w", dateStr, err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *Store) DeleteBreakdownsByRequest(ctx context.Context, key uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteBreakdownsByRequest(ctx, s.db, key)
}

func (s *Store) deleteBreakdownsByRequest(ctx context.Context, db dbtx, key uuid.UUID) error {
	_, err := db.ExecContext(ctx, "DELETE FROM daily_breakdowns WHERE request_key = ?", key.String())
	return err
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployee(ctx, s.db, id)
}

func (s *Store) getEmployee(ctx context.Context, db dbtx, id string) (*leave.Employee, error) {
	var (
		e        leave.Employee
		role     string
		joinDate string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, name, role, join_date FROM employees WHERE id = ?", id,
	).Scan(&e.ID, &e.Name, &role, &joinDate)
	if err == sql.ErrNoRows {
		return nil, leave.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Role = leave.Role(role)
	if e.JoinDate, err = parseTime("join_date", joinDate); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEmployees(ctx, s.db)
}

func (s *Store) listEmployees(ctx context.Context, db dbtx) ([]leave.Employee, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, role, join_date FROM employees ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []leave.Employee
	for rows.Next() {
		var (
			e        leave.Employee
			role     string
			joinDate string
		)
		if err := rows.Scan(&e.ID, &e.Name, &role, &joinDate); err != nil {
			return nil, err
		}
		e.Role = leave.Role(role)
		if e.JoinDate, err = parseTime("join_date", joinDate); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *Store) PutEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putEmployee(ctx, s.db, e)
}

func (s *Store) putEmployee(ctx context.Context, db dbtx, e leave.Employee) error {
	query := `
		INSERT INTO employees (id, name, role, join_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			join_date = excluded.join_date
	`
	_, err := db.ExecContext(ctx, query,
		e.ID, e.Name, string(e.Role), e.JoinDate.Format(time.RFC3339))
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) InsertBucket(ctx context.Context, b *leave.QuotaBucket) error {
	return ts.parent.insertBucket(ctx, ts.tx, b)
}

func (ts *txStore) GetBucket(ctx context.Context, id int64) (*leave.QuotaBucket, error) {
	return ts.parent.getBucket(ctx, ts.tx, id)
}

func (ts *txStore) BucketsFor(ctx context.Context, employeeID string, types []leave.LeaveType, from, to time.Time) ([]*leave.QuotaBucket, error) {
	return ts.parent.bucketsFor(ctx, ts.tx, employeeID, types, from, to)
}

func (ts *txStore) SaveBucketCounters(ctx context.Context, b *leave.QuotaBucket) error {
	return ts.parent.saveBucketCounters(ctx, ts.tx, b)
}

func (ts *txStore) InsertRequest(ctx context.Context, r *leave.Request) error {
	return ts.parent.insertRequest(ctx, ts.tx, r)
}

func (ts *txStore) UpdateRequest(ctx context.Context, r *leave.Request) error {
	return ts.parent.updateRequest(ctx, ts.tx, r)
}

func (ts *txStore) GetRequest(ctx context.Context, key uuid.UUID) (*leave.Request, error) {
	return ts.parent.getRequest(ctx, ts.tx, key)
}

func (ts *txStore) ApprovedOverlapping(ctx context.Context, f leave.RequestFilter, from, to time.Time) ([]*leave.Request, error) {
	return ts.parent.approvedOverlapping(ctx, ts.tx, f, from, to)
}

func (ts *txStore) ListRequests(ctx context.Context, f leave.RequestFilter) ([]*leave.Request, error) {
	return ts.parent.listRequests(ctx, ts.tx, f)
}

func (ts *txStore) InsertUsages(ctx context.Context, usages []leave.Usage) error {
	return ts.parent.insertUsages(ctx, ts.tx, usages)
}

func (ts *txStore) UsagesByRequest(ctx context.Context, key uuid.UUID) ([]leave.Usage, error) {
	return ts.parent.usagesByRequest(ctx, ts.tx, key)
}

func (ts *txStore) DeleteUsagesByRequest(ctx context.Context, key uuid.UUID) error {
	return ts.parent.deleteUsagesByRequest(ctx, ts.tx, key)
}

func (ts *txStore) ReplaceBreakdowns(ctx context.Context, key uuid.UUID, rows []leave.DailyBreakdown) error {
	return ts.parent.replaceBreakdowns(ctx, ts.tx, key, rows)
}

func (ts *txStore) BreakdownsByRequest(ctx context.Context, key uuid.UUID) ([]leave.DailyBreakdown, error) {
	return ts.parent.breakdownsByRequest(ctx, ts.tx, key)
}

func (ts *txStore) DeleteBreakdownsByRequest(ctx context.Context, key uuid.UUID) error {
	return ts.parent.deleteBreakdownsByRequest(ctx, ts.tx, key)
}

func (ts *txStore) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	return ts.parent.getEmployee(ctx, ts.tx, id)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	return ts.parent.listEmployees(ctx, ts.tx)
}

func (ts *txStore) PutEmployee(ctx context.Context, e leave.Employee) error {
	return ts.parent.putEmployee(ctx, ts.tx, e)
}

// Helper functions

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func parseTime(column, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", column, value, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
