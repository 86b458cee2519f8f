/*
Package sqlite provides a SQLite-backed implementation of settlement.Store.

PURPOSE:
  Implements the persistence contract of the settlement engine using SQLite.
  In production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  workers:          Worker records
  worklogs:         Task groupings per worker
  time_segments:    Units of performed work (carry the claim reference)
  adjustments:      Manual additions/deductions (carry the claim reference)
  remittances:      Payable amounts with lifecycle status
  remittance_lines: Claims linking remittances to source records
  settlements:      Orchestration run records

CLAIM ATOMICITY:
  CreateRemittance runs inside a single SQL transaction and claims each
  source record with a conditional UPDATE that only matches unclaimed (or
  released) rows. Zero rows affected means another settlement attempt got
  there first; the transaction rolls back and the caller receives a
  ClaimConflictError. TransitionRemittance uses the same pattern on the
  status column so a remittance can never receive two outcomes.

ELIGIBILITY PREDICATE:
  "Unclaimed" is a single SQL fragment shared by every eligibility query and
  by the conditional claim, so selection and claiming agree on the rule:
  the claim reference is NULL, or it points into a FAILED/CANCELLED
  remittance.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/settlement.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - settlement/store.go:        Interface definition
  - settlement/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/settlement-engine/settlement"
)

// Store implements settlement.Store using SQLite.
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

// DB exposes the underlying handle for observability gauges.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS worklogs (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		task_identifier TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_worklogs_worker
		ON worklogs(worker_id);

	CREATE TABLE IF NOT EXISTS time_segments (
		id TEXT PRIMARY KEY,
		worklog_id TEXT NOT NULL,
		hours_worked TEXT NOT NULL,
		hourly_rate TEXT NOT NULL,
		segment_date TEXT NOT NULL,
		notes TEXT,
		remittance_line_id TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_segments_worklog
		ON time_segments(worklog_id);
	-- Hot path: eligibility scans filter by date then claim state
	CREATE INDEX IF NOT EXISTS idx_segments_date
		ON time_segments(segment_date);
	CREATE INDEX IF NOT EXISTS idx_segments_claim
		ON time_segments(remittance_line_id) WHERE remittance_line_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		worklog_id TEXT,
		adjustment_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		reason TEXT,
		remittance_line_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_worker
		ON adjustments(worker_id);
	CREATE INDEX IF NOT EXISTS idx_adjustments_worklog
		ON adjustments(worklog_id) WHERE worklog_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS remittances (
		id TEXT PRIMARY KEY,
		settlement_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		gross_amount TEXT NOT NULL,
		adjustments_amount TEXT NOT NULL,
		net_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		paid_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_remittances_settlement
		ON remittances(settlement_id);
	CREATE INDEX IF NOT EXISTS idx_remittances_status
		ON remittances(status);
	CREATE INDEX IF NOT EXISTS idx_remittances_worker
		ON remittances(worker_id);

	CREATE TABLE IF NOT EXISTS remittance_lines (
		id TEXT PRIMARY KEY,
		remittance_id TEXT NOT NULL,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lines_remittance
		ON remittance_lines(remittance_id);
	CREATE INDEX IF NOT EXISTS idx_lines_source
		ON remittance_lines(source_type, source_id);

	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		total_remittances_generated INTEGER NOT NULL DEFAULT 0,
		total_amount TEXT NOT NULL,
		run_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// unclaimedPredicate is the eligibility rule as SQL. The placeholder is the
// qualified claim column (e.g. "s.remittance_line_id").
const unclaimedPredicate = `(%[1]s IS NULL OR EXISTS (
	SELECT 1 FROM remittance_lines rl
	JOIN remittances r ON r.id = rl.remittance_id
	WHERE rl.id = %[1]s AND r.status IN ('FAILED','CANCELLED')))`

func unclaimed(column string) string {
	return fmt.Sprintf(unclaimedPredicate, column)
}

// =============================================================================
// WORKERS
// =============================================================================

func (s *Store) SaveWorker(ctx context.Context, w settlement.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO workers (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email
	`
	_, err := s.db.ExecContext(ctx, query,
		w.ID, w.Name, w.Email, createdAt.Format(time.RFC3339))
	return err
}

func (s *Store) GetWorker(ctx context.Context, id settlement.WorkerID) (*settlement.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w settlement.Worker
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM workers WHERE id = ?", id,
	).Scan(&w.ID, &w.Name, &w.Email, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &w, nil
}

func (s *Store) ListWorkers(ctx context.Context) ([]settlement.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, created_at FROM workers ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []settlement.Worker
	for rows.Next() {
		var w settlement.Worker
		var createdAt string
		if err := rows.Scan(&w.ID, &w.Name, &w.Email, &createdAt); err != nil {
			return nil, err
		}
		w.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// =============================================================================
// WORKLOGS
// =============================================================================

func (s *Store) SaveWorkLog(ctx context.Context, wl settlement.WorkLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	createdAt := wl.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := wl.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	query := `
		INSERT INTO worklogs (id, worker_id, task_identifier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task_identifier = excluded.task_identifier,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		wl.ID, wl.WorkerID, wl.TaskIdentifier,
		createdAt.Format(time.RFC3339), updatedAt.Format(time.RFC3339))
	return err
}

func (s *Store) GetWorkLog(ctx context.Context, id settlement.WorkLogID) (*settlement.WorkLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var wl settlement.WorkLog
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, worker_id, task_identifier, created_at, updated_at FROM worklogs WHERE id = ?", id,
	).Scan(&wl.ID, &wl.WorkerID, &wl.TaskIdentifier, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	wl.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	wl.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &wl, nil
}

func (s *Store) LoadWorkLogDetails(ctx context.Context) ([]settlement.WorkLogDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, worker_id, task_identifier, created_at, updated_at FROM worklogs ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var order []settlement.WorkLogID
	details := make(map[settlement.WorkLogID]*settlement.WorkLogDetail)
	for rows.Next() {
		var wl settlement.WorkLog
		var createdAt, updatedAt string
		if err := rows.Scan(&wl.ID, &wl.WorkerID, &wl.TaskIdentifier, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		wl.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		wl.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		details[wl.ID] = &settlement.WorkLogDetail{
			WorkLog:     wl,
			ClaimStatus: make(map[settlement.SegmentID]settlement.RemittanceStatus),
		}
		order = append(order, wl.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Segments joined with the status of the claiming remittance, if any.
	segQuery := `
		SELECT s.id, s.worklog_id, s.hours_worked, s.hourly_rate, s.segment_date,
		       s.notes, s.remittance_line_id, s.deleted_at, s.created_at, r.status
		FROM time_segments s
		LEFT JOIN remittance_lines rl ON rl.id = s.remittance_line_id
		LEFT JOIN remittances r ON r.id = rl.remittance_id
		ORDER BY s.segment_date, s.id
	`
	segRows, err := s.db.QueryContext(ctx, segQuery)
	if err != nil {
		return nil, err
	}
	defer segRows.Close()

	for segRows.Next() {
		var status sql.NullString
		seg, err := scanSegmentWith(segRows, &status)
		if err != nil {
			return nil, err
		}
		d, ok := details[seg.WorkLogID]
		if !ok {
			continue
		}
		d.Segments = append(d.Segments, seg)
		if status.Valid {
			d.ClaimStatus[seg.ID] = settlement.RemittanceStatus(status.String)
		}
	}
	if err := segRows.Err(); err != nil {
		return nil, err
	}

	adjQuery := `
		SELECT id, worker_id, worklog_id, adjustment_type, amount, reason, remittance_line_id, created_at
		FROM adjustments
		WHERE worklog_id IS NOT NULL
		ORDER BY created_at, id
	`
	adjRows, err := s.db.QueryContext(ctx, adjQuery)
	if err != nil {
		return nil, err
	}
	defer adjRows.Close()

	for adjRows.Next() {
		adj, err := scanAdjustment(adjRows)
		if err != nil {
			return nil, err
		}
		if adj.WorkLogID == nil {
			continue
		}
		if d, ok := details[*adj.WorkLogID]; ok {
			d.Adjustments = append(d.Adjustments, adj)
		}
	}
	if err := adjRows.Err(); err != nil {
		return nil, err
	}

	result := make([]settlement.WorkLogDetail, 0, len(order))
	for _, id := range order {
		result = append(result, *details[id])
	}
	return result, nil
}

// =============================================================================
// SEGMENTS AND ADJUSTMENTS
// =============================================================================

func (s *Store) SaveSegment(ctx context.Context, seg settlement.TimeSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := seg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO time_segments
		(id, worklog_id, hours_worked, hourly_rate, segment_date, notes,
		 remittance_line_id, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			notes = excluded.notes,
			deleted_at = excluded.deleted_at
	`
	_, err := s.db.ExecContext(ctx, query,
		seg.ID, seg.WorkLogID,
		seg.HoursWorked.String(), seg.HourlyRate.String(),
		seg.SegmentDate.String(), seg.Notes,
		nullLineID(seg.RemittanceLineID), nullTime(seg.DeletedAt),
		createdAt.Format(time.RFC3339))
	return err
}

func (s *Store) SaveAdjustment(ctx context.Context, a settlement.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var worklogID any
	if a.WorkLogID != nil {
		worklogID = string(*a.WorkLogID)
	}

	query := `
		INSERT INTO adjustments
		(id, worker_id, worklog_id, adjustment_type, amount, reason, remittance_line_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reason = excluded.reason
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.WorkerID, worklogID, a.Type, a.Amount.String(), a.Reason,
		nullLineID(a.RemittanceLineID), createdAt.Format(time.RFC3339))
	return err
}

func (s *Store) SegmentsByWorkLog(ctx context.Context, id settlement.WorkLogID) ([]settlement.TimeSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, worklog_id, hours_worked, hourly_rate, segment_date,
		       notes, remittance_line_id, deleted_at, created_at
		FROM time_segments
		WHERE worklog_id = ?
		ORDER BY segment_date, id
	`
	return s.querySegments(ctx, query, id)
}

// =============================================================================
// ELIGIBILITY READS
// =============================================================================

func (s *Store) UnsettledSegments(ctx context.Context, worker settlement.WorkerID, period settlement.Period) ([]settlement.TimeSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT s.id, s.worklog_id, s.hours_worked, s.hourly_rate, s.segment_date,
		       s.notes, s.remittance_line_id, s.deleted_at, s.created_at
		FROM time_segments s
		JOIN worklogs w ON w.id = s.worklog_id
		WHERE w.worker_id = ?
		  AND s.segment_date >= ? AND s.segment_date <= ?
		  AND s.deleted_at IS NULL
		  AND ` + unclaimed("s.remittance_line_id") + `
		ORDER BY s.segment_date, s.id
	`
	return s.querySegments(ctx, query, worker, period.Start.String(), period.End.String())
}

func (s *Store) UnsettledAdjustments(ctx context.Context, worker settlement.WorkerID) ([]settlement.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT a.id, a.worker_id, a.worklog_id, a.adjustment_type, a.amount,
		       a.reason, a.remittance_line_id, a.created_at
		FROM adjustments a
		WHERE a.worker_id = ?
		  AND ` + unclaimed("a.remittance_line_id") + `
		ORDER BY a.created_at, a.id
	`
	rows, err := s.db.QueryContext(ctx, query, worker)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjustments []settlement.Adjustment
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}

func (s *Store) WorkersWithUnsettledWork(ctx context.Context, period settlement.Period) ([]settlement.WorkerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Union of workers with eligible segments in the period and workers with
	// eligible adjustments. The adjustment arm requires at least one worklog
	// so workers with no worklogs never enter a run.
	query := `
		SELECT DISTINCT w.worker_id
		FROM time_segments s
		JOIN worklogs w ON w.id = s.worklog_id
		WHERE s.segment_date >= ? AND s.segment_date <= ?
		  AND s.deleted_at IS NULL
		  AND ` + unclaimed("s.remittance_line_id") + `
		UNION
		SELECT DISTINCT a.worker_id
		FROM adjustments a
		WHERE EXISTS (SELECT 1 FROM worklogs wl WHERE wl.worker_id = a.worker_id)
		  AND ` + unclaimed("a.remittance_line_id") + `
		ORDER BY 1
	`
	rows, err := s.db.QueryContext(ctx, query, period.Start.String(), period.End.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []settlement.WorkerID
	for rows.Next() {
		var id settlement.WorkerID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		workers = append(workers, id)
	}
	return workers, rows.Err()
}

// =============================================================================
// REMITTANCES - atomic claim-and-create, conditional transitions
// =============================================================================

func (s *Store) CreateRemittance(ctx context.Context, r settlement.Remittance, lines []settlement.RemittanceLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertRemittance := `
		INSERT INTO remittances
		(id, settlement_id, worker_id, period_start, period_end,
		 gross_amount, adjustments_amount, net_amount, status, created_at, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, insertRemittance,
		r.ID, r.SettlementID, r.WorkerID,
		r.Period.Start.String(), r.Period.End.String(),
		r.GrossAmount.String(), r.AdjustmentsAmount.String(), r.NetAmount.String(),
		r.Status, r.CreatedAt.Format(time.RFC3339), nullTime(r.PaidAt))
	if err != nil {
		return fmt.Errorf("failed to insert remittance: %w", err)
	}

	claimSegment := `
		UPDATE time_segments SET remittance_line_id = ?
		WHERE id = ? AND deleted_at IS NULL
		  AND ` + unclaimed("time_segments.remittance_line_id")
	claimAdjustment := `
		UPDATE adjustments SET remittance_line_id = ?
		WHERE id = ?
		  AND ` + unclaimed("adjustments.remittance_line_id")
	insertLine := `
		INSERT INTO remittance_lines (id, remittance_id, source_type, source_id, amount, position)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	for _, line := range lines {
		if _, err := tx.ExecContext(ctx, insertLine,
			line.ID, line.RemittanceID, line.SourceType, line.SourceID,
			line.Amount.String(), line.Position); err != nil {
			return fmt.Errorf("failed to insert remittance line: %w", err)
		}

		claim := claimSegment
		if line.SourceType == settlement.SourceAdjustment {
			claim = claimAdjustment
		}
		res, err := tx.ExecContext(ctx, claim, line.ID, line.SourceID)
		if err != nil {
			return fmt.Errorf("failed to claim %s %s: %w", line.SourceType, line.SourceID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			// Another attempt claimed this record between selection and now.
			// Rolling back leaves nothing written.
			return &settlement.ClaimConflictError{SourceType: line.SourceType, SourceID: line.SourceID}
		}
	}

	return tx.Commit()
}

func (s *Store) GetRemittance(ctx context.Context, id settlement.RemittanceID) (*settlement.Remittance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, settlement_id, worker_id, period_start, period_end,
		       gross_amount, adjustments_amount, net_amount, status, created_at, paid_at
		FROM remittances WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	r, err := scanRemittanceRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) RemittanceLines(ctx context.Context, id settlement.RemittanceID) ([]settlement.RemittanceLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, remittance_id, source_type, source_id, amount, position
		FROM remittance_lines
		WHERE remittance_id = ?
		ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []settlement.RemittanceLine
	for rows.Next() {
		var line settlement.RemittanceLine
		var amount string
		if err := rows.Scan(&line.ID, &line.RemittanceID, &line.SourceType,
			&line.SourceID, &amount, &line.Position); err != nil {
			return nil, err
		}
		line.Amount = parseDecimal(amount)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *Store) RemittancesBySettlement(ctx context.Context, id settlement.SettlementID) ([]settlement.Remittance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, settlement_id, worker_id, period_start, period_end,
		       gross_amount, adjustments_amount, net_amount, status, created_at, paid_at
		FROM remittances
		WHERE settlement_id = ?
		ORDER BY worker_id, id
	`
	return s.queryRemittances(ctx, query, id)
}

func (s *Store) ListRemittancesByStatus(ctx context.Context, status settlement.RemittanceStatus) ([]settlement.Remittance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, settlement_id, worker_id, period_start, period_end,
		       gross_amount, adjustments_amount, net_amount, status, created_at, paid_at
		FROM remittances
		WHERE status = ?
		ORDER BY created_at, id
	`
	return s.queryRemittances(ctx, query, status)
}

func (s *Store) TransitionRemittance(ctx context.Context, id settlement.RemittanceID, to settlement.RemittanceStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Conditional on PENDING so two concurrent outcomes cannot both apply.
	var paidAt any
	if to == settlement.RemittancePaid {
		paidAt = at.Format(time.RFC3339)
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE remittances SET status = ?, paid_at = COALESCE(?, paid_at) WHERE id = ? AND status = 'PENDING'",
		to, paidAt, id)
	if err != nil {
		return fmt.Errorf("failed to transition remittance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current settlement.RemittanceStatus
		err := tx.QueryRowContext(ctx, "SELECT status FROM remittances WHERE id = ?", id).Scan(&current)
		if err == sql.ErrNoRows {
			return settlement.ErrRemittanceNotFound
		}
		if err != nil {
			return err
		}
		return &settlement.InvalidTransitionError{RemittanceID: id, From: current, To: to}
	}

	if to.ReleasesClaims() {
		release := `
			UPDATE %s SET remittance_line_id = NULL
			WHERE remittance_line_id IN (SELECT id FROM remittance_lines WHERE remittance_id = ?)
		`
		for _, table := range []string{"time_segments", "adjustments"} {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(release, table), id); err != nil {
				return fmt.Errorf("failed to release claims on %s: %w", table, err)
			}
		}
	}

	return tx.Commit()
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

func (s *Store) SaveSettlement(ctx context.Context, run settlement.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO settlements
		(id, period_start, period_end, status, total_remittances_generated, total_amount, run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			total_remittances_generated = excluded.total_remittances_generated,
			total_amount = excluded.total_amount
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Period.Start.String(), run.Period.End.String(), run.Status,
		run.TotalRemittancesGenerated, run.TotalAmount.String(),
		run.RunAt.Format(time.RFC3339))
	return err
}

func (s *Store) ListSettlements(ctx context.Context) ([]settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, period_start, period_end, status, total_remittances_generated, total_amount, run_at
		FROM settlements
		ORDER BY run_at DESC, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []settlement.Settlement
	for rows.Next() {
		var run settlement.Settlement
		var periodStart, periodEnd, totalAmount, runAt string
		if err := rows.Scan(&run.ID, &periodStart, &periodEnd, &run.Status,
			&run.TotalRemittancesGenerated, &totalAmount, &runAt); err != nil {
			return nil, err
		}
		run.Period.Start, _ = settlement.ParseDate(periodStart)
		run.Period.End, _ = settlement.ParseDate(periodEnd)
		run.TotalAmount = parseDecimal(totalAmount)
		run.RunAt, _ = time.Parse(time.RFC3339, runAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"remittance_lines", "remittances", "settlements",
		"adjustments", "time_segments", "worklogs", "workers",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) querySegments(ctx context.Context, query string, args ...any) ([]settlement.TimeSegment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []settlement.TimeSegment
	for rows.Next() {
		seg, err := scanSegmentWith(rows, nil)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// scanSegmentWith scans a segment row. When claimStatus is non-nil the row
// carries a trailing remittance status column.
func scanSegmentWith(rows rowScanner, claimStatus *sql.NullString) (settlement.TimeSegment, error) {
	var (
		seg         settlement.TimeSegment
		hours       string
		rate        string
		segmentDate string
		notes       sql.NullString
		lineID      sql.NullString
		deletedAt   sql.NullString
		createdAt   string
	)

	dest := []any{&seg.ID, &seg.WorkLogID, &hours, &rate, &segmentDate,
		&notes, &lineID, &deletedAt, &createdAt}
	if claimStatus != nil {
		dest = append(dest, claimStatus)
	}
	if err := rows.Scan(dest...); err != nil {
		return seg, fmt.Errorf("failed to scan segment: %w", err)
	}

	seg.HoursWorked = parseDecimal(hours)
	seg.HourlyRate = parseDecimal(rate)
	seg.SegmentDate, _ = settlement.ParseDate(segmentDate)
	seg.Notes = notes.String
	if lineID.Valid {
		id := settlement.RemittanceLineID(lineID.String)
		seg.RemittanceLineID = &id
	}
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339, deletedAt.String)
		seg.DeletedAt = &t
	}
	seg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return seg, nil
}

func scanAdjustment(rows rowScanner) (settlement.Adjustment, error) {
	var (
		adj       settlement.Adjustment
		worklogID sql.NullString
		amount    string
		reason    sql.NullString
		lineID    sql.NullString
		createdAt string
	)

	if err := rows.Scan(&adj.ID, &adj.WorkerID, &worklogID, &adj.Type,
		&amount, &reason, &lineID, &createdAt); err != nil {
		return adj, fmt.Errorf("failed to scan adjustment: %w", err)
	}

	if worklogID.Valid {
		id := settlement.WorkLogID(worklogID.String)
		adj.WorkLogID = &id
	}
	adj.Amount = parseDecimal(amount)
	adj.Reason = reason.String
	if lineID.Valid {
		id := settlement.RemittanceLineID(lineID.String)
		adj.RemittanceLineID = &id
	}
	adj.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return adj, nil
}

func (s *Store) queryRemittances(ctx context.Context, query string, args ...any) ([]settlement.Remittance, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var remittances []settlement.Remittance
	for rows.Next() {
		r, err := scanRemittanceRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		remittances = append(remittances, *r)
	}
	return remittances, rows.Err()
}

func scanRemittanceRow(scan func(dest ...any) error) (*settlement.Remittance, error) {
	var (
		r           settlement.Remittance
		periodStart string
		periodEnd   string
		gross       string
		adjs        string
		net         string
		createdAt   string
		paidAt      sql.NullString
	)

	if err := scan(&r.ID, &r.SettlementID, &r.WorkerID, &periodStart, &periodEnd,
		&gross, &adjs, &net, &r.Status, &createdAt, &paidAt); err != nil {
		return nil, err
	}

	r.Period.Start, _ = settlement.ParseDate(periodStart)
	r.Period.End, _ = settlement.ParseDate(periodEnd)
	r.GrossAmount = parseDecimal(gross)
	r.AdjustmentsAmount = parseDecimal(adjs)
	r.NetAmount = parseDecimal(net)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if paidAt.Valid {
		t, _ := time.Parse(time.RFC3339, paidAt.String)
		r.PaidAt = &t
	}
	return &r, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullLineID(id *settlement.RemittanceLineID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
