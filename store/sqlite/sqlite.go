/*
Package sqlite provides the SQLite-backed implementation of every storage
interface in the system.

PURPOSE:
  One store, many collaborators: the importers write normalized rows
  through it, the capacity engine reads commitments/allocations/timesheet
  hours, the finance engine reads workstreams/rates/actuals, and the
  calendar engine reads holidays. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  importer.Store            Import transactions + categorization pass
  capacity.Store            Commitments, allocation sums, timesheet sums
  finance.Store             Workstreams, rates, actuals aggregation
  calendar.HolidaySource    Range-restricted holiday lookup

KEY TABLES:
  timesheet_entries:   Imported person-day-activity rows
  actual_entries:      Imported ledger postings (+ back-filled actual_type)
  resources:           Resource master data, upsert keyed on employee_id
  commitments:         Capacity pledges with derived hour columns
  allocations:         Feature allocations (external collaborator data)
  holidays:            Public holidays, immutable once imported
  workstreams, project_financials, labour_rates: Finance reference data

NUMERIC STORAGE:
  Hours, amounts, and rates are stored as decimal text and summed in Go
  with shopspring/decimal. SQLite's SUM() would coerce to float and leak
  precision into the variance math.

DATES:
  Stored as "2006-01-02" text (calendar.Date.Key), so lexicographic range
  scans equal chronological ones regardless of the day-month-year display
  form the CSVs use.

IMPORT TRANSACTION ISOLATION:
  WithTx gives the importers one transaction per batch for all-or-nothing
  visibility. Individual INSERT failures inside it are statement-level:
  the importer catches them per row and the batch still commits.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Imports are periodic human-curated
  batches, not high-frequency writes; the mutex is plenty.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block and crash recovery improves.

USAGE:
  store, err := sqlite.New("./data/finrecon.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - importer/importer.go: Store/Tx contracts this implements
  - capacity/engine.go, finance/engine.go: Query consumers
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/finrecon/calendar"
	"github.com/warp/finrecon/capacity"
	"github.com/warp/finrecon/finance"
	"github.com/warp/finrecon/importer"
)

// Store implements all storage interfaces using SQLite.
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

	// One connection: every pooled connection to ":memory:" would be a
	// separate empty database, and a single writer avoids SQLITE_BUSY.
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
	-- Imported timesheet rows (person-day-activity)
	CREATE TABLE IF NOT EXISTS timesheet_entries (
		id TEXT PRIMARY KEY,
		stream TEXT,
		month TEXT,
		employee_name TEXT NOT NULL,
		personnel_number TEXT,
		entry_date TEXT NOT NULL,
		activity_type TEXT,
		cost_receiver TEXT,
		hours TEXT NOT NULL,
		imported_at TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0
	);

	-- Hot path: actual-hours sums per person per window
	CREATE INDEX IF NOT EXISTS idx_timesheet_personnel_date
		ON timesheet_entries(personnel_number, entry_date);
	CREATE INDEX IF NOT EXISTS idx_timesheet_name_date
		ON timesheet_entries(employee_name, entry_date);

	-- Imported ledger postings
	CREATE TABLE IF NOT EXISTS actual_entries (
		id TEXT PRIMARY KEY,
		month TEXT,
		posting_date TEXT,
		document_date TEXT,
		cost_element TEXT,
		cost_receiver TEXT,
		amount TEXT NOT NULL,
		fiscal_period TEXT,
		fiscal_year TEXT,
		personnel_number TEXT,
		actual_type TEXT,
		imported_at TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0
	);

	-- Hot path: per-workstream actual sums
	CREATE INDEX IF NOT EXISTS idx_actuals_receiver_month
		ON actual_entries(cost_receiver, month);
	-- Categorization pass scans only unclassified rows
	CREATE INDEX IF NOT EXISTS idx_actuals_uncategorized
		ON actual_entries(id) WHERE actual_type IS NULL OR actual_type = '';

	-- Resource master data. employee_id is the upsert key; NULL rows
	-- (no employee ID in the export) are insert-only and never conflict.
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		roadmap_id TEXT,
		name TEXT NOT NULL,
		email TEXT,
		work_area TEXT,
		activity_type_cap TEXT,
		activity_type_opx TEXT,
		contract_type TEXT,
		employee_id TEXT UNIQUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Capacity commitments with derived hour columns
	CREATE TABLE IF NOT EXISTS commitments (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		cadence TEXT NOT NULL,
		committed_hours TEXT NOT NULL,
		total_available_hours TEXT NOT NULL,
		allocated_hours TEXT NOT NULL,
		remaining_capacity TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_commitments_resource
		ON commitments(resource_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_commitments_period
		ON commitments(resource_id, period_start, period_end);

	-- Feature allocations (owned by the planning tool, read here)
	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL,
		project_id TEXT,
		feature_name TEXT,
		allocated_hours TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_resource
		ON allocations(resource_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_project
		ON allocations(project_id);

	-- Public holidays, immutable once imported
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		region TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_date ON holidays(date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);

	-- Finance reference data
	CREATE TABLE IF NOT EXISTS workstreams (
		id TEXT PRIMARY KEY,
		project_id TEXT,
		code TEXT NOT NULL,
		name TEXT,
		cost_receiver TEXT,
		budget TEXT NOT NULL DEFAULT '0',
		forecast_budget TEXT NOT NULL DEFAULT '0'
	);

	CREATE INDEX IF NOT EXISTS idx_workstreams_project
		ON workstreams(project_id);

	CREATE TABLE IF NOT EXISTS project_financials (
		project_id TEXT PRIMARY KEY,
		name TEXT,
		budget TEXT NOT NULL DEFAULT '0',
		forecast_budget TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS labour_rates (
		activity_type TEXT PRIMARY KEY,
		hourly_rate TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer lets the insert helpers run against the DB or an open transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// IMPORT TRANSACTIONS (importer.Store / importer.Tx)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(importer.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&importTx{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type importTx struct {
	tx     *sql.Tx
	parent *Store
}

func (t *importTx) InsertTimesheetEntry(ctx context.Context, e importer.TimesheetEntry) error {
	return t.parent.insertTimesheetEntry(ctx, t.tx, e)
}

func (t *importTx) InsertActualEntry(ctx context.Context, e importer.ActualEntry) error {
	return t.parent.insertActualEntry(ctx, t.tx, e)
}

func (t *importTx) UpsertResource(ctx context.Context, r importer.Resource) error {
	return t.parent.upsertResource(ctx, t.tx, r)
}

func (s *Store) insertTimesheetEntry(ctx context.Context, db execer, e importer.TimesheetEntry) error {
	query := `
		INSERT INTO timesheet_entries
		(id, stream, month, employee_name, personnel_number, entry_date,
		 activity_type, cost_receiver, hours, imported_at, processed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		orNewID(e.ID),
		e.Stream,
		e.Month,
		e.EmployeeName,
		e.PersonnelNumber,
		e.Date.Key(),
		e.ActivityType,
		e.CostReceiver,
		e.Hours.String(),
		e.ImportedAt.Format(time.RFC3339),
		boolToInt(e.Processed),
	)
	if err != nil {
		return fmt.Errorf("failed to insert timesheet entry: %w", err)
	}
	return nil
}

func (s *Store) insertActualEntry(ctx context.Context, db execer, e importer.ActualEntry) error {
	query := `
		INSERT INTO actual_entries
		(id, month, posting_date, document_date, cost_element, cost_receiver,
		 amount, fiscal_period, fiscal_year, personnel_number, actual_type,
		 imported_at, processed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		orNewID(e.ID),
		e.Month,
		dateOrNull(e.PostingDate),
		dateOrNull(e.DocumentDate),
		e.CostElement,
		e.CostReceiver,
		e.Amount.String(),
		e.FiscalPeriod,
		e.FiscalYear,
		e.PersonnelNumber,
		nullString(string(e.ActualType)),
		e.ImportedAt.Format(time.RFC3339),
		boolToInt(e.Processed),
	)
	if err != nil {
		return fmt.Errorf("failed to insert actual entry: %w", err)
	}
	return nil
}

func (s *Store) upsertResource(ctx context.Context, db execer, r importer.Resource) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if r.EmployeeID == "" {
		// No natural key: insert-only.
		query := `
			INSERT INTO resources
			(id, roadmap_id, name, email, work_area, activity_type_cap,
			 activity_type_opx, contract_type, employee_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			orNewID(r.ID), r.RoadmapID, r.Name, r.Email, r.WorkArea,
			r.ActivityTypeCAP, r.ActivityTypeOPX, string(r.ContractType), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert resource: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO resources
		(id, roadmap_id, name, email, work_area, activity_type_cap,
		 activity_type_opx, contract_type, employee_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			roadmap_id = excluded.roadmap_id,
			name = excluded.name,
			email = excluded.email,
			work_area = excluded.work_area,
			activity_type_cap = excluded.activity_type_cap,
			activity_type_opx = excluded.activity_type_opx,
			contract_type = excluded.contract_type,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		orNewID(r.ID), r.RoadmapID, r.Name, r.Email, r.WorkArea,
		r.ActivityTypeCAP, r.ActivityTypeOPX, string(r.ContractType), r.EmployeeID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert resource: %w", err)
	}
	return nil
}

// =============================================================================
// ACTUALS CATEGORIZATION (importer.Store)
// =============================================================================

// ListUncategorizedActuals returns actuals with no classification yet.
func (s *Store) ListUncategorizedActuals(ctx context.Context) ([]importer.ActualEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, month, posting_date, document_date, cost_element, cost_receiver,
		       amount, fiscal_period, fiscal_year, personnel_number, actual_type,
		       imported_at, processed
		FROM actual_entries
		WHERE actual_type IS NULL OR actual_type = ''
		ORDER BY imported_at ASC, id ASC
	`
	return s.queryActuals(ctx, query)
}

// SetActualType classifies a single actual. The WHERE clause guards the
// never-overwrite rule even under concurrent categorization runs.
func (s *Store) SetActualType(ctx context.Context, id string, t importer.ActualType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE actual_entries SET actual_type = ?
		 WHERE id = ? AND (actual_type IS NULL OR actual_type = '')`,
		string(t), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set actual type: %w", err)
	}
	return nil
}

func (s *Store) queryActuals(ctx context.Context, query string, args ...any) ([]importer.ActualEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query actuals: %w", err)
	}
	defer rows.Close()

	var entries []importer.ActualEntry
	for rows.Next() {
		var (
			e            importer.ActualEntry
			postingDate  sql.NullString
			documentDate sql.NullString
			amount       string
			actualType   sql.NullString
			importedAt   string
			processed    int
		)
		if err := rows.Scan(
			&e.ID, &e.Month, &postingDate, &documentDate, &e.CostElement,
			&e.CostReceiver, &amount, &e.FiscalPeriod, &e.FiscalYear,
			&e.PersonnelNumber, &actualType, &importedAt, &processed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan actual entry: %w", err)
		}

		e.PostingDate = parseDateKey(postingDate)
		e.DocumentDate = parseDateKey(documentDate)
		e.Amount = parseDecimal(amount)
		e.ActualType = importer.ActualType(actualType.String)
		e.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)
		e.Processed = processed != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// RESOURCES (capacity.Store)
// =============================================================================

const resourceColumns = `id, roadmap_id, name, email, work_area,
	activity_type_cap, activity_type_opx, contract_type, employee_id`

// GetResource retrieves a resource by ID. Returns nil when not found.
func (s *Store) GetResource(ctx context.Context, id string) (*importer.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+resourceColumns+" FROM resources WHERE id = ?", id)
	r, err := scanResource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListResources returns all resources ordered by name.
func (s *Store) ListResources(ctx context.Context) ([]importer.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+resourceColumns+" FROM resources ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var resources []importer.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, *r)
	}
	return resources, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*importer.Resource, error) {
	var (
		r            importer.Resource
		roadmapID    sql.NullString
		email        sql.NullString
		workArea     sql.NullString
		capType      sql.NullString
		opxType      sql.NullString
		contractType sql.NullString
		employeeID   sql.NullString
	)
	err := row.Scan(&r.ID, &roadmapID, &r.Name, &email, &workArea,
		&capType, &opxType, &contractType, &employeeID)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan resource: %w", err)
	}
	r.RoadmapID = roadmapID.String
	r.Email = email.String
	r.WorkArea = workArea.String
	r.ActivityTypeCAP = capType.String
	r.ActivityTypeOPX = opxType.String
	r.ContractType = importer.ContractType(contractType.String)
	r.EmployeeID = employeeID.String
	return &r, nil
}

// =============================================================================
// COMMITMENTS (capacity.Store)
// =============================================================================

const commitmentColumns = `id, resource_id, period_start, period_end, cadence,
	committed_hours, total_available_hours, allocated_hours, remaining_capacity, created_at`

// InsertCommitment persists a capacity commitment.
func (s *Store) InsertCommitment(ctx context.Context, c capacity.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO commitments
		(id, resource_id, period_start, period_end, cadence, committed_hours,
		 total_available_hours, allocated_hours, remaining_capacity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		orNewID(c.ID),
		c.ResourceID,
		c.PeriodStart.Key(),
		c.PeriodEnd.Key(),
		string(c.Cadence),
		c.CommittedHours.String(),
		c.TotalAvailableHours.String(),
		c.AllocatedHours.String(),
		c.RemainingCapacity.String(),
		c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert commitment: %w", err)
	}
	return nil
}

// ListCommitments returns a resource's commitments, most recent first.
func (s *Store) ListCommitments(ctx context.Context, resourceID string) ([]capacity.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + commitmentColumns + `
		FROM commitments
		WHERE resource_id = ?
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list commitments: %w", err)
	}
	defer rows.Close()

	var commitments []capacity.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		commitments = append(commitments, *c)
	}
	return commitments, rows.Err()
}

// LatestCommitmentCovering returns the most recently created commitment for
// the resource whose period overlaps [start, end], or nil when none does.
func (s *Store) LatestCommitmentCovering(ctx context.Context, resourceID string, start, end calendar.Date) (*capacity.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + commitmentColumns + `
		FROM commitments
		WHERE resource_id = ? AND period_start <= ? AND period_end >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, resourceID, end.Key(), start.Key())
	c, err := scanCommitment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SetCommitmentAllocation rewrites the derived allocation columns.
func (s *Store) SetCommitmentAllocation(ctx context.Context, commitmentID string, allocated, remaining decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE commitments SET allocated_hours = ?, remaining_capacity = ? WHERE id = ?",
		allocated.String(), remaining.String(), commitmentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update commitment allocation: %w", err)
	}
	return nil
}

func scanCommitment(row rowScanner) (*capacity.Commitment, error) {
	var (
		c          capacity.Commitment
		start, end string
		cadence    string
		committed  string
		total      string
		allocated  string
		remaining  string
		createdAt  string
	)
	err := row.Scan(&c.ID, &c.ResourceID, &start, &end, &cadence,
		&committed, &total, &allocated, &remaining, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan commitment: %w", err)
	}
	c.PeriodStart, _ = calendar.ParseKey(start)
	c.PeriodEnd, _ = calendar.ParseKey(end)
	c.Cadence = capacity.Cadence(cadence)
	c.CommittedHours = parseDecimal(committed)
	c.TotalAvailableHours = parseDecimal(total)
	c.AllocatedHours = parseDecimal(allocated)
	c.RemainingCapacity = parseDecimal(remaining)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// =============================================================================
// ALLOCATIONS (capacity.Store / finance.Store)
// =============================================================================

// InsertAllocation records a feature allocation (external collaborator
// data; the capacity engine re-derives allocated hours from these).
func (s *Store) InsertAllocation(ctx context.Context, a capacity.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO allocations (id, resource_id, project_id, feature_name, allocated_hours, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		orNewID(a.ID), a.ResourceID, a.ProjectID, a.FeatureName,
		a.AllocatedHours.String(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

// SumAllocatedHours totals allocation hours for a resource. Summed in Go
// to keep decimal precision.
func (s *Store) SumAllocatedHours(ctx context.Context, resourceID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT allocated_hours FROM allocations WHERE resource_id = ?", resourceID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	return sumDecimalColumn(rows)
}

// ListRatedAllocations joins allocations with their resource's activity
// tags for forecast pricing.
func (s *Store) ListRatedAllocations(ctx context.Context, projectID string) ([]finance.RatedAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT a.resource_id, a.allocated_hours,
		       COALESCE(r.activity_type_cap, ''), COALESCE(r.activity_type_opx, '')
		FROM allocations a
		LEFT JOIN resources r ON r.id = a.resource_id
		WHERE ? = '' OR a.project_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, projectID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rated allocations: %w", err)
	}
	defer rows.Close()

	var allocations []finance.RatedAllocation
	for rows.Next() {
		var a finance.RatedAllocation
		var hours string
		if err := rows.Scan(&a.ResourceID, &hours, &a.ActivityTypeCAP, &a.ActivityTypeOPX); err != nil {
			return nil, fmt.Errorf("failed to scan rated allocation: %w", err)
		}
		a.AllocatedHours = parseDecimal(hours)
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// =============================================================================
// TIMESHEET SUMS (capacity.Store)
// =============================================================================

// SumTimesheetHours totals timesheet hours for a person within [from, to].
// Entries match on personnel number (= the resource's employee ID) or,
// failing that, on the exact employee name.
func (s *Store) SumTimesheetHours(ctx context.Context, personnelNumber, employeeName string, from, to calendar.Date) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT hours FROM timesheet_entries
		WHERE entry_date >= ? AND entry_date <= ?
		  AND ((? != '' AND personnel_number = ?) OR employee_name = ?)
	`
	rows, err := s.db.QueryContext(ctx, query,
		from.Key(), to.Key(), personnelNumber, personnelNumber, employeeName)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query timesheet hours: %w", err)
	}
	defer rows.Close()

	return sumDecimalColumn(rows)
}

// ListTimesheetEntries returns imported timesheet rows in date order.
func (s *Store) ListTimesheetEntries(ctx context.Context, from, to calendar.Date) ([]importer.TimesheetEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, stream, month, employee_name, personnel_number, entry_date,
		       activity_type, cost_receiver, hours, imported_at, processed
		FROM timesheet_entries
		WHERE entry_date >= ? AND entry_date <= ?
		ORDER BY entry_date ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, from.Key(), to.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to query timesheet entries: %w", err)
	}
	defer rows.Close()

	var entries []importer.TimesheetEntry
	for rows.Next() {
		var (
			e          importer.TimesheetEntry
			date       string
			hours      string
			importedAt string
			processed  int
		)
		if err := rows.Scan(&e.ID, &e.Stream, &e.Month, &e.EmployeeName,
			&e.PersonnelNumber, &date, &e.ActivityType, &e.CostReceiver,
			&hours, &importedAt, &processed); err != nil {
			return nil, fmt.Errorf("failed to scan timesheet entry: %w", err)
		}
		e.Date, _ = calendar.ParseKey(date)
		e.Hours = parseDecimal(hours)
		e.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)
		e.Processed = processed != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkTimesheetProcessed flags entries consumed by a downstream system.
func (s *Store) MarkTimesheetProcessed(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE timesheet_entries SET processed = 1 WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to mark timesheet entry %s processed: %w", id, err)
		}
	}
	return nil
}

// =============================================================================
// HOLIDAYS (calendar.HolidaySource)
// =============================================================================

// InsertHoliday adds a public holiday. Duplicate date+name pairs are
// rejected by the unique index; holidays are immutable once imported.
func (s *Store) InsertHoliday(ctx context.Context, h calendar.PublicHoliday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (id, date, name, region, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		orNewID(h.ID), h.Date.Key(), h.Name, h.Region,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert holiday: %w", err)
	}
	return nil
}

// HolidaysBetween returns holiday dates within [from, to].
func (s *Store) HolidaysBetween(ctx context.Context, from, to calendar.Date) ([]calendar.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT date FROM holidays WHERE date >= ? AND date <= ? ORDER BY date",
		from.Key(), to.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var dates []calendar.Date
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		d, err := calendar.ParseKey(key)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ListHolidays returns all holidays in date order.
func (s *Store) ListHolidays(ctx context.Context) ([]calendar.PublicHoliday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, date, name, COALESCE(region, '') FROM holidays ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	defer rows.Close()

	var holidays []calendar.PublicHoliday
	for rows.Next() {
		var h calendar.PublicHoliday
		var key string
		if err := rows.Scan(&h.ID, &key, &h.Name, &h.Region); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		h.Date, _ = calendar.ParseKey(key)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// FINANCE REFERENCE DATA (finance.Store)
// =============================================================================

// SaveWorkstream upserts a workstream reference row by ID.
func (s *Store) SaveWorkstream(ctx context.Context, ws finance.Workstream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO workstreams (id, project_id, code, name, cost_receiver, budget, forecast_budget)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			code = excluded.code,
			name = excluded.name,
			cost_receiver = excluded.cost_receiver,
			budget = excluded.budget,
			forecast_budget = excluded.forecast_budget
	`
	_, err := s.db.ExecContext(ctx, query,
		orNewID(ws.ID), ws.ProjectID, ws.Code, ws.Name, ws.CostReceiver,
		ws.Budget.String(), ws.ForecastBudget.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save workstream: %w", err)
	}
	return nil
}

// ListWorkstreams returns workstream rows, optionally filtered by project.
func (s *Store) ListWorkstreams(ctx context.Context, projectID string) ([]finance.Workstream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, COALESCE(project_id, ''), code, COALESCE(name, ''),
		       COALESCE(cost_receiver, ''), budget, forecast_budget
		FROM workstreams
		WHERE ? = '' OR project_id = ?
		ORDER BY code, id
	`
	rows, err := s.db.QueryContext(ctx, query, projectID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workstreams: %w", err)
	}
	defer rows.Close()

	var workstreams []finance.Workstream
	for rows.Next() {
		var ws finance.Workstream
		var budget, forecast string
		if err := rows.Scan(&ws.ID, &ws.ProjectID, &ws.Code, &ws.Name,
			&ws.CostReceiver, &budget, &forecast); err != nil {
			return nil, fmt.Errorf("failed to scan workstream: %w", err)
		}
		ws.Budget = parseDecimal(budget)
		ws.ForecastBudget = parseDecimal(forecast)
		workstreams = append(workstreams, ws)
	}
	return workstreams, rows.Err()
}

// SaveProjectFinancialDetail upserts the project-level summary row.
func (s *Store) SaveProjectFinancialDetail(ctx context.Context, d finance.ProjectFinancialDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO project_financials (project_id, name, budget, forecast_budget)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			name = excluded.name,
			budget = excluded.budget,
			forecast_budget = excluded.forecast_budget
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ProjectID, d.Name, d.Budget.String(), d.ForecastBudget.String())
	if err != nil {
		return fmt.Errorf("failed to save project financial detail: %w", err)
	}
	return nil
}

// GetProjectFinancialDetail returns the summary row for a project, or any
// single summary row when projectID is empty. Nil when none exists.
func (s *Store) GetProjectFinancialDetail(ctx context.Context, projectID string) (*finance.ProjectFinancialDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT project_id, COALESCE(name, ''), budget, forecast_budget
		FROM project_financials
		WHERE ? = '' OR project_id = ?
		ORDER BY project_id
		LIMIT 1
	`
	var d finance.ProjectFinancialDetail
	var budget, forecast string
	err := s.db.QueryRowContext(ctx, query, projectID, projectID).
		Scan(&d.ProjectID, &d.Name, &budget, &forecast)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project financial detail: %w", err)
	}
	d.Budget = parseDecimal(budget)
	d.ForecastBudget = parseDecimal(forecast)
	return &d, nil
}

// SaveLabourRate upserts one rate-table entry.
func (s *Store) SaveLabourRate(ctx context.Context, r finance.LabourRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO labour_rates (activity_type, hourly_rate)
		VALUES (?, ?)
		ON CONFLICT(activity_type) DO UPDATE SET hourly_rate = excluded.hourly_rate
	`
	_, err := s.db.ExecContext(ctx, query, r.ActivityType, r.HourlyRate.String())
	if err != nil {
		return fmt.Errorf("failed to save labour rate: %w", err)
	}
	return nil
}

// ListLabourRates returns the full rate table.
func (s *Store) ListLabourRates(ctx context.Context) ([]finance.LabourRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT activity_type, hourly_rate FROM labour_rates ORDER BY activity_type")
	if err != nil {
		return nil, fmt.Errorf("failed to list labour rates: %w", err)
	}
	defer rows.Close()

	var rates []finance.LabourRate
	for rows.Next() {
		var r finance.LabourRate
		var rate string
		if err := rows.Scan(&r.ActivityType, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan labour rate: %w", err)
		}
		r.HourlyRate = parseDecimal(rate)
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

// SumActuals totals ledger amounts for a cost receiver and optional
// reporting month. Empty cost receiver sums across every posting.
func (s *Store) SumActuals(ctx context.Context, costReceiver, month string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT amount FROM actual_entries
		WHERE (? = '' OR cost_receiver = ?)
		  AND (? = '' OR month = ?)
	`
	rows, err := s.db.QueryContext(ctx, query, costReceiver, costReceiver, month, month)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query actuals: %w", err)
	}
	defer rows.Close()

	return sumDecimalColumn(rows)
}

// =============================================================================
// HELPERS
// =============================================================================

func orNewID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func dateOrNull(d calendar.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Key(), Valid: true}
}

func parseDateKey(s sql.NullString) calendar.Date {
	if !s.Valid || s.String == "" {
		return calendar.Date{}
	}
	d, _ := calendar.ParseKey(s.String)
	return d
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sumDecimalColumn sums a single-column result set of decimal text.
func sumDecimalColumn(rows *sql.Rows) (decimal.Decimal, error) {
	total := decimal.Zero
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan decimal column: %w", err)
		}
		total = total.Add(parseDecimal(v))
	}
	return total, rows.Err()
}
