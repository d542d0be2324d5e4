package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/chaindeploy/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens the ledger at dsn (a file path or ":memory:") and
// runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	return updateRun(ctx, s.db, run)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.db, opts)
}

func (s *SQLiteStore) CountRuns(ctx context.Context, plan string) (int, error) {
	return countRuns(ctx, s.db, plan)
}

func (s *SQLiteStore) RecordUnit(ctx context.Context, rec *domain.UnitRecord) error {
	return recordUnit(ctx, s.db, rec)
}

func (s *SQLiteStore) ListUnitRecords(ctx context.Context, runID string) ([]domain.UnitRecord, error) {
	return listUnitRecords(ctx, s.db, runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *domain.Run, last *domain.UnitRecord) error {
	return s.WithTx(ctx, func(tx Store) error {
		return tx.FinishRun(ctx, run, last)
	})
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	return updateRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CountRuns(ctx context.Context, plan string) (int, error) {
	return countRuns(ctx, s.tx, plan)
}

func (s *txSQLiteStore) RecordUnit(ctx context.Context, rec *domain.UnitRecord) error {
	return recordUnit(ctx, s.tx, rec)
}

func (s *txSQLiteStore) ListUnitRecords(ctx context.Context, runID string) ([]domain.UnitRecord, error) {
	return listUnitRecords(ctx, s.tx, runID)
}

func (s *txSQLiteStore) FinishRun(ctx context.Context, run *domain.Run, last *domain.UnitRecord) error {
	if last != nil {
		if err := recordUnit(ctx, s.tx, last); err != nil {
			return err
		}
	}
	return updateRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	return nil
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID         string  `db:"id"`
	Plan       string  `db:"plan"`
	ChainID    uint64  `db:"chain_id"`
	Deployer   string  `db:"deployer"`
	Status     string  `db:"status"`
	Error      string  `db:"error"`
	StartedAt  string  `db:"started_at"`
	FinishedAt *string `db:"finished_at"`
}

func createRun(ctx context.Context, exec executor, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, plan, chain_id, deployer, status, error, started_at, finished_at)
		VALUES (:id, :plan, :chain_id, :deployer, :status, :error, :started_at, :finished_at)`

	_, err := exec.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewStoreError("CreateRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRun", "run", run.ID, err.Error(), err)
	}
	return nil
}

func getRun(ctx context.Context, exec executor, id string) (*domain.Run, error) {
	var row runRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}

	run := rowToRun(&row)
	units, err := listUnitRecords(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	run.Units = units
	return run, nil
}

func updateRun(ctx context.Context, exec executor, run *domain.Run) error {
	query := `
		UPDATE runs SET
			plan = :plan,
			chain_id = :chain_id,
			deployer = :deployer,
			status = :status,
			error = :error,
			finished_at = :finished_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateRun", "run", run.ID, "run not found", ErrNotFound)
	}
	return nil
}

func listRuns(ctx context.Context, exec executor, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()

	var rows []runRow
	var err error
	if opts.Plan != "" {
		query := `SELECT * FROM runs WHERE plan = ? ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`
		err = exec.SelectContext(ctx, &rows, query, opts.Plan, opts.Limit, opts.Offset)
	} else {
		query := `SELECT * FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`
		err = exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	}
	if err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	runs := make([]domain.Run, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, *rowToRun(&row))
	}
	return runs, nil
}

// countRuns counts every run, or only runs of plan when it is set.
func countRuns(ctx context.Context, exec executor, plan string) (int, error) {
	var n int
	var err error
	if plan != "" {
		err = exec.GetContext(ctx, &n, `SELECT COUNT(*) FROM runs WHERE plan = ?`, plan)
	} else {
		err = exec.GetContext(ctx, &n, `SELECT COUNT(*) FROM runs`)
	}
	if err != nil {
		return 0, NewStoreError("CountRuns", "run", "", err.Error(), err)
	}
	return n, nil
}

// =============================================================================
// Unit Result Operations
// =============================================================================

// unitRow represents a unit_results row in the database.
type unitRow struct {
	RunID      string  `db:"run_id"`
	Position   int     `db:"position"`
	Unit       string  `db:"unit"`
	Artifact   string  `db:"artifact"`
	Status     string  `db:"status"`
	Address    string  `db:"address"`
	TxHash     string  `db:"tx_hash"`
	Error      string  `db:"error"`
	FinishedAt *string `db:"finished_at"`
}

func recordUnit(ctx context.Context, exec executor, rec *domain.UnitRecord) error {
	query := `
		INSERT INTO unit_results (run_id, position, unit, artifact, status, address, tx_hash, error, finished_at)
		VALUES (:run_id, :position, :unit, :artifact, :status, :address, :tx_hash, :error, :finished_at)`

	row := unitRow{
		RunID:      rec.RunID,
		Position:   rec.Position,
		Unit:       rec.Unit,
		Artifact:   rec.Artifact,
		Status:     rec.Status,
		Address:    rec.Address,
		TxHash:     rec.TxHash,
		Error:      rec.Error,
		FinishedAt: formatTimePtr(rec.FinishedAt),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("RecordUnit", "unit", rec.Unit, "unit already recorded for this run", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("RecordUnit", "unit", rec.Unit, "run not found", ErrForeignKey)
		}
		return NewStoreError("RecordUnit", "unit", rec.Unit, err.Error(), err)
	}
	return nil
}

func listUnitRecords(ctx context.Context, exec executor, runID string) ([]domain.UnitRecord, error) {
	var rows []unitRow
	err := exec.SelectContext(ctx, &rows, `SELECT * FROM unit_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, NewStoreError("ListUnitRecords", "unit", runID, err.Error(), err)
	}

	records := make([]domain.UnitRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.UnitRecord{
			RunID:      row.RunID,
			Position:   row.Position,
			Unit:       row.Unit,
			Artifact:   row.Artifact,
			Status:     row.Status,
			Address:    row.Address,
			TxHash:     row.TxHash,
			Error:      row.Error,
			FinishedAt: parseTimePtr(row.FinishedAt),
		})
	}
	return records, nil
}

// =============================================================================
// Row Conversion Functions
// =============================================================================

func runToRow(run *domain.Run) runRow {
	return runRow{
		ID:         run.ID,
		Plan:       run.Plan,
		ChainID:    run.ChainID,
		Deployer:   run.Deployer,
		Status:     string(run.Status),
		Error:      run.Error,
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt: formatTimePtr(run.FinishedAt),
	}
}

func rowToRun(row *runRow) *domain.Run {
	startedAt, _ := time.Parse(time.RFC3339Nano, row.StartedAt)
	return &domain.Run{
		ID:         row.ID,
		Plan:       row.Plan,
		ChainID:    row.ChainID,
		Deployer:   row.Deployer,
		Status:     domain.RunStatus(row.Status),
		Error:      row.Error,
		StartedAt:  startedAt,
		FinishedAt: parseTimePtr(row.FinishedAt),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}
