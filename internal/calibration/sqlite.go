package calibration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/onco-efficacy-engine/internal/domain"
)

// SQLiteStore implements Store on a local SQLite file, for deployments
// without a shared PostgreSQL instance.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a SQLite snapshot store, creating the database file
// and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// createSchema creates the snapshot table and index.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS calibration_snapshots (
		gene TEXT PRIMARY KEY,
		raw_breakpoints TEXT NOT NULL,
		calibrated_breakpoints TEXT NOT NULL,
		built_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_built_at ON calibration_snapshots(built_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Get retrieves the snapshot for a gene.
func (s *SQLiteStore) Get(ctx context.Context, gene string) (*Snapshot, error) {
	var (
		snapshot       Snapshot
		rawJSON        string
		calibratedJSON string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT gene, raw_breakpoints, calibrated_breakpoints, built_at FROM calibration_snapshots WHERE gene = ?",
		gene,
	).Scan(&snapshot.Gene, &rawJSON, &calibratedJSON, &snapshot.BuiltAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting calibration snapshot for %s: %w", gene, err)
	}

	if err := json.Unmarshal([]byte(rawJSON), &snapshot.Raw); err != nil {
		return nil, fmt.Errorf("decoding raw breakpoints for %s: %w", gene, err)
	}
	if err := json.Unmarshal([]byte(calibratedJSON), &snapshot.Calibrated); err != nil {
		return nil, fmt.Errorf("decoding calibrated breakpoints for %s: %w", gene, err)
	}

	return &snapshot, nil
}

// Put stores or replaces the snapshot for a gene.
func (s *SQLiteStore) Put(ctx context.Context, snapshot *Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	rawJSON, err := json.Marshal(snapshot.Raw)
	if err != nil {
		return fmt.Errorf("encoding raw breakpoints: %w", err)
	}
	calibratedJSON, err := json.Marshal(snapshot.Calibrated)
	if err != nil {
		return fmt.Errorf("encoding calibrated breakpoints: %w", err)
	}

	builtAt := snapshot.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calibration_snapshots (gene, raw_breakpoints, calibrated_breakpoints, built_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(gene) DO UPDATE SET
			raw_breakpoints = excluded.raw_breakpoints,
			calibrated_breakpoints = excluded.calibrated_breakpoints,
			built_at = excluded.built_at
	`, snapshot.Gene, string(rawJSON), string(calibratedJSON), builtAt)

	if err != nil {
		return fmt.Errorf("storing calibration snapshot for %s: %w", snapshot.Gene, err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
