package calibration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/onco-efficacy-engine/internal/domain"
)

// PostgresStore implements Store on PostgreSQL. It expects the
// calibration_snapshots table to exist (created via migrations).
type PostgresStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresStore creates a PostgreSQL snapshot store.
func NewPostgresStore(db *pgxpool.Pool, logger *logrus.Logger) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	return &PostgresStore{db: db, log: logger}, nil
}

// Get retrieves the snapshot for a gene.
func (s *PostgresStore) Get(ctx context.Context, gene string) (*Snapshot, error) {
	query := `
		SELECT gene, raw_breakpoints, calibrated_breakpoints, built_at
		FROM calibration_snapshots
		WHERE gene = $1
	`

	var (
		snapshot       Snapshot
		rawJSON        []byte
		calibratedJSON []byte
	)
	err := s.db.QueryRow(ctx, query, gene).Scan(&snapshot.Gene, &rawJSON, &calibratedJSON, &snapshot.BuiltAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting calibration snapshot for %s: %w", gene, err)
	}

	if err := json.Unmarshal(rawJSON, &snapshot.Raw); err != nil {
		return nil, fmt.Errorf("decoding raw breakpoints for %s: %w", gene, err)
	}
	if err := json.Unmarshal(calibratedJSON, &snapshot.Calibrated); err != nil {
		return nil, fmt.Errorf("decoding calibrated breakpoints for %s: %w", gene, err)
	}

	return &snapshot, nil
}

// Put stores or replaces the snapshot for a gene.
func (s *PostgresStore) Put(ctx context.Context, snapshot *Snapshot) error {
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

	query := `
		INSERT INTO calibration_snapshots (gene, raw_breakpoints, calibrated_breakpoints, built_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (gene) DO UPDATE SET
			raw_breakpoints = EXCLUDED.raw_breakpoints,
			calibrated_breakpoints = EXCLUDED.calibrated_breakpoints,
			built_at = EXCLUDED.built_at
	`

	if _, err := s.db.Exec(ctx, query, snapshot.Gene, rawJSON, calibratedJSON, builtAt); err != nil {
		s.log.WithFields(logrus.Fields{
			"gene":  snapshot.Gene,
			"error": err,
		}).Error("Failed to store calibration snapshot")
		return fmt.Errorf("storing calibration snapshot for %s: %w", snapshot.Gene, err)
	}

	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}
