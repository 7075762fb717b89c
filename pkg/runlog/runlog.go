package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/teamexport/slacksnap/pkg/models"
)

// schema is created on open; one row per export run.
const schema = `
CREATE TABLE IF NOT EXISTS export_runs (
	run_id            CHAR(36) PRIMARY KEY,
	exported_at       DATETIME NOT NULL,
	recorded_at       DATETIME NOT NULL,
	total_channels    INT NOT NULL,
	total_users       INT NOT NULL,
	total_messages    INT NOT NULL,
	degraded_channels INT NOT NULL
)`

// Store records export run summaries in MySQL.
type Store struct {
	db *sql.DB
}

// Open connects to the database and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create export_runs table: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordRun inserts one row summarizing a finished export.
func (s *Store) RecordRun(ctx context.Context, snap *models.ExportSnapshot) error {
	const q = `
		INSERT INTO export_runs
		(run_id, exported_at, recorded_at, total_channels, total_users, total_messages, degraded_channels)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		snap.RunID,
		snap.ExportedAt,
		time.Now().UTC(),
		snap.TotalChannels,
		snap.TotalUsers,
		snap.TotalMessages,
		len(snap.Degraded),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", snap.RunID, err)
	}
	return nil
}

// Consume implements the snapshot sink used by the API server.
func (s *Store) Consume(ctx context.Context, snap *models.ExportSnapshot) error {
	return s.RecordRun(ctx, snap)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
