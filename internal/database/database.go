// Package database persists monitors and entities to Postgres.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

// Database wraps a Postgres connection pool.
type Database struct {
	db *sql.DB
}

// New opens a connection pool to url (a postgres:// DSN). The pool is not
// validated until the first query; callers that want to fail fast at startup
// should call Ping.
func New(url string) (*Database, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}
	return &Database{db: db}, nil
}

// Ping verifies connectivity, used at service startup so a bad DATABASE_URL is
// a fatal startup error rather than a lazily-discovered one (spec §7a).
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: ping: %w", err)
	}
	return nil
}

// Close closes the pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// Migrate creates the schema described in spec §6 if it does not already exist.
func (d *Database) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS monitors (
			id TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			id SERIAL PRIMARY KEY,
			image_id TEXT NOT NULL,
			label TEXT NOT NULL,
			confidence NUMERIC(5,4) NOT NULL,
			monitor_id TEXT NULL REFERENCES monitors(id),
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS entities_monitor_id_id_idx ON entities (monitor_id, id)`,
	}

	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migrate: %w", err)
		}
	}
	return nil
}

// EnsureMonitor idempotently creates a monitor row for id, if non-nil. This
// resolves spec §9's open question in favor of a single upsert statement
// instead of the original select-then-insert race.
func (d *Database) EnsureMonitor(ctx context.Context, id *string) error {
	if id == nil {
		return nil
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO monitors (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, *id)
	if err != nil {
		return fmt.Errorf("database: ensure monitor %s: %w", *id, err)
	}
	return nil
}

// InsertEntity inserts a new entity row and returns its assigned id.
//
// Per spec §4.3, failure here is fatal to the calling handler task — it is not
// retried or dead-lettered, only logged and returned to the caller.
func (d *Database) InsertEntity(ctx context.Context, e model.Entity) (int64, error) {
	var id int64
	err := d.db.QueryRowContext(ctx,
		`INSERT INTO entities (image_id, monitor_id, confidence, label, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.ImageID, e.MonitorID, e.Confidence, e.Label, e.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("database: insert entity: %w", err)
	}
	return id, nil
}

// GetEntity fetches a single entity by id.
func (d *Database) GetEntity(ctx context.Context, id int64) (model.Entity, error) {
	var e model.Entity
	err := d.db.QueryRowContext(ctx,
		`SELECT id, image_id, label, confidence, monitor_id, created_at
		 FROM entities WHERE id = $1`, id,
	).Scan(&e.ID, &e.ImageID, &e.Label, &e.Confidence, &e.MonitorID, &e.CreatedAt)
	if err != nil {
		return model.Entity{}, fmt.Errorf("database: get entity %d: %w", id, err)
	}
	return e, nil
}

// ListMonitors returns every monitor row, ordered by id ascending. It never
// includes the synthetic unattributed monitor — callers append that
// themselves, per spec §4.4.
func (d *Database) ListMonitors(ctx context.Context) ([]model.Monitor, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM monitors ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("database: list monitors: %w", err)
	}
	defer rows.Close()

	var monitors []model.Monitor
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("database: scan monitor: %w", err)
		}
		monitors = append(monitors, model.Monitor{ID: &id})
	}
	return monitors, rows.Err()
}

// MonitorExists reports whether a monitor row exists for id.
func (d *Database) MonitorExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM monitors WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("database: monitor exists %s: %w", id, err)
	}
	return exists, nil
}
