// Package sqlite implements incident storage in an embedded SQLite
// database. Pure Go driver, local single file, no server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sentinel-labs/safety-sentinel/internal/domain"
	"github.com/sentinel-labs/safety-sentinel/internal/incidents"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	id          INTEGER PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL,
	severity    TEXT NOT NULL,
	reported_at TEXT NOT NULL,
	status      TEXT NOT NULL,
	assigned_to TEXT NOT NULL,
	position    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// metaSavedKey marks that a collection was saved at least once. It is what
// distinguishes "no prior data" from a deliberately emptied collection.
const metaSavedKey = "saved_at"

// Repository implements incidents.Storage over an embedded SQLite file.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single logical writer; one connection avoids SQLITE_BUSY entirely.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Load reads the stored collection in insertion order. Returns
// incidents.ErrNoData when no collection was ever saved.
func (r *Repository) Load(ctx context.Context) ([]domain.Incident, error) {
	var savedAt string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaSavedKey).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, incidents.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, severity, reported_at, status, assigned_to
		FROM incidents
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("select incidents: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", "error", err)
		}
	}()

	var collection []domain.Incident
	for rows.Next() {
		var incident domain.Incident
		var reportedAt string
		if err := rows.Scan(
			&incident.ID,
			&incident.Title,
			&incident.Description,
			&incident.Severity,
			&reportedAt,
			&incident.Status,
			&incident.AssignedTo,
		); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incident.ReportedAt, err = time.Parse(time.RFC3339Nano, reportedAt)
		if err != nil {
			return nil, fmt.Errorf("parse reported_at %q: %w", reportedAt, err)
		}
		collection = append(collection, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	return collection, nil
}

// Save transactionally replaces the stored collection.
func (r *Repository) Save(ctx context.Context, collection []domain.Incident) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM incidents`); err != nil {
		return fmt.Errorf("clear incidents: %w", err)
	}

	for position, incident := range collection {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO incidents (id, title, description, severity, reported_at, status, assigned_to, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			incident.ID,
			incident.Title,
			incident.Description,
			string(incident.Severity),
			incident.ReportedAt.UTC().Format(time.RFC3339Nano),
			incident.Status,
			incident.AssignedTo,
			position,
		); err != nil {
			return fmt.Errorf("insert incident %d: %w", incident.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaSavedKey, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("update meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}
