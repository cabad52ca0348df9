// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/verte-zerg/streamdash/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrDatasetNotFound reports a snapshot name with no stored rows.
var ErrDatasetNotFound = errors.New("dataset not found")

// Store wraps SQLite access for event snapshots and export history.
type Store struct {
	db *sql.DB
}

// DatasetInfo summarizes a stored snapshot.
type DatasetInfo struct {
	Name     string
	Source   string
	Rows     int
	LoadedAt time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			name TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			rows INTEGER NOT NULL,
			loaded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			dataset TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts TEXT NOT NULL,
			viewer_ip TEXT NOT NULL,
			user_id TEXT NOT NULL,
			country TEXT NOT NULL,
			sport TEXT NOT NULL,
			duration REAL NOT NULL,
			device TEXT NOT NULL,
			channel TEXT NOT NULL,
			PRIMARY KEY (dataset, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS exports (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			path TEXT NOT NULL,
			rows INTEGER NOT NULL,
			filter TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveDataset replaces the snapshot stored under name.
func (s *Store) SaveDataset(ctx context.Context, name, source string, ds model.Dataset) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM events WHERE dataset = ?`, name); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO datasets (name, source, rows, loaded_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET source = excluded.source, rows = excluded.rows, loaded_at = excluded.loaded_at`,
		name, source, ds.Len(), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}

	if ds.Len() > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO events (dataset, seq, ts, viewer_ip, user_id, country, sport, duration, device, channel)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, e := range ds.Events {
			if _, err = stmt.ExecContext(ctx, name, i, e.Timestamp.Format(time.RFC3339Nano),
				e.ViewerIP, e.UserID, e.Country, e.Sport, e.Duration, e.Device, e.Channel); err != nil {
				return err
			}
		}
	}

	err = tx.Commit()
	return err
}

// LoadDataset returns the snapshot stored under name in its original row order.
func (s *Store) LoadDataset(ctx context.Context, name string) (model.Dataset, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets WHERE name = ?`, name).Scan(&count); err != nil {
		return model.Dataset{}, err
	}
	if count == 0 {
		return model.Dataset{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, viewer_ip, user_id, country, sport, duration, device, channel
		 FROM events WHERE dataset = ? ORDER BY seq ASC`, name)
	if err != nil {
		return model.Dataset{}, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var ts string
		if err := rows.Scan(&ts, &e.ViewerIP, &e.UserID, &e.Country, &e.Sport, &e.Duration, &e.Device, &e.Channel); err != nil {
			return model.Dataset{}, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return model.Dataset{}, err
		}
		e.Timestamp = parsed
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return model.Dataset{}, err
	}
	return model.NewDataset(events), nil
}

// ListDatasets returns stored snapshots, most recent first.
func (s *Store) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, source, rows, loaded_at FROM datasets ORDER BY loaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		var loadedAt string
		if err := rows.Scan(&info.Name, &info.Source, &info.Rows, &loadedAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, loadedAt)
		if err != nil {
			return nil, err
		}
		info.LoadedAt = parsed
		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// NewRunID returns an identifier grouping the files of one export run.
func NewRunID() string {
	return uuid.NewString()
}

// EncodeFilter serializes a filter for the export history.
func EncodeFilter(spec model.FilterSpec) (string, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("failed to encode filter: %w", err)
	}
	return string(data), nil
}

// DecodeFilter parses a filter stored by EncodeFilter.
func DecodeFilter(data string) (model.FilterSpec, error) {
	var spec model.FilterSpec
	if err := json.Unmarshal([]byte(data), &spec); err != nil {
		return model.FilterSpec{}, fmt.Errorf("failed to decode filter: %w", err)
	}
	return spec, nil
}

// RecordExports stores export history entries, assigning ids where missing.
func (s *Store) RecordExports(ctx context.Context, records []model.ExportRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO exports (id, run_id, kind, path, rows, filter, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for _, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := r.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		filter := r.Filter
		if filter == "" {
			filter = "{}"
		}
		if _, err = stmt.ExecContext(ctx, id, r.RunID, r.Kind, r.Path, r.Rows, filter, created.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// ListExports returns the export history, most recent first. A limit of zero means all.
func (s *Store) ListExports(ctx context.Context, limit int) ([]model.ExportRecord, error) {
	query := `SELECT id, run_id, kind, path, rows, filter, created_at FROM exports ORDER BY created_at DESC, kind ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.ExportRecord
	for rows.Next() {
		var r model.ExportRecord
		var created string
		if err := rows.Scan(&r.ID, &r.RunID, &r.Kind, &r.Path, &r.Rows, &r.Filter, &created); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, err
		}
		r.CreatedAt = parsed
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
