package runstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"inkmark/internal/config"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrNotFound indicates the requested run does not exist.
var ErrNotFound = errors.New("run not found")

// ErrSchemaMismatch indicates the database was created by a different version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database.
func Open(cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Create inserts a new run record.
func (s *Store) Create(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = StatusLoading
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
            id, source_url, watermark_url, output_format, status, percent,
            frames_processed, total_frames, frames_skipped,
            output_mime, output_bytes, output_path, error_message,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SourceURL, run.WatermarkURL, run.OutputFormat, run.Status, run.Percent,
		run.FramesProcessed, run.TotalFrames, run.FramesSkipped,
		run.OutputMIME, run.OutputBytes, run.OutputPath, run.ErrorMessage,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateProgress records the run's current phase and frame counters.
func (s *Store) UpdateProgress(ctx context.Context, id string, status Status, percent float64, processed, total, skipped int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, percent = ?, frames_processed = ?, total_frames = ?, frames_skipped = ?, updated_at = ?
         WHERE id = ?`,
		status, percent, processed, total, skipped, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return requireRow(res)
}

// MarkCompleted finalizes a successful run.
func (s *Store) MarkCompleted(ctx context.Context, id, mime string, bytes int64, outputPath string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, percent = 100, output_mime = ?, output_bytes = ?, output_path = ?,
            updated_at = ?, completed_at = ? WHERE id = ?`,
		StatusCompleted, mime, bytes, outputPath, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark run completed: %w", err)
	}
	return requireRow(res)
}

// MarkFailed finalizes a failed run.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_message = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		StatusFailed, message, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}
	return requireRow(res)
}

// Get fetches one run by ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const selectColumns = `SELECT id, source_url, watermark_url, output_format, status, percent,
    frames_processed, total_frames, frames_skipped,
    output_mime, output_bytes, output_path, error_message,
    created_at, updated_at, completed_at FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var createdAt, updatedAt string
	var completedAt sql.NullString
	err := row.Scan(
		&run.ID, &run.SourceURL, &run.WatermarkURL, &run.OutputFormat, &run.Status, &run.Percent,
		&run.FramesProcessed, &run.TotalFrames, &run.FramesSkipped,
		&run.OutputMIME, &run.OutputBytes, &run.OutputPath, &run.ErrorMessage,
		&createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if completedAt.Valid {
		if parsed, parseErr := time.Parse(time.RFC3339Nano, completedAt.String); parseErr == nil {
			run.CompletedAt = &parsed
		}
	}
	return &run, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
