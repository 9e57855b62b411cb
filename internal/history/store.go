// Package history persists chapter run results in a SQLite database so past
// runs can be listed after the fact.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/booktester/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// DefaultLimit caps List when the caller passes a non-positive limit.
const DefaultLimit = 20

// Store manages the SQLite run history.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database file backing the store.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts a run result. A result without an ID is given a fresh UUID,
// which is written back to result.ID.
func (s *Store) Record(ctx context.Context, result *models.RunResult) error {
	if result == nil {
		return fmt.Errorf("record run: nil result")
	}
	if result.ID == "" {
		result.ID = uuid.NewString()
	}

	skips, err := json.Marshal(result.Skips)
	if err != nil {
		return fmt.Errorf("marshal skips: %w", err)
	}
	divergence, err := json.Marshal(result.Divergence)
	if err != nil {
		return fmt.Errorf("marshal divergence: %w", err)
	}

	query := `INSERT INTO chapter_runs
		(id, chapter, previous_chapter, started_at, duration_ns, passed, total, checked, trusted, pos, failed_index, error_message, skips, divergence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		result.ID,
		result.Chapter,
		result.PreviousChapter,
		result.StartedAt.UTC().Format(time.RFC3339Nano),
		int64(result.Duration),
		result.Passed,
		result.Total,
		result.Checked,
		result.Trusted,
		result.Pos,
		result.FailedIndex,
		result.Error,
		string(skips),
		string(divergence),
	)
	if err != nil {
		return fmt.Errorf("insert chapter run: %w", err)
	}
	return nil
}

// List returns recorded runs, most recent first. An empty chapter lists
// every chapter.
func (s *Store) List(ctx context.Context, chapter string, limit int) ([]*models.RunResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT id, chapter, previous_chapter, started_at, duration_ns, passed, total, checked, trusted, pos, failed_index, error_message, skips, divergence
		FROM chapter_runs`
	args := []any{}
	if chapter != "" {
		query += ` WHERE chapter = ?`
		args = append(args, chapter)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chapter runs: %w", err)
	}
	defer rows.Close()

	var results []*models.RunResult
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapter runs: %w", err)
	}
	return results, nil
}

// Get returns a single run by ID, or sql.ErrNoRows wrapped when absent.
func (s *Store) Get(ctx context.Context, id string) (*models.RunResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, chapter, previous_chapter, started_at, duration_ns, passed, total, checked, trusted, pos, failed_index, error_message, skips, divergence
		FROM chapter_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.RunResult, error) {
	r := &models.RunResult{}
	var startedAt string
	var duration int64
	var errorMessage, skips, divergence sql.NullString

	err := row.Scan(
		&r.ID,
		&r.Chapter,
		&r.PreviousChapter,
		&startedAt,
		&duration,
		&r.Passed,
		&r.Total,
		&r.Checked,
		&r.Trusted,
		&r.Pos,
		&r.FailedIndex,
		&errorMessage,
		&skips,
		&divergence,
	)
	if err != nil {
		return nil, fmt.Errorf("scan chapter run: %w", err)
	}

	r.Duration = time.Duration(duration)
	r.Error = errorMessage.String
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	if skips.Valid && skips.String != "" && skips.String != "null" {
		if err := json.Unmarshal([]byte(skips.String), &r.Skips); err != nil {
			return nil, fmt.Errorf("unmarshal skips: %w", err)
		}
	}
	if divergence.Valid && divergence.String != "" && divergence.String != "null" {
		if err := json.Unmarshal([]byte(divergence.String), &r.Divergence); err != nil {
			return nil, fmt.Errorf("unmarshal divergence: %w", err)
		}
	}
	return r, nil
}
