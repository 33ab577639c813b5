// Package history keeps a sqlite journal of the screenshots taken by the host.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alucardeht/ghview-bridge/internal/capture"
)

type Entry struct {
	ID             string
	Path           string
	AppName        string
	Title          string
	Width          int
	Height         int
	CapturedWidth  int
	CapturedHeight int
	Scaled         bool
	CreatedAt      time.Time
}

type Store struct {
	db *sql.DB
	// mu serializes writers; sqlite allows a single writer per database.
	mu sync.Mutex
}

// dsn applies the pragmas on every connection the pool opens, not just the
// first one.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS captures (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		app_name TEXT,
		title TEXT,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		captured_width INTEGER NOT NULL,
		captured_height INTEGER NOT NULL,
		scaled INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_captures_created_at ON captures(created_at);
	`

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record implements capture.Recorder.
func (s *Store) Record(ctx context.Context, shot capture.Shot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO captures (id, path, app_name, title, width, height, captured_width, captured_height, scaled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), shot.Path, shot.AppName, shot.Title,
		shot.Width, shot.Height, shot.CapturedWidth, shot.CapturedHeight,
		shot.Scaled, shot.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record capture: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, app_name, title, width, height, captured_width, captured_height, scaled, created_at
		 FROM captures ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var appName, title sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Path, &appName, &title, &e.Width, &e.Height,
			&e.CapturedWidth, &e.CapturedHeight, &e.Scaled, &createdAt); err != nil {
			return nil, err
		}
		e.AppName = appName.String
		e.Title = title.String
		e.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		// not fatal, the WAL is replayed on next open
	}
	return s.db.Close()
}
