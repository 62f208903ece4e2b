// ABOUTME: SQLite implementation of SessionStore using modernc.org/sqlite
// ABOUTME: Provides atomic credential upserts with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/wagate/internal/creds"
)

// SQLiteStore implements SessionStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite store at the given path or DSN.
// The schema is created if it doesn't exist. Parent directories are created
// for plain file paths.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists for plain file paths. DSNs like
	// ":memory:" or "file:..." are passed through untouched.
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the sessions table if it doesn't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			creds      TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// LoadCreds retrieves the credential blob for a session.
// Returns ErrNotFound if no row exists.
func (s *SQLiteStore) LoadCreds(ctx context.Context, sessionID string) (*creds.Credentials, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT creds FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading credentials for %q: %w", sessionID, err)
	}

	c, err := creds.Decode([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("credentials for %q are corrupt: %w", sessionID, err)
	}
	return c, nil
}

// SaveCreds upserts the credential blob for a session. The write is a single
// statement, so a concurrent load never observes a partial blob.
func (s *SQLiteStore) SaveCreds(ctx context.Context, sessionID string, c *creds.Credentials) error {
	blob, err := c.Encode()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (session_id, creds, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			creds = excluded.creds,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		sessionID,
		string(blob),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving credentials for %q: %w", sessionID, err)
	}

	s.logger.Debug("saved credentials", "session_id", sessionID, "bytes", len(blob))
	return nil
}

// DeleteCreds removes the session row. No-op if absent.
func (s *SQLiteStore) DeleteCreds(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = ?`, sessionID,
	)
	if err != nil {
		return fmt.Errorf("deleting credentials for %q: %w", sessionID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
