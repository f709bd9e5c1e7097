// ABOUTME: SQLite implementation of session.Store using modernc.org/sqlite
// ABOUTME: Persists sessions with automatic schema creation and expiry filtering

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/2389/folio/internal/session"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session doesn't exist or is expired.
var ErrNotFound = session.ErrNotFound

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements session.Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
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

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id              TEXT PRIMARY KEY,
			username        TEXT NOT NULL DEFAULT '',
			pending_error   TEXT NOT NULL DEFAULT '',
			pending_success TEXT NOT NULL DEFAULT '',
			csrf_token      TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			expires_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at
			ON sessions(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get retrieves a valid (non-expired) session.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*session.Session, error) {
	query := `
		SELECT id, username, pending_error, pending_success, csrf_token, created_at, expires_at
		FROM sessions
		WHERE id = ? AND expires_at > ?
	`

	var d session.Data
	var createdAtStr, expiresAtStr string
	now := s.now().UTC().Format(timeLayout)

	err := s.db.QueryRowContext(ctx, query, id, now).Scan(
		&d.ID,
		&d.Username,
		&d.PendingError,
		&d.PendingSuccess,
		&d.CSRFToken,
		&createdAtStr,
		&expiresAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	d.CreatedAt, err = time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	d.ExpiresAt, err = time.Parse(timeLayout, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}

	return session.Restore(d), nil
}

// Save inserts or replaces a session.
func (s *SQLiteStore) Save(ctx context.Context, sess *session.Session) error {
	d := sess.Snapshot()
	query := `
		INSERT INTO sessions (id, username, pending_error, pending_success, csrf_token, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			pending_error = excluded.pending_error,
			pending_success = excluded.pending_success,
			csrf_token = excluded.csrf_token,
			expires_at = excluded.expires_at
	`

	_, err := s.db.ExecContext(ctx, query,
		d.ID,
		d.Username,
		d.PendingError,
		d.PendingSuccess,
		d.CSRFToken,
		d.CreatedAt.UTC().Format(timeLayout),
		d.ExpiresAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	s.logger.Debug("saved session", "id", d.ID)
	return nil
}

// Delete deletes a session.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns how many were removed.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int64, error) {
	now := s.now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted sessions: %w", err)
	}
	return n, nil
}
