// ABOUTME: SQLite implementation of the store interfaces using modernc.org/sqlite
// ABOUTME: Provides chapter persistence with automatic schema creation

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
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements the store interfaces.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
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

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
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

// createSchema creates the database tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chapters (
			id         TEXT PRIMARY KEY,
			episode    INTEGER NOT NULL UNIQUE,
			title      TEXT NOT NULL,
			content    TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chapters_episode ON chapters(episode);

		CREATE TABLE IF NOT EXISTS readers (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			display_name  TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS reader_sessions (
			id         TEXT PRIMARY KEY,
			reader_id  TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			FOREIGN KEY (reader_id) REFERENCES readers(id)
		);

		CREATE INDEX IF NOT EXISTS idx_reader_sessions_expires ON reader_sessions(expires_at);

		CREATE TABLE IF NOT EXISTS reader_invites (
			id         TEXT PRIMARY KEY,
			created_by TEXT,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			used_at    TEXT,
			used_by    TEXT
		);

		CREATE TABLE IF NOT EXISTS login_codes (
			id         TEXT PRIMARY KEY,
			code       TEXT NOT NULL UNIQUE,
			reader_id  TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			used_at    TEXT,
			FOREIGN KEY (reader_id) REFERENCES readers(id)
		);

		CREATE INDEX IF NOT EXISTS idx_login_codes_code ON login_codes(code);

		CREATE TABLE IF NOT EXISTS passkey_credentials (
			id               TEXT PRIMARY KEY,
			reader_id        TEXT NOT NULL,
			credential_id    BLOB NOT NULL UNIQUE,
			public_key       BLOB NOT NULL,
			attestation_type TEXT NOT NULL DEFAULT '',
			transports       TEXT NOT NULL DEFAULT '',
			sign_count       INTEGER NOT NULL DEFAULT 0,
			created_at       TEXT NOT NULL,
			FOREIGN KEY (reader_id) REFERENCES readers(id)
		);

		CREATE INDEX IF NOT EXISTS idx_passkey_credentials_reader ON passkey_credentials(reader_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullableString maps an empty string to a SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateChapter inserts a new chapter. If the episode number is already
// taken it returns ErrDuplicateEpisode.
func (s *SQLiteStore) CreateChapter(ctx context.Context, ch *Chapter) error {
	query := `
		INSERT INTO chapters (id, episode, title, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		ch.ID,
		ch.Episode,
		ch.Title,
		nullableString(ch.Content),
		ch.CreatedAt.UTC().Format(time.RFC3339),
		ch.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEpisode
		}
		return fmt.Errorf("inserting chapter: %w", err)
	}

	s.logger.Debug("created chapter", "id", ch.ID, "episode", ch.Episode)
	return nil
}

// scanChapter scans a chapter row shared by all single-row chapter queries.
func scanChapter(row *sql.Row) (*Chapter, error) {
	var ch Chapter
	var content sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&ch.ID,
		&ch.Episode,
		&ch.Title,
		&content,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chapter: %w", err)
	}

	ch.Content = content.String

	ch.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	ch.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &ch, nil
}

const chapterColumns = "id, episode, title, content, created_at, updated_at"

// GetChapter retrieves a chapter by ID.
// Returns ErrNotFound if the chapter doesn't exist.
func (s *SQLiteStore) GetChapter(ctx context.Context, id string) (*Chapter, error) {
	query := "SELECT " + chapterColumns + " FROM chapters WHERE id = ?"
	return scanChapter(s.db.QueryRowContext(ctx, query, id))
}

// GetChapterByEpisode retrieves a chapter by its episode number.
// Returns ErrNotFound if no chapter has that episode number.
func (s *SQLiteStore) GetChapterByEpisode(ctx context.Context, episode int) (*Chapter, error) {
	query := "SELECT " + chapterColumns + " FROM chapters WHERE episode = ?"
	return scanChapter(s.db.QueryRowContext(ctx, query, episode))
}

// PreviousChapter returns the chapter with the greatest episode number
// strictly less than episode. Returns ErrNotFound at the start of the
// sequence. Uniqueness of episode numbers makes the result unambiguous.
func (s *SQLiteStore) PreviousChapter(ctx context.Context, episode int) (*Chapter, error) {
	query := "SELECT " + chapterColumns + ` FROM chapters
		WHERE episode < ?
		ORDER BY episode DESC
		LIMIT 1`
	return scanChapter(s.db.QueryRowContext(ctx, query, episode))
}

// NextChapter returns the chapter with the smallest episode number
// strictly greater than episode. Returns ErrNotFound at the end of the
// sequence.
func (s *SQLiteStore) NextChapter(ctx context.Context, episode int) (*Chapter, error) {
	query := "SELECT " + chapterColumns + ` FROM chapters
		WHERE episode > ?
		ORDER BY episode ASC
		LIMIT 1`
	return scanChapter(s.db.QueryRowContext(ctx, query, episode))
}

// UpdateChapter updates an existing chapter's episode, title, and content.
// Returns ErrNotFound if the chapter doesn't exist, ErrDuplicateEpisode if
// the new episode number collides with another chapter.
func (s *SQLiteStore) UpdateChapter(ctx context.Context, ch *Chapter) error {
	query := `
		UPDATE chapters
		SET episode = ?, title = ?, content = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		ch.Episode,
		ch.Title,
		nullableString(ch.Content),
		ch.UpdatedAt.UTC().Format(time.RFC3339),
		ch.ID,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEpisode
		}
		return fmt.Errorf("updating chapter: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated chapter", "id", ch.ID, "episode", ch.Episode)
	return nil
}

// DeleteChapter removes a chapter by ID.
// Returns ErrNotFound if the chapter doesn't exist.
func (s *SQLiteStore) DeleteChapter(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM chapters WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting chapter: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted chapter", "id", id)
	return nil
}

// ListChapters returns all chapters in episode order.
func (s *SQLiteStore) ListChapters(ctx context.Context) ([]*Chapter, error) {
	query := "SELECT " + chapterColumns + " FROM chapters ORDER BY episode ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*Chapter
	for rows.Next() {
		var ch Chapter
		var content sql.NullString
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&ch.ID, &ch.Episode, &ch.Title, &content, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning chapter: %w", err)
		}

		ch.Content = content.String

		ch.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		ch.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		chapters = append(chapters, &ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chapters: %w", err)
	}

	return chapters, nil
}
