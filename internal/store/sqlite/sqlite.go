package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dtregea/roomchat-server/internal/auth"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_info (
	username  TEXT PRIMARY KEY,
	password  TEXT NOT NULL,
	connected INTEGER NOT NULL DEFAULT 0
);
`

// Store implements store.CredentialStore for SQLite. Password verification
// delegates to the pluggable digest.
type Store struct {
	db     *sql.DB
	digest auth.Digest
}

// New opens (and creates, if needed) the credential database.
// dbPath is the path to the SQLite file; ":memory:" works for tests.
func New(dbPath string, digest auth.Digest) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, digest: digest}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether a username is taken.
func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	var found string
	err := s.db.QueryRowContext(ctx,
		`SELECT username FROM user_info WHERE username = ?`, username,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query username: %w", err)
	}
	return true, nil
}

// Verify checks the password against the stored digest. Unknown usernames
// verify false without error.
func (s *Store) Verify(ctx context.Context, username, password string) (bool, error) {
	var digest string
	err := s.db.QueryRowContext(ctx,
		`SELECT password FROM user_info WHERE username = ?`, username,
	).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query password: %w", err)
	}
	return s.digest.Compare(digest, password) == nil, nil
}

// Create inserts a new credential record, offline by default.
func (s *Store) Create(ctx context.Context, username, passwordDigest string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO user_info (username, password, connected) VALUES (?, ?, 0)`,
		username, passwordDigest,
	); err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// SetOnline updates the user's online flag.
func (s *Store) SetOnline(ctx context.Context, username string, online bool) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE user_info SET connected = ? WHERE username = ?`,
		boolToInt(online), username,
	); err != nil {
		return fmt.Errorf("update online flag: %w", err)
	}
	return nil
}

// IsOnline reports the user's online flag. Unknown usernames are offline.
func (s *Store) IsOnline(ctx context.Context, username string) (bool, error) {
	var connected int
	err := s.db.QueryRowContext(ctx,
		`SELECT connected FROM user_info WHERE username = ?`, username,
	).Scan(&connected)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query online flag: %w", err)
	}
	return connected != 0, nil
}

// MarkAllOffline clears every online flag.
func (s *Store) MarkAllOffline(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE user_info SET connected = 0`); err != nil {
		return fmt.Errorf("mark all offline: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
