package store

import "context"

// CredentialStore persists usernames, password digests and online flags.
// The engine and schema behind it are not the core's concern.
type CredentialStore interface {
	// Exists reports whether a username is taken.
	Exists(ctx context.Context, username string) (bool, error)

	// Verify checks a plaintext password against the stored digest.
	// Unknown usernames verify false without error.
	Verify(ctx context.Context, username, password string) (bool, error)

	// Create inserts a new credential record. The digest is already hashed.
	Create(ctx context.Context, username, passwordDigest string) error

	// SetOnline updates the user's online flag.
	SetOnline(ctx context.Context, username string, online bool) error

	// IsOnline reports the user's online flag. Unknown usernames are offline.
	IsOnline(ctx context.Context, username string) (bool, error)

	// MarkAllOffline clears every online flag. Run at startup so nobody is
	// stuck online across a restart.
	MarkAllOffline(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
