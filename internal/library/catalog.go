package library

import "context"

// Catalog is the persistence interface the ingest core depends on. Backends
// live in the postgres and mariadb subpackages; mock provides an in-memory
// implementation for tests.
type Catalog interface {
	// Get retrieves an entry by ID, returning ErrNotFound when absent.
	Get(ctx context.Context, id string) (*Entry, error)

	// FindByExactHash returns the entry with the given exact hash, or nil
	// when no byte-identical asset is stored.
	FindByExactHash(ctx context.Context, hash string) (*Entry, error)

	// ListByKind returns all entries of the given media kind.
	ListByKind(ctx context.Context, kind MediaKind) ([]Entry, error)

	// ListMissingFingerprint returns entries of the given kind whose
	// fingerprint has not been computed yet.
	ListMissingFingerprint(ctx context.Context, kind MediaKind) ([]Entry, error)

	// PersistFingerprint writes a lazily computed fingerprint back to the
	// entry. Idempotent: rewriting the same fingerprint is harmless.
	PersistFingerprint(ctx context.Context, id string, fingerprint string) error

	// Insert stores a new entry. Returns ErrStorageWriteConflict when the
	// exact-hash uniqueness constraint rejects the write.
	Insert(ctx context.Context, entry *Entry) error

	// Update overwrites an existing entry in place, preserving its ID so
	// downstream references stay valid. Returns ErrNotFound when the entry
	// does not exist and ErrStorageWriteConflict when the new exact hash
	// collides with another entry.
	Update(ctx context.Context, entry *Entry) error
}
