// Package mock provides an in-memory Catalog implementation for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/photo-vault/internal/library"
)

// Catalog is an in-memory library.Catalog. It enforces the same exact-hash
// uniqueness constraint as the SQL backends so tests can exercise the
// concurrent-ingest race.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*library.Entry

	// Error injection
	GetError                error
	FindByExactHashError    error
	ListError               error
	PersistFingerprintError error
	InsertError             error
	UpdateError             error
}

// NewCatalog creates an empty mock catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		entries: make(map[string]*library.Entry),
	}
}

// Add seeds an entry without constraint checks, for test setup.
func (c *Catalog) Add(entry library.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.ID] = &entry
}

// Len returns the number of stored entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get retrieves an entry by ID.
func (c *Catalog) Get(ctx context.Context, id string) (*library.Entry, error) {
	if c.GetError != nil {
		return nil, c.GetError
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	if !ok {
		return nil, library.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

// FindByExactHash returns the entry with the given exact hash, or nil.
func (c *Catalog) FindByExactHash(ctx context.Context, hash string) (*library.Entry, error) {
	if c.FindByExactHashError != nil {
		return nil, c.FindByExactHashError
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, entry := range c.entries {
		if entry.ExactHash == hash {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, nil
}

// ListByKind returns all entries of the given media kind.
func (c *Catalog) ListByKind(ctx context.Context, kind library.MediaKind) ([]library.Entry, error) {
	if c.ListError != nil {
		return nil, c.ListError
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []library.Entry
	for _, entry := range c.entries {
		if entry.Kind == kind {
			out = append(out, *entry)
		}
	}
	return out, nil
}

// ListMissingFingerprint returns entries of the given kind without a fingerprint.
func (c *Catalog) ListMissingFingerprint(ctx context.Context, kind library.MediaKind) ([]library.Entry, error) {
	if c.ListError != nil {
		return nil, c.ListError
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []library.Entry
	for _, entry := range c.entries {
		if entry.Kind == kind && entry.Fingerprint == "" {
			out = append(out, *entry)
		}
	}
	return out, nil
}

// PersistFingerprint writes a computed fingerprint back to an entry.
func (c *Catalog) PersistFingerprint(ctx context.Context, id string, fingerprint string) error {
	if c.PersistFingerprintError != nil {
		return c.PersistFingerprintError
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok {
		return library.ErrNotFound
	}
	entry.Fingerprint = fingerprint
	return nil
}

// Insert stores a new entry, enforcing exact-hash uniqueness.
func (c *Catalog) Insert(ctx context.Context, entry *library.Entry) error {
	if c.InsertError != nil {
		return c.InsertError
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.entries {
		if existing.ExactHash == entry.ExactHash {
			return library.ErrStorageWriteConflict
		}
	}
	copied := *entry
	c.entries[entry.ID] = &copied
	return nil
}

// Update overwrites an existing entry in place.
func (c *Catalog) Update(ctx context.Context, entry *library.Entry) error {
	if c.UpdateError != nil {
		return c.UpdateError
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[entry.ID]; !ok {
		return library.ErrNotFound
	}
	for id, existing := range c.entries {
		if id != entry.ID && existing.ExactHash == entry.ExactHash {
			return library.ErrStorageWriteConflict
		}
	}
	copied := *entry
	c.entries[entry.ID] = &copied
	return nil
}
