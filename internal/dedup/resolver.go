package dedup

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/kozaktomas/photo-vault/internal/library"
	"github.com/kozaktomas/photo-vault/internal/storage"
)

// Resolver applies a user-chosen action to a detected conflict. Each step is
// ordered copy-first so a failure partway through leaves both files on disk
// and the catalog consistent.
type Resolver struct {
	catalog library.Catalog
	store   *storage.Store
}

// NewResolver creates a resolver over the catalog and the tiered file store.
func NewResolver(catalog library.Catalog, store *storage.Store) *Resolver {
	return &Resolver{catalog: catalog, store: store}
}

// Resolve applies the action to the conflict. The conflict's incoming
// candidate must still have its temporary upload on disk.
func (r *Resolver) Resolve(ctx context.Context, conflict *Conflict, action Action) (*Resolution, error) {
	switch action {
	case ActionKeepExisting:
		return r.keepExisting(conflict)
	case ActionReplaceExisting:
		return r.replaceExisting(ctx, conflict)
	case ActionKeepBoth:
		return r.keepBoth(ctx, conflict)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// keepExisting discards the incoming upload. The stored entry is untouched.
func (r *Resolver) keepExisting(conflict *Conflict) (*Resolution, error) {
	if err := r.store.Delete(conflict.Incoming.TempPath); err != nil {
		return nil, fmt.Errorf("discard incoming upload: %w", err)
	}
	return &Resolution{Action: ActionKeepExisting}, nil
}

// replaceExisting swaps the stored file for the incoming one while keeping
// the entry ID, so albums and links referencing the entry stay valid. Order
// matters: copy the new file, update the catalog, only then delete the old
// file. A catalog failure rolls back the copy and leaves the original
// untouched.
func (r *Resolver) replaceExisting(ctx context.Context, conflict *Conflict) (*Resolution, error) {
	existing := conflict.Existing
	if !existing.Tier.Mutable() {
		return nil, fmt.Errorf("%w: entry %s is in tier %s", ErrInvalidTierForReplace, existing.ID, existing.Tier)
	}

	newPath, err := r.store.CopyToTier(conflict.Incoming.TempPath, existing.Tier)
	if err != nil {
		return nil, fmt.Errorf("stage replacement file: %w", err)
	}

	oldPath := existing.Path
	updated := existing
	updated.ExactHash = conflict.Incoming.ExactHash
	updated.Fingerprint = conflict.Incoming.Fingerprint
	updated.FileName = conflict.Incoming.FileName
	updated.ByteSize = conflict.Incoming.ByteSize
	updated.TakenAt = conflict.Incoming.TakenAt
	updated.Camera = conflict.Incoming.Camera
	updated.Path = newPath

	if err := r.catalog.Update(ctx, &updated); err != nil {
		if rmErr := r.store.Delete(newPath); rmErr != nil {
			log.Printf("failed to roll back replacement copy %s: %v", newPath, rmErr)
		}
		return nil, fmt.Errorf("update catalog entry %s: %w", existing.ID, err)
	}

	// The catalog now points at the new file; losing the old copy or the
	// temp upload here is harmless.
	if err := r.store.Delete(oldPath); err != nil {
		log.Printf("failed to delete replaced file %s: %v", oldPath, err)
	}
	if err := r.store.Delete(conflict.Incoming.TempPath); err != nil {
		log.Printf("failed to delete temporary upload %s: %v", conflict.Incoming.TempPath, err)
	}

	return &Resolution{Action: ActionReplaceExisting}, nil
}

// keepBoth stores the incoming file as a new independent entry in the
// mutable tier. An exact-hash collision at insert time means the same bytes
// landed concurrently; the copy is rolled back and the conflict propagates
// so the caller can treat it as an auto-skip.
func (r *Resolver) keepBoth(ctx context.Context, conflict *Conflict) (*Resolution, error) {
	newPath, err := r.store.CopyToTier(conflict.Incoming.TempPath, library.TierStaging)
	if err != nil {
		return nil, fmt.Errorf("store incoming file: %w", err)
	}

	entry := library.Entry{
		ID:          uuid.NewString(),
		ExactHash:   conflict.Incoming.ExactHash,
		Fingerprint: conflict.Incoming.Fingerprint,
		FileName:    conflict.Incoming.FileName,
		ByteSize:    conflict.Incoming.ByteSize,
		TakenAt:     conflict.Incoming.TakenAt,
		Tier:        library.TierStaging,
		Kind:        conflict.Incoming.Kind,
		Path:        newPath,
		Camera:      conflict.Incoming.Camera,
	}

	if err := r.catalog.Insert(ctx, &entry); err != nil {
		if rmErr := r.store.Delete(newPath); rmErr != nil {
			log.Printf("failed to roll back stored copy %s: %v", newPath, rmErr)
		}
		return nil, fmt.Errorf("insert new entry: %w", err)
	}

	if err := r.store.Delete(conflict.Incoming.TempPath); err != nil {
		log.Printf("failed to delete temporary upload %s: %v", conflict.Incoming.TempPath, err)
	}

	return &Resolution{Action: ActionKeepBoth, NewEntryID: entry.ID}, nil
}
