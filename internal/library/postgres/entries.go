package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kozaktomas/photo-vault/internal/library"
	"github.com/kozaktomas/photo-vault/internal/metadata"
)

const entryColumns = `id, exact_hash, fingerprint, file_name, byte_size, taken_at,
	tier, kind, path, camera_make, camera_model, camera_lens, iso, aperture, focal_length`

// EntryRepository implements library.Catalog on PostgreSQL.
type EntryRepository struct {
	pool *Pool
}

// NewEntryRepository creates a repository backed by the given pool.
func NewEntryRepository(pool *Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

func mapInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return library.ErrStorageWriteConflict
	}
	return err
}

func scanEntry(scanner interface{ Scan(...any) error }) (*library.Entry, error) {
	var e library.Entry
	var cam metadata.Camera
	err := scanner.Scan(
		&e.ID, &e.ExactHash, &e.Fingerprint, &e.FileName, &e.ByteSize, &e.TakenAt,
		&e.Tier, &e.Kind, &e.Path,
		&cam.Make, &cam.Model, &cam.Lens, &cam.ISO, &cam.Aperture, &cam.FocalLength,
	)
	if err != nil {
		return nil, err
	}
	if cam != (metadata.Camera{}) {
		e.Camera = &cam
	}
	return &e, nil
}

func cameraFields(e *library.Entry) (string, string, string, int, float64, float64) {
	cam := e.Camera
	if cam == nil {
		cam = &metadata.Camera{}
	}
	return cam.Make, cam.Model, cam.Lens, cam.ISO, cam.Aperture, cam.FocalLength
}

// Get retrieves an entry by ID.
func (r *EntryRepository) Get(ctx context.Context, id string) (*library.Entry, error) {
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id = $1", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, library.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}
	return entry, nil
}

// FindByExactHash returns the entry with the given exact hash, or nil.
func (r *EntryRepository) FindByExactHash(ctx context.Context, hash string) (*library.Entry, error) {
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE exact_hash = $1", hash)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entry by exact hash: %w", err)
	}
	return entry, nil
}

func (r *EntryRepository) listWhere(ctx context.Context, where string, args ...any) ([]library.Entry, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE "+where+" ORDER BY taken_at, id", args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []library.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ListByKind returns all entries of the given media kind.
func (r *EntryRepository) ListByKind(ctx context.Context, kind library.MediaKind) ([]library.Entry, error) {
	return r.listWhere(ctx, "kind = $1", string(kind))
}

// ListMissingFingerprint returns entries of the given kind without a fingerprint.
func (r *EntryRepository) ListMissingFingerprint(ctx context.Context, kind library.MediaKind) ([]library.Entry, error) {
	return r.listWhere(ctx, "kind = $1 AND fingerprint = ''", string(kind))
}

// PersistFingerprint writes a lazily computed fingerprint back to an entry.
func (r *EntryRepository) PersistFingerprint(ctx context.Context, id string, fingerprint string) error {
	result, err := r.pool.db.ExecContext(ctx,
		"UPDATE entries SET fingerprint = $1, updated_at = NOW() WHERE id = $2",
		fingerprint, id)
	if err != nil {
		return fmt.Errorf("persist fingerprint for %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return library.ErrNotFound
	}
	return nil
}

// Insert stores a new entry.
func (r *EntryRepository) Insert(ctx context.Context, entry *library.Entry) error {
	make_, model, lens, iso, aperture, focal := cameraFields(entry)
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO entries (id, exact_hash, fingerprint, file_name, byte_size, taken_at,
			tier, kind, path, camera_make, camera_model, camera_lens, iso, aperture, focal_length)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		entry.ID, entry.ExactHash, entry.Fingerprint, entry.FileName, entry.ByteSize,
		entry.TakenAt, string(entry.Tier), string(entry.Kind), entry.Path,
		make_, model, lens, iso, aperture, focal)
	if err != nil {
		if mapped := mapInsertError(err); errors.Is(mapped, library.ErrStorageWriteConflict) {
			return mapped
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Update overwrites an existing entry in place, preserving its ID.
func (r *EntryRepository) Update(ctx context.Context, entry *library.Entry) error {
	make_, model, lens, iso, aperture, focal := cameraFields(entry)
	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE entries SET exact_hash = $2, fingerprint = $3, file_name = $4,
			byte_size = $5, taken_at = $6, tier = $7, kind = $8, path = $9,
			camera_make = $10, camera_model = $11, camera_lens = $12,
			iso = $13, aperture = $14, focal_length = $15, updated_at = NOW()
		WHERE id = $1`,
		entry.ID, entry.ExactHash, entry.Fingerprint, entry.FileName, entry.ByteSize,
		entry.TakenAt, string(entry.Tier), string(entry.Kind), entry.Path,
		make_, model, lens, iso, aperture, focal)
	if err != nil {
		if mapped := mapInsertError(err); errors.Is(mapped, library.ErrStorageWriteConflict) {
			return mapped
		}
		return fmt.Errorf("update entry %s: %w", entry.ID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return library.ErrNotFound
	}
	return nil
}
