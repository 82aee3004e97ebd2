// Package mariadb implements the library catalog on MariaDB/MySQL, for
// deployments that already run the photo library on MariaDB.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/photo-vault/internal/library"
	"github.com/kozaktomas/photo-vault/internal/metadata"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Initialize opens a pool and ensures the entries schema exists.
func Initialize(dsn string) (*Pool, error) {
	pool, err := NewPool(dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.ensureSchema(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (p *Pool) ensureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS entries (
			id           VARCHAR(64) PRIMARY KEY,
			exact_hash   VARCHAR(128) NOT NULL,
			fingerprint  VARCHAR(16) NOT NULL DEFAULT '',
			file_name    TEXT NOT NULL,
			byte_size    BIGINT NOT NULL,
			taken_at     DATETIME NOT NULL,
			tier         VARCHAR(16) NOT NULL DEFAULT 'staging',
			kind         VARCHAR(16) NOT NULL DEFAULT 'image',
			path         TEXT NOT NULL,
			camera_make  VARCHAR(255) NOT NULL DEFAULT '',
			camera_model VARCHAR(255) NOT NULL DEFAULT '',
			camera_lens  VARCHAR(255) NOT NULL DEFAULT '',
			iso          INT NOT NULL DEFAULT 0,
			aperture     DOUBLE NOT NULL DEFAULT 0,
			focal_length DOUBLE NOT NULL DEFAULT 0,
			UNIQUE KEY idx_entries_exact_hash (exact_hash),
			KEY idx_entries_kind (kind)
		)`)
	if err != nil {
		return fmt.Errorf("create entries table: %w", err)
	}
	return nil
}

// EntryRepository implements library.Catalog on MariaDB.
type EntryRepository struct {
	pool *Pool
}

// NewEntryRepository creates a repository backed by the given pool.
func NewEntryRepository(pool *Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

// duplicateKey is the MySQL error number for unique key violations.
const duplicateKey = 1062

func mapWriteError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == duplicateKey {
		return library.ErrStorageWriteConflict
	}
	return err
}

const entryColumns = `id, exact_hash, fingerprint, file_name, byte_size, taken_at,
	tier, kind, path, camera_make, camera_model, camera_lens, iso, aperture, focal_length`

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

// Get retrieves an entry by ID.
func (r *EntryRepository) Get(ctx context.Context, id string) (*library.Entry, error) {
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id = ?", id)
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
		"SELECT "+entryColumns+" FROM entries WHERE exact_hash = ?", hash)
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
	return r.listWhere(ctx, "kind = ?", string(kind))
}

// ListMissingFingerprint returns entries of the given kind without a fingerprint.
func (r *EntryRepository) ListMissingFingerprint(ctx context.Context, kind library.MediaKind) ([]library.Entry, error) {
	return r.listWhere(ctx, "kind = ? AND fingerprint = ''", string(kind))
}

// PersistFingerprint writes a lazily computed fingerprint back to an entry.
func (r *EntryRepository) PersistFingerprint(ctx context.Context, id string, fingerprint string) error {
	result, err := r.pool.db.ExecContext(ctx,
		"UPDATE entries SET fingerprint = ? WHERE id = ?", fingerprint, id)
	if err != nil {
		return fmt.Errorf("persist fingerprint for %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		// RowsAffected is 0 both for a missing row and for rewriting the
		// same fingerprint; only the former is an error.
		if _, getErr := r.Get(ctx, id); errors.Is(getErr, library.ErrNotFound) {
			return library.ErrNotFound
		}
	}
	return nil
}

// Insert stores a new entry.
func (r *EntryRepository) Insert(ctx context.Context, entry *library.Entry) error {
	cam := entry.Camera
	if cam == nil {
		cam = &metadata.Camera{}
	}
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO entries (id, exact_hash, fingerprint, file_name, byte_size, taken_at,
			tier, kind, path, camera_make, camera_model, camera_lens, iso, aperture, focal_length)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ExactHash, entry.Fingerprint, entry.FileName, entry.ByteSize,
		entry.TakenAt, string(entry.Tier), string(entry.Kind), entry.Path,
		cam.Make, cam.Model, cam.Lens, cam.ISO, cam.Aperture, cam.FocalLength)
	if err != nil {
		if mapped := mapWriteError(err); errors.Is(mapped, library.ErrStorageWriteConflict) {
			return mapped
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Update overwrites an existing entry in place, preserving its ID.
func (r *EntryRepository) Update(ctx context.Context, entry *library.Entry) error {
	cam := entry.Camera
	if cam == nil {
		cam = &metadata.Camera{}
	}
	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE entries SET exact_hash = ?, fingerprint = ?, file_name = ?,
			byte_size = ?, taken_at = ?, tier = ?, kind = ?, path = ?,
			camera_make = ?, camera_model = ?, camera_lens = ?,
			iso = ?, aperture = ?, focal_length = ?
		WHERE id = ?`,
		entry.ExactHash, entry.Fingerprint, entry.FileName, entry.ByteSize,
		entry.TakenAt, string(entry.Tier), string(entry.Kind), entry.Path,
		cam.Make, cam.Model, cam.Lens, cam.ISO, cam.Aperture, cam.FocalLength,
		entry.ID)
	if err != nil {
		if mapped := mapWriteError(err); errors.Is(mapped, library.ErrStorageWriteConflict) {
			return mapped
		}
		return fmt.Errorf("update entry %s: %w", entry.ID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		if _, getErr := r.Get(ctx, entry.ID); errors.Is(getErr, library.ErrNotFound) {
			return library.ErrNotFound
		}
	}
	return nil
}
