// Package storage implements the tiered local file store. Each tier is a
// directory under the store root; assets move between tiers by copy+delete
// so a failed move never loses the source file.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kozaktomas/photo-vault/internal/library"
)

// Store is the file-storage collaborator used by ingestion and conflict
// resolution.
type Store struct {
	root string
}

// Tiers the store lays out on disk, in promotion order.
var tiers = []library.Tier{library.TierStaging, library.TierLibrary, library.TierArchive}

// NewStore creates a store rooted at the given directory, creating the tier
// directories if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	for _, tier := range tiers {
		if err := os.MkdirAll(filepath.Join(root, string(tier)), 0o755); err != nil {
			return nil, fmt.Errorf("create tier directory %s: %w", tier, err)
		}
	}
	return &Store{root: root}, nil
}

// TierDir returns the directory backing a tier.
func (s *Store) TierDir(tier library.Tier) string {
	return filepath.Join(s.root, string(tier))
}

// destPath picks a collision-free destination for name inside a tier.
func (s *Store) destPath(tier library.Tier, name string) string {
	name = filepath.Base(name)
	dest := filepath.Join(s.TierDir(tier), name)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}

	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		dest = filepath.Join(s.TierDir(tier), fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
	}
}

// CopyToTier copies a file into a tier and returns the new path. The source
// is left untouched; a partially written destination is removed on failure.
func (s *Store) CopyToTier(path string, tier library.Tier) (string, error) {
	src, err := os.Open(path) //nolint:gosec // paths come from the ingest pipeline
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()

	dest := s.destPath(tier, path)
	out, err := os.Create(dest) //nolint:gosec // destination inside the store root
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("copy to %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("flush %s: %w", dest, err)
	}
	return dest, nil
}

// MoveToTier moves a file into a tier and returns the new path. Implemented
// as copy+delete so moves work across filesystems and never lose the source
// on failure.
func (s *Store) MoveToTier(path string, tier library.Tier) (string, error) {
	dest, err := s.CopyToTier(path, tier)
	if err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return dest, fmt.Errorf("remove source after move: %w", err)
	}
	return dest, nil
}

// Delete removes a stored or temporary file. Deleting a file that is already
// gone is not an error.
func (s *Store) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
