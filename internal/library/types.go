// Package library defines the catalog types and the storage interface the
// ingest core reads library entries through.
package library

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/photo-vault/internal/metadata"
)

// Tier is the storage stage an asset currently occupies. Only the lowest
// stage may be replaced in place; promoted stages are immutable.
type Tier string

const (
	TierStaging Tier = "staging" // lowest stage, the only mutable one
	TierLibrary Tier = "library"
	TierArchive Tier = "archive"
)

// Mutable reports whether entries in this tier may be replaced in place.
func (t Tier) Mutable() bool {
	return t == TierStaging
}

// MediaKind is the coarse media classification used to scope perceptual
// comparison to like files.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindOther MediaKind = "other"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tiff": true, ".tif": true, ".heic": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
}

// KindForFilename classifies a file by extension.
func KindForFilename(name string) MediaKind {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case imageExtensions[ext]:
		return KindImage
	case videoExtensions[ext]:
		return KindVideo
	default:
		return KindOther
	}
}

// Entry is the minimal comparable projection of a stored asset. The core
// only reads entries and, when it lazily computes a missing fingerprint,
// writes that one field back.
type Entry struct {
	ID          string
	ExactHash   string
	Fingerprint string // hex-encoded; empty until lazily computed
	FileName    string
	ByteSize    int64
	TakenAt     time.Time
	Tier        Tier
	Kind        MediaKind
	Path        string // current location in the tiered store
	Camera      *metadata.Camera
}

// ErrStorageWriteConflict is returned when an insert loses the race on the
// exact-hash uniqueness constraint. Callers treat it as auto-skip, not as a
// fatal ingest error.
var ErrStorageWriteConflict = errors.New("exact hash already stored")

// ErrNotFound is returned when an entry ID does not exist.
var ErrNotFound = errors.New("library entry not found")
