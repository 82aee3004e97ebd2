// Package dedup decides whether an incoming photo duplicates a stored asset
// and applies user-chosen conflict resolutions.
package dedup

import (
	"errors"
	"time"

	"github.com/kozaktomas/photo-vault/internal/burst"
	"github.com/kozaktomas/photo-vault/internal/library"
	"github.com/kozaktomas/photo-vault/internal/metadata"
)

// Kind classifies a detected duplicate conflict.
type Kind string

const (
	// KindIdenticalBytes never reaches a resolver: byte-identical files are
	// auto-skipped before a conflict object is constructed.
	KindIdenticalBytes Kind = "identical_bytes"
	// KindVisuallyIdentical marks a perceptually perfect match with
	// different bytes (edited copy, re-export, re-compression).
	KindVisuallyIdentical Kind = "visually_identical"
)

// Action is one of the three possible outcomes of a detected duplicate.
type Action string

const (
	ActionKeepExisting    Action = "keep_existing"
	ActionReplaceExisting Action = "replace_existing"
	ActionKeepBoth        Action = "keep_both"
)

// ErrInvalidTierForReplace rejects ReplaceExisting against an entry that has
// been promoted past the mutable tier.
var ErrInvalidTierForReplace = errors.New("existing entry is not in a replaceable tier")

// ErrUnknownAction rejects resolution requests with an unrecognized action.
var ErrUnknownAction = errors.New("unknown resolution action")

// Candidate describes an about-to-be-ingested file. It lives only for the
// duration of the ingest decision.
type Candidate struct {
	ExactHash   string            `json:"exact_hash"`
	Fingerprint string            `json:"fingerprint"` // zero sentinel for unreadable images
	FileName    string            `json:"file_name"`
	ByteSize    int64             `json:"byte_size"`
	TakenAt     time.Time         `json:"taken_at"`
	Kind        library.MediaKind `json:"kind"`
	Camera      *metadata.Camera  `json:"camera,omitempty"`
	Meta        *metadata.Info    `json:"-"` // full EXIF projection for the suggestion heuristic
	TempPath    string            `json:"-"` // where the uploaded bytes currently live
}

// Conflict is a detected visually-identical duplicate requiring a decision.
// Consumed exactly once by the resolver, or discarded if the caller defers.
type Conflict struct {
	ID              string        `json:"id"`
	Existing        library.Entry `json:"existing"`
	Incoming        Candidate     `json:"incoming"`
	Kind            Kind          `json:"kind"`
	Similarity      float64       `json:"similarity"`
	SuggestedAction Action        `json:"suggested_action"`
	Reasoning       string        `json:"reasoning"`
}

// CheckResult is the outcome of a duplicate check.
type CheckResult struct {
	// AutoSkip is set when a byte-identical asset is already stored; the
	// caller drops the upload without surfacing a conflict.
	AutoSkip bool `json:"auto_skip"`
	// Existing is the byte-identical entry when AutoSkip is set.
	Existing *library.Entry `json:"existing,omitempty"`
	// Conflicts lists visually-identical matches requiring resolution.
	Conflicts []Conflict `json:"conflicts"`
}

// Resolution reports a successfully applied action.
type Resolution struct {
	Action     Action `json:"action"`
	NewEntryID string `json:"new_entry_id,omitempty"` // set by KeepBoth
}

// candidateMember projects a candidate into the burst classifier's view.
func candidateMember(c *Candidate) burst.Member {
	return burst.Member{
		ID:          "incoming",
		FileName:    c.FileName,
		ByteSize:    c.ByteSize,
		TakenAt:     c.TakenAt,
		Fingerprint: c.Fingerprint,
		Camera:      c.Camera,
	}
}

// entryMember projects a library entry into the burst classifier's view.
func entryMember(e *library.Entry) burst.Member {
	return burst.Member{
		ID:          e.ID,
		FileName:    e.FileName,
		ByteSize:    e.ByteSize,
		TakenAt:     e.TakenAt,
		Fingerprint: e.Fingerprint,
		Camera:      e.Camera,
	}
}
