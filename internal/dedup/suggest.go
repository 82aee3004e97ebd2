package dedup

import (
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/photo-vault/internal/burst"
	"github.com/kozaktomas/photo-vault/internal/library"
	"github.com/kozaktomas/photo-vault/internal/metadata"
)

// editKeywords in a filename mark a file as a derived version of another.
var editKeywords = []string{
	"edit",
	"edited",
	"export",
	"modified",
	"retouch",
	"copy",
	"final",
	"crop",
}

// editingSoftware are EXIF Software tag signatures of photo editors, as
// opposed to camera firmware strings.
var editingSoftware = []string{
	"photoshop",
	"lightroom",
	"gimp",
	"snapseed",
	"affinity",
	"luminar",
	"darktable",
	"capture one",
	"pixelmator",
}

// editThreshold is how long after capture a modification has to happen
// before it counts as an edit rather than in-camera post-processing.
const editThreshold = time.Minute

// suggest proposes a resolution for a visually identical pair. The heuristic
// favors originals: when exactly one side looks like an edited derivative,
// keep the other. Ambiguous pairs fall back to keeping both for manual
// review.
func (d *Detector) suggest(cand *Candidate, entry *library.Entry) (Action, string) {
	existingMeta := d.existingMeta(entry)

	incomingEdited, incomingWhy := looksEdited(cand.FileName, cand.Meta)
	existingEdited, existingWhy := looksEdited(entry.FileName, existingMeta)

	switch {
	case incomingEdited && !existingEdited:
		return ActionKeepExisting, fmt.Sprintf("incoming file looks like an edited copy (%s); the stored file appears to be the original", incomingWhy)
	case existingEdited && !incomingEdited:
		return ActionReplaceExisting, fmt.Sprintf("stored file looks like an edited copy (%s); the incoming file appears to be the original", existingWhy)
	default:
		return ActionKeepBoth, "cannot tell which file is the original; keeping both for manual review"
	}
}

// existingMeta reads the stored file's metadata for the suggestion heuristic.
// Missing or unreadable metadata degrades to filename signals only.
func (d *Detector) existingMeta(entry *library.Entry) *metadata.Info {
	if d.extractor == nil {
		return nil
	}
	info, err := d.extractor.ExtractFile(entry.Path)
	if err != nil {
		return nil
	}
	return info
}

// looksEdited reports whether the filename or metadata suggest the file is a
// derived version, and why.
func looksEdited(filename string, info *metadata.Info) (bool, string) {
	name := burst.NormalizeName(filename)
	for _, kw := range editKeywords {
		if strings.Contains(name, kw) {
			return true, fmt.Sprintf("filename contains %q", kw)
		}
	}

	if info == nil {
		return false, ""
	}
	software := strings.ToLower(info.Software)
	for _, sig := range editingSoftware {
		if strings.Contains(software, sig) {
			return true, fmt.Sprintf("processed with %s", info.Software)
		}
	}
	if info.TakenAt != nil && info.ModifiedAt != nil &&
		info.ModifiedAt.Sub(*info.TakenAt) > editThreshold {
		return true, "modified after capture"
	}
	return false, ""
}
