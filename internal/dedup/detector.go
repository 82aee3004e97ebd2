package dedup

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/google/uuid"

	"github.com/kozaktomas/photo-vault/internal/burst"
	"github.com/kozaktomas/photo-vault/internal/fingerprint"
	"github.com/kozaktomas/photo-vault/internal/library"
	"github.com/kozaktomas/photo-vault/internal/metadata"
	"github.com/kozaktomas/photo-vault/internal/worker"
)

// conflictThreshold is the similarity a pair must reach to be surfaced as a
// conflict. The 64-bit fingerprint is coarse: anything below a perfect match
// is statistically indistinguishable from an unrelated photo with similar
// composition, so the threshold is deliberately exactly 100.
const conflictThreshold = 100.0

// Detector runs the duplicate check for one candidate against the library.
// It performs no mutations other than persisting lazily computed
// fingerprints, so an in-flight check can be abandoned at any point.
type Detector struct {
	catalog    library.Catalog
	classifier *burst.Classifier
	pool       *worker.Pool
	extractor  metadata.Extractor

	// readFile is swappable for tests.
	readFile func(path string) ([]byte, error)
}

// NewDetector creates a detector. The worker pool is shared across
// concurrent ingest requests to bound image-decode CPU.
func NewDetector(catalog library.Catalog, classifier *burst.Classifier, pool *worker.Pool, extractor metadata.Extractor) *Detector {
	return &Detector{
		catalog:    catalog,
		classifier: classifier,
		pool:       pool,
		extractor:  extractor,
		readFile:   os.ReadFile,
	}
}

// Check looks for stored duplicates of the candidate. Byte-identical matches
// auto-skip without producing a conflict; perceptual matches at exactly 100%
// similarity produce at most one conflict per distinct fingerprint value,
// with burst pairs suppressed.
//
// Detection-phase failures on individual entries (unreadable file, missing
// metadata) degrade gracefully and never abort the check.
func (d *Detector) Check(ctx context.Context, cand *Candidate) (*CheckResult, error) {
	existing, err := d.catalog.FindByExactHash(ctx, cand.ExactHash)
	if err != nil {
		return nil, fmt.Errorf("exact hash lookup: %w", err)
	}
	if existing != nil {
		return &CheckResult{AutoSkip: true, Existing: existing, Conflicts: []Conflict{}}, nil
	}

	// Non-images, and images we could not decode, degrade to the
	// exact-hash check above.
	if cand.Kind != library.KindImage || fingerprint.IsZero(cand.Fingerprint) {
		return &CheckResult{Conflicts: []Conflict{}}, nil
	}

	entries, err := d.catalog.ListByKind(ctx, library.KindImage)
	if err != nil {
		return nil, fmt.Errorf("list library entries: %w", err)
	}
	// Fix the comparison order so the result set is deterministic for a
	// given library snapshot regardless of backend iteration order.
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].TakenAt.Equal(entries[j].TakenAt) {
			return entries[i].TakenAt.Before(entries[j].TakenAt)
		}
		return entries[i].ID < entries[j].ID
	})

	if err := d.backfillFingerprints(ctx, entries); err != nil {
		return nil, err
	}

	var conflicts []Conflict
	seen := make(map[string]bool) // one conflict per distinct fingerprint value
	for i := range entries {
		entry := &entries[i]
		if fingerprint.IsZero(entry.Fingerprint) {
			continue
		}

		similarity, err := fingerprint.Similarity(cand.Fingerprint, entry.Fingerprint)
		if err != nil {
			// Length mismatch is a stored-data defect, not a user error.
			log.Printf("skipping entry %s: %v", entry.ID, err)
			continue
		}
		if similarity < conflictThreshold {
			continue
		}
		if seen[entry.Fingerprint] {
			continue
		}
		// Burst members are expected to be visually near-identical and
		// must not be treated as duplicates.
		if d.classifier.IsBurstPair(candidateMember(cand), entryMember(entry)) {
			continue
		}

		seen[entry.Fingerprint] = true
		action, reasoning := d.suggest(cand, entry)
		conflicts = append(conflicts, Conflict{
			ID:              uuid.NewString(),
			Existing:        *entry,
			Incoming:        *cand,
			Kind:            KindVisuallyIdentical,
			Similarity:      similarity,
			SuggestedAction: action,
			Reasoning:       reasoning,
		})
	}

	return &CheckResult{Conflicts: conflicts}, nil
}

// backfillFingerprints lazily computes and persists missing fingerprints
// through the shared decode pool. Unreadable files persist the zero sentinel
// so they are skipped, not retried on every check.
func (d *Detector) backfillFingerprints(ctx context.Context, entries []library.Entry) error {
	var missing []int
	for i := range entries {
		if entries[i].Fingerprint == "" {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	err := d.pool.Run(ctx, len(missing), func(n int) {
		entry := &entries[missing[n]]
		entry.Fingerprint = d.fingerprintEntry(entry)
		if err := d.catalog.PersistFingerprint(ctx, entry.ID, entry.Fingerprint); err != nil {
			log.Printf("failed to persist fingerprint for %s: %v", entry.ID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("fingerprint backfill: %w", err)
	}
	return nil
}

func (d *Detector) fingerprintEntry(entry *library.Entry) string {
	data, err := d.readFile(entry.Path)
	if err != nil {
		log.Printf("cannot read %s for fingerprinting: %v", entry.Path, err)
		return fingerprint.Zero
	}
	fp, err := fingerprint.Compute(data)
	if err != nil {
		// Not decodable as an image; the zero sentinel excludes it from
		// perceptual comparison.
		return fingerprint.Zero
	}
	return fp
}
