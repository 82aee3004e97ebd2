// Package ingest wires candidate construction, duplicate detection and
// storage into the pipeline behind the CLI and the web API.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/kozaktomas/photo-vault/internal/dedup"
	"github.com/kozaktomas/photo-vault/internal/fingerprint"
	"github.com/kozaktomas/photo-vault/internal/library"
	"github.com/kozaktomas/photo-vault/internal/metadata"
	"github.com/kozaktomas/photo-vault/internal/storage"
	"github.com/kozaktomas/photo-vault/internal/worker"
)

// Policy decides what happens when ingesting a file that conflicts with a
// stored photo and nobody is there to answer.
type Policy string

const (
	// PolicySkip leaves conflicted files unstored for later review.
	PolicySkip Policy = "skip"
	// PolicyKeepExisting drops conflicted files in favor of the library.
	PolicyKeepExisting Policy = "keep-existing"
	// PolicyKeepBoth stores conflicted files as independent entries.
	PolicyKeepBoth Policy = "keep-both"
)

// Status is the outcome classification of one ingested file.
type Status string

const (
	StatusStored   Status = "stored"
	StatusSkipped  Status = "skipped"
	StatusConflict Status = "conflict"
)

// Outcome reports what happened to one file.
type Outcome struct {
	Status    Status           `json:"status"`
	EntryID   string           `json:"entry_id,omitempty"`  // set when stored
	Existing  *library.Entry   `json:"existing,omitempty"`  // set when skipped as a duplicate
	Conflicts []dedup.Conflict `json:"conflicts,omitempty"` // set when unresolved
}

// Service runs the ingest pipeline. The source file is never deleted; web
// handlers clean up their own upload staging.
type Service struct {
	catalog   library.Catalog
	store     *storage.Store
	detector  *dedup.Detector
	extractor metadata.Extractor
	pool      *worker.Pool
}

// NewService wires the pipeline together.
func NewService(catalog library.Catalog, store *storage.Store, detector *dedup.Detector, extractor metadata.Extractor, pool *worker.Pool) *Service {
	return &Service{
		catalog:   catalog,
		store:     store,
		detector:  detector,
		extractor: extractor,
		pool:      pool,
	}
}

// BuildCandidate computes everything the detector needs to judge the file at
// path. The name parameter is the original filename, which may differ from
// the path's basename for staged uploads.
func (s *Service) BuildCandidate(path, name string) (*dedup.Candidate, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path) //nolint:gosec // path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	sum := sha256.Sum256(data)
	kind := library.KindForFilename(name)

	fp := fingerprint.Zero
	if kind == library.KindImage {
		// An undecodable image degrades to exact-hash matching only.
		fp, _ = fingerprint.Compute(data)
	}

	var info *metadata.Info
	if s.extractor != nil {
		info, _ = s.extractor.Extract(data)
	}

	cand := &dedup.Candidate{
		ExactHash:   hex.EncodeToString(sum[:]),
		Fingerprint: fp,
		FileName:    name,
		ByteSize:    stat.Size(),
		TakenAt:     metadata.ResolveTime(info, name, stat.ModTime()),
		Kind:        kind,
		Meta:        info,
		TempPath:    path,
	}
	if info != nil {
		cand.Camera = info.Camera
	}
	return cand, nil
}

// Check builds a candidate for the file and runs the duplicate check without
// storing anything.
func (s *Service) Check(ctx context.Context, path, name string) (*dedup.Candidate, *dedup.CheckResult, error) {
	cand, err := s.BuildCandidate(path, name)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.detector.Check(ctx, cand)
	if err != nil {
		return nil, nil, err
	}
	return cand, result, nil
}

// Ingest checks the file and stores it unless it duplicates a library asset.
// Conflicted files follow the policy; PolicySkip surfaces the conflicts to
// the caller instead of deciding.
func (s *Service) Ingest(ctx context.Context, path, name string, policy Policy) (*Outcome, error) {
	cand, result, err := s.Check(ctx, path, name)
	if err != nil {
		return nil, err
	}

	if result.AutoSkip {
		return &Outcome{Status: StatusSkipped, Existing: result.Existing}, nil
	}
	if len(result.Conflicts) > 0 {
		switch policy {
		case PolicyKeepBoth:
			// Store alongside the visually identical entries.
		case PolicyKeepExisting:
			return &Outcome{Status: StatusSkipped, Existing: &result.Conflicts[0].Existing}, nil
		default:
			return &Outcome{Status: StatusConflict, Conflicts: result.Conflicts}, nil
		}
	}

	return s.storeNew(ctx, cand)
}

// storeNew copies the file into the staging tier and records the entry.
// Losing the exact-hash insert race means identical bytes landed
// concurrently, which demotes the outcome to a skip.
func (s *Service) storeNew(ctx context.Context, cand *dedup.Candidate) (*Outcome, error) {
	newPath, err := s.store.CopyToTier(cand.TempPath, library.TierStaging)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	entry := library.Entry{
		ID:          uuid.NewString(),
		ExactHash:   cand.ExactHash,
		Fingerprint: cand.Fingerprint,
		FileName:    cand.FileName,
		ByteSize:    cand.ByteSize,
		TakenAt:     cand.TakenAt,
		Tier:        library.TierStaging,
		Kind:        cand.Kind,
		Path:        newPath,
		Camera:      cand.Camera,
	}

	if err := s.catalog.Insert(ctx, &entry); err != nil {
		if rmErr := s.store.Delete(newPath); rmErr != nil {
			log.Printf("failed to roll back stored file %s: %v", newPath, rmErr)
		}
		if errors.Is(err, library.ErrStorageWriteConflict) {
			existing, findErr := s.catalog.FindByExactHash(ctx, cand.ExactHash)
			if findErr != nil {
				return nil, fmt.Errorf("lookup after insert race: %w", findErr)
			}
			return &Outcome{Status: StatusSkipped, Existing: existing}, nil
		}
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	return &Outcome{Status: StatusStored, EntryID: entry.ID}, nil
}

// Backfill computes missing fingerprints for stored images through the
// shared decode pool. Returns the number of entries processed. Unreadable
// files persist the zero sentinel so they are not retried on every run.
func (s *Service) Backfill(ctx context.Context, progress func()) (int, error) {
	entries, err := s.catalog.ListMissingFingerprint(ctx, library.KindImage)
	if err != nil {
		return 0, fmt.Errorf("list entries missing fingerprints: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	err = s.pool.Run(ctx, len(entries), func(i int) {
		entry := &entries[i]
		fp := fingerprint.Zero
		if data, err := os.ReadFile(entry.Path); err == nil { //nolint:gosec // catalog paths
			if computed, err := fingerprint.Compute(data); err == nil {
				fp = computed
			}
		} else {
			log.Printf("cannot read %s for fingerprinting: %v", entry.Path, err)
		}
		if err := s.catalog.PersistFingerprint(ctx, entry.ID, fp); err != nil {
			log.Printf("failed to persist fingerprint for %s: %v", entry.ID, err)
		}
		if progress != nil {
			progress()
		}
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
