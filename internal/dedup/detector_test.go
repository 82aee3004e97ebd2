package dedup

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/photo-vault/internal/burst"
	"github.com/kozaktomas/photo-vault/internal/fingerprint"
	"github.com/kozaktomas/photo-vault/internal/library"
	"github.com/kozaktomas/photo-vault/internal/library/mock"
	"github.com/kozaktomas/photo-vault/internal/metadata"
	"github.com/kozaktomas/photo-vault/internal/worker"
)

var t0 = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

type stubExtractor struct {
	info *metadata.Info
	err  error
}

func (s stubExtractor) ExtractFile(path string) (*metadata.Info, error) { return s.info, s.err }
func (s stubExtractor) Extract(data []byte) (*metadata.Info, error)    { return s.info, s.err }

func newDetector(catalog library.Catalog, extractor metadata.Extractor) *Detector {
	return NewDetector(catalog, burst.NewClassifier(burst.DefaultPolicy()), worker.NewPool(2), extractor)
}

func imageCandidate(hash, fp, name string, size int64, takenAt time.Time) *Candidate {
	return &Candidate{
		ExactHash:   hash,
		Fingerprint: fp,
		FileName:    name,
		ByteSize:    size,
		TakenAt:     takenAt,
		Kind:        library.KindImage,
	}
}

func imageEntry(id, hash, fp, name string, size int64, takenAt time.Time) library.Entry {
	return library.Entry{
		ID:          id,
		ExactHash:   hash,
		Fingerprint: fp,
		FileName:    name,
		ByteSize:    size,
		TakenAt:     takenAt,
		Tier:        library.TierStaging,
		Kind:        library.KindImage,
		Path:        "/photos/staging/" + name,
	}
}

// splitImagePNG encodes a half-black, half-white test image whose fingerprint
// is stable across samples.
func splitImagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{A: 255}
			if x >= 32 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestCheckAutoSkipOnExactHash(t *testing.T) {
	catalog := mock.NewCatalog()
	catalog.Add(imageEntry("e1", "hash-1", fingerprint.Encode(0xAA), "original.jpg", 1000, t0))

	// Same bytes under a different name must still auto-skip.
	cand := imageCandidate("hash-1", fingerprint.Encode(0xAA), "renamed_copy.jpg", 1000, t0)
	result, err := newDetector(catalog, nil).Check(context.Background(), cand)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !result.AutoSkip {
		t.Error("byte-identical candidate must auto-skip")
	}
	if result.Existing == nil || result.Existing.ID != "e1" {
		t.Errorf("auto-skip should reference the stored entry, got %+v", result.Existing)
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("auto-skip must not produce conflicts, got %d", len(result.Conflicts))
	}
}

func TestCheckOneBitDifferenceIsNotAConflict(t *testing.T) {
	catalog := mock.NewCatalog()
	catalog.Add(imageEntry("e1", "hash-1", fingerprint.Encode(0xFF00), "sunset_over_hills.jpg", 1000, t0))

	cand := imageCandidate("hash-2", fingerprint.Encode(0xFF01), "beach_photo.jpg", 1000, t0.Add(10*time.Minute))
	result, err := newDetector(catalog, nil).Check(context.Background(), cand)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.AutoSkip || len(result.Conflicts) != 0 {
		t.Errorf("98.44%% similarity must not conflict, got %+v", result)
	}
}

func TestCheckPerfectMatchConflicts(t *testing.T) {
	fp := fingerprint.Encode(0xDEADBEEF)
	catalog := mock.NewCatalog()
	catalog.Add(imageEntry("e1", "hash-1", fp, "sunset_over_hills.jpg", 1000, t0))

	cand := imageCandidate("hash-2", fp, "beach_photo.jpg", 1200, t0.Add(10*time.Minute))
	result, err := newDetector(catalog, nil).Check(context.Background(), cand)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.AutoSkip {
		t.Error("different bytes must not auto-skip")
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("expected exactly 1 conflict, got %d", len(result.Conflicts))
	}

	conflict := result.Conflicts[0]
	if conflict.Similarity != 100.0 {
		t.Errorf("similarity = %v; want 100.0", conflict.Similarity)
	}
	if conflict.Kind != KindVisuallyIdentical {
		t.Errorf("kind = %s; want %s", conflict.Kind, KindVisuallyIdentical)
	}
	if conflict.Existing.ID != "e1" {
		t.Errorf("conflict references entry %s; want e1", conflict.Existing.ID)
	}
	if conflict.ID == "" {
		t.Error("conflict must carry an ID for later resolution")
	}
}

func TestCheckOneConflictPerFingerprintValue(t *testing.T) {
	fp := fingerprint.Encode(0xDEADBEEF)
	catalog := mock.NewCatalog()
	catalog.Add(imageEntry("e1", "hash-1", fp, "sunset_a.jpg", 1000, t0))
	catalog.Add(imageEntry("e2", "hash-2", fp, "sunset_b.jpg", 1000, t0.Add(time.Hour)))

	cand := imageCandidate("hash-3", fp, "beach_photo.jpg", 1200, t0.Add(10*time.Hour))
	result, err := newDetector(catalog, nil).Check(context.Background(), cand)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict for 2 entries sharing a fingerprint, got %d", len(result.Conflicts))
	}
	// Deterministic pick: the earliest stored capture.
	if result.Conflicts[0].Existing.ID != "e1" {
		t.Errorf("conflict references %s; want the oldest entry e1", result.Conflicts[0].Existing.ID)
	}
}

func TestCheckBurstPairSuppressed(t *testing.T) {
	fp := fingerprint.Encode(0xDEADBEEF)
	catalog := mock.NewCatalog()
	catalog.Add(imageEntry("e1", "hash-1", fp, "IMG_0001.jpg", 2_500_000, t0))

	// Two seconds apart with sequential names: a burst frame, not a duplicate.
	cand := imageCandidate("hash-2", fp, "IMG_0002.jpg", 2_520_000, t0.Add(2*time.Second))
	result, err := newDetector(catalog, nil).Check(context.Background(), cand)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("burst pair must be suppressed, got %d conflicts", len(result.Conflicts))
	}
}

func TestCheckNonImageSkipsPerceptualPass(t *testing.T) {
	fp := fingerprint.Encode(0xDEADBEEF)
	catalog := mock.NewCatalog()
	catalog.Add(imageEntry("e1", "hash-1", fp, "sunset.jpg", 1000, t0))

	cand := imageCandidate("hash-2", fp, "clip.mp4", 1000, t0.Add(10*time.Minute))
	cand.Kind = library.KindVideo
	result, err := newDetector(catalog, nil).Check(context.Background(), cand)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("non-image candidates get exact-hash checks only, got %d conflicts", len(result.Conflicts))
	}
}

func TestCheckUndecodableCandidateSkipsPerceptualPass(t *testing.T) {
	catalog := mock.NewCatalog()
	catalog.Add(imageEntry("e1", "hash-1", fingerprint.Zero, "broken.jpg", 1000, t0))

	cand := imageCandidate("hash-2", fingerprint.Zero, "also_broken.jpg", 1000, t0.Add(10*time.Minute))
	result, err := newDetector(catalog, nil).Check(context.Background(), cand)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("zero fingerprints must never match each other, got %d conflicts", len(result.Conflicts))
	}
}

func TestCheckLazyFingerprintBackfill(t *testing.T) {
	imageData := splitImagePNG(t)
	fp, err := fingerprint.Compute(imageData)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	catalog := mock.NewCatalog()
	entry := imageEntry("e1", "hash-1", "", "sunset_over_hills.jpg", 1000, t0)
	catalog.Add(entry)

	d := newDetector(catalog, nil)
	d.readFile = func(path string) ([]byte, error) { return imageData, nil }

	cand := imageCandidate("hash-2", fp, "beach_photo.jpg", 1200, t0.Add(10*time.Minute))
	result, err := d.Check(context.Background(), cand)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("lazily fingerprinted entry should conflict, got %d conflicts", len(result.Conflicts))
	}

	stored, err := catalog.Get(context.Background(), "e1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Fingerprint != fp {
		t.Errorf("fingerprint not persisted: got %q, want %q", stored.Fingerprint, fp)
	}
}

func TestCheckUnreadableEntryPersistsZeroSentinel(t *testing.T) {
	catalog := mock.NewCatalog()
	catalog.Add(imageEntry("e1", "hash-1", "", "lost.jpg", 1000, t0))

	d := newDetector(catalog, nil)
	d.readFile = func(path string) ([]byte, error) { return nil, errors.New("file vanished") }

	cand := imageCandidate("hash-2", fingerprint.Encode(0xAA), "beach_photo.jpg", 1200, t0.Add(10*time.Minute))
	result, err := d.Check(context.Background(), cand)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("unreadable entries must not conflict, got %d", len(result.Conflicts))
	}

	stored, err := catalog.Get(context.Background(), "e1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Fingerprint != fingerprint.Zero {
		t.Errorf("zero sentinel not persisted, got %q", stored.Fingerprint)
	}
}

func TestSuggestIncomingEdited(t *testing.T) {
	catalog := mock.NewCatalog()
	d := newDetector(catalog, stubExtractor{err: metadata.ErrMetadataUnavailable})

	entry := imageEntry("e1", "hash-1", "", "vacation.jpg", 1000, t0)
	cand := imageCandidate("hash-2", "", "vacation_edited.jpg", 1100, t0)

	action, reasoning := d.suggest(cand, &entry)
	if action != ActionKeepExisting {
		t.Errorf("action = %s; want keep_existing when the incoming file is the edit", action)
	}
	if !strings.Contains(reasoning, "edit") {
		t.Errorf("reasoning %q should mention the edit marker", reasoning)
	}
}

func TestSuggestExistingEdited(t *testing.T) {
	// The stored file carries an editor signature in its metadata; the
	// incoming file looks like the untouched original.
	info := &metadata.Info{
		TakenAt:    timePtr(t0),
		ModifiedAt: timePtr(t0.Add(2 * time.Hour)),
		Software:   "Adobe Photoshop Lightroom 7.1",
	}
	d := newDetector(mock.NewCatalog(), stubExtractor{info: info})

	entry := imageEntry("e1", "hash-1", "", "vacation.jpg", 1000, t0)
	cand := imageCandidate("hash-2", "", "DSC_4711.jpg", 1100, t0)

	action, _ := d.suggest(cand, &entry)
	if action != ActionReplaceExisting {
		t.Errorf("action = %s; want replace_existing when the stored file is the edit", action)
	}
}

func TestSuggestAmbiguousKeepsBoth(t *testing.T) {
	d := newDetector(mock.NewCatalog(), stubExtractor{err: metadata.ErrMetadataUnavailable})

	entry := imageEntry("e1", "hash-1", "", "vacation.jpg", 1000, t0)
	cand := imageCandidate("hash-2", "", "DSC_4711.jpg", 1100, t0)

	action, reasoning := d.suggest(cand, &entry)
	if action != ActionKeepBoth {
		t.Errorf("action = %s; want keep_both for ambiguous pairs", action)
	}
	if !strings.Contains(reasoning, "manual review") {
		t.Errorf("reasoning %q should ask for manual review", reasoning)
	}
}

func TestLooksEdited(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		info     *metadata.Info
		want     bool
	}{
		{"plain camera name", "IMG_0042.jpg", nil, false},
		{"edit keyword", "birthday_edited.jpg", nil, true},
		{"export keyword", "export_2024.jpg", nil, true},
		{"keyword with diacritics", "portrét_kopie_edit.jpg", nil, true},
		{"editor software", "IMG_0042.jpg", &metadata.Info{Software: "GIMP 2.10"}, true},
		{"camera firmware", "IMG_0042.jpg", &metadata.Info{Software: "Canon EOS R5 v1.8"}, false},
		{"modified long after capture", "IMG_0042.jpg", &metadata.Info{TakenAt: timePtr(t0), ModifiedAt: timePtr(t0.Add(time.Hour))}, true},
		{"modified at capture", "IMG_0042.jpg", &metadata.Info{TakenAt: timePtr(t0), ModifiedAt: timePtr(t0.Add(time.Second))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := looksEdited(tt.filename, tt.info)
			if got != tt.want {
				t.Errorf("looksEdited(%q, %+v) = %v; want %v", tt.filename, tt.info, got, tt.want)
			}
		})
	}
}
