package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-vault/internal/burst"
	"github.com/kozaktomas/photo-vault/internal/dedup"
	"github.com/kozaktomas/photo-vault/internal/ingest"
	"github.com/kozaktomas/photo-vault/internal/library/mock"
	"github.com/kozaktomas/photo-vault/internal/metadata"
	"github.com/kozaktomas/photo-vault/internal/storage"
	"github.com/kozaktomas/photo-vault/internal/worker"
)

var testTime = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

// testEnv wires real pipeline components over an in-memory catalog and a
// temp-dir store.
type testEnv struct {
	catalog   *mock.Catalog
	store     *storage.Store
	service   *ingest.Service
	pending   *PendingConflicts
	photos    *PhotosHandler
	conflicts *ConflictsHandler
	bursts    *BurstsHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	catalog := mock.NewCatalog()
	classifier := burst.NewClassifier(burst.DefaultPolicy())
	pool := worker.NewPool(2)
	detector := dedup.NewDetector(catalog, classifier, pool, metadata.ExifExtractor{})
	service := ingest.NewService(catalog, store, detector, metadata.ExifExtractor{}, pool)
	resolver := dedup.NewResolver(catalog, store)

	pending, err := NewPendingConflicts(DefaultConflictTTL)
	if err != nil {
		t.Fatalf("NewPendingConflicts: %v", err)
	}
	t.Cleanup(pending.Stop)

	return &testEnv{
		catalog:   catalog,
		store:     store,
		service:   service,
		pending:   pending,
		photos:    NewPhotosHandler(service, pending),
		conflicts: NewConflictsHandler(resolver, pending),
		bursts:    NewBurstsHandler(catalog, classifier),
	}
}

// splitImagePNG encodes a PNG with a vertical black/white split at the given
// column; different splits yield different fingerprints.
func splitImagePNG(t *testing.T, split int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{A: 255}
			if x >= split {
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

// uploadRequest builds a multipart request with one file part plus optional
// form fields.
func uploadRequest(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write form field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}
