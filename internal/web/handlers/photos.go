package handlers

import (
	"log"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/kozaktomas/photo-vault/internal/ingest"
)

// PhotosHandler serves the check and ingest endpoints.
type PhotosHandler struct {
	service *ingest.Service
	pending *PendingConflicts
}

// NewPhotosHandler creates a new photos handler.
func NewPhotosHandler(service *ingest.Service, pending *PendingConflicts) *PhotosHandler {
	return &PhotosHandler{
		service: service,
		pending: pending,
	}
}

// uploadedFile extracts the single "file" part of a multipart request.
func uploadedFile(w http.ResponseWriter, r *http.Request) *multipart.FileHeader {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil
	}
	files := r.MultipartForm.File["file"]
	if len(files) != 1 {
		respondError(w, http.StatusBadRequest, "exactly one file is required")
		return nil
	}
	return files[0]
}

// discardStaged removes a staged upload that produced no pending conflicts.
func (h *PhotosHandler) discardStaged(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to remove staged upload %s: %v", path, err)
	}
}

// Check runs the duplicate check for an uploaded file without storing it.
// Detected conflicts stay pending so they can be resolved without
// re-uploading.
func (h *PhotosHandler) Check(w http.ResponseWriter, r *http.Request) {
	header := uploadedFile(w, r)
	if header == nil {
		return
	}

	path, err := h.pending.StageUpload(header)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}

	_, result, err := h.service.Check(r.Context(), path, header.Filename)
	if err != nil {
		h.discardStaged(path)
		log.Printf("check failed for %s: %v", sanitizeForLog(header.Filename), err)
		respondError(w, http.StatusInternalServerError, "duplicate check failed")
		return
	}

	if len(result.Conflicts) > 0 {
		h.pending.Register(result.Conflicts)
	} else {
		h.discardStaged(path)
	}
	respondJSON(w, http.StatusOK, result)
}

// Ingest checks and stores an uploaded file. Conflicted uploads follow the
// on_conflict form value; without one the conflicts are returned for
// resolution via the conflicts endpoints.
func (h *PhotosHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	header := uploadedFile(w, r)
	if header == nil {
		return
	}

	policy := ingest.PolicySkip
	switch v := r.FormValue("on_conflict"); v {
	case "", string(ingest.PolicySkip):
	case string(ingest.PolicyKeepExisting):
		policy = ingest.PolicyKeepExisting
	case string(ingest.PolicyKeepBoth):
		policy = ingest.PolicyKeepBoth
	default:
		respondError(w, http.StatusBadRequest, "unknown on_conflict policy")
		return
	}

	path, err := h.pending.StageUpload(header)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}

	outcome, err := h.service.Ingest(r.Context(), path, header.Filename, policy)
	if err != nil {
		h.discardStaged(path)
		log.Printf("ingest failed for %s: %v", sanitizeForLog(header.Filename), err)
		respondError(w, http.StatusInternalServerError, "ingest failed")
		return
	}

	switch outcome.Status {
	case ingest.StatusConflict:
		h.pending.Register(outcome.Conflicts)
		respondJSON(w, http.StatusConflict, outcome)
	case ingest.StatusStored:
		h.discardStaged(path)
		respondJSON(w, http.StatusCreated, outcome)
	default:
		h.discardStaged(path)
		respondJSON(w, http.StatusOK, outcome)
	}
}
