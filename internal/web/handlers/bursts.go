package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/kozaktomas/photo-vault/internal/burst"
	"github.com/kozaktomas/photo-vault/internal/library"
)

// BurstsHandler serves burst classification over the stored library.
type BurstsHandler struct {
	catalog    library.Catalog
	classifier *burst.Classifier
}

// NewBurstsHandler creates a new bursts handler.
func NewBurstsHandler(catalog library.Catalog, classifier *burst.Classifier) *BurstsHandler {
	return &BurstsHandler{
		catalog:    catalog,
		classifier: classifier,
	}
}

// classifyRequest optionally narrows classification to specific entries.
type classifyRequest struct {
	EntryIDs []string `json:"entry_ids,omitempty"`
}

// Classify groups stored images into burst sequences. With no entry_ids the
// whole image library is classified.
func (h *BurstsHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	entries, err := h.catalog.ListByKind(r.Context(), library.KindImage)
	if err != nil {
		log.Printf("failed to list library entries: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list library entries")
		return
	}

	if len(req.EntryIDs) > 0 {
		wanted := make(map[string]bool, len(req.EntryIDs))
		for _, id := range req.EntryIDs {
			wanted[id] = true
		}
		filtered := entries[:0]
		for _, e := range entries {
			if wanted[e.ID] {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	members := make([]burst.Member, len(entries))
	for i, e := range entries {
		members[i] = burst.Member{
			ID:          e.ID,
			FileName:    e.FileName,
			ByteSize:    e.ByteSize,
			TakenAt:     e.TakenAt,
			Fingerprint: e.Fingerprint,
			Camera:      e.Camera,
		}
	}

	groups := h.classifier.Classify(members)
	if groups == nil {
		groups = []burst.Group{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
	})
}
