package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/photo-vault/internal/dedup"
	"github.com/kozaktomas/photo-vault/internal/library"
)

// DefaultConflictTTL is how long an unresolved conflict keeps its staged
// upload before being expired.
const DefaultConflictTTL = 24 * time.Hour

// pendingConflict pairs a detected conflict with its staging deadline.
type pendingConflict struct {
	conflict dedup.Conflict
	expires  time.Time
}

// PendingConflicts holds detected conflicts and their staged uploads between
// the check request and the user's resolution. Expired conflicts and their
// files are reaped by a background goroutine.
type PendingConflicts struct {
	mu        sync.RWMutex
	conflicts map[string]*pendingConflict
	dir       string
	ttl       time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewPendingConflicts creates the store with its own staging directory and
// starts the cleanup goroutine.
func NewPendingConflicts(ttl time.Duration) (*PendingConflicts, error) {
	dir, err := os.MkdirTemp("", "photo-vault-staged-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	p := &PendingConflicts{
		conflicts: make(map[string]*pendingConflict),
		dir:       dir,
		ttl:       ttl,
		stop:      make(chan struct{}),
	}
	go p.reapLoop()
	return p, nil
}

// StageUpload copies a multipart upload into the staging directory and
// returns its path. The uuid prefix keeps concurrent uploads of files with
// the same name apart.
func (p *PendingConflicts) StageUpload(header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	safeName := filepath.Base(header.Filename)
	path := filepath.Join(p.dir, uuid.NewString()+"_"+safeName)
	out, err := os.Create(path) //nolint:gosec // staging dir plus sanitized name
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("save staged file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("flush staged file: %w", err)
	}
	return path, nil
}

// Register stores conflicts for later resolution.
func (p *PendingConflicts) Register(conflicts []dedup.Conflict) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range conflicts {
		p.conflicts[c.ID] = &pendingConflict{conflict: c, expires: time.Now().Add(p.ttl)}
	}
}

// Get retrieves a pending conflict by ID.
func (p *PendingConflicts) Get(id string) (dedup.Conflict, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pc, ok := p.conflicts[id]
	if !ok {
		return dedup.Conflict{}, false
	}
	return pc.conflict, true
}

// List returns all pending conflicts.
func (p *PendingConflicts) List() []dedup.Conflict {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]dedup.Conflict, 0, len(p.conflicts))
	for _, pc := range p.conflicts {
		out = append(out, pc.conflict)
	}
	return out
}

// Consume drops a resolved conflict along with every sibling conflict that
// shares its staged upload, since resolution consumes the upload.
func (p *PendingConflicts) Consume(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pc, ok := p.conflicts[id]
	if !ok {
		return
	}
	path := pc.conflict.Incoming.TempPath
	for key, other := range p.conflicts {
		if other.conflict.Incoming.TempPath == path {
			delete(p.conflicts, key)
		}
	}
}

// Stop terminates the cleanup goroutine and removes the staging directory.
func (p *PendingConflicts) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		if err := os.RemoveAll(p.dir); err != nil {
			log.Printf("failed to remove staging directory %s: %v", p.dir, err)
		}
	})
}

func (p *PendingConflicts) reapLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.reap(time.Now())
		}
	}
}

// reap expires old conflicts and deletes staged files nothing references
// anymore.
func (p *PendingConflicts) reap(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []string
	for id, pc := range p.conflicts {
		if now.After(pc.expires) {
			expired = append(expired, pc.conflict.Incoming.TempPath)
			delete(p.conflicts, id)
		}
	}

	for _, path := range expired {
		referenced := false
		for _, pc := range p.conflicts {
			if pc.conflict.Incoming.TempPath == path {
				referenced = true
				break
			}
		}
		if !referenced {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Printf("failed to remove expired upload %s: %v", path, err)
			}
		}
	}
}

// ConflictsHandler serves the pending-conflict endpoints.
type ConflictsHandler struct {
	resolver *dedup.Resolver
	pending  *PendingConflicts
}

// NewConflictsHandler creates a new conflicts handler.
func NewConflictsHandler(resolver *dedup.Resolver, pending *PendingConflicts) *ConflictsHandler {
	return &ConflictsHandler{
		resolver: resolver,
		pending:  pending,
	}
}

// List returns all pending conflicts.
func (h *ConflictsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"conflicts": h.pending.List(),
	})
}

// Get returns one pending conflict.
func (h *ConflictsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conflict, ok := h.pending.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "conflict not found or expired")
		return
	}
	respondJSON(w, http.StatusOK, conflict)
}

// resolveRequest is the body of a conflict resolution call.
type resolveRequest struct {
	Action dedup.Action `json:"action"`
}

// Resolve applies the chosen action to a pending conflict.
func (h *ConflictsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conflict, ok := h.pending.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "conflict not found or expired")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	resolution, err := h.resolver.Resolve(r.Context(), &conflict, req.Action)
	switch {
	case err == nil:
		h.pending.Consume(id)
		respondJSON(w, http.StatusOK, resolution)
	case errors.Is(err, dedup.ErrUnknownAction):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dedup.ErrInvalidTierForReplace):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, library.ErrStorageWriteConflict):
		// Identical bytes landed while the conflict was pending; the file
		// is already in the library.
		h.pending.Consume(id)
		respondJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
	default:
		log.Printf("failed to resolve conflict %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to resolve conflict")
	}
}
