package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/thumbs"
)

// IdentitiesHandler manages taught identities.
type IdentitiesHandler struct {
	deps *Deps
}

func NewIdentitiesHandler(deps *Deps) *IdentitiesHandler {
	return &IdentitiesHandler{deps: deps}
}

type identityView struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	CoverPath  string `json:"cover_path,omitempty"`
	CoverThumb string `json:"cover_thumb,omitempty"`
	HasFace    bool   `json:"has_face"`
}

// view resolves an identity into its API shape, including the cover
// asset's thumbnail reference so clients never derive thumb names.
func (h *IdentitiesHandler) view(ctx context.Context, id catalog.Identity) identityView {
	v := identityView{
		Name:      id.Name,
		Count:     id.Count,
		CoverPath: id.CoverPath,
		HasFace:   id.FacePrototype != nil,
	}
	if id.CoverPath == "" {
		return v
	}
	if a, err := h.deps.Store.GetAsset(ctx, id.CoverPath); err == nil && a.ThumbRef != "" {
		v.CoverThumb = a.ThumbRef
	} else {
		v.CoverThumb = thumbs.Name(id.CoverPath)
	}
	return v
}

// List returns all identities with their link counts.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.deps.Registry.List(r.Context())
	if err != nil {
		log.Printf("listing identities failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	views := make([]identityView, 0, len(identities))
	for _, id := range identities {
		views = append(views, h.view(r.Context(), id))
	}
	respondJSON(w, http.StatusOK, map[string]any{"identities": views})
}

type teachRequest struct {
	Name    string   `json:"name"`
	Anchors []string `json:"anchors"`
}

// Teach creates or updates an identity from anchor assets.
func (h *IdentitiesHandler) Teach(w http.ResponseWriter, r *http.Request) {
	h.teach(w, r, false)
}

// ClusterTag is the bulk teaching endpoint used from cluster views.
func (h *IdentitiesHandler) ClusterTag(w http.ResponseWriter, r *http.Request) {
	h.teach(w, r, true)
}

func (h *IdentitiesHandler) teach(w http.ResponseWriter, r *http.Request, bulk bool) {
	var req teachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	var (
		id  *catalog.Identity
		err error
	)
	if bulk {
		id, err = h.deps.Registry.ClusterTag(r.Context(), req.Name, req.Anchors)
	} else {
		id, err = h.deps.Registry.Teach(r.Context(), req.Name, req.Anchors)
	}
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "unknown anchor asset")
		return
	}
	if err != nil {
		log.Printf("teaching %s failed: %v", sanitizeForLog(req.Name), err)
		respondError(w, http.StatusInternalServerError, "teaching failed")
		return
	}

	respondJSON(w, http.StatusOK, h.view(r.Context(), *id))
}

// Delete removes an identity and its links.
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.deps.Registry.Delete(r.Context(), name)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "unknown identity")
		return
	}
	if err != nil {
		log.Printf("deleting %s failed: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

type untagRequest struct {
	Path string `json:"path"`
}

// Untag removes one identity-asset link. The prototype stays stale until
// the next teach.
func (h *IdentitiesHandler) Untag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req untagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	err := h.deps.Registry.Untag(r.Context(), name, req.Path)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "unknown identity or link")
		return
	}
	if err != nil {
		log.Printf("untagging %s from %s failed: %v", sanitizeForLog(req.Path), sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "untag failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"untagged": req.Path})
}
