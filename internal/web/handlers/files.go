package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// FilesHandler serves thumbnails and raw media from disk.
type FilesHandler struct {
	deps *Deps
}

func NewFilesHandler(deps *Deps) *FilesHandler {
	return &FilesHandler{deps: deps}
}

// Thumb serves a rendered preview by name.
func (h *FilesHandler) Thumb(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.deps.ThumbsDir)
}

// Raw serves the original media file by library-relative path.
func (h *FilesHandler) Raw(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.deps.LibraryDir)
}

func (h *FilesHandler) serve(w http.ResponseWriter, r *http.Request, base string) {
	rel := chi.URLParam(r, "*")
	full, ok := resolveUnder(base, rel)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	http.ServeFile(w, r, full)
}

// resolveUnder joins a request path onto a base directory, rejecting
// anything that escapes the base.
func resolveUnder(base, rel string) (string, bool) {
	if rel == "" || strings.Contains(rel, "..") {
		return "", false
	}
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", false
	}
	full := filepath.Join(baseAbs, filepath.FromSlash(rel))
	if full != baseAbs && !strings.HasPrefix(full, baseAbs+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}
