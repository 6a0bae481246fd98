package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"

	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/search"
)

// SearchHandler serves ranked queries and the timeline weave.
type SearchHandler struct {
	deps *Deps
}

func NewSearchHandler(deps *Deps) *SearchHandler {
	return &SearchHandler{deps: deps}
}

// Search handles GET /search?q=&threshold=. Internal failures come back
// as an empty list, never a 5xx, so browsing clients stay alive.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	var threshold float64
	if t := r.URL.Query().Get("threshold"); t != "" {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil || v < 0 || v > 1 {
			respondError(w, http.StatusBadRequest, "threshold must be a number between 0 and 1")
			return
		}
		threshold = v
	}

	log.Printf("search query %q", sanitizeForLog(query))
	results := h.deps.Ranker.Search(r.Context(), query, threshold)
	if results == nil {
		results = []search.Result{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

type weaveRequest struct {
	Paths []string `json:"paths"`
}

type weaveEntry struct {
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
	ThumbRef  string `json:"thumb,omitempty"`
}

// Weave returns the requested image assets ordered by best-known
// timestamp ascending, for timeline assembly. Unknown and non-image
// paths are skipped.
func (h *SearchHandler) Weave(w http.ResponseWriter, r *http.Request) {
	var req weaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	var entries []weaveEntry
	for _, p := range req.Paths {
		a, err := h.deps.Store.GetAsset(r.Context(), p)
		if err != nil {
			continue
		}
		if a.Kind != catalog.KindImage {
			continue
		}
		entries = append(entries, weaveEntry{
			Path:      a.Path,
			Timestamp: a.BestTimestamp(),
			ThumbRef:  a.ThumbRef,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})

	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
