package handlers

import (
	"log"
	"net/http"
)

// StatsHandler reports catalog totals.
type StatsHandler struct {
	deps *Deps
}

func NewStatsHandler(deps *Deps) *StatsHandler {
	return &StatsHandler{deps: deps}
}

// Stats returns asset totals, the per-kind distribution, and the number
// of taught identities.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	total, err := h.deps.Store.CountAssets(r.Context())
	if err != nil {
		log.Printf("stats failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	byKind, err := h.deps.Store.CountByKind(r.Context())
	if err != nil {
		log.Printf("stats failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	identities, err := h.deps.Registry.List(r.Context())
	if err != nil {
		log.Printf("stats failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	kinds := map[string]int{}
	for k, n := range byKind {
		kinds[string(k)] = n
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total_assets": total,
		"by_kind":      kinds,
		"identities":   len(identities),
	})
}
