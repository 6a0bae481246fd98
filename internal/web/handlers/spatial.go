package handlers

import (
	"log"
	"net/http"
	"sort"

	"github.com/vitkovar/media-atlas/internal/catalog"
)

// SpatialHandler serves the 3D view and cluster discovery.
type SpatialHandler struct {
	deps *Deps
}

func NewSpatialHandler(deps *Deps) *SpatialHandler {
	return &SpatialHandler{deps: deps}
}

type spatialAsset struct {
	Path      string       `json:"path"`
	Kind      catalog.Kind `json:"kind"`
	X         float64      `json:"x"`
	Y         float64      `json:"y"`
	Z         float64      `json:"z"`
	ClusterID *int         `json:"cluster_id,omitempty"`
	Label     string       `json:"cluster_label,omitempty"`
	ThumbRef  string       `json:"thumb,omitempty"`
}

// All returns every asset that has projection coordinates.
func (h *SpatialHandler) All(w http.ResponseWriter, r *http.Request) {
	assets, err := h.deps.Store.ListAssets(r.Context(), catalog.AssetFilter{RequireEmbedding: true})
	if err != nil {
		log.Printf("spatial listing failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}

	out := make([]spatialAsset, 0, len(assets))
	for _, a := range assets {
		if !a.HasCoordinates() {
			continue
		}
		out = append(out, spatialAsset{
			Path:      a.Path,
			Kind:      a.Kind,
			X:         *a.X,
			Y:         *a.Y,
			Z:         *a.Z,
			ClusterID: a.ClusterID,
			Label:     a.ClusterLabel,
			ThumbRef:  a.ThumbRef,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"assets": out})
}

type clusterView struct {
	ID       int    `json:"id"`
	Label    string `json:"label"`
	Size     int    `json:"size"`
	ThumbRef string `json:"thumb,omitempty"`
}

// Discovery returns clusters ordered by size with a representative thumb.
func (h *SpatialHandler) Discovery(w http.ResponseWriter, r *http.Request) {
	assets, err := h.deps.Store.ListAssets(r.Context(), catalog.AssetFilter{RequireEmbedding: true})
	if err != nil {
		log.Printf("discovery listing failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}

	byCluster := map[int]*clusterView{}
	for _, a := range assets {
		if a.ClusterID == nil {
			continue
		}
		c := byCluster[*a.ClusterID]
		if c == nil {
			c = &clusterView{ID: *a.ClusterID, Label: a.ClusterLabel}
			byCluster[*a.ClusterID] = c
		}
		c.Size++
		if c.ThumbRef == "" && a.ThumbRef != "" {
			c.ThumbRef = a.ThumbRef
		}
	}

	clusters := make([]clusterView, 0, len(byCluster))
	for _, c := range byCluster {
		clusters = append(clusters, *c)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Size != clusters[j].Size {
			return clusters[i].Size > clusters[j].Size
		}
		return clusters[i].ID < clusters[j].ID
	})

	respondJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}
