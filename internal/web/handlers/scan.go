package handlers

import (
	"net/http"

	"github.com/vitkovar/media-atlas/internal/scanner"
)

// ScanHandler controls the reconciliation loop.
type ScanHandler struct {
	deps *Deps
}

func NewScanHandler(deps *Deps) *ScanHandler {
	return &ScanHandler{deps: deps}
}

// Start triggers a scan pass. A trigger during an active pass schedules
// exactly one follow-up instead of a concurrent run.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	result := h.deps.Reconciler.Trigger()

	status := http.StatusAccepted
	if result == scanner.TriggerAlreadyRunning {
		status = http.StatusConflict
	}
	respondJSON(w, status, map[string]string{"result": string(result)})
}

// Progress returns the current scan status snapshot for polling clients.
func (h *ScanHandler) Progress(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.deps.Reconciler.Status())
}
