package scanner

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// State of the reconciliation loop.
type State string

const (
	StateIdle     State = "idle"
	StateIndexing State = "indexing"
)

// TriggerResult reports how a scan request was handled.
type TriggerResult string

const (
	TriggerAccepted       TriggerResult = "accepted"
	TriggerAlreadyRunning TriggerResult = "already-running"
)

// Status is a point-in-time snapshot of the loop for polling clients.
// Progress always reflects the last known good position.
type Status struct {
	State    State  `json:"state"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	LastFile string `json:"last_file"`
	RunID    string `json:"run_id"`
}

// Projector runs a projection pass over the catalog. Satisfied by the
// projection engine; failures are logged here and never affect the scan.
type Projector interface {
	Run(ctx context.Context) error
}

// Reconciler is a two-state machine (idle/indexing) guaranteeing at most
// one active scan pass. A trigger while indexing sets a dirty flag; the
// loop starts one more pass after the current one completes, so a change
// observed mid-run is never dropped.
type Reconciler struct {
	scanner   *Scanner
	projector Projector

	mu     sync.Mutex
	state  State
	dirty  bool
	status Status

	wake chan struct{}
}

func NewReconciler(s *Scanner, p Projector) *Reconciler {
	return &Reconciler{
		scanner:   s,
		projector: p,
		state:     StateIdle,
		status:    Status{State: StateIdle},
		wake:      make(chan struct{}, 1),
	}
}

// Trigger requests a scan. When the loop is idle it transitions to
// indexing immediately; when a pass is running the dirty flag schedules
// exactly one follow-up pass.
func (r *Reconciler) Trigger() TriggerResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateIndexing {
		r.dirty = true
		return TriggerAlreadyRunning
	}

	r.state = StateIndexing
	r.status.State = StateIndexing
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return TriggerAccepted
}

// Status returns the current snapshot.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Start runs the loop until the context is canceled.
func (r *Reconciler) Start(ctx context.Context) {
	go r.loop(ctx)
}

func (r *Reconciler) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		}

		for {
			r.runPass(ctx)
			if ctx.Err() != nil {
				return
			}

			r.mu.Lock()
			if r.dirty {
				// A change arrived mid-run; go straight into the
				// next pass without dropping to idle.
				r.dirty = false
				r.mu.Unlock()
				continue
			}
			r.state = StateIdle
			r.status.State = StateIdle
			r.mu.Unlock()
			break
		}
	}
}

func (r *Reconciler) runPass(ctx context.Context) {
	runID := uuid.NewString()
	r.mu.Lock()
	r.status = Status{State: StateIndexing, RunID: runID}
	r.mu.Unlock()

	log.Printf("scan %s started", runID)

	persisted, err := r.scanner.Run(ctx, func(current, total int, lastFile string) {
		r.mu.Lock()
		r.status.Current = current
		r.status.Total = total
		r.status.LastFile = lastFile
		r.mu.Unlock()
	})
	if err != nil {
		// Run-level failure: log and fall back to idle so a future
		// trigger can retry.
		log.Printf("scan %s failed: %v", runID, err)
		return
	}
	log.Printf("scan %s finished, %d assets persisted", runID, persisted)

	if persisted > 0 && r.projector != nil {
		if err := r.projector.Run(ctx); err != nil {
			log.Printf("projection after scan %s failed: %v", runID, err)
		}
	}
}
