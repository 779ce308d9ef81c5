package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"browser-pilot/internal/usecase/taskcontext"
)

// run is the per-task state the orchestrator keeps next to the TaskContext.
type run struct {
	taskID string
	task   *taskcontext.TaskContext
	cancel context.CancelFunc

	cancelled atomic.Bool

	// endMu makes finishing and cancelling mutually exclusive; whichever
	// takes it first sets ended and owns the terminal event.
	endMu sync.Mutex
	ended bool

	gateMu sync.Mutex
	gate   chan struct{} // non-nil while paused
}

func (r *run) closeGate() {
	r.gateMu.Lock()
	defer r.gateMu.Unlock()
	if r.gate == nil {
		r.gate = make(chan struct{})
	}
}

func (r *run) openGate() {
	r.gateMu.Lock()
	defer r.gateMu.Unlock()
	if r.gate != nil {
		close(r.gate)
		r.gate = nil
	}
}

// waitIfPaused blocks while the run is paused.
func (r *run) waitIfPaused(ctx context.Context) error {
	r.gateMu.Lock()
	gate := r.gate
	r.gateMu.Unlock()
	if gate == nil {
		return ctx.Err()
	}
	select {
	case <-gate:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
