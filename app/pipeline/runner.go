package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunInProgress reports that the newsletter already has an in-flight run.
// Fires arriving while one is running are coalesced, never queued.
var ErrRunInProgress = errors.New("a run is already in progress for this newsletter")

// Runner serializes runs per newsletter and applies the whole-run deadline.
// Scheduled fires and manual runs share the same path.
type Runner struct {
	pipeline *Pipeline
	deadline time.Duration

	mu       sync.Mutex
	inflight map[string]bool
}

func NewRunner(pipeline *Pipeline, deadline time.Duration) *Runner {
	return &Runner{
		pipeline: pipeline,
		deadline: deadline,
		inflight: make(map[string]bool),
	}
}

// Run executes the pipeline for the newsletter unless one is already in
// flight. At most one run per newsletter exists at any moment, so runs of
// the same newsletter are totally ordered by start time.
func (r *Runner) Run(ctx context.Context, newsletterID string) (*RunResult, error) {
	r.mu.Lock()
	if r.inflight[newsletterID] {
		r.mu.Unlock()
		return nil, ErrRunInProgress
	}
	r.inflight[newsletterID] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inflight, newsletterID)
		r.mu.Unlock()
	}()

	runCtx := ctx
	if r.deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.deadline)
		defer cancel()
	}

	return r.pipeline.Run(runCtx, newsletterID)
}

// Busy reports whether the newsletter currently has an in-flight run.
func (r *Runner) Busy(newsletterID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight[newsletterID]
}
