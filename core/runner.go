package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/signalsfoundry/rf-link-engine/internal/logging"
	"github.com/signalsfoundry/rf-link-engine/model"
)

// SnapshotSource produces the input of the next pass.
type SnapshotSource interface {
	Snapshot() *model.Snapshot
}

// Runner turns triggers (ticks, topology events) into Recompute calls.
// Bursts of triggers that arrive while a pass is being scheduled coalesce
// into one pass; a trigger that arrives while a pass is running starts a
// new pass that supersedes it.
type Runner struct {
	engine *Engine
	source SnapshotSource
	log    logging.Logger

	// Interval, when positive, triggers a pass on a wall-clock ticker in
	// addition to explicit triggers.
	Interval time.Duration

	// OnResult, when set, is called after every committed pass.
	OnResult func(*PassResult)

	trigger chan struct{}
	wg      sync.WaitGroup
}

// NewRunner creates a runner feeding source snapshots to engine.
func NewRunner(engine *Engine, source SnapshotSource, log logging.Logger) *Runner {
	if log == nil {
		log = logging.Noop()
	}
	return &Runner{
		engine:  engine,
		source:  source,
		log:     log,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a pass. It never blocks.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run processes triggers until ctx is done, then waits for in-flight
// passes to return.
func (r *Runner) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if r.Interval > 0 {
		t := time.NewTicker(r.Interval)
		defer t.Stop()
		tick = t.C
	}

	defer r.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		case <-r.trigger:
		}
		snap := r.source.Snapshot()
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.pass(ctx, snap)
		}()
	}
}

func (r *Runner) pass(ctx context.Context, snap *model.Snapshot) {
	res, err := r.engine.Recompute(ctx, snap)
	switch {
	case err == nil:
		if r.OnResult != nil {
			r.OnResult(res)
		}
	case errors.Is(err, ErrStalePass), errors.Is(err, context.Canceled):
		r.log.Debug(ctx, "pass superseded")
	default:
		r.log.Warn(ctx, "pass failed", logging.Err(err))
	}
}
