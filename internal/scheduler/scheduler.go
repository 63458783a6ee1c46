// Package scheduler implements the load-pattern scheduler: for each phase
// in a configured sequence it creates and destroys VUs so the live VU
// count tracks the phase's profile within a tolerance of ±1 VU or one
// scheduler tick.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/lib"
)

// VU is the narrow lifecycle contract the scheduler drives against;
// internal/vu.VU satisfies it structurally (DESIGN NOTES: narrow
// interfaces over concrete cross-package dependencies, so this package
// never imports internal/vu).
type VU interface {
	ID() int64
	Start(ctx context.Context)
	Stop()
	State() lib.State
	Done() <-chan struct{}
}

// Factory spawns a new VU for the running phase. maxIterations is 0 for
// duration/arrival-governed phases, or the per-VU iteration cap for an
// iterations-governed basic phase.
type Factory func(maxIterations int64) (VU, error)

// EventSink receives scheduler lifecycle events — VU-start and VU-stop,
// among others — feeding the collector's ramp-up timeline and pacing-miss
// counter.
type EventSink interface {
	VUStarted(id int64)
	VUStopped(id int64)
	PacingMiss()
	SpawnFailed(err error)
}

const (
	tickInterval    = 100 * time.Millisecond
	quiescenceWait  = 1 * time.Second
	spawnWindow     = 5 * time.Second
	spawnMinSamples = 4
)

// Run executes phases in order, returning when the final phase completes
// or ctx is canceled. Between phases it waits ≥1s and ensures no VU from
// the prior phase is still alive before starting the next.
func Run(ctx context.Context, phases []config.Phase, factory Factory, sink EventSink, log logrus.FieldLogger) error {
	for i, phase := range phases {
		if ctx.Err() != nil {
			return nil
		}
		if i > 0 {
			select {
			case <-time.After(quiescenceWait):
			case <-ctx.Done():
				return nil
			}
		}

		p := newPool(factory, sink, log)
		var err error
		switch phase.Pattern {
		case config.PatternBasic:
			err = runBasic(ctx, phase, p)
		case config.PatternStepping:
			err = runStepping(ctx, phase, p)
		case config.PatternArrivals:
			err = runArrivals(ctx, phase, p)
		default:
			err = fmt.Errorf("scheduler: unknown load pattern %q", phase.Pattern)
		}

		p.stopAll()
		p.awaitAll()
		if err != nil {
			return err
		}
	}
	return nil
}
