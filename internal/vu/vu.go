// Package vu implements the virtual-user execution engine: it drives one VU
// through its scenario(s) until the scheduler asks it to stop or its
// iteration budget is exhausted, dispatching each step to the appropriate
// protocol adapter and feeding results to the collector.
package vu

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/data"
	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/protocol"
	"github.com/loadvane/corrida/internal/protocol/script"
	"github.com/loadvane/corrida/internal/template"
)

// Collector is the narrow interface the VU engine needs from the metrics
// collector, so this package never imports internal/metrics directly
// (DESIGN NOTES: explicit narrow interfaces over concrete cross-package
// dependencies).
type Collector interface {
	Record(lib.Result)
}

// Config wires everything a VU needs that is shared, read-only, across the
// whole run: the test definition, protocol adapters, data providers and the
// result sink. It is built once by the scheduler/run command and handed to
// every VU.
type Config struct {
	Test      *config.Test
	Adapters  map[config.StepKind]protocol.Adapter
	CSV       *data.Registry
	Faker     *data.Faker
	Hooks     *script.Registry
	Collector Collector
	Logger    logrus.FieldLogger
	FS        afero.Fs
}

// VU drives one virtual user. It owns its Context exclusively — no other
// VU or goroutine mutates it.
type VU struct {
	id     int64
	cfg    *Config
	rng    *rand.Rand
	expander *template.Expander
	ctx    *lib.Context
	log    logrus.FieldLogger

	state   int32 // atomic lib.State
	stopped int32 // atomic bool, set by Stop()
	done    chan struct{}

	// maxIterations bounds the VU's iteration count for phases configured
	// with an iteration cap instead of a duration — the VU runs its
	// scenarios exactly that many times; 0 means unbounded (the
	// phase/Stop signal governs lifetime instead).
	maxIterations int64
}

// New builds a VU with a fresh stable id, assigned at spawn, and its own
// owned Context and rng. maxIterations is 0 for duration/arrival-governed
// phases, or a positive
// per-VU iteration cap for iteration-governed basic phases.
func New(cfg *Config, maxIterations int64) *VU {
	id := lib.NextVUID()
	v := &VU{
		id:            id,
		cfg:           cfg,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano() ^ id)),
		expander:      &template.Expander{Faker: cfg.Faker},
		ctx:           lib.NewContext(id, cfg.Test.Global.Variables),
		log:           cfg.Logger.WithField("vu", id),
		done:          make(chan struct{}),
		maxIterations: maxIterations,
	}
	atomic.StoreInt32(&v.state, int32(lib.StateSpawning))
	return v
}

// ID returns this VU's stable numeric id.
func (v *VU) ID() int64 { return v.id }

// State reports the VU's current lifecycle state.
func (v *VU) State() lib.State {
	return lib.State(atomic.LoadInt32(&v.state))
}

func (v *VU) setState(s lib.State) {
	atomic.StoreInt32(&v.state, int32(s))
}

// Snapshot exposes the VU's last-observed context for debugging.
func (v *VU) Snapshot() map[string]interface{} {
	return v.ctx.Snapshot()
}

// Stop requests a cooperative stop: the VU finishes its current step
// (bounded by that step's timeout), runs teardown, and exits.
func (v *VU) Stop() {
	atomic.StoreInt32(&v.stopped, 1)
}

func (v *VU) stopRequested() bool {
	return atomic.LoadInt32(&v.stopped) == 1
}

// Start runs the VU loop until ctx is canceled, Stop is called, or the
// iteration budget of every bound scenario is exhausted. It returns only
// after teardown of the in-flight iteration (if any) has completed.
func (v *VU) Start(ctx context.Context) {
	defer close(v.done)
	defer v.setState(lib.StateTerminated)
	defer v.cleanupAdapters()

	if len(v.cfg.Test.Scenarios) == 0 {
		v.log.Warn("vu started with no scenarios configured")
		return
	}

	for {
		if v.stopRequested() || ctx.Err() != nil {
			return
		}
		if v.maxIterations > 0 && v.ctx.Iteration >= v.maxIterations {
			return
		}

		v.setState(lib.StateRunning)
		scenario := lib.Choose[config.Scenario](v.rng, v.cfg.Test.Scenarios)

		terminate, err := v.runIteration(ctx, scenario)
		if err != nil {
			v.log.WithError(err).Error("iteration failed fatally")
			return
		}
		if terminate {
			return
		}
		v.ctx.Iteration++

		if v.stopRequested() || ctx.Err() != nil {
			return
		}
	}
}

// Done returns a channel closed once Start has returned.
func (v *VU) Done() <-chan struct{} {
	return v.done
}

// cleanupAdapters releases any per-VU adapter resources (the browser
// adapter's page/context) on VU teardown.
func (v *VU) cleanupAdapters() {
	for _, adapter := range v.cfg.Adapters {
		if cleaner, ok := adapter.(protocol.Cleaner); ok {
			if err := cleaner.Cleanup(v.id); err != nil {
				v.log.WithError(err).Warn("adapter cleanup failed")
			}
		}
	}
}
