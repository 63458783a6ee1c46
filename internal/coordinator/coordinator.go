// Package coordinator turns one test configuration into N worker-local
// sub-configurations, starts them, streams their results back, and
// presents an aggregate.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/errext"
	"github.com/loadvane/corrida/internal/lib"
)

// Collector is the narrow sink the coordinator feeds streamed results
// into — internal/metrics.Collector implements it (DESIGN NOTES: narrow
// interfaces over concrete cross-package dependencies).
type Collector interface {
	Record(lib.Result)
}

// StartMode selects the rolling-vs-synchronized start behavior.
type StartMode string

const (
	StartRolling      StartMode = "rolling"
	StartSynchronized StartMode = "synchronized"
)

// syncStartSkew is added atop the max observed control-latency to compute
// a synchronized start's negotiated T0.
const syncStartSkew = 200 * time.Millisecond

// Coordinator drives the distributed-run lifecycle: initialize, distribute,
// prepare, start, run, stop/cleanup.
type Coordinator struct {
	log       logrus.FieldLogger
	strategy  Strategy
	startMode StartMode
	collector Collector

	mu       sync.Mutex
	workers  []config.WorkerDescriptor
	rpcs     map[string]*RPC
	health   *HealthMonitor
	degraded bool
}

// New builds a Coordinator.
func New(strategy Strategy, startMode StartMode, collector Collector, log logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		log:       log,
		strategy:  strategy,
		startMode: startMode,
		collector: collector,
		rpcs:      make(map[string]*RPC),
		health:    NewHealthMonitor(0, log),
	}
}

func addrOf(w config.WorkerDescriptor) string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// Initialize opens a control channel to every worker and verifies a
// health probe.
func (c *Coordinator) Initialize(ctx context.Context, workers []config.WorkerDescriptor) error {
	c.mu.Lock()
	c.workers = workers
	c.mu.Unlock()

	for _, w := range workers {
		rpc := NewRPC(w.Host, w.Port)
		c.mu.Lock()
		c.rpcs[addrOf(w)] = rpc
		c.mu.Unlock()
		c.health.Watch(addrOf(w), rpc)

		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := rpc.Health(hctx)
		cancel()
		if err != nil {
			return errext.Wrap(errext.KindWorkerUnreachable, err, fmt.Sprintf("worker %s failed health probe", addrOf(w)))
		}
	}
	return nil
}

// Run executes the full distributed-run lifecycle: distribute, prepare,
// start, stream, stop.
func (c *Coordinator) Run(ctx context.Context, test config.Test) error {
	assignments, err := Distribute(test, c.workers, c.strategy)
	if err != nil {
		return errext.Wrap(errext.KindFatal, err, "distribute failed")
	}

	if err := c.prepareAll(ctx, assignments); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.health.Run(runCtx)
	c.health.OnChange(func(addr string, state WorkerHealthState) {
		if state == WorkerDisconnected {
			c.markDegraded(addr)
		}
	})

	if err := c.startAll(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, a := range assignments {
		a := a
		rpc := c.rpcs[addrOf(a.Worker)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rpc.StreamResults(runCtx, func(r lib.Result) {
				r.Worker = addrOf(a.Worker)
				if c.collector != nil {
					c.collector.Record(r)
				}
			}); err != nil && c.log != nil {
				c.log.WithField("worker", addrOf(a.Worker)).WithError(err).Warn("results stream ended")
			}
		}()
	}
	wg.Wait()

	return c.stopAndDrain(ctx)
}

func (c *Coordinator) prepareAll(ctx context.Context, assignments []Assignment) error {
	// A prepare failure on any worker aborts the test before start: this
	// loop is all-or-nothing.
	for _, a := range assignments {
		rpc := c.rpcs[addrOf(a.Worker)]
		if rpc == nil {
			return errext.New(errext.KindWorkerUnreachable, fmt.Sprintf("no rpc client for %s", addrOf(a.Worker)))
		}
		if err := rpc.Prepare(ctx, a.Config); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) startAll(ctx context.Context) error {
	if c.startMode != StartSynchronized {
		for _, w := range c.workers {
			if err := c.rpcs[addrOf(w)].Start(ctx, time.Time{}); err != nil {
				return err
			}
		}
		return nil
	}

	// Synchronized start: measure control-latency to each worker, then
	// negotiate T0 = now + max(latency) + 200ms.
	var maxLatency time.Duration
	for _, w := range c.workers {
		start := time.Now()
		if _, err := c.rpcs[addrOf(w)].Health(ctx); err != nil {
			return errext.Wrap(errext.KindWorkerUnreachable, err, fmt.Sprintf("latency probe failed for %s", addrOf(w)))
		}
		if lat := time.Since(start); lat > maxLatency {
			maxLatency = lat
		}
	}
	t0 := time.Now().Add(maxLatency + syncStartSkew)
	for _, w := range c.workers {
		if err := c.rpcs[addrOf(w)].Start(ctx, t0); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) stopAndDrain(ctx context.Context) error {
	for _, w := range c.workers {
		rpc := c.rpcs[addrOf(w)]
		_ = rpc.Stop(ctx)
		results, err := rpc.Results(ctx)
		if err != nil {
			if c.log != nil {
				c.log.WithField("worker", addrOf(w)).WithError(err).Warn("failed to drain final results")
			}
			continue
		}
		for _, r := range results {
			r.Worker = addrOf(w)
			if c.collector != nil {
				c.collector.Record(r)
			}
		}
	}
	return nil
}

func (c *Coordinator) markDegraded(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.degraded && c.log != nil {
		c.log.WithField("worker", addr).Warn("worker lost mid-run; marking run degraded")
	}
	c.degraded = true
}

// Degraded reports whether any worker was lost mid-run, so the final
// summary can annotate the degraded state.
func (c *Coordinator) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}
