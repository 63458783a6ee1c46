package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// pool tracks the live VUs of one running phase, plus a rolling spawn
// failure window used to trip the phase's fatal-abort threshold.
type pool struct {
	factory Factory
	sink    EventSink
	log     logrus.FieldLogger

	mu  sync.Mutex
	vus map[int64]VU

	windowStart time.Time
	attempts    int
	failures    int
}

func newPool(factory Factory, sink EventSink, log logrus.FieldLogger) *pool {
	return &pool{factory: factory, sink: sink, log: log, vus: make(map[int64]VU)}
}

// spawn creates and starts one VU. A spawn error is logged and counted but
// does not abort the phase unless more than half of attempts within the
// trailing 5s window have failed.
func (p *pool) spawn(ctx context.Context, maxIterations int64) error {
	p.mu.Lock()
	now := time.Now()
	if p.windowStart.IsZero() || now.Sub(p.windowStart) > spawnWindow {
		p.windowStart = now
		p.attempts = 0
		p.failures = 0
	}
	p.attempts++
	p.mu.Unlock()

	v, err := p.factory(maxIterations)
	if err != nil {
		p.mu.Lock()
		p.failures++
		attempts, failures := p.attempts, p.failures
		p.mu.Unlock()
		p.log.WithError(err).Warn("vu spawn failed")
		p.sink.SpawnFailed(err)
		if attempts >= spawnMinSamples && float64(failures)/float64(attempts) > 0.5 {
			return fmt.Errorf("scheduler: spawn failure rate exceeded 50%% within %s: %w", spawnWindow, err)
		}
		return nil
	}

	p.mu.Lock()
	p.vus[v.ID()] = v
	p.mu.Unlock()
	p.sink.VUStarted(v.ID())

	go func() {
		v.Start(ctx)
		p.mu.Lock()
		delete(p.vus, v.ID())
		p.mu.Unlock()
		p.sink.VUStopped(v.ID())
	}()
	return nil
}

func (p *pool) liveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.vus)
}

// stopOne requests a cooperative stop on an arbitrary tracked VU, used to
// ramp the live count down.
func (p *pool) stopOne() {
	p.mu.Lock()
	var victim VU
	for _, v := range p.vus {
		victim = v
		break
	}
	p.mu.Unlock()
	if victim != nil {
		victim.Stop()
	}
}

// stopAll requests a cooperative stop on every tracked VU — used on
// cancellation and at phase end, where a stop signal mid-ramp truncates
// immediately.
func (p *pool) stopAll() {
	p.mu.Lock()
	vus := make([]VU, 0, len(p.vus))
	for _, v := range p.vus {
		vus = append(vus, v)
	}
	p.mu.Unlock()
	for _, v := range vus {
		v.Stop()
	}
}

// awaitAll blocks until every tracked VU has terminated.
func (p *pool) awaitAll() {
	for {
		p.mu.Lock()
		if len(p.vus) == 0 {
			p.mu.Unlock()
			return
		}
		var any VU
		for _, v := range p.vus {
			any = v
			break
		}
		p.mu.Unlock()
		<-any.Done()
	}
}

// adjust spawns n VUs (n>0) or stops -n VUs (n<0); n==0 is a no-op.
func (p *pool) adjust(ctx context.Context, n int, maxIterations int64) error {
	if n > 0 {
		for i := 0; i < n; i++ {
			if err := p.spawn(ctx, maxIterations); err != nil {
				return err
			}
		}
		return nil
	}
	for i := 0; i < -n; i++ {
		p.stopOne()
	}
	return nil
}

// rampTo adjusts the live VU count linearly from its current value to
// target over rampDuration, accumulating fractional per-tick steps in a
// running remainder to avoid drift. A non-positive rampDuration jumps
// straight to target (a step-function transition).
func rampTo(ctx context.Context, p *pool, target int, rampDuration time.Duration, maxIterations int64) error {
	start := p.liveCount()
	delta := target - start
	if delta == 0 {
		return nil
	}
	if rampDuration <= 0 {
		return p.adjust(ctx, delta, maxIterations)
	}

	ticks := int(rampDuration / tickInterval)
	if ticks < 1 {
		ticks = 1
	}
	perTick := float64(delta) / float64(ticks)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var remainder float64
	applied := 0
	for tick := 0; tick < ticks; tick++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		remainder += perTick
		step := int(remainder)
		remainder -= float64(step)
		if step == 0 {
			continue
		}
		if err := p.adjust(ctx, step, maxIterations); err != nil {
			return err
		}
		applied += step
	}
	if remaining := delta - applied; remaining != 0 {
		if err := p.adjust(ctx, remaining, maxIterations); err != nil {
			return err
		}
	}
	return nil
}
