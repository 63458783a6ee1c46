package scheduler

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/loadvane/corrida/internal/config"
)

// runArrivals implements the arrivals pattern: maintains a target scenario
// arrival rate by dispatching one VU (executing exactly one iteration) at
// each uniformly-spaced tick, under a bounded pool cap. When the pool is
// saturated, an arrival is queued up to one full tick before being dropped
// and counted as a pacing miss rather than a request failure.
func runArrivals(ctx context.Context, phase config.Phase, p *pool) error {
	if phase.Rate <= 0 {
		return nil
	}

	maxVUs := phase.MaxVUs
	if maxVUs <= 0 {
		maxVUs = int(phase.Rate*2) + 1
	}

	interval := time.Duration(float64(time.Second) / phase.Rate)
	if interval <= 0 {
		interval = time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Limit(phase.Rate), 1)

	var deadline <-chan time.Time
	if phase.Duration.Duration > 0 {
		timer := time.NewTimer(phase.Duration.Duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		default:
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		select {
		case <-deadline:
			return nil
		default:
		}
		if p.liveCount() >= maxVUs {
			if !waitForSlot(ctx, p, maxVUs, interval) {
				p.sink.PacingMiss()
				continue
			}
		}
		if err := p.spawn(ctx, 1); err != nil {
			return err
		}
	}
}

// waitForSlot polls until the pool has room for another arrival, the
// timeout elapses, or ctx is canceled.
func waitForSlot(ctx context.Context, p *pool, maxVUs int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(5 * time.Millisecond)
	defer poll.Stop()
	for {
		if p.liveCount() < maxVUs {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-poll.C:
		}
	}
}
