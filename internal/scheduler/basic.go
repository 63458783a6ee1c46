package scheduler

import (
	"context"
	"time"

	"github.com/loadvane/corrida/internal/config"
)

// runBasic implements the basic pattern: linearly ramps from 0 to target
// over ramp_up, holds for duration (or, if iterations is given instead,
// waits for every VU to finish its exact iteration count), then ramps back
// down.
func runBasic(ctx context.Context, phase config.Phase, p *pool) error {
	target := phase.VirtualUsers
	if target <= 0 {
		return nil // a phase with zero target VUs is a no-op
	}

	var maxIterations int64
	if phase.Iterations.Valid {
		maxIterations = phase.Iterations.Int64
	}

	if err := rampTo(ctx, p, target, phase.RampUp.Duration, maxIterations); err != nil {
		return err
	}

	if phase.Iterations.Valid {
		p.awaitAll()
		return nil
	}

	if phase.Duration.Duration > 0 {
		select {
		case <-time.After(phase.Duration.Duration):
		case <-ctx.Done():
			return nil
		}
	}

	return rampTo(ctx, p, 0, phase.RampUp.Duration, 0)
}
