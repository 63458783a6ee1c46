package scheduler

import (
	"context"
	"time"

	"github.com/loadvane/corrida/internal/config"
)

// runStepping implements the stepping pattern: executes each (users,
// duration, ramp_up) tuple in sequence, transitioning between stages with
// a linear ramp when the stage sets ramp_up, or a step-function jump
// otherwise.
func runStepping(ctx context.Context, phase config.Phase, p *pool) error {
	for _, stage := range phase.Steps {
		if ctx.Err() != nil {
			return nil
		}
		if err := rampTo(ctx, p, stage.Users, stage.RampUp.Duration, 0); err != nil {
			return err
		}
		if stage.Duration.Duration > 0 {
			select {
			case <-time.After(stage.Duration.Duration):
			case <-ctx.Done():
				return nil
			}
		}
	}
	return nil
}
