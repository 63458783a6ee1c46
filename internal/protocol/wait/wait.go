// Package wait implements the Wait step: a pure sleep.
package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loadvane/corrida/internal/errext"
	"github.com/loadvane/corrida/internal/protocol"
)

// Adapter is stateless.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Execute(ctx context.Context, in protocol.Input) (protocol.Output, error) {
	step := in.Step.Wait
	if step == nil {
		return protocol.Output{}, fmt.Errorf("wait adapter: step has no wait payload")
	}
	result := protocol.NewResult(in, uuid.New().String())
	result.Action = "wait"

	d, err := parseDuration(step.Duration)
	if err != nil {
		result.Success = false
		result.ErrorKind = "template_error"
		result.ErrorMessage = err.Error()
		return protocol.Output{Result: result}, nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		result.Success = false
		result.ErrorKind = "timeout"
		result.ErrorMessage = ctx.Err().Error()
		result.DurationMS = float64(d.Microseconds()) / 1000.0
		return protocol.Output{Result: result}, nil
	}

	result.Success = true
	result.DurationMS = float64(d.Microseconds()) / 1000.0
	return protocol.Output{Result: result}, nil
}

func parseDuration(spec string) (time.Duration, error) {
	d, err := time.ParseDuration(spec)
	if err != nil {
		return 0, errext.New(errext.KindTemplateError, fmt.Sprintf("wait: invalid duration %q: %v", spec, err))
	}
	return d, nil
}
