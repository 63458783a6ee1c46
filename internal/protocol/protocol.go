// Package protocol defines the common contract every protocol adapter
// implements: a uniform Execute(step, context) -> result shape, and an
// optional Cleanup for adapters holding per-VU resources (the browser
// adapter's page/context).
package protocol

import (
	"context"
	"time"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/extract"
	"github.com/loadvane/corrida/internal/lib"
)

// Input is everything an adapter needs to execute one step: the step's
// payload (with all string fields already template-expanded by the VU
// engine before dispatch) plus the ambient config an adapter can't get from
// the step alone.
type Input struct {
	Step           config.Step
	BaseURL        string
	DefaultTimeout time.Duration
	Debug          config.Debug
	VUID           int64
	Iteration      int64
	Scenario       string
}

// Output is an adapter's uniform result: the Result record destined for the
// collector, plus the Response view checks/extracts run against.
type Output struct {
	Result   lib.Result
	Response extract.Response
}

// Adapter is implemented once per step kind (rest, soap, web, wait, script).
type Adapter interface {
	// Execute runs one step and returns its result. ctx carries the
	// step's effective timeout and the run's cancellation signal.
	Execute(ctx context.Context, in Input) (Output, error)
}

// Cleaner is implemented by adapters holding per-VU resources that must be
// released at VU teardown (the browser adapter's page/context, lazily
// launched per VU and torn down with it).
type Cleaner interface {
	Cleanup(vuID int64) error
}

// NewResult builds a Result stub carrying the fields every adapter needs to
// fill in regardless of protocol.
func NewResult(in Input, id string) lib.Result {
	return lib.Result{
		ID:        id,
		VUID:      in.VUID,
		Iteration: in.Iteration,
		Scenario:  in.Scenario,
		StepName:  in.Step.Name,
		Timestamp: time.Now(),
	}
}
