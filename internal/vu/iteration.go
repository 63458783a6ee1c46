package vu

import (
	"context"
	"fmt"
	"time"

	"github.com/loadvane/corrida/internal/checks"
	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/data"
	"github.com/loadvane/corrida/internal/errext"
	"github.com/loadvane/corrida/internal/exprlang"
	"github.com/loadvane/corrida/internal/extract"
	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/protocol"
)

// runIteration executes one scenario iteration: CSV-row fetch, setup hook,
// steps (repeated scenario.Loop times), teardown hook. It returns
// terminate=true when the VU should stop entirely (CSV exhaustion under
// stop-vu), and a non-nil error only for a fatal hook failure.
func (v *VU) runIteration(ctx context.Context, scenario config.Scenario) (bool, error) {
	v.ctx.Scenario = scenario.Name

	if scenario.CSV != nil {
		row, err := v.fetchCSVRow(scenario)
		if err != nil {
			if err == data.ErrExhausted {
				v.log.WithField("scenario", scenario.Name).Info("csv provider exhausted, stopping vu")
				return true, nil
			}
			v.log.WithError(err).Error("csv fetch failed")
			return true, nil
		}
		v.ctx.CSVRow = row
	}

	if scenario.Setup != nil {
		if fatal := v.runHook(scenario.Setup, "setup"); fatal {
			return false, fmt.Errorf("setup hook for scenario %q set fatal", scenario.Name)
		}
	}

	loop := scenario.Loop
	if loop <= 0 {
		loop = 1
	}
stepLoop:
	for i := 0; i < loop; i++ {
		last := i == loop-1
		for si, step := range scenario.Steps {
			if v.stopRequested() || ctx.Err() != nil {
				// Cooperative stop: finish up to the current step, then
				// fall through to teardown rather than aborting mid-loop.
				break stepLoop
			}
			lastStep := last && si == len(scenario.Steps)-1
			v.runStep(ctx, scenario, step, lastStep)
		}
	}

	if scenario.Teardown != nil {
		if fatal := v.runHook(scenario.Teardown, "teardown"); fatal {
			return false, fmt.Errorf("teardown hook for scenario %q set fatal", scenario.Name)
		}
	}

	return false, nil
}

func (v *VU) fetchCSVRow(scenario config.Scenario) (map[string]string, error) {
	bind := scenario.CSV
	provider, err := v.cfg.CSV.Get(v.cfg.FS, bind.Path, bind.Delimiter, bind.Headers, bind.Filter, bind.Randomize, bind.Mode, bind.Exhaustion)
	if err != nil {
		return nil, err
	}
	row, err := provider.Next(v.id)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// runHook invokes a setup/teardown callable, recording its outcome as a
// synthetic failed step on error rather than aborting the iteration, unless
// the hook is marked Fatal (the failed step is recorded in that case too).
func (v *VU) runHook(hook *config.Hook, kind string) (fatal bool) {
	start := time.Now()
	out, err := v.cfg.Hooks.Call(hook.Function, hook.Inputs)
	result := lib.Result{
		ID:         fmt.Sprintf("%d-%s-%d", v.id, kind, v.ctx.Iteration),
		VUID:       v.id,
		Iteration:  v.ctx.Iteration,
		Scenario:   v.ctx.Scenario,
		StepName:   kind,
		Action:     "hook",
		Timestamp:  start,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if err != nil {
		result.Success = false
		result.ErrorKind = lib.ErrorKind(errext.KindHookError)
		result.ErrorMessage = err.Error()
		v.cfg.Collector.Record(result)
		return hook.Fatal
	}
	result.Success = true
	for k, val := range out {
		v.ctx.Extracted[k] = val
	}
	v.cfg.Collector.Record(result)
	return false
}

// runStep evaluates condition, expands templates, dispatches (with retry),
// applies checks/extract, emits results, and applies think-time.
func (v *VU) runStep(ctx context.Context, scenario config.Scenario, step config.Step, lastStep bool) {
	ok, err := exprlang.EvalBool(step.Condition, v.conditionVars())
	if err != nil {
		v.recordTemplateError(step, "condition", err)
		return
	}
	if !ok {
		return
	}

	expanded, err := expandStep(v.expander, step, v.ctx)
	if err != nil {
		v.recordTemplateError(step, "template", err)
		return
	}

	adapter, ok := v.cfg.Adapters[expanded.Kind]
	if !ok {
		v.recordTemplateError(step, "dispatch", fmt.Errorf("no adapter registered for step kind %q", expanded.Kind))
		return
	}

	in := protocol.Input{
		Step:           expanded,
		BaseURL:        v.cfg.Test.Global.BaseURL,
		DefaultTimeout: v.cfg.Test.Global.Timeout.Duration,
		Debug:          v.cfg.Test.Debug,
		VUID:           v.id,
		Iteration:      v.ctx.Iteration,
		Scenario:       scenario.Name,
	}

	attempts, err := dispatchWithRetry(ctx, adapter, in, expanded.Retry)
	if err != nil {
		v.recordTemplateError(step, "dispatch", err)
		return
	}
	if len(attempts) == 0 {
		return
	}

	for _, out := range attempts[:len(attempts)-1] {
		v.cfg.Collector.Record(out.Result)
	}

	final := attempts[len(attempts)-1]
	v.applyChecksAndExtract(expanded, &final)
	v.cfg.Collector.Record(final.Result)

	v.applyThinkTime(step, lastStep)
}

func (v *VU) applyChecksAndExtract(step config.Step, out *protocol.Output) {
	subj := checks.Subject{
		StatusCode:   out.Result.StatusCode,
		ResponseTime: out.Result.DurationMS,
		Response:     out.Response,
	}
	if failures := checks.Evaluate(step.Checks, subj); len(failures) > 0 {
		out.Result.Success = false
		out.Result.ErrorKind = lib.ErrorKind(errext.KindCheckFailed)
		out.Result.CheckFailures = failures
	}

	for _, ex := range step.Extract {
		if !out.Result.Success && !ex.Always {
			continue
		}
		val, err := extract.Run(ex, out.Response)
		if err != nil {
			if out.Result.Success {
				out.Result.Success = false
				out.Result.ErrorKind = lib.ErrorKind(errext.KindExtractionFailed)
				out.Result.ErrorMessage = err.Error()
			}
			continue
		}
		v.ctx.Extracted[ex.Name] = val
	}
}

func (v *VU) recordTemplateError(step config.Step, phase string, err error) {
	result := lib.Result{
		ID:         fmt.Sprintf("%d-%s-%d", v.id, step.Name, v.ctx.Iteration),
		VUID:       v.id,
		Iteration:  v.ctx.Iteration,
		Scenario:   v.ctx.Scenario,
		StepName:   step.Name,
		Timestamp:  time.Now(),
		Success:    false,
		ErrorKind:  lib.ErrorKind(errext.KindTemplateError),
		ErrorMessage: fmt.Sprintf("%s: %v", phase, err),
	}
	v.cfg.Collector.Record(result)
}

func (v *VU) applyThinkTime(step config.Step, lastStep bool) {
	if lastStep {
		return
	}
	spec := step.ThinkTime
	if spec == "" {
		spec = v.cfg.Test.Global.ThinkTime
	}
	if spec == "" {
		return
	}
	tt, err := lib.ParseThinkTime(spec)
	if err != nil || tt.IsZero() {
		return
	}
	v.setState(lib.StateThinking)
	defer v.setState(lib.StateRunning)
	timer := time.NewTimer(tt.Sample(v.rng))
	defer timer.Stop()
	<-timer.C
}

// conditionVars builds the variable map a step's condition expression
// evaluates against, using the same resolution priority as template
// expansion.
func (v *VU) conditionVars() map[string]interface{} {
	out := make(map[string]interface{}, len(v.ctx.Variables)+len(v.ctx.Extracted)+len(v.ctx.CSVRow)+2)
	for k, val := range v.ctx.CSVRow {
		out[k] = val
	}
	for k, val := range v.ctx.Variables {
		out[k] = val
	}
	for k, val := range v.ctx.Extracted {
		out[k] = val
	}
	out["__VU"] = v.id
	out["__ITER"] = v.ctx.Iteration
	return out
}
