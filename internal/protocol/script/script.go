// Package script implements the Custom/Script step: either a sandboxed
// expression (ScriptStep, evaluated via exprlang/goja) or an invocation of a
// user-registered callable by name (CustomStep). Both variants merge their
// returned map into the VU's extracted-data under the step's configured
// name.
package script

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loadvane/corrida/internal/errext"
	"github.com/loadvane/corrida/internal/exprlang"
	"github.com/loadvane/corrida/internal/protocol"
)

// Func is a user-supplied callable a CustomStep can invoke by name.
type Func func(inputs map[string]interface{}) (map[string]interface{}, error)

// Registry holds the named callables available to Custom steps. The
// embedding application registers its own functions; an empty registry
// makes every Custom step fail with a clear hook_error-flavored message
// rather than panicking on a nil map lookup.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry builds an empty function registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds a named callable.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Call invokes the named callable directly, outside the protocol.Adapter
// contract — used by the VU engine's setup/teardown hooks, which are
// structurally the same function-reference + inputs shape as a Custom step
// but aren't steps themselves and so never go through Execute.
func (r *Registry) Call(name string, inputs map[string]interface{}) (map[string]interface{}, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, errext.New(errext.KindHookError, fmt.Sprintf("no function registered under %q", name))
	}
	return fn(inputs)
}

// ExpressionAdapter executes the Script step's sandboxed-expression
// variant.
type ExpressionAdapter struct{}

func NewExpressionAdapter() *ExpressionAdapter { return &ExpressionAdapter{} }

func (a *ExpressionAdapter) Execute(_ context.Context, in protocol.Input) (protocol.Output, error) {
	step := in.Step.Script
	if step == nil {
		return protocol.Output{}, fmt.Errorf("script adapter: step has no script payload")
	}
	result := protocol.NewResult(in, uuid.New().String())
	result.Action = "script"

	out, err := exprlang.EvalMap(step.Expression, step.Inputs)
	if err != nil {
		result.Success = false
		result.ErrorKind = "template_error"
		result.ErrorMessage = err.Error()
		return protocol.Output{Result: result}, nil
	}

	result.Success = true
	if step.As != "" {
		result.Custom = map[string]interface{}{step.As: out}
	} else {
		result.Custom = out
	}
	return protocol.Output{Result: result}, nil
}

// CustomAdapter executes the Custom step's named-callable variant.
type CustomAdapter struct {
	Registry *Registry
}

func NewCustomAdapter(reg *Registry) *CustomAdapter {
	return &CustomAdapter{Registry: reg}
}

func (a *CustomAdapter) Execute(_ context.Context, in protocol.Input) (protocol.Output, error) {
	step := in.Step.Custom
	if step == nil {
		return protocol.Output{}, fmt.Errorf("custom adapter: step has no custom payload")
	}
	result := protocol.NewResult(in, uuid.New().String())
	result.Action = "custom"

	out, err := a.Registry.Call(step.Function, step.Inputs)
	if err != nil {
		result.Success = false
		result.ErrorKind = "hook_error"
		result.ErrorMessage = err.Error()
		return protocol.Output{Result: result}, nil
	}

	result.Success = true
	if step.As != "" {
		result.Custom = map[string]interface{}{step.As: out}
	} else {
		result.Custom = out
	}
	return protocol.Output{Result: result}, nil
}
