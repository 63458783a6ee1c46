// Package exprlang provides the sandboxed expression evaluator the VU
// engine uses for a step's `condition` field and the Custom/Script step's
// sandboxed-expression variant.
//
// It is backed by goja, a JS VM repurposed here not to author whole test
// scripts (that authoring surface is explicitly out of this core's scope)
// but as a small, sandboxed expression language: no filesystem, no network,
// no timers are exposed to it, only the variables passed in.
package exprlang

import (
	"fmt"

	"github.com/dop251/goja"
)

// Eval evaluates expression with vars bound as top-level identifiers, and
// returns its Go-native result value.
func Eval(expression string, vars map[string]interface{}) (interface{}, error) {
	vm := goja.New()
	for k, v := range vars {
		if err := vm.Set(k, v); err != nil {
			return nil, fmt.Errorf("exprlang: binding %q: %w", k, err)
		}
	}
	val, err := vm.RunString(expression)
	if err != nil {
		return nil, fmt.Errorf("exprlang: %w", err)
	}
	return val.Export(), nil
}

// EvalBool evaluates expression and coerces the result to a boolean,
// matching JS truthiness, for a step's `condition` field (skip if false).
func EvalBool(expression string, vars map[string]interface{}) (bool, error) {
	if expression == "" {
		return true, nil
	}
	val, err := Eval(expression, vars)
	if err != nil {
		return false, err
	}
	return truthy(val), nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

// EvalMap evaluates expression, requiring the result to be an object, and
// returns it as a Go map — used by the Script step to merge its result into
// extracted-data under the configured name.
func EvalMap(expression string, vars map[string]interface{}) (map[string]interface{}, error) {
	val, err := Eval(expression, vars)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return map[string]interface{}{}, nil
	}
	m, ok := val.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("exprlang: script expression must evaluate to an object, got %T", val)
	}
	return m, nil
}
