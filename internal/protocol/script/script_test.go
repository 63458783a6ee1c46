package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/protocol"
)

func TestRegistryCallInvokesRegisteredFunction(t *testing.T) {
	reg := NewRegistry()
	reg.Register("double", func(inputs map[string]interface{}) (map[string]interface{}, error) {
		n := inputs["n"].(float64)
		return map[string]interface{}{"result": n * 2}, nil
	})

	out, err := reg.Call("double", map[string]interface{}{"n": float64(21)})
	require.NoError(t, err)
	assert.Equal(t, float64(42), out["result"])
}

func TestRegistryCallUnknownFunctionErrors(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Call("missing", nil)
	assert.Error(t, err)
}

func TestExpressionAdapterExecuteSucceedsAndMergesResult(t *testing.T) {
	a := NewExpressionAdapter()
	in := protocol.Input{
		Step: config.Step{
			Name:   "derive",
			Script: &config.ScriptStep{Expression: "({total: n + 1})", Inputs: map[string]interface{}{"n": float64(4)}},
		},
		VUID: 1,
	}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, out.Result.Success)
	assert.Equal(t, "script", out.Result.Action)
	assert.Equal(t, float64(5), out.Result.Custom["total"])
}

func TestExpressionAdapterExecuteWithAsWrapsUnderName(t *testing.T) {
	a := NewExpressionAdapter()
	in := protocol.Input{
		Step: config.Step{
			Script: &config.ScriptStep{Expression: "({total: n + 1})", Inputs: map[string]interface{}{"n": float64(4)}, As: "derived"},
		},
	}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	wrapped, ok := out.Result.Custom["derived"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(5), wrapped["total"])
}

func TestExpressionAdapterExecuteNonObjectResultIsTemplateError(t *testing.T) {
	a := NewExpressionAdapter()
	in := protocol.Input{Step: config.Step{Script: &config.ScriptStep{Expression: "1 + 1"}}}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
	assert.Equal(t, lib.ErrorKind("template_error"), out.Result.ErrorKind)
	assert.NotEmpty(t, out.Result.ErrorMessage)
}

func TestExpressionAdapterExecuteSyntaxErrorIsTemplateError(t *testing.T) {
	a := NewExpressionAdapter()
	in := protocol.Input{Step: config.Step{Script: &config.ScriptStep{Expression: "({"}}}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
	assert.Equal(t, lib.ErrorKind("template_error"), out.Result.ErrorKind)
}

func TestExpressionAdapterExecuteRequiresScriptPayload(t *testing.T) {
	a := NewExpressionAdapter()
	_, err := a.Execute(context.Background(), protocol.Input{Step: config.Step{}})
	assert.Error(t, err)
}

func TestCustomAdapterExecuteSucceedsAndMergesResult(t *testing.T) {
	reg := NewRegistry()
	reg.Register("greet", func(inputs map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"message": "hi " + inputs["name"].(string)}, nil
	})
	a := NewCustomAdapter(reg)
	in := protocol.Input{
		Step: config.Step{Custom: &config.CustomStep{Function: "greet", Inputs: map[string]interface{}{"name": "alice"}}},
	}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, out.Result.Success)
	assert.Equal(t, "custom", out.Result.Action)
	assert.Equal(t, "hi alice", out.Result.Custom["message"])
}

func TestCustomAdapterExecuteWithAsWrapsUnderName(t *testing.T) {
	reg := NewRegistry()
	reg.Register("greet", func(inputs map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"message": "hi"}, nil
	})
	a := NewCustomAdapter(reg)
	in := protocol.Input{Step: config.Step{Custom: &config.CustomStep{Function: "greet", As: "greeting"}}}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	wrapped, ok := out.Result.Custom["greeting"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hi", wrapped["message"])
}

func TestCustomAdapterExecuteUnregisteredFunctionIsHookError(t *testing.T) {
	a := NewCustomAdapter(NewRegistry())
	in := protocol.Input{Step: config.Step{Custom: &config.CustomStep{Function: "missing"}}}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
	assert.Equal(t, lib.ErrorKind("hook_error"), out.Result.ErrorKind)
}

func TestCustomAdapterExecuteRequiresCustomPayload(t *testing.T) {
	a := NewCustomAdapter(NewRegistry())
	_, err := a.Execute(context.Background(), protocol.Input{Step: config.Step{}})
	assert.Error(t, err)
}
