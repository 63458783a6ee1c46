package wait

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/protocol"
)

func TestExecuteSleepsForConfiguredDuration(t *testing.T) {
	a := New()
	in := protocol.Input{Step: config.Step{Wait: &config.WaitStep{Duration: "20ms"}}}
	start := time.Now()
	out, err := a.Execute(context.Background(), in)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.True(t, out.Result.Success)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestExecuteInvalidDurationIsTemplateError(t *testing.T) {
	a := New()
	in := protocol.Input{Step: config.Step{Wait: &config.WaitStep{Duration: "not-a-duration"}}}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
	assert.Equal(t, lib.ErrorKind("template_error"), out.Result.ErrorKind)
}

func TestExecuteContextCancellationDuringWaitIsTimeout(t *testing.T) {
	a := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	in := protocol.Input{Step: config.Step{Wait: &config.WaitStep{Duration: "1s"}}}
	out, err := a.Execute(ctx, in)
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
	assert.Equal(t, lib.ErrorKind("timeout"), out.Result.ErrorKind)
}

func TestExecuteRequiresWaitPayload(t *testing.T) {
	a := New()
	_, err := a.Execute(context.Background(), protocol.Input{Step: config.Step{}})
	assert.Error(t, err)
}
