package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/metrics"
)

func TestGraphiteOutputLifecycleDoesNotError(t *testing.T) {
	o, err := NewGraphite("127.0.0.1:8125")
	require.NoError(t, err)
	require.NoError(t, o.Initialize())

	o.WriteResult(lib.Result{Scenario: "s", StepName: "step", Action: "rest", Success: true, DurationMS: 12.5})
	o.WriteResult(lib.Result{Scenario: "s", StepName: "step", Action: "rest", Success: false})
	o.WriteSummary(metrics.Summary{ThroughputRPS: 10, SuccessRate: 0.9})

	assert.NoError(t, o.Finalize())
}

func TestNewGraphiteDefaultsAddr(t *testing.T) {
	o, err := NewGraphite("")
	require.NoError(t, err)
	require.NoError(t, o.Finalize())
}
