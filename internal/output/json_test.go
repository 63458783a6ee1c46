package output

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/metrics"
)

func TestJSONOutputWritesSingleDocumentOnFinalize(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := NewJSON(fs, "/out/results.json")
	require.NoError(t, o.Initialize())

	o.WriteResult(lib.Result{VUID: 1, StepName: "step-a", Success: true})
	o.WriteResult(lib.Result{VUID: 2, StepName: "step-b", Success: false})
	o.WriteSummary(metrics.Summary{TestName: "demo", TotalRequests: 2})

	require.NoError(t, o.Finalize())

	raw, err := afero.ReadFile(fs, "/out/results.json")
	require.NoError(t, err)

	var doc jsonDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "demo", doc.TestName)
	assert.Len(t, doc.Results, 2)
	assert.EqualValues(t, 2, doc.Summary.TotalRequests)
}

func TestJSONOutputFinalizeWithNoResultsWritesEmptyArray(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := NewJSON(fs, "/out/results.json")
	require.NoError(t, o.Initialize())
	o.WriteSummary(metrics.Summary{TestName: "empty"})
	require.NoError(t, o.Finalize())

	raw, err := afero.ReadFile(fs, "/out/results.json")
	require.NoError(t, err)
	var doc jsonDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Empty(t, doc.Results)
}
