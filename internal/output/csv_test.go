package output

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/lib"
)

func TestCSVOutputWritesHeaderAndRows(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := NewCSV(fs, "/out/results.csv")
	require.NoError(t, o.Initialize())

	o.WriteResult(lib.Result{VUID: 1, Scenario: "s1", StepName: "step-a", Success: true, StatusCode: 200})
	o.WriteResult(lib.Result{VUID: 2, Scenario: "s1", StepName: "step-b", Success: false, StatusCode: 500, ErrorKind: "protocol_error"})
	require.NoError(t, o.Finalize())

	raw, err := afero.ReadFile(fs, "/out/results.csv")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "step-a", rows[1][4])
	assert.Equal(t, "true", rows[1][7])
	assert.Equal(t, "protocol_error", rows[2][9])
}

func TestCSVOutputWriteResultBeforeInitializeIsNoop(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := NewCSV(fs, "/out/results.csv")
	o.WriteResult(lib.Result{VUID: 1})
	require.NoError(t, o.Finalize())
	exists, err := afero.Exists(fs, "/out/results.csv")
	require.NoError(t, err)
	assert.False(t, exists)
}
