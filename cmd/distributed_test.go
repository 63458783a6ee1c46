package cmd

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorkersCSVParsesHostPortCapacityRegion(t *testing.T) {
	workers, err := parseWorkersCSV("10.0.0.1:9001:4:us-east, 10.0.0.2:9001")
	require.NoError(t, err)
	require.Len(t, workers, 2)

	assert.Equal(t, "10.0.0.1", workers[0].Host)
	assert.Equal(t, 9001, workers[0].Port)
	assert.Equal(t, 4, workers[0].Capacity)
	assert.Equal(t, "us-east", workers[0].Region)

	assert.Equal(t, "10.0.0.2", workers[1].Host)
	assert.Equal(t, 1, workers[1].Capacity)
	assert.Equal(t, "", workers[1].Region)
}

func TestParseWorkersCSVSkipsBlankEntries(t *testing.T) {
	workers, err := parseWorkersCSV(" , 10.0.0.1:9001 , ")
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, "10.0.0.1", workers[0].Host)
}

func TestParseWorkersCSVRejectsMissingPort(t *testing.T) {
	_, err := parseWorkersCSV("10.0.0.1")
	assert.Error(t, err)
}

func TestParseWorkersCSVRejectsNonNumericPort(t *testing.T) {
	_, err := parseWorkersCSV("10.0.0.1:notaport")
	assert.Error(t, err)
}

func TestParseWorkersFileReadsYAMLWorkerList(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := "workers:\n  - host: 10.0.0.1\n    port: 9001\n    capacity: 2\n    region: eu-west\n"
	require.NoError(t, afero.WriteFile(fs, "/workers.yaml", []byte(doc), 0o644))

	workers, err := parseWorkersFile(fs, "/workers.yaml")
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, "10.0.0.1", workers[0].Host)
	assert.Equal(t, 9001, workers[0].Port)
	assert.Equal(t, 2, workers[0].Capacity)
	assert.Equal(t, "eu-west", workers[0].Region)
}

func TestParseWorkersFileMissingFileErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := parseWorkersFile(fs, "/missing.yaml")
	assert.Error(t, err)
}
