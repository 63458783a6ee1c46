package data

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, fs afero.Fs, path, body string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
}

// TestCSVUniqueModeDistinctness verifies that for V VUs and R rows (V <=
// R), the set of rows observed across VUs in the first iteration has
// size V.
func TestCSVUniqueModeDistinctness(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeCSV(t, fs, "/rows.csv", "id,email\n1,a@x.com\n2,b@x.com\n3,c@x.com\n4,d@x.com\n5,e@x.com\n")

	reg := NewRegistry()
	p, err := reg.Get(fs, "/rows.csv", "", nil, "", false, "unique", "cycle")
	require.NoError(t, err)
	require.Equal(t, 5, p.Len())

	seen := map[string]struct{}{}
	for vu := int64(1); vu <= 3; vu++ {
		row, err := p.Next(vu)
		require.NoError(t, err)
		seen[row["email"]] = struct{}{}
	}
	assert.Len(t, seen, 3)
}

func TestCSVUniqueModeStopVUExhaustion(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeCSV(t, fs, "/rows.csv", "id\n1\n2\n")

	reg := NewRegistry()
	p, err := reg.Get(fs, "/rows.csv", "", nil, "", false, "unique", "stop-vu")
	require.NoError(t, err)

	_, err = p.Next(1)
	require.NoError(t, err)
	_, err = p.Next(2)
	require.NoError(t, err)
	_, err = p.Next(3)
	assert.ErrorIs(t, err, ErrExhausted)

	// Each VU that did get a row walks forward by n on its next iteration,
	// eventually exhausting too.
	_, err = p.Next(1)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCSVNextModeGlobalCursorAdvancesAtomically(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeCSV(t, fs, "/rows.csv", "id\n1\n2\n3\n")

	reg := NewRegistry()
	p, err := reg.Get(fs, "/rows.csv", "", nil, "", false, "next", "cycle")
	require.NoError(t, err)

	var seq []string
	for i := 0; i < 5; i++ {
		row, err := p.Next(1)
		require.NoError(t, err)
		seq = append(seq, row["id"])
	}
	assert.Equal(t, []string{"1", "2", "3", "1", "2"}, seq)
}

func TestCSVRegistrySharesLoadedProviderByPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeCSV(t, fs, "/rows.csv", "id\n1\n2\n")

	reg := NewRegistry()
	p1, err := reg.Get(fs, "/rows.csv", "", nil, "", false, "next", "cycle")
	require.NoError(t, err)
	p2, err := reg.Get(fs, "/rows.csv", "", nil, "", false, "next", "cycle")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}

func TestCSVFilterRestrictsRows(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeCSV(t, fs, "/rows.csv", "id,country\n1,US\n2,FR\n3,US\n")

	reg := NewRegistry()
	p, err := reg.Get(fs, "/rows.csv", "", nil, "country == US", false, "next", "cycle")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
}
