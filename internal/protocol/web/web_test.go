package web

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/protocol"
)

func TestExecuteRunsCommandsInOrderAndSucceeds(t *testing.T) {
	page := NewFakePage()
	page.Seed("#submit", "Submit", "")
	a := New(func(vuID int64) (Page, error) { return page, nil })

	in := protocol.Input{Step: config.Step{Web: &config.WebStep{Commands: []config.WebCommand{
		{Action: "navigate", Value: "https://example.test"},
		{Action: "fill", Selector: "#name", Value: "alice"},
		{Action: "click", Selector: "#submit"},
		{Action: "text", Selector: "#submit", Value: "Submit"},
	}}}, VUID: 1}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, out.Result.Success)
	assert.Equal(t, "web", out.Result.Action)
}

func TestExecuteStopsOnFirstFailingCommand(t *testing.T) {
	page := NewFakePage()
	a := New(func(vuID int64) (Page, error) { return page, nil })

	in := protocol.Input{Step: config.Step{Web: &config.WebStep{Commands: []config.WebCommand{
		{Action: "click", Selector: "#missing"},
		{Action: "click", Selector: "#never-reached"},
	}}}, VUID: 1}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
	assert.Equal(t, lib.ErrorKind("check_failed"), out.Result.ErrorKind)
	assert.Contains(t, out.Result.ErrorMessage, "#missing")
}

func TestExecuteUnknownActionFails(t *testing.T) {
	page := NewFakePage()
	a := New(func(vuID int64) (Page, error) { return page, nil })
	in := protocol.Input{Step: config.Step{Web: &config.WebStep{Commands: []config.WebCommand{
		{Action: "teleport", Selector: "#x"},
	}}}, VUID: 1}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
}

func TestPageForReusesSamePageAcrossCalls(t *testing.T) {
	var built int
	a := New(func(vuID int64) (Page, error) {
		built++
		return NewFakePage(), nil
	})
	in := protocol.Input{Step: config.Step{Web: &config.WebStep{Commands: []config.WebCommand{{Action: "navigate", Value: "x"}}}}, VUID: 5}
	_, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	_, err = a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, built)
}

func TestCleanupReleasesVUPage(t *testing.T) {
	page := NewFakePage()
	a := New(func(vuID int64) (Page, error) { return page, nil })
	in := protocol.Input{Step: config.Step{Web: &config.WebStep{Commands: []config.WebCommand{{Action: "navigate", Value: "x"}}}}, VUID: 5}
	_, err := a.Execute(context.Background(), in)
	require.NoError(t, err)

	require.NoError(t, a.Cleanup(5))
	err = page.Close()
	assert.NoError(t, err)
}

func TestExecuteRequiresWebPayload(t *testing.T) {
	a := New(nil)
	_, err := a.Execute(context.Background(), protocol.Input{Step: config.Step{}})
	assert.Error(t, err)
}
