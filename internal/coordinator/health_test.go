package coordinator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthTestLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func rpcFor(t *testing.T, srv *httptest.Server) *RPC {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return NewRPC(u.Hostname(), port)
}

func TestHealthMonitorNewWorkerStartsHealthy(t *testing.T) {
	m := NewHealthMonitor(time.Second, healthTestLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	m.Watch("w1", rpcFor(t, srv))
	assert.Equal(t, WorkerHealthy, m.State("w1"))
}

func TestHealthMonitorUnwatchedWorkerIsDisconnected(t *testing.T) {
	m := NewHealthMonitor(time.Second, healthTestLogger())
	assert.Equal(t, WorkerDisconnected, m.State("ghost"))
}

func TestHealthMonitorMarksUnhealthyAfterOneMissThenDisconnectedAfterTwo(t *testing.T) {
	m := NewHealthMonitor(time.Second, healthTestLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	rpc := rpcFor(t, srv)
	m.Watch("w1", rpc)
	srv.Close() // subsequent health calls now fail to connect

	m.beat(context.Background(), "w1")
	assert.Equal(t, WorkerUnhealthy, m.State("w1"))

	m.beat(context.Background(), "w1")
	assert.Equal(t, WorkerDisconnected, m.State("w1"))
}

func TestHealthMonitorRecoversToHealthyAfterSuccessfulBeat(t *testing.T) {
	m := NewHealthMonitor(time.Second, healthTestLogger())
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rpc := rpcFor(t, down)
	m.Watch("w1", rpc)
	down.Close()
	m.beat(context.Background(), "w1")
	require.Equal(t, WorkerUnhealthy, m.State("w1"))

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer up.Close()
	m.mu.Lock()
	m.rpcs["w1"] = rpcFor(t, up)
	m.mu.Unlock()

	m.beat(context.Background(), "w1")
	assert.Equal(t, WorkerHealthy, m.State("w1"))
}

func TestHealthMonitorOnChangeFiresOnTransition(t *testing.T) {
	m := NewHealthMonitor(time.Second, healthTestLogger())
	var transitions []WorkerHealthState
	m.OnChange(func(addr string, state WorkerHealthState) {
		transitions = append(transitions, state)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	rpc := rpcFor(t, srv)
	m.Watch("w1", rpc)
	srv.Close()

	m.beat(context.Background(), "w1")
	m.beat(context.Background(), "w1")

	require.Len(t, transitions, 2)
	assert.Equal(t, WorkerUnhealthy, transitions[0])
	assert.Equal(t, WorkerDisconnected, transitions[1])
}
