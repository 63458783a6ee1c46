// Package workernode implements the worker node's HTTP control surface:
// health, status, prepare, start, stop, results, plus a results-streaming
// websocket endpoint the coordinator's RPC client dials.
package workernode

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/metrics"
	"github.com/loadvane/corrida/internal/output"
	"github.com/loadvane/corrida/internal/protocol/script"
	"github.com/loadvane/corrida/internal/scheduler"
	"github.com/loadvane/corrida/internal/vu"
)

var startedAt = time.Now()

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the worker's control-plane HTTP handler.
type Server struct {
	log   logrus.FieldLogger
	fs    afero.Fs
	hooks *script.Registry

	router *mux.Router

	mu          sync.Mutex
	state       *state
	test        config.Test
	collector   *metrics.Collector
	broadcaster *broadcaster
	cancelRun   context.CancelFunc
	runDone     chan struct{}
}

// NewServer builds a worker control surface. hooks registers the Custom
// step callables this worker's embedding application provides; nil is
// valid (every Custom step then reports hook_error, per
// internal/protocol/script's documented fallback).
func NewServer(fs afero.Fs, hooks *script.Registry, log logrus.FieldLogger) *Server {
	s := &Server{
		log:   log,
		fs:    fs,
		hooks: hooks,
		state: newState(),
	}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/prepare", s.handlePrepare).Methods(http.MethodPost)
	s.router.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	s.router.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	s.router.HandleFunc("/results", s.handleResults).Methods(http.MethodGet)
	s.router.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleHealth implements `GET /health`.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": int64(time.Since(startedAt).Seconds()),
		"memory": 0,
	})
}

// handleStatus implements `GET /status`.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	phase := s.state.get()
	name := s.test.Name
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"phase": phase,
		"test":  name,
	})
}

// handlePrepare implements `POST /prepare`: the sub-config is validated and
// stored for the subsequent start.
func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var test config.Test
	if err := json.NewDecoder(r.Body).Decode(&test); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := config.Validate(&test); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.test = test
	s.state.set(PhasePrepared)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "prepared"})
}

type startBody struct {
	StartTime int64 `json:"startTime"`
}

// handleStart implements `POST /start`: it launches a local
// scheduler+collector pair that runs to completion, returning 409 if the
// worker is already busy.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var body startBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	if !s.state.tryStart() {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "busy"})
		return
	}

	s.mu.Lock()
	test := s.test
	s.mu.Unlock()

	if body.StartTime > 0 {
		at := time.UnixMilli(body.StartTime)
		if d := time.Until(at); d > 0 {
			time.Sleep(d)
		}
	}

	s.launch(test)
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) launch(test config.Test) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	var outMgr *output.Manager
	if len(test.Outputs) > 0 {
		mgr, err := output.Build(test.Outputs, s.fs, s.log)
		if err != nil && s.log != nil {
			s.log.WithError(err).Warn("worker output setup failed, continuing without local outputs")
		} else {
			outMgr = mgr
			_ = outMgr.Initialize()
		}
	}

	bc := newBroadcaster(outMgr)
	collector := metrics.New(metrics.DefaultPercentiles, s.log, bc)
	collector.Start(test.Name)

	s.mu.Lock()
	s.collector = collector
	s.broadcaster = bc
	s.cancelRun = cancel
	s.runDone = done
	s.mu.Unlock()

	vuCfg := vu.Assemble(&test, s.fs, s.hooks, collector, s.log)

	factory := func(maxIterations int64) (scheduler.VU, error) {
		return vu.New(vuCfg, maxIterations), nil
	}

	go func() {
		defer close(done)
		defer cancel()
		err := scheduler.Run(ctx, test.Load.Phases, factory, collector, s.log)
		if err != nil && s.log != nil {
			s.log.WithError(err).Warn("worker scheduler run ended with error")
		}
		summary := collector.Finalize()
		if outMgr != nil {
			_ = outMgr.Finalize()
		}
		_ = summary
		s.state.set(PhaseDone)
	}()
}

// handleStop implements `POST /stop`.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cancel := s.cancelRun
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleResults implements `GET /results`, returning {summary, results[]}
// via a single GET after completion.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	collector := s.collector
	s.mu.Unlock()
	if collector == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"summary": nil, "results": []lib.Result{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": collector.Snapshot(),
		"results": collector.Results(),
	})
}

// handleStream implements the persistent results-streaming connection
// the coordinator's RPC.StreamResults dials.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	bc := s.broadcaster
	s.mu.Unlock()
	if bc == nil {
		return
	}

	ch := bc.subscribe()
	defer bc.unsubscribe(ch)

	for r := range ch {
		if err := conn.WriteJSON(r); err != nil {
			return
		}
	}
}
