package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/errext"
	"github.com/loadvane/corrida/internal/lib"
)

// RPC is the coordinator's view of one worker: a control channel (HTTP) for
// prepare/start/stop/results plus a streaming-results connection opened over
// a persistent websocket.
type RPC struct {
	baseURL string
	hc      *http.Client
}

// NewRPC builds an RPC client targeting a worker's host:port.
func NewRPC(host string, port int) *RPC {
	return &RPC{
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

// healthResponse mirrors the worker's `GET /health` body.
type healthResponse struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
	Memory int64  `json:"memory"`
}

// Health probes the worker's liveness endpoint.
func (r *RPC) Health(ctx context.Context) (healthResponse, error) {
	var out healthResponse
	err := r.get(ctx, "/health", &out)
	return out, err
}

// Prepare POSTs the worker's sub-config and requires a "prepared" ack.
func (r *RPC) Prepare(ctx context.Context, sub config.Test) error {
	var ack struct {
		Status string `json:"status"`
	}
	if err := r.post(ctx, "/prepare", sub, &ack); err != nil {
		return errext.Wrap(errext.KindWorkerUnreachable, err, fmt.Sprintf("prepare failed for %s", r.baseURL))
	}
	if ack.Status != "prepared" {
		return errext.New(errext.KindWorkerUnreachable, fmt.Sprintf("worker %s refused prepare: %s", r.baseURL, ack.Status))
	}
	return nil
}

// startRequest mirrors the worker's `POST /start` body.
type startRequest struct {
	StartTime int64 `json:"startTime,omitempty"`
}

// Start issues `start`, optionally with a negotiated T0 that a synchronized
// start uses to make the worker sleep until T0 before beginning.
func (r *RPC) Start(ctx context.Context, at time.Time) error {
	var req startRequest
	if !at.IsZero() {
		req.StartTime = at.UnixMilli()
	}
	resp, err := r.doJSON(ctx, http.MethodPost, "/start", req)
	if err != nil {
		return errext.Wrap(errext.KindWorkerUnreachable, err, fmt.Sprintf("start failed for %s", r.baseURL))
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return errext.New(errext.KindWorkerBusy, fmt.Sprintf("worker %s busy", r.baseURL))
	}
	if resp.StatusCode != http.StatusOK {
		return errext.New(errext.KindWorkerUnreachable, fmt.Sprintf("worker %s start returned %d", r.baseURL, resp.StatusCode))
	}
	return nil
}

// Stop issues `stop` to the worker.
func (r *RPC) Stop(ctx context.Context) error {
	resp, err := r.doJSON(ctx, http.MethodPost, "/stop", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// resultsResponse mirrors the worker's `GET /results` body.
type resultsResponse struct {
	Summary interface{}  `json:"summary"`
	Results []lib.Result `json:"results"`
	Worker  string       `json:"worker"`
}

// Results drains the worker's final-results endpoint.
func (r *RPC) Results(ctx context.Context) ([]lib.Result, error) {
	var out resultsResponse
	if err := r.get(ctx, "/results", &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (r *RPC) get(ctx context.Context, path string, out interface{}) error {
	resp, err := r.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s%s: status %d", r.baseURL, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *RPC) post(ctx context.Context, path string, body, out interface{}) error {
	resp, err := r.doJSON(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s%s: status %d", r.baseURL, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *RPC) doJSON(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	ctx, span := tracer.Start(ctx, "coordinator.rpc"+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.method", method),
			attribute.String("rpc.target", r.baseURL),
		))
	defer span.End()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.hc.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("rpc.status_code", resp.StatusCode))
	return resp, nil
}

// StreamResults opens the persistent results-streaming connection. Each
// decoded result is delivered to onResult until the worker closes the
// socket or ctx is cancelled.
func (r *RPC) StreamResults(ctx context.Context, onResult func(lib.Result)) error {
	ctx, span := tracer.Start(ctx, "coordinator.rpc/stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.target", r.baseURL)))
	defer span.End()

	wsURL := "ws" + r.baseURL[len("http"):] + "/stream"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errext.Wrap(errext.KindWorkerUnreachable, err, "results stream dial failed")
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var r lib.Result
		if err := conn.ReadJSON(&r); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		onResult(r)
	}
}
