package lib

import "time"

// ErrorKind mirrors the errext taxonomy but is duplicated here (as a plain
// string) so that Result stays a dependency-free, directly-serializable
// value — it is produced by protocol adapters and consumed by outputs that
// should not need to import the error-handling package.
type ErrorKind string

// Result is emitted per step, never per-request-inside-a-step.
type Result struct {
	ID            string                 `json:"id"`
	VUID          int64                  `json:"vu_id"`
	Iteration     int64                  `json:"iteration"`
	Scenario      string                 `json:"scenario"`
	StepName      string                 `json:"step_name"`
	Action        string                 `json:"action"`
	Timestamp     time.Time              `json:"timestamp"`
	DurationMS    float64                `json:"duration_ms"`
	Success       bool                   `json:"success"`
	StatusCode    int                    `json:"status_code,omitempty"`
	ErrorKind     ErrorKind              `json:"error_kind,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	URL           string                 `json:"url,omitempty"`
	Method        string                 `json:"method,omitempty"`
	RequestHeaders  map[string]string    `json:"request_headers,omitempty"`
	RequestBody     string               `json:"request_body,omitempty"`
	ResponseHeaders map[string]string    `json:"response_headers,omitempty"`
	ResponseBody    string               `json:"response_body,omitempty"`
	ResponseSize  int64                  `json:"response_size"`
	CheckFailures []string               `json:"check_failures,omitempty"`
	Custom        map[string]interface{} `json:"custom,omitempty"`
	Attempt       int                    `json:"attempt,omitempty"`

	// Worker is filled in by the distributed aggregator to preserve
	// per-worker provenance; empty for local runs.
	Worker string `json:"worker,omitempty"`
}

// SortKey implements the ordering guarantee for ordered outputs: ordered by
// (timestamp, vu_id, iteration, step_index). step_index isn't tracked on
// Result directly (results don't carry their position within a scenario),
// so callers writing ordered output pass the index they observed the result
// at; ties after that are broken by insertion order, which Go's sort
// preserves for a stable sort.
type SortKey struct {
	Timestamp time.Time
	VUID      int64
	Iteration int64
	StepIndex int
}

// Key builds the ordering key for a result observed at the given step
// index within its scenario iteration.
func Key(r Result, stepIndex int) SortKey {
	return SortKey{Timestamp: r.Timestamp, VUID: r.VUID, Iteration: r.Iteration, StepIndex: stepIndex}
}

// Less implements the total order over SortKey.
func (k SortKey) Less(o SortKey) bool {
	if !k.Timestamp.Equal(o.Timestamp) {
		return k.Timestamp.Before(o.Timestamp)
	}
	if k.VUID != o.VUID {
		return k.VUID < o.VUID
	}
	if k.Iteration != o.Iteration {
		return k.Iteration < o.Iteration
	}
	return k.StepIndex < o.StepIndex
}
