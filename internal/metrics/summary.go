package metrics

import "time"

// Summary is the metrics summary produced at test end and on-demand during
// a run.
type Summary struct {
	TestName       string               `json:"test_name"`
	StartedAt      time.Time            `json:"started_at"`
	Duration       time.Duration        `json:"duration"`
	TotalRequests  int64                `json:"total_requests"`
	TotalErrors    int64                `json:"total_errors"`
	SuccessRate    float64              `json:"success_rate"`
	MinMS          float64              `json:"min_ms"`
	AvgMS          float64              `json:"avg_ms"`
	MaxMS          float64              `json:"max_ms"`
	Percentiles    map[string]float64   `json:"percentiles"`
	ThroughputRPS  float64              `json:"throughput_rps"`
	BytesPerSecond float64              `json:"bytes_per_second"`
	StatusCodes    map[int]int64        `json:"status_codes"`
	ErrorKinds     map[string]int64     `json:"error_kinds"`
	TopErrors      []ErrorExemplar      `json:"top_errors"`
	PerStep        map[string]StepStats `json:"per_step"`
	RampTimeline   []RampPoint          `json:"ramp_timeline"`
	Timeline       []TimelineBucket     `json:"timeline"`

	// PacingMisses and SpawnFailures surface scheduler-level degradation
	// that isn't itself a request failure.
	PacingMisses  int64 `json:"pacing_misses"`
	SpawnFailures int64 `json:"spawn_failures"`

	// Degraded is set by the coordinator when a worker is lost mid-run.
	Degraded bool `json:"degraded,omitempty"`
}

// StepStats is one step's (or the global) aggregate view.
type StepStats struct {
	Count       int64              `json:"count"`
	Successes   int64              `json:"successes"`
	Errors      int64              `json:"errors"`
	Bytes       int64              `json:"bytes"`
	MinMS       float64            `json:"min_ms"`
	AvgMS       float64            `json:"avg_ms"`
	MaxMS       float64            `json:"max_ms"`
	Percentiles map[string]float64 `json:"percentiles"`
	StatusCodes map[int]int64      `json:"status_codes"`
	ErrorKinds  map[string]int64   `json:"error_kinds"`
}

// DefaultPercentiles is the configurable percentile set's default.
var DefaultPercentiles = []float64{50, 75, 90, 95, 99}
