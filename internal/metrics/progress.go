package metrics

import "time"

// progressInterval is the live-progress emission cadence.
const progressInterval = 500 * time.Millisecond

// recentRateWindowSeconds is the trailing window "moving rps" is computed
// over.
const recentRateWindowSeconds = 5

// Progress is one live-progress record, consumed by the external
// live-dashboard or by stdout scraping in distributed mode.
type Progress struct {
	Elapsed       time.Duration      `json:"elapsed"`
	VUCount       int64              `json:"vu_count"`
	TotalRequests int64              `json:"total_requests"`
	TotalErrors   int64              `json:"total_errors"`
	RPS           float64            `json:"rps"`
	Percentiles   map[string]float64 `json:"percentiles"`
}
