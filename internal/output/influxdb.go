package output

import (
	"fmt"
	"strings"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/metrics"
)

const influxFlushInterval = time.Second

// InfluxDBOutput writes each result as a line-protocol point, using the
// client's batch-points convention (`client.BatchPointsConfig{Database:
// ...}`).
type InfluxDBOutput struct {
	c  client.Client
	db string

	batch client.BatchPoints
	count int
}

// NewInfluxDB parses `addr[/database]` and builds the client.
func NewInfluxDB(arg string) (*InfluxDBOutput, error) {
	addr, db := arg, "corrida"
	if idx := strings.LastIndexByte(arg, '/'); idx >= 0 {
		addr, db = arg[:idx], arg[idx+1:]
	}
	if addr == "" {
		addr = "http://localhost:8086"
	}
	c, err := client.NewHTTPClient(client.HTTPConfig{Addr: addr})
	if err != nil {
		return nil, fmt.Errorf("influxdb client: %w", err)
	}
	return &InfluxDBOutput{c: c, db: db}, nil
}

func (o *InfluxDBOutput) Initialize() error {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{Database: o.db})
	if err != nil {
		return err
	}
	o.batch = bp
	return nil
}

func (o *InfluxDBOutput) WriteResult(r lib.Result) {
	tags := map[string]string{
		"scenario": r.Scenario,
		"step":     r.StepName,
		"action":   r.Action,
		"success":  fmt.Sprintf("%t", r.Success),
	}
	fields := map[string]interface{}{
		"duration_ms": r.DurationMS,
		"status_code": r.StatusCode,
		"bytes":       r.ResponseSize,
	}
	pt, err := client.NewPoint("corrida_result", tags, fields, r.Timestamp)
	if err != nil {
		return
	}
	o.batch.AddPoint(pt)
	o.count++
	if o.count >= 500 {
		o.flush()
	}
}

func (o *InfluxDBOutput) flush() {
	if o.batch == nil {
		return
	}
	_ = o.c.Write(o.batch)
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{Database: o.db})
	if err == nil {
		o.batch = bp
	}
	o.count = 0
}

func (o *InfluxDBOutput) WriteSummary(s metrics.Summary) {
	tags := map[string]string{"test": s.TestName}
	fields := map[string]interface{}{
		"total_requests": s.TotalRequests,
		"total_errors":   s.TotalErrors,
		"success_rate":   s.SuccessRate,
		"throughput_rps": s.ThroughputRPS,
	}
	pt, err := client.NewPoint("corrida_summary", tags, fields, time.Now())
	if err != nil {
		return
	}
	o.batch.AddPoint(pt)
}

func (o *InfluxDBOutput) Finalize() error {
	o.flush()
	o.c.Close()
	return nil
}
