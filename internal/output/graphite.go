package output

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/metrics"
)

// GraphiteOutput emits each result over the statsd wire protocol, using
// the DataDog statsd client as the transport: statsd's UDP line protocol
// is wire-compatible with a statsd-to-Graphite bridge, which is the
// deployment this output targets.
type GraphiteOutput struct {
	c      *statsd.Client
	prefix string
}

// NewGraphite builds a Graphite output targeting addr (host:port of a
// statsd-to-Graphite relay).
func NewGraphite(addr string) (*GraphiteOutput, error) {
	if addr == "" {
		addr = "127.0.0.1:8125"
	}
	c, err := statsd.New(addr)
	if err != nil {
		return nil, fmt.Errorf("statsd client: %w", err)
	}
	return &GraphiteOutput{c: c, prefix: "corrida."}, nil
}

func (o *GraphiteOutput) Initialize() error {
	o.c.Namespace = o.prefix
	return nil
}

func (o *GraphiteOutput) WriteResult(r lib.Result) {
	tags := []string{
		"scenario:" + r.Scenario,
		"step:" + r.StepName,
		"action:" + r.Action,
	}
	_ = o.c.Timing("request.duration", time.Duration(r.DurationMS*float64(time.Millisecond)), tags, 1)
	if r.Success {
		_ = o.c.Incr("request.success", tags, 1)
	} else {
		_ = o.c.Incr("request.error", tags, 1)
	}
}

func (o *GraphiteOutput) WriteSummary(s metrics.Summary) {
	_ = o.c.Gauge("summary.throughput_rps", s.ThroughputRPS, nil, 1)
	_ = o.c.Gauge("summary.success_rate", s.SuccessRate, nil, 1)
}

func (o *GraphiteOutput) Finalize() error {
	return o.c.Close()
}
