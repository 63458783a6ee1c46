// Package metrics implements the metrics collector: it ingests a stream of
// results under high concurrency, produces live aggregates cheaply, and
// computes a final summary.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loadvane/corrida/internal/lib"
)

// ResultSink is the narrow interface the collector fans results out to —
// internal/output.Manager implements it (DESIGN NOTES: narrow interfaces
// over concrete cross-package dependencies; this package never imports
// internal/output).
type ResultSink interface {
	WriteResult(lib.Result)
}

// SummarySink additionally accepts the final summary.
type SummarySink interface {
	ResultSink
	WriteSummary(Summary)
}

const defaultBufferCap = 10000

// Collector implements the Start/Record/Snapshot/Finalize contract.
type Collector struct {
	testName    string
	t0          time.Time
	percentiles []float64
	log         logrus.FieldLogger
	sink        ResultSink

	global   *sink
	stepsMu  sync.Mutex
	steps    map[string]*sink
	timeline *Timeline
	top      *TopErrors

	bufMu  sync.Mutex
	buffer []lib.Result
	bufCap int
	bufPos int

	totalRequests int64
	totalErrors   int64
	vuCount       int64
	pacingMisses  int64
	spawnFailures int64

	rampMu   sync.Mutex
	ramp     []RampPoint

	progressSubs   []chan Progress
	progressMu     sync.Mutex
	stopProgress   chan struct{}
	progressDone   chan struct{}
}

// New builds a Collector. A nil sink is valid — results are aggregated but
// never fanned out to an output (useful for dry runs).
func New(percentiles []float64, log logrus.FieldLogger, resultSink ResultSink) *Collector {
	if len(percentiles) == 0 {
		percentiles = DefaultPercentiles
	}
	return &Collector{
		percentiles: percentiles,
		log:         log,
		sink:        resultSink,
		global:      newSink(),
		steps:       make(map[string]*sink),
		top:         NewTopErrors(10),
		bufCap:      defaultBufferCap,
		buffer:      make([]lib.Result, 0, defaultBufferCap),
	}
}

// Start marks t0 and begins the 500ms live-progress feed.
func (c *Collector) Start(testName string) {
	c.testName = testName
	c.t0 = time.Now()
	c.timeline = NewTimeline(c.t0)
	c.stopProgress = make(chan struct{})
	c.progressDone = make(chan struct{})
	go c.runProgressLoop()
}

// Record ingests one result in O(1) and is safe for concurrent callers.
func (c *Collector) Record(r lib.Result) {
	atomic.AddInt64(&c.totalRequests, 1)
	if !r.Success {
		atomic.AddInt64(&c.totalErrors, 1)
		c.top.Record(r.Scenario, r.Action, r.StatusCode, r.ErrorMessage)
	}

	c.global.record(r)
	c.stepSink(r.StepName).record(r)

	if c.timeline != nil {
		c.timeline.Record(r.Timestamp, r.DurationMS, r.Success)
	}

	c.appendBuffer(r)

	if c.sink != nil {
		c.sink.WriteResult(r)
	}
}

func (c *Collector) stepSink(name string) *sink {
	c.stepsMu.Lock()
	defer c.stepsMu.Unlock()
	s, ok := c.steps[name]
	if !ok {
		s = newSink()
		c.steps[name] = s
	}
	return s
}

// appendBuffer keeps a bounded rolling buffer of raw results for
// inspection; results are already flushed to the attached output at
// Record time, so eviction here only drops the in-memory convenience copy.
func (c *Collector) appendBuffer(r lib.Result) {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	if len(c.buffer) < c.bufCap {
		c.buffer = append(c.buffer, r)
		return
	}
	c.buffer[c.bufPos] = r
	c.bufPos = (c.bufPos + 1) % c.bufCap
}

// Results returns a snapshot of the bounded rolling buffer in insertion
// order.
func (c *Collector) Results() []lib.Result {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	if len(c.buffer) < c.bufCap {
		out := make([]lib.Result, len(c.buffer))
		copy(out, c.buffer)
		return out
	}
	out := make([]lib.Result, 0, c.bufCap)
	out = append(out, c.buffer[c.bufPos:]...)
	out = append(out, c.buffer[:c.bufPos]...)
	return out
}

// VUStarted implements scheduler.EventSink.
func (c *Collector) VUStarted(id int64) {
	n := atomic.AddInt64(&c.vuCount, 1)
	c.recordRamp(n)
}

// VUStopped implements scheduler.EventSink.
func (c *Collector) VUStopped(id int64) {
	n := atomic.AddInt64(&c.vuCount, -1)
	c.recordRamp(n)
}

// PacingMiss implements scheduler.EventSink.
func (c *Collector) PacingMiss() {
	atomic.AddInt64(&c.pacingMisses, 1)
}

// SpawnFailed implements scheduler.EventSink.
func (c *Collector) SpawnFailed(err error) {
	atomic.AddInt64(&c.spawnFailures, 1)
	if c.log != nil {
		c.log.WithError(err).Warn("vu spawn failed")
	}
}

func (c *Collector) recordRamp(vuCount int64) {
	offset := time.Since(c.t0).Seconds()
	c.rampMu.Lock()
	c.ramp = append(c.ramp, RampPoint{OffsetSeconds: offset, VUCount: vuCount})
	c.rampMu.Unlock()
}

// Snapshot returns a coherent view of the current aggregates.
func (c *Collector) Snapshot() Summary {
	return c.summarize(time.Since(c.t0))
}

// Finalize stops the background progress feed and computes the full
// summary.
func (c *Collector) Finalize() Summary {
	if c.stopProgress != nil {
		close(c.stopProgress)
		<-c.progressDone
	}
	summary := c.summarize(time.Since(c.t0))
	if sink, ok := c.sink.(SummarySink); ok {
		sink.WriteSummary(summary)
	}
	return summary
}

func (c *Collector) summarize(elapsed time.Duration) Summary {
	global := c.global.snapshot(c.percentiles)

	c.stepsMu.Lock()
	perStep := make(map[string]StepStats, len(c.steps))
	for name, s := range c.steps {
		perStep[name] = s.snapshot(c.percentiles)
	}
	c.stepsMu.Unlock()

	c.rampMu.Lock()
	ramp := make([]RampPoint, len(c.ramp))
	copy(ramp, c.ramp)
	c.rampMu.Unlock()

	successRate := 0.0
	if global.Count > 0 {
		successRate = float64(global.Successes) / float64(global.Count)
	}
	seconds := elapsed.Seconds()
	throughput := 0.0
	bytesPerSecond := 0.0
	if seconds > 0 {
		throughput = float64(global.Count) / seconds
		bytesPerSecond = float64(global.Bytes) / seconds
	}

	var timeline []TimelineBucket
	if c.timeline != nil {
		timeline = c.timeline.Snapshot()
	}

	return Summary{
		TestName:       c.testName,
		StartedAt:      c.t0,
		Duration:       elapsed,
		TotalRequests:  atomic.LoadInt64(&c.totalRequests),
		TotalErrors:    atomic.LoadInt64(&c.totalErrors),
		SuccessRate:    successRate,
		MinMS:          global.MinMS,
		AvgMS:          global.AvgMS,
		MaxMS:          global.MaxMS,
		Percentiles:    global.Percentiles,
		ThroughputRPS:  throughput,
		BytesPerSecond: bytesPerSecond,
		StatusCodes:    global.StatusCodes,
		ErrorKinds:     global.ErrorKinds,
		TopErrors:      c.top.Snapshot(),
		PerStep:        perStep,
		RampTimeline:   ramp,
		Timeline:       timeline,
		PacingMisses:   atomic.LoadInt64(&c.pacingMisses),
		SpawnFailures:  atomic.LoadInt64(&c.spawnFailures),
	}
}

// Subscribe returns a channel receiving a Progress record roughly every
// 500ms until Finalize is called.
func (c *Collector) Subscribe() <-chan Progress {
	ch := make(chan Progress, 1)
	c.progressMu.Lock()
	c.progressSubs = append(c.progressSubs, ch)
	c.progressMu.Unlock()
	return ch
}

func (c *Collector) runProgressLoop() {
	defer close(c.progressDone)
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopProgress:
			c.closeSubscribers()
			return
		case <-ticker.C:
			c.emitProgress()
		}
	}
}

func (c *Collector) emitProgress() {
	elapsed := time.Since(c.t0)
	rate := 0.0
	if c.timeline != nil {
		rate = c.timeline.recentRate(recentRateWindowSeconds)
	}
	global := c.global.snapshot(c.percentiles)
	p := Progress{
		Elapsed:       elapsed,
		VUCount:       atomic.LoadInt64(&c.vuCount),
		TotalRequests: atomic.LoadInt64(&c.totalRequests),
		TotalErrors:   atomic.LoadInt64(&c.totalErrors),
		RPS:           rate,
		Percentiles:   global.Percentiles,
	}

	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	for _, sub := range c.progressSubs {
		select {
		case sub <- p:
		default:
			// A slow subscriber drops a tick rather than blocking the
			// collector — the progress feed is a live view, not a log.
		}
	}
}

func (c *Collector) closeSubscribers() {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	for _, sub := range c.progressSubs {
		close(sub)
	}
	c.progressSubs = nil
}
