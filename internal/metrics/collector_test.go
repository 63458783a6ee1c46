package metrics

import (
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/lib"
)

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func makeResult(step string, durationMS float64, success bool) lib.Result {
	return lib.Result{
		ID:         fmt.Sprintf("%d", rand.Int63()),
		Scenario:   "s1",
		StepName:   step,
		Timestamp:  time.Now(),
		DurationMS: durationMS,
		Success:    success,
		StatusCode: 200,
	}
}

// TestTotalRequestsEqualsSumOfPerStep verifies that
// summary.total_requests == sum(step_statistics[*].total_requests).
func TestTotalRequestsEqualsSumOfPerStep(t *testing.T) {
	c := New(nil, discardLogger(), nil)
	c.Start("t")

	steps := []string{"login", "browse", "checkout"}
	for i := 0; i < 300; i++ {
		step := steps[i%len(steps)]
		c.Record(makeResult(step, float64(1+i%50), i%10 != 0))
	}

	summary := c.Finalize()

	var sum int64
	for _, stats := range summary.PerStep {
		sum += stats.Count
	}
	assert.Equal(t, summary.TotalRequests, sum)
}

// TestPercentileMonotonicity verifies that P50 <= P90 <= P95 <= P99 <= max,
// for every step and globally.
func TestPercentileMonotonicity(t *testing.T) {
	c := New([]float64{50, 90, 95, 99}, discardLogger(), nil)
	c.Start("t")

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		d := float64(rng.Intn(5000) + 1)
		c.Record(makeResult("step-a", d, true))
	}

	summary := c.Finalize()
	assertMonotonic(t, summary.Percentiles, summary.MaxMS)
	for name, stats := range summary.PerStep {
		t.Run(name, func(t *testing.T) {
			assertMonotonic(t, stats.Percentiles, stats.MaxMS)
		})
	}
}

func assertMonotonic(t *testing.T, pcts map[string]float64, max float64) {
	t.Helper()
	require.Contains(t, pcts, "50")
	require.Contains(t, pcts, "90")
	require.Contains(t, pcts, "95")
	require.Contains(t, pcts, "99")
	assert.LessOrEqual(t, pcts["50"], pcts["90"])
	assert.LessOrEqual(t, pcts["90"], pcts["95"])
	assert.LessOrEqual(t, pcts["95"], pcts["99"])
	assert.LessOrEqual(t, pcts["99"], max)
}

func TestSuccessRateAndErrorAccounting(t *testing.T) {
	c := New(nil, discardLogger(), nil)
	c.Start("t")

	for i := 0; i < 100; i++ {
		c.Record(makeResult("step", 5, i >= 10))
	}
	summary := c.Finalize()

	assert.EqualValues(t, 100, summary.TotalRequests)
	assert.EqualValues(t, 10, summary.TotalErrors)
	assert.InDelta(t, 0.9, summary.SuccessRate, 1e-9)
}

type fakeSink struct {
	results  []lib.Result
	summary  *Summary
}

func (f *fakeSink) WriteResult(r lib.Result)  { f.results = append(f.results, r) }
func (f *fakeSink) WriteSummary(s Summary)    { f.summary = &s }

func TestFinalizeForwardsSummaryToSummarySink(t *testing.T) {
	sink := &fakeSink{}
	c := New(nil, discardLogger(), sink)
	c.Start("t")
	c.Record(makeResult("step", 3, true))

	summary := c.Finalize()
	require.NotNil(t, sink.summary)
	assert.Equal(t, summary.TotalRequests, sink.summary.TotalRequests)
	assert.Len(t, sink.results, 1)
}

func TestVUCountTracksStartStop(t *testing.T) {
	c := New(nil, discardLogger(), nil)
	c.Start("t")
	c.VUStarted(1)
	c.VUStarted(2)
	c.VUStopped(1)

	summary := c.Snapshot()
	assert.Len(t, summary.RampTimeline, 3)
	assert.EqualValues(t, 1, summary.RampTimeline[len(summary.RampTimeline)-1].VUCount)
	c.Finalize()
}

func TestPacingMissAndSpawnFailedCounters(t *testing.T) {
	c := New(nil, discardLogger(), nil)
	c.Start("t")
	c.PacingMiss()
	c.PacingMiss()
	c.SpawnFailed(assert.AnError)

	summary := c.Finalize()
	assert.EqualValues(t, 2, summary.PacingMisses)
	assert.EqualValues(t, 1, summary.SpawnFailures)
}
