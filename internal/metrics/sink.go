package metrics

import (
	"strconv"
	"sync"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"

	"github.com/loadvane/corrida/internal/lib"
)

// Exact percentile computation requires keeping every sample; under
// sustained high-concurrency load that buffer grows unbounded, so this
// core uses HdrHistogram's constant-memory, bounded-relative-error
// recording instead.
const (
	histMinMS    = 1
	histMaxMS    = 60 * 60 * 1000 // clamp at one hour
	histSigFigs  = 3
)

// sink aggregates one dimension's worth of results — global, or one named
// step — into O(1)-update counters and a histogram for percentiles.
type sink struct {
	mu sync.Mutex

	hist *hdrhistogram.Histogram

	count     int64
	successes int64
	errors    int64
	bytes     int64
	minMS     float64
	maxMS     float64
	sumMS     float64

	statusCodes map[int]int64
	errorKinds  map[string]int64
}

func newSink() *sink {
	return &sink{
		hist:        hdrhistogram.New(histMinMS, histMaxMS, histSigFigs),
		statusCodes: make(map[int]int64),
		errorKinds:  make(map[string]int64),
	}
}

func (s *sink) record(r lib.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if r.Success {
		s.successes++
	} else {
		s.errors++
		if r.ErrorKind != "" {
			s.errorKinds[string(r.ErrorKind)]++
		}
	}
	if r.StatusCode != 0 {
		s.statusCodes[r.StatusCode]++
	}
	s.bytes += r.ResponseSize

	if s.count == 1 || r.DurationMS < s.minMS {
		s.minMS = r.DurationMS
	}
	if r.DurationMS > s.maxMS {
		s.maxMS = r.DurationMS
	}
	s.sumMS += r.DurationMS

	d := int64(r.DurationMS)
	if d < histMinMS {
		d = histMinMS
	}
	if d > histMaxMS {
		d = histMaxMS
	}
	_ = s.hist.RecordValue(d)
}

// snapshot computes a StepStats view for the given percentile set (as
// 0-100 values, e.g. 50, 95, 99).
func (s *sink) snapshot(percentiles []float64) StepStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	avg := 0.0
	if s.count > 0 {
		avg = s.sumMS / float64(s.count)
	}
	pcts := make(map[string]float64, len(percentiles))
	for _, p := range percentiles {
		pcts[percentileLabel(p)] = float64(s.hist.ValueAtQuantile(p))
	}

	statusCodes := make(map[int]int64, len(s.statusCodes))
	for k, v := range s.statusCodes {
		statusCodes[k] = v
	}
	errorKinds := make(map[string]int64, len(s.errorKinds))
	for k, v := range s.errorKinds {
		errorKinds[k] = v
	}

	return StepStats{
		Count:       s.count,
		Successes:   s.successes,
		Errors:      s.errors,
		Bytes:       s.bytes,
		MinMS:       s.minMS,
		AvgMS:       avg,
		MaxMS:       s.maxMS,
		Percentiles: pcts,
		StatusCodes: statusCodes,
		ErrorKinds:  errorKinds,
	}
}

func percentileLabel(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
