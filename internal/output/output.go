// Package output implements the tagged-variant result sinks: JSON, CSV,
// InfluxDB/line-protocol, Graphite, and webhook. The collector fans results
// out to every configured sink asynchronously; a slow sink never blocks the
// collector.
package output

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/metrics"
)

// Output is the tagged-variant sink contract: every sink implements
// Initialize, WriteResult(result), WriteSummary(summary), and Finalize.
type Output interface {
	Initialize() error
	WriteResult(lib.Result)
	WriteSummary(metrics.Summary)
	Finalize() error
}

// queueDepth bounds each sink's result queue; beyond this the manager drops
// the result (with a warning) rather than blocking the collector.
const queueDepth = 1000

// managedSink pairs an Output with its own goroutine and bounded queue so
// one slow sink can't starve the others.
type managedSink struct {
	name    string
	out     Output
	queue   chan lib.Result
	done    chan struct{}
	dropped int64
}

// Manager fans results and the final summary out to every configured
// sink concurrently.
type Manager struct {
	log   logrus.FieldLogger
	mu    sync.Mutex
	sinks []*managedSink
}

// NewManager builds an empty fan-out manager.
func NewManager(log logrus.FieldLogger) *Manager {
	return &Manager{log: log}
}

// Add registers a sink and starts its drain goroutine. Initialize must be
// called (via Manager.Initialize) before results are written.
func (m *Manager) Add(name string, out Output) {
	ms := &managedSink{
		name:  name,
		out:   out,
		queue: make(chan lib.Result, queueDepth),
		done:  make(chan struct{}),
	}
	m.mu.Lock()
	m.sinks = append(m.sinks, ms)
	m.mu.Unlock()

	go m.drain(ms)
}

func (m *Manager) drain(ms *managedSink) {
	defer close(ms.done)
	for r := range ms.queue {
		ms.out.WriteResult(r)
	}
}

// Initialize calls Initialize on every registered sink, failing fast on
// the first error. Sinks are expected to validate their own destination up
// front — a bad InfluxDB URL or unwritable CSV path should surface before
// the run starts, not after the first dropped result.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.sinks {
		if err := ms.out.Initialize(); err != nil {
			return fmt.Errorf("output %q: %w", ms.name, err)
		}
	}
	return nil
}

// WriteResult implements metrics.ResultSink: it enqueues the result on
// every sink's queue, dropping (and counting) on any sink whose queue is
// full rather than blocking the collector.
func (m *Manager) WriteResult(r lib.Result) {
	m.mu.Lock()
	sinks := m.sinks
	m.mu.Unlock()

	for _, ms := range sinks {
		select {
		case ms.queue <- r:
		default:
			n := atomic.AddInt64(&ms.dropped, 1)
			if m.log != nil {
				m.log.WithField("output", ms.name).WithField("dropped", n).Warn("output queue full, dropping result")
			}
		}
	}
}

// WriteSummary implements metrics.SummarySink: it is delivered
// synchronously and in order after every queued result has drained, since
// sinks typically need the full result stream flushed before writing a
// trailing summary section.
func (m *Manager) WriteSummary(s metrics.Summary) {
	m.mu.Lock()
	sinks := m.sinks
	m.mu.Unlock()

	for _, ms := range sinks {
		close(ms.queue)
		<-ms.done
		ms.out.WriteSummary(s)
	}
}

// Finalize calls Finalize on every sink and returns the first error
// encountered, after attempting every sink regardless.
func (m *Manager) Finalize() error {
	m.mu.Lock()
	sinks := m.sinks
	m.mu.Unlock()

	var firstErr error
	for _, ms := range sinks {
		if err := ms.out.Finalize(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("output %q: %w", ms.name, err)
		}
	}
	return firstErr
}

// Dropped returns the total number of results dropped across all sinks.
func (m *Manager) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, ms := range m.sinks {
		total += atomic.LoadInt64(&ms.dropped)
	}
	return total
}
