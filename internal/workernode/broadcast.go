package workernode

import (
	"sync"

	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/metrics"
)

const streamSubscriberBuffer = 256

// broadcaster implements metrics.ResultSink, fanning every recorded result
// out to the worker's own configured outputs (if any) and to every
// connected coordinator `/stream` subscriber — the worker-side half of the
// streaming results channel.
type broadcaster struct {
	inner metrics.ResultSink // may be nil

	mu   sync.Mutex
	subs map[chan lib.Result]struct{}
}

func newBroadcaster(inner metrics.ResultSink) *broadcaster {
	return &broadcaster{inner: inner, subs: make(map[chan lib.Result]struct{})}
}

func (b *broadcaster) WriteResult(r lib.Result) {
	if b.inner != nil {
		b.inner.WriteResult(r)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- r:
		default:
			// A stalled stream subscriber drops results rather than
			// blocking the worker's own collector.
		}
	}
}

func (b *broadcaster) WriteSummary(s metrics.Summary) {
	if b.inner != nil {
		b.inner.WriteSummary(s)
	}
}

// subscribe registers a new stream consumer; call unsubscribe when done.
func (b *broadcaster) subscribe() chan lib.Result {
	ch := make(chan lib.Result, streamSubscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) unsubscribe(ch chan lib.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}
