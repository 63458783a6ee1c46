package workernode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/metrics"
)

type recordingResultSink struct {
	results []lib.Result
	summary metrics.Summary
}

func (r *recordingResultSink) WriteResult(res lib.Result) { r.results = append(r.results, res) }
func (r *recordingResultSink) WriteSummary(s metrics.Summary) { r.summary = s }

func TestBroadcasterForwardsToInnerSink(t *testing.T) {
	inner := &recordingResultSink{}
	b := newBroadcaster(inner)
	b.WriteResult(lib.Result{VUID: 1})
	b.WriteSummary(metrics.Summary{TestName: "x"})
	require.Len(t, inner.results, 1)
	assert.Equal(t, "x", inner.summary.TestName)
}

func TestBroadcasterWithNilInnerDoesNotPanic(t *testing.T) {
	b := newBroadcaster(nil)
	assert.NotPanics(t, func() {
		b.WriteResult(lib.Result{VUID: 1})
		b.WriteSummary(metrics.Summary{})
	})
}

func TestBroadcasterFansOutToEverySubscriber(t *testing.T) {
	b := newBroadcaster(nil)
	s1 := b.subscribe()
	s2 := b.subscribe()

	b.WriteResult(lib.Result{VUID: 42})

	select {
	case r := <-s1:
		assert.EqualValues(t, 42, r.VUID)
	case <-time.After(time.Second):
		t.Fatal("subscriber 1 did not receive result")
	}
	select {
	case r := <-s2:
		assert.EqualValues(t, 42, r.VUID)
	case <-time.After(time.Second):
		t.Fatal("subscriber 2 did not receive result")
	}
}

func TestBroadcasterDropsOnFullSubscriberChannel(t *testing.T) {
	b := newBroadcaster(nil)
	ch := b.subscribe()

	for i := 0; i < streamSubscriberBuffer+10; i++ {
		b.WriteResult(lib.Result{VUID: int64(i)})
	}
	assert.Len(t, ch, streamSubscriberBuffer)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := newBroadcaster(nil)
	ch := b.subscribe()
	b.unsubscribe(ch)

	_, ok := <-ch
	assert.False(t, ok)
}

func TestUnsubscribeTwiceIsSafe(t *testing.T) {
	b := newBroadcaster(nil)
	ch := b.subscribe()
	b.unsubscribe(ch)
	assert.NotPanics(t, func() { b.unsubscribe(ch) })
}
