package vu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/protocol"
)

type scriptedAdapter struct {
	outcomes []protocol.Output
	calls    int
}

func (a *scriptedAdapter) Execute(ctx context.Context, in protocol.Input) (protocol.Output, error) {
	out := a.outcomes[a.calls]
	a.calls++
	return out, nil
}

func outcome(success bool, statusCode int, kind lib.ErrorKind) protocol.Output {
	return protocol.Output{Result: lib.Result{Success: success, StatusCode: statusCode, ErrorKind: kind}}
}

func TestDispatchWithRetryStopsOnFirstSuccess(t *testing.T) {
	a := &scriptedAdapter{outcomes: []protocol.Output{outcome(true, 200, "")}}
	attempts, err := dispatchWithRetry(context.Background(), a, protocol.Input{}, &config.RetryPolicy{MaxAttempts: 3})
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
	assert.Equal(t, 1, attempts[0].Result.Attempt)
}

func TestDispatchWithRetryRetriesRetryableFailures(t *testing.T) {
	a := &scriptedAdapter{outcomes: []protocol.Output{
		outcome(false, 503, "protocol_error"),
		outcome(false, 503, "protocol_error"),
		outcome(true, 200, ""),
	}}
	policy := &config.RetryPolicy{MaxAttempts: 3, Delay: config.Duration{Duration: time.Millisecond}}
	attempts, err := dispatchWithRetry(context.Background(), a, protocol.Input{}, policy)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.True(t, attempts[2].Result.Success)
	assert.Equal(t, []int{1, 2, 3}, []int{attempts[0].Result.Attempt, attempts[1].Result.Attempt, attempts[2].Result.Attempt})
}

func TestDispatchWithRetryDoesNotRetryClientErrors(t *testing.T) {
	a := &scriptedAdapter{outcomes: []protocol.Output{outcome(false, 404, "protocol_error")}}
	policy := &config.RetryPolicy{MaxAttempts: 3, Delay: config.Duration{Duration: time.Millisecond}}
	attempts, err := dispatchWithRetry(context.Background(), a, protocol.Input{}, policy)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestDispatchWithRetryDoesNotRetryCheckFailures(t *testing.T) {
	a := &scriptedAdapter{outcomes: []protocol.Output{outcome(false, 200, "check_failed")}}
	policy := &config.RetryPolicy{MaxAttempts: 3}
	attempts, err := dispatchWithRetry(context.Background(), a, protocol.Input{}, policy)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestBackoffDelayStrategies(t *testing.T) {
	base := 10 * time.Millisecond
	linear := &config.RetryPolicy{Backoff: "linear", Delay: config.Duration{Duration: base}}
	assert.Equal(t, 2*base, backoffDelay(linear, 2))
	assert.Equal(t, 3*base, backoffDelay(linear, 3))

	exp := &config.RetryPolicy{Backoff: "exponential", Delay: config.Duration{Duration: base}}
	assert.Equal(t, base, backoffDelay(exp, 1))
	assert.Equal(t, 2*base, backoffDelay(exp, 2))
	assert.Equal(t, 4*base, backoffDelay(exp, 3))

	fixed := &config.RetryPolicy{Delay: config.Duration{Duration: base}}
	assert.Equal(t, base, backoffDelay(fixed, 1))
	assert.Equal(t, base, backoffDelay(fixed, 5))
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, retryable(lib.Result{ErrorKind: "timeout"}))
	assert.True(t, retryable(lib.Result{ErrorKind: "protocol_error", StatusCode: 500}))
	assert.True(t, retryable(lib.Result{ErrorKind: "protocol_error", StatusCode: 0}))
	assert.False(t, retryable(lib.Result{ErrorKind: "protocol_error", StatusCode: 404}))
	assert.False(t, retryable(lib.Result{ErrorKind: "check_failed"}))
}
