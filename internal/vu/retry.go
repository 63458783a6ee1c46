package vu

import (
	"context"
	"time"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/protocol"
)

// retryable classifies a failed result: network error, 5xx, and timeout are
// retryable; 4xx and check failures are not.
func retryable(r lib.Result) bool {
	switch string(r.ErrorKind) {
	case "timeout":
		return true
	case "protocol_error":
		return r.StatusCode == 0 || r.StatusCode >= 500
	default:
		return false
	}
}

// backoffDelay computes the delay before the next attempt given the
// policy's configured backoff strategy.
func backoffDelay(policy *config.RetryPolicy, attempt int) time.Duration {
	base := policy.Delay.Duration
	switch policy.Backoff {
	case "linear":
		return base * time.Duration(attempt)
	case "exponential":
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
		}
		return d
	default:
		return base
	}
}

// dispatchWithRetry executes step (already template-expanded), applying the
// step's retry policy. It returns every attempt's output in order — retries
// produce one result per attempt — and the final attempt's output drives
// scenario flow.
func dispatchWithRetry(ctx context.Context, adapter protocol.Adapter, in protocol.Input, policy *config.RetryPolicy) ([]protocol.Output, error) {
	maxAttempts := 1
	if policy != nil && policy.MaxAttempts > 0 {
		maxAttempts = policy.MaxAttempts
	}

	var attempts []protocol.Output
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := adapter.Execute(ctx, in)
		if err != nil {
			return attempts, err
		}
		out.Result.Attempt = attempt
		attempts = append(attempts, out)

		if out.Result.Success || !retryable(out.Result) || attempt == maxAttempts {
			break
		}
		if policy != nil {
			select {
			case <-time.After(backoffDelay(policy, attempt)):
			case <-ctx.Done():
				return attempts, nil
			}
		}
	}
	return attempts, nil
}
