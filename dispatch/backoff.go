package dispatch

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryBackoff returns a jittered exponential backoff generator scoped to a
// single dispatch call, used for retry-eligible FLOW_CONTROL/INVALID_ROUTE
// failures.
func retryBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0 // bounded by maxRetries, not elapsed wall time
	return b
}
