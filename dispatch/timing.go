package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// startTimer begins timing an observation against o, returning a func that
// records the elapsed duration when called (typically via defer).
func startTimer(o prometheus.Observer) func() {
	start := time.Now()
	return func() {
		o.Observe(time.Since(start).Seconds())
	}
}
