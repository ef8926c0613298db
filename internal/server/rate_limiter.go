// Package server throttles inbound chat messages per connection with a token
// bucket.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter allows burst messages per interval. A non-positive burst
// disables limiting and returns nil.
func newRateLimiter(burst int, interval time.Duration) *rate.Limiter {
	if burst <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = time.Second
	}
	return rate.NewLimiter(rate.Every(interval/time.Duration(burst)), burst)
}
