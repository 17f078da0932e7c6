package orchestrator

import (
	"math"
	"math/rand"
	"time"
)

type RetryPolicy struct {
	MaxAttempts int

	MinBackoff time.Duration // default 2s
	MaxBackoff time.Duration // default 60s
	JitterFrac float64       // default 0.20
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		MinBackoff:  2 * time.Second,
		MaxBackoff:  60 * time.Second,
		JitterFrac:  0.20,
	}
}

func (r RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = d.MaxAttempts
	}
	if r.MinBackoff <= 0 {
		r.MinBackoff = d.MinBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = d.MaxBackoff
	}
	if r.MaxBackoff < r.MinBackoff {
		r.MaxBackoff = r.MinBackoff
	}
	if r.JitterFrac < 0 {
		r.JitterFrac = 0
	}
	return r
}

// ShouldRetry reports whether a job that failed on attempt (zero based) gets
// another try.
func (r RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt+1 < r.normalized().MaxAttempts
}

// Backoff is the delay before retry number attempt (one based):
// min*2^(attempt-1), capped at max, then jittered by JitterFrac.
func (r RetryPolicy) Backoff(attempt int) time.Duration {
	return computeBackoff(r.normalized(), attempt, rand.Float64)
}

func computeBackoff(r RetryPolicy, attempt int, random func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(r.MinBackoff) * math.Pow(2, float64(attempt-1)))
	if d > r.MaxBackoff || d <= 0 {
		d = r.MaxBackoff
	}
	delta := float64(d) * r.JitterFrac
	low := float64(d) - delta
	high := float64(d) + delta
	if low < 0 {
		low = 0
	}
	return time.Duration(low + random()*(high-low))
}
