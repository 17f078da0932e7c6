package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusCoder is implemented by client errors that carry a response status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryableError reports whether err looks like a transient transport
// failure: deadline, timeout, or a retryable status code.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

// RetryAfterDuration honors a Retry-After header (seconds or HTTP date),
// falling back to fallback and capping at max when max > 0.
func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	wait := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			} else if at, err := http.ParseTime(ra); err == nil {
				if d := time.Until(at); d > 0 {
					wait = d
				}
			}
		}
	}
	if max > 0 && wait > max {
		wait = max
	}
	return wait
}

// Jitter spreads base by ±frac.
func Jitter(base time.Duration, frac float64) time.Duration {
	if base <= 0 {
		return 0
	}
	if frac <= 0 {
		return base
	}
	delta := float64(base) * frac
	v := float64(base) - delta + rand.Float64()*2*delta
	if v < 0 {
		v = 0
	}
	return time.Duration(v)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
