package ratelimit

import (
	"context"
	"time"
)

// Result is the verdict for one counted request.
type Result struct {
	Allowed    bool
	Remaining  int           // Requests left in the current window.
	Reset      time.Time     // Start of the next window.
	RetryAfter time.Duration // Wait until Reset; zero when allowed.
}

// Limiter counts requests per key in fixed one-second windows.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

func rejected(now, reset time.Time) Result {
	return Result{Reset: reset, RetryAfter: reset.Sub(now)}
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for the
// Retry-After header. It never returns less than 1.
func (r Result) RetryAfterSeconds() int {
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
