package netclient

import (
	"context"
	"math"
	"time"
)

// Backoff returns the wait before retry n, where n starts at 1.
type Backoff func(n int) time.Duration

// LinearBackoff waits n*base before retry n.
func LinearBackoff(base time.Duration) Backoff {
	return func(n int) time.Duration {
		if n < 1 {
			n = 1
		}
		return time.Duration(n) * base
	}
}

// ExponentialBackoff waits base*2^(n-1), capped at limit. A limit <= 0 caps at
// the largest Duration.
func ExponentialBackoff(base, limit time.Duration) Backoff {
	if limit <= 0 {
		limit = math.MaxInt64
	}
	return func(n int) time.Duration {
		d := base
		for i := 1; i < n; i++ {
			if d > limit/2 {
				return limit
			}
			d *= 2
		}
		if d > limit {
			return limit
		}
		return d
	}
}

// ScheduleBackoff follows steps and repeats the last one once they run out.
func ScheduleBackoff(steps []time.Duration) Backoff {
	steps = append([]time.Duration(nil), steps...)
	return func(n int) time.Duration {
		if len(steps) == 0 {
			return 0
		}
		if n < 1 {
			n = 1
		}
		if n > len(steps) {
			return steps[len(steps)-1]
		}
		return steps[n-1]
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
