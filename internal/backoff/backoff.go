// Package backoff computes retry delays as a pure function so callers can
// schedule re-dispatch without holding timers themselves.
package backoff

import "time"

// Delay returns the exponential backoff delay for the given attempt
// (1-based): base on the first attempt, doubling per attempt, capped at max.
// Attempts below 1 are treated as the first attempt.
func Delay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	// Shift overflows past ~63 doublings; clamp early.
	if attempt > 32 {
		return max
	}

	d := base << uint(attempt-1)
	if max > 0 && d > max {
		return max
	}
	return d
}
