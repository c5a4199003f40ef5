// Package backoff holds the reconnect wait policy.
package backoff

import "time"

const (
	base    = 1000 * time.Millisecond
	step    = 10 * time.Millisecond
	maxWait = 60 * time.Second
)

// Wait returns how long to sleep before reconnect attempt n:
// min(1000 + 10*n², 60000) milliseconds. Attempts below 1 count as 1.
func Wait(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Past this point n² alone exceeds the cap; avoids overflow for huge n.
	if attempt > 2450 {
		return maxWait
	}
	d := base + step*time.Duration(attempt*attempt)
	if d > maxWait {
		return maxWait
	}
	return d
}

// Due reports whether a timer-driven wake at now may start attempt, given
// the sleep began at since. Timers are never cancelled, so every wake is
// checked against the wall clock instead.
func Due(attempt int, since, now time.Time) bool {
	return now.Sub(since) >= Wait(attempt)
}
