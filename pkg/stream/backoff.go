package stream

import "time"

// Backoff returns the reconnect delay for a consecutive-failure counter.
// The first retry is immediate; from the second failure on the delay doubles
// from base until it hits cap. With the defaults (1s base, 16s cap) the
// schedule is 0, 1s, 2s, 4s, 8s, 16s, 16s, ...
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}
