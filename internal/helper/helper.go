package helper

import (
	"math/rand/v2"
	"time"
)

// Jitter returns the interval shifted by a random offset in [-frac, +frac].
//
// Background loops re-jitter on every cycle so that several bot instances
// polling the same store drift apart instead of herding.
func Jitter(interval time.Duration, frac float64) time.Duration {
	if interval <= 0 || frac <= 0 {
		return interval
	}
	offset := (rand.Float64()*2 - 1) * frac * float64(interval)
	return interval + time.Duration(offset)
}
