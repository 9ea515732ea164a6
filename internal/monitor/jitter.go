package monitor

import (
	"math/rand/v2"
	"time"
)

// Jitter spreads d by ±frac so that many loops polling the same upstream do
// not fire in lockstep.
func Jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 || d <= 0 {
		return d
	}
	if frac > 1 {
		frac = 1
	}
	delta := (rand.Float64()*2 - 1) * frac * float64(d)
	out := d + time.Duration(delta)
	if out <= 0 {
		return time.Millisecond
	}
	return out
}
