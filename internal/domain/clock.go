package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps readings and fills in missing sample times.
// Tests swap in a fake via SetClock for deterministic output.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time of the package clock.
func Now() time.Time {
	return clock.Now()
}
