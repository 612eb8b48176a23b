package domain

import "github.com/jonboulle/clockwork"

// clock supplies the timestamps stamped onto firing alert intents. It is
// package-level so tests can pin a known instant with SetClock.
var clock = clockwork.NewRealClock()

// SetClock replaces the alert time source. A nil clock restores real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
