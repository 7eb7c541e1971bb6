package domain

import "github.com/jonboulle/clockwork"

// clock stamps ProcessedAt on replies.
var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock replaces the reply clock; nil restores wall time. It must not be
// called while Resolve is running.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clock = c
}
