package button

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultGuard is the debounce guard interval between accepted presses.
const DefaultGuard = 200 * time.Millisecond

// Button is the single-producer/single-consumer handoff between the
// input source (hardware interrupt, stdin reader, ...) and the control
// loop. The producer calls Trigger, the loop calls Poll; the only shared
// state is an atomic flag and the timestamp of the last accepted press,
// so neither side ever blocks or allocates.
type Button struct {
	clock        clockwork.Clock
	guard        time.Duration
	pressed      atomic.Bool
	lastAccepted atomic.Int64
}

func New(clock clockwork.Clock, guard time.Duration) *Button {
	if guard <= 0 {
		guard = DefaultGuard
	}
	return &Button{clock: clock, guard: guard}
}

// Trigger registers a press from the producer side. Presses within the
// guard interval of the previous accepted one are rejected, using only
// the producer-local timestamp.
func (b *Button) Trigger() bool {
	now := b.clock.Now().UnixMilli()
	last := b.lastAccepted.Load()
	if last != 0 && now-last < b.guard.Milliseconds() {
		return false
	}
	b.lastAccepted.Store(now)
	b.pressed.Store(true)
	return true
}

// Poll consumes a pending press, returning the accept timestamp in
// milliseconds.
func (b *Button) Poll() (int64, bool) {
	if !b.pressed.CompareAndSwap(true, false) {
		return 0, false
	}
	return b.lastAccepted.Load(), true
}
