package button

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestButton_PressAndPoll(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(10_000))
	b := New(clock, 200*time.Millisecond)

	_, ok := b.Poll()
	assert.False(t, ok)

	assert.True(t, b.Trigger())
	ts, ok := b.Poll()
	assert.True(t, ok)
	assert.Equal(t, int64(10_000), ts)

	// consumed: a second poll sees nothing
	_, ok = b.Poll()
	assert.False(t, ok)
}

func TestButton_DebounceGuard(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(10_000))
	b := New(clock, 200*time.Millisecond)

	assert.True(t, b.Trigger())
	clock.Advance(50 * time.Millisecond)
	// bounce within the guard interval is rejected
	assert.False(t, b.Trigger())
	clock.Advance(100 * time.Millisecond)
	assert.False(t, b.Trigger())

	clock.Advance(50 * time.Millisecond)
	assert.True(t, b.Trigger())
}

func TestButton_GuardCountsFromAcceptedPress(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(10_000))
	b := New(clock, 200*time.Millisecond)

	assert.True(t, b.Trigger())
	clock.Advance(150 * time.Millisecond)
	assert.False(t, b.Trigger())
	// the rejected bounce must not extend the guard window
	clock.Advance(50 * time.Millisecond)
	assert.True(t, b.Trigger())
}

func TestButton_TriggerWithoutPollKeepsLatest(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(10_000))
	b := New(clock, 100*time.Millisecond)

	assert.True(t, b.Trigger())
	clock.Advance(time.Second)
	assert.True(t, b.Trigger())

	ts, ok := b.Poll()
	assert.True(t, ok)
	assert.Equal(t, int64(11_000), ts)
	_, ok = b.Poll()
	assert.False(t, ok)
}

func TestButton_DefaultGuard(t *testing.T) {
	b := New(clockwork.NewFakeClock(), 0)
	assert.Equal(t, DefaultGuard, b.guard)
}
