package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azckamp/lanetimer/pkg/model"
	"github.com/azckamp/lanetimer/pkg/protocol"
	"github.com/azckamp/lanetimer/pkg/timing/ledger"
	"github.com/azckamp/lanetimer/pkg/timing/stopwatch"
)

type fakeSender struct {
	frames []string
}

func (f *fakeSender) Send(text string) error {
	f.frames = append(f.frames, text)
	return nil
}

func (f *fakeSender) lastDecoded(t *testing.T) any {
	t.Helper()
	require.NotEmpty(t, f.frames)
	msg, err := protocol.Decode([]byte(f.frames[len(f.frames)-1]))
	require.NoError(t, err)
	return msg
}

type recorder struct {
	NopListener
	states     []stopwatch.State
	laps       []ledger.SplitRecord
	conns      []bool
	syncs      []bool
	eventHeats [][2]string
	peerSplits []string
	clears     int
}

func (r *recorder) OnStateChanged(s stopwatch.State)  { r.states = append(r.states, s) }
func (r *recorder) OnLapAdded(rec ledger.SplitRecord) { r.laps = append(r.laps, rec) }
func (r *recorder) OnConnectionChanged(c bool)        { r.conns = append(r.conns, c) }
func (r *recorder) OnTimeSync(s bool)                 { r.syncs = append(r.syncs, s) }
func (r *recorder) OnEventHeatChanged(e, h string) {
	r.eventHeats = append(r.eventHeats, [2]string{e, h})
}
func (r *recorder) OnPeerSplit(lane int, text string) {
	r.peerSplits = append(r.peerSplits, fmt.Sprintf("%d:%s", lane, text))
}
func (r *recorder) OnClearRequested() { r.clears++ }

type fixture struct {
	clock  *clockwork.FakeClock
	sender *fakeSender
	rec    *recorder
	core   *Core
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		clock:  clockwork.NewFakeClockAt(time.UnixMilli(100_000)),
		sender: &fakeSender{},
		rec:    &recorder{},
	}
	all := append([]Option{
		WithSender(f.sender),
		WithListener(f.rec),
		WithLane(9),
	}, opts...)
	f.core = New(f.clock, all...)
	return f
}

// feeds a pong so that the synchronized clock reads serverNow at the
// current local instant (zero round trip)
func (f *fixture) syncTo(t *testing.T, serverNow int64) {
	t.Helper()
	local := f.clock.Now().UnixMilli()
	f.core.OnTextFrame([]byte(fmt.Sprintf(
		`{"type":"pong","client_ping_time":%d,"server_time":%d}`, local, serverNow)))
	require.True(t, f.core.ClockSync().Synchronized())
}

func TestCore_AnswersPingAsClockAuthority(t *testing.T) {
	f := newFixture()
	f.core.OnTextFrame([]byte(`{"type":"ping","time":1234}`))

	pong, ok := f.sender.lastDecoded(t).(*model.Pong)
	require.True(t, ok)
	assert.Equal(t, int64(1234), pong.ClientPingTime)
	// unsynced: answers with the local clock
	assert.Equal(t, int64(100_000), pong.ServerTime)

	f.syncTo(t, 500_000)
	f.core.OnTextFrame([]byte(`{"type":"ping","time":7}`))
	pong, ok = f.sender.lastDecoded(t).(*model.Pong)
	require.True(t, ok)
	assert.Equal(t, int64(500_000), pong.ServerTime)
}

func TestCore_PongEstablishesSync(t *testing.T) {
	f := newFixture()

	f.core.OnTextFrame([]byte(`{"type":"pong","client_ping_time":99950,"server_time":400000}`))

	est := f.core.ClockSync()
	assert.True(t, est.Synchronized())
	rtt, _ := est.RoundTrip()
	assert.Equal(t, int64(50), rtt)
	// sync notification fires exactly once
	assert.Equal(t, []bool{true}, f.rec.syncs)

	f.core.OnTextFrame([]byte(`{"type":"pong","client_ping_time":99960,"server_time":400000}`))
	assert.Equal(t, []bool{true}, f.rec.syncs)
}

func TestCore_PingCadence(t *testing.T) {
	f := newFixture()
	f.core.Tick()
	// not connected: nothing goes out
	assert.Empty(t, f.sender.frames)

	f.core.OnConnected()
	f.core.Tick()
	require.Len(t, f.sender.frames, 1)
	ping, ok := f.sender.lastDecoded(t).(*model.Ping)
	require.True(t, ok)
	assert.Equal(t, int64(100_000), ping.Time)

	// burst cadence: no second ping before 500ms passed
	f.clock.Advance(200 * time.Millisecond)
	f.core.Tick()
	assert.Len(t, f.sender.frames, 1)
	f.clock.Advance(300 * time.Millisecond)
	f.core.Tick()
	assert.Len(t, f.sender.frames, 2)
}

func TestCore_ReconnectRestartsEpoch(t *testing.T) {
	f := newFixture()
	f.core.OnConnected()
	f.syncTo(t, 500_000)

	f.core.OnDisconnected()
	assert.Equal(t, []bool{true, false}, f.rec.conns)

	f.core.OnConnected()
	assert.False(t, f.core.ClockSync().Synchronized())
	assert.Equal(t, int64(0), f.core.ClockSync().Offset())
	// listeners saw the sync state drop with the new epoch
	assert.Equal(t, []bool{false, true, false}, f.rec.syncs)
}

func TestCore_RemoteStart(t *testing.T) {
	f := newFixture()
	f.core.OnTextFrame([]byte(`{"type":"start","timestamp":10000}`))

	assert.Equal(t, stopwatch.Running, f.core.State())
	assert.True(t, f.core.Stopwatch().StartLocked())
	assert.Equal(t, []stopwatch.State{stopwatch.Running}, f.rec.states)
}

func TestCore_SecondStartIsNoOp(t *testing.T) {
	f := newFixture()
	f.core.OnTextFrame([]byte(`{"type":"start","timestamp":10000}`))
	localEpoch := f.core.Stopwatch().LocalStartEpoch()
	syncEpoch, _ := f.core.Stopwatch().SyncStartEpoch()

	f.clock.Advance(time.Second)
	f.core.OnTextFrame([]byte(`{"type":"start","timestamp":20000}`))

	assert.Equal(t, localEpoch, f.core.Stopwatch().LocalStartEpoch())
	gotSync, _ := f.core.Stopwatch().SyncStartEpoch()
	assert.Equal(t, syncEpoch, gotSync)
	// no duplicate state notification either
	assert.Equal(t, []stopwatch.State{stopwatch.Running}, f.rec.states)
}

func TestCore_StartWithoutTimestampLocks(t *testing.T) {
	f := newFixture()
	f.core.OnTextFrame([]byte(`{"type":"start"}`))

	assert.Equal(t, stopwatch.Running, f.core.State())
	assert.True(t, f.core.Stopwatch().StartLocked())
}

func TestCore_RemoteStartThenSplit(t *testing.T) {
	f := newFixture()
	f.core.OnConnected()
	f.syncTo(t, 10_000)
	f.core.OnTextFrame([]byte(`{"type":"start","timestamp":10000}`))

	f.clock.Advance(500 * time.Millisecond)
	rec, err := f.core.AppendSplit()
	require.NoError(t, err)

	assert.Equal(t, 1, rec.SequenceNumber)
	assert.Equal(t, int64(500), rec.CumulativeMs)
	assert.Equal(t, int64(500), rec.LapDurationMs)
	assert.Equal(t, int64(10_500), rec.Timestamp)

	split, ok := f.sender.lastDecoded(t).(*model.Split)
	require.True(t, ok)
	assert.Equal(t, 9, split.Lane)
	// the frame carries the observed instant, not a derived value
	assert.Equal(t, int64(10_500), split.Timestamp)
	assert.Equal(t, "00:00:50", split.Time)
	assert.Equal(t, []ledger.SplitRecord{rec}, f.rec.laps)
}

func TestCore_ReplayedStartAfterStopIsNoOp(t *testing.T) {
	f := newFixture()
	f.core.OnConnected()
	f.syncTo(t, 10_000)
	f.core.OnTextFrame([]byte(`{"type":"start","timestamp":10000}`))
	f.clock.Advance(time.Second)
	_, err := f.core.AppendSplit()
	require.NoError(t, err)
	require.NoError(t, f.core.Stop())

	// a late or replayed start frame from the old session
	f.core.OnTextFrame([]byte(`{"type":"start","timestamp":20000}`))

	assert.Equal(t, stopwatch.Stopped, f.core.State())
	assert.True(t, f.core.Stopwatch().StartLocked())
	// the recorded splits survive the replayed frame
	assert.Equal(t, 1, f.core.Splits().Len())
	assert.Equal(t,
		[]stopwatch.State{stopwatch.Running, stopwatch.Stopped}, f.rec.states)
}

func TestCore_SplitWhileStoppedRefused(t *testing.T) {
	f := newFixture()
	_, err := f.core.AppendSplit()
	assert.ErrorIs(t, err, stopwatch.ErrNotRunning)
	assert.Empty(t, f.sender.frames)
}

func TestCore_LedgerFull(t *testing.T) {
	f := newFixture(WithLedgerCapacity(1))
	f.core.OnTextFrame([]byte(`{"type":"start"}`))

	f.clock.Advance(time.Second)
	_, err := f.core.AppendSplit()
	require.NoError(t, err)
	framesBefore := len(f.sender.frames)

	f.clock.Advance(time.Second)
	_, err = f.core.AppendSplit()
	assert.ErrorIs(t, err, ledger.ErrLedgerFull)
	// stopwatch keeps running, nothing went out
	assert.Equal(t, stopwatch.Running, f.core.State())
	assert.Equal(t, framesBefore, len(f.sender.frames))
	assert.Equal(t, 1, f.core.Splits().Len())
}

func TestCore_ResetRoundTrip(t *testing.T) {
	f := newFixture()
	f.core.OnTextFrame([]byte(`{"type":"start","timestamp":10000}`))
	f.clock.Advance(time.Second)
	_, err := f.core.AppendSplit()
	require.NoError(t, err)
	f.core.OnTextFrame([]byte(`{"type":"split","lane":3,"timestamp":500,"time":"x"}`))

	f.core.OnTextFrame([]byte(`{"type":"reset"}`))

	assert.Equal(t, stopwatch.Stopped, f.core.State())
	assert.False(t, f.core.Stopwatch().StartLocked())
	assert.Equal(t, 0, f.core.Splits().Len())
	assert.Empty(t, f.core.Peers().Snapshot())
	assert.Equal(t, int64(0), f.core.Elapsed())
}

func TestCore_PeerSplitRouting(t *testing.T) {
	f := newFixture()
	f.core.OnTextFrame([]byte(`{"type":"split","lane":3,"timestamp":500,"time":"00:01:00"}`))

	entry, ok := f.core.Peers().Get(3)
	require.True(t, ok)
	assert.Equal(t, "00:01:00", entry.Time)
	assert.Equal(t, []string{"3:00:01:00"}, f.rec.peerSplits)

	// lane outside the table: ignored, no notification
	f.core.OnTextFrame([]byte(`{"type":"split","lane":10,"timestamp":500}`))
	assert.Len(t, f.rec.peerSplits, 1)
}

func TestCore_EventHeat(t *testing.T) {
	f := newFixture()
	f.core.OnTextFrame([]byte(`{"type":"event-heat","event":"100m Free","heat":"2"}`))

	event, heat := f.core.EventHeat()
	assert.Equal(t, "100m Free", event)
	assert.Equal(t, "2", heat)

	f.core.OnTextFrame([]byte(`{"type":"select-event","event":"200m Back","heat":"1"}`))
	event, heat = f.core.EventHeat()
	assert.Equal(t, "200m Back", event)
	assert.Equal(t, "1", heat)
	assert.Len(t, f.rec.eventHeats, 2)
}

func TestCore_ClearKeepsStopwatchState(t *testing.T) {
	f := newFixture()
	f.core.OnTextFrame([]byte(`{"type":"event-heat","event":"e","heat":"h"}`))
	f.core.OnTextFrame([]byte(`{"type":"start","timestamp":10000}`))
	f.core.OnTextFrame([]byte(`{"type":"split","lane":2,"timestamp":500}`))

	f.core.OnTextFrame([]byte(`{"type":"clear"}`))

	assert.Equal(t, stopwatch.Running, f.core.State())
	assert.True(t, f.core.Stopwatch().StartLocked())
	assert.Empty(t, f.core.Peers().Snapshot())
	assert.Equal(t, 0, f.core.Splits().Len())
	event, heat := f.core.EventHeat()
	assert.Empty(t, event)
	assert.Empty(t, heat)
	assert.Equal(t, 1, f.rec.clears)
}

func TestCore_MalformedFrameHasNoSideEffects(t *testing.T) {
	f := newFixture()
	frames := [][]byte{
		[]byte(`{"type":"start",`),
		[]byte(`{"type":"split","lane":3}`),
		[]byte(`{"no":"type"}`),
		[]byte(`{"type":"vendor-extension","x":1}`),
	}
	for _, frame := range frames {
		f.core.OnTextFrame(frame)
	}

	assert.Equal(t, stopwatch.Stopped, f.core.State())
	assert.Empty(t, f.sender.frames)
	assert.Empty(t, f.rec.states)
	assert.Empty(t, f.rec.peerSplits)
}

func TestCore_StarterRole(t *testing.T) {
	f := newFixture(WithRole(RoleStarter))
	f.core.OnTextFrame([]byte(`{"type":"event-heat","event":"100m Free","heat":"2"}`))

	require.NoError(t, f.core.SendStart())
	start, ok := f.sender.lastDecoded(t).(*model.Start)
	require.True(t, ok)
	assert.Equal(t, "100m Free", start.Event)
	assert.Equal(t, "2", start.Heat)
	require.NotNil(t, start.Timestamp)

	// the echoed start engages the lock, further attempts are refused
	f.core.OnTextFrame([]byte(`{"type":"start","timestamp":10000}`))
	assert.ErrorIs(t, f.core.SendStart(), ErrStartRefused)

	// reset releases the lock again
	f.core.OnTextFrame([]byte(`{"type":"reset"}`))
	assert.NoError(t, f.core.SendStart())
}

func TestCore_SendStartRequiresStarterRole(t *testing.T) {
	f := newFixture(WithRole(RoleLane))
	assert.ErrorIs(t, f.core.SendStart(), ErrNotStarter)
}

func TestCore_HandlePressByRole(t *testing.T) {
	t.Run("lane press appends split", func(t *testing.T) {
		f := newFixture(WithRole(RoleLane))
		f.core.OnTextFrame([]byte(`{"type":"start"}`))
		f.clock.Advance(time.Second)

		f.core.HandlePress()

		assert.Equal(t, 1, f.core.Splits().Len())
	})
	t.Run("starter press sends start", func(t *testing.T) {
		f := newFixture(WithRole(RoleStarter))
		f.core.HandlePress()

		_, ok := f.sender.lastDecoded(t).(*model.Start)
		assert.True(t, ok)
	})
	t.Run("lane press while stopped is ignored", func(t *testing.T) {
		f := newFixture(WithRole(RoleLane))
		f.core.HandlePress()

		assert.Empty(t, f.sender.frames)
	})
}

func TestCore_LocalStartStop(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.core.Start())
	assert.Equal(t, stopwatch.Running, f.core.State())

	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.core.Stop())
	assert.Equal(t, int64(2000), f.core.Elapsed())
	assert.Equal(t,
		[]stopwatch.State{stopwatch.Running, stopwatch.Stopped}, f.rec.states)

	// locked until a reset arrives
	assert.ErrorIs(t, f.core.Start(), stopwatch.ErrStartLocked)
}
