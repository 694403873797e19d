package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/azckamp/lanetimer/log"
	"github.com/azckamp/lanetimer/pkg/model"
	"github.com/azckamp/lanetimer/pkg/protocol"
	"github.com/azckamp/lanetimer/pkg/timing/clocksync"
	"github.com/azckamp/lanetimer/pkg/timing/ledger"
	"github.com/azckamp/lanetimer/pkg/timing/stopwatch"
	"github.com/azckamp/lanetimer/pkg/utils"
)

type Role string

const (
	// RoleLane devices produce splits for their lane.
	RoleLane Role = "lane"
	// RoleStarter devices produce start commands instead of splits.
	RoleStarter Role = "starter"
)

var (
	// ErrNotStarter is returned when a non-starter device tries to send
	// a start command.
	ErrNotStarter = errors.New("device is not in starter role")
	// ErrStartRefused is returned when a start command is blocked by the
	// start lock or the running state.
	ErrStartRefused = errors.New("start command refused")
)

// Listener receives core notifications. Callbacks fire synchronously
// within the control loop's processing step and must not call back into
// the core.
type Listener interface {
	OnStateChanged(state stopwatch.State)
	OnLapAdded(rec ledger.SplitRecord)
	OnConnectionChanged(connected bool)
	OnTimeSync(synced bool)
	OnEventHeatChanged(event, heat string)
	OnPeerSplit(lane int, text string)
	OnClearRequested()
}

// NopListener implements Listener with no-ops, meant for embedding.
type NopListener struct{}

func (NopListener) OnStateChanged(stopwatch.State)    {}
func (NopListener) OnLapAdded(ledger.SplitRecord)     {}
func (NopListener) OnConnectionChanged(bool)          {}
func (NopListener) OnTimeSync(bool)                   {}
func (NopListener) OnEventHeatChanged(string, string) {}
func (NopListener) OnPeerSplit(int, string)           {}
func (NopListener) OnClearRequested()                 {}

// Sender pushes a text frame towards the server. Implementations drop
// frames silently while disconnected.
type Sender interface {
	Send(text string) error
}

// Core routes decoded protocol messages to the clock sync estimator, the
// stopwatch and the split ledger, and notifies listeners. It is not safe
// for concurrent use: all methods must be called from the control loop.
type Core struct {
	clock     clockwork.Clock
	sender    Sender
	listeners []Listener
	estimator *clocksync.Estimator
	watch     *stopwatch.Stopwatch
	splits    *ledger.Ledger
	peers     *ledger.PeerTable
	lane      int
	role      Role
	event     string
	heat      string
	connected bool
	lastPing  time.Time
}

type Option func(*Core)

func WithSender(s Sender) Option {
	return func(c *Core) { c.sender = s }
}

func WithListener(l Listener) Option {
	return func(c *Core) { c.listeners = append(c.listeners, l) }
}

func WithLane(lane int) Option {
	return func(c *Core) { c.lane = lane }
}

func WithRole(role Role) Option {
	return func(c *Core) { c.role = role }
}

func WithLedgerCapacity(capacity int) Option {
	return func(c *Core) { c.splits = ledger.New(capacity) }
}

func New(clock clockwork.Clock, opts ...Option) *Core {
	ret := &Core{
		clock:     clock,
		estimator: clocksync.NewEstimator(),
		splits:    ledger.New(ledger.DefaultCapacity),
		peers:     ledger.NewPeerTable(),
		role:      RoleLane,
	}
	ret.watch = stopwatch.New(clock, stopwatch.WithSyncedTime(ret.syncedTime))
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (c *Core) nowMs() int64 {
	return c.clock.Now().UnixMilli()
}

func (c *Core) syncedTime() (int64, bool) {
	if !c.estimator.Synchronized() {
		return 0, false
	}
	return c.estimator.SyncedTime(c.nowMs()), true
}

// SyncedNow returns the current time on the synchronized timeline, or
// the local clock while unsynchronized.
func (c *Core) SyncedNow() int64 {
	return c.estimator.SyncedTime(c.nowMs())
}

func (c *Core) send(text string) {
	if c.sender == nil {
		return
	}
	if err := c.sender.Send(text); err != nil {
		log.Warn("send failed", log.ErrorField(err))
	}
}

// OnConnected must be called when the transport (re)establishes the
// connection. The estimator is reset so no stale offset leaks into the
// new epoch, and the ping burst restarts.
func (c *Core) OnConnected() {
	c.connected = true
	c.estimator.Reset()
	c.lastPing = time.Time{}
	log.Info("connected, clock sync restarted")
	for _, l := range c.listeners {
		l.OnConnectionChanged(true)
		l.OnTimeSync(false)
	}
}

// OnDisconnected must be called when the transport loses the connection.
func (c *Core) OnDisconnected() {
	c.connected = false
	log.Info("disconnected")
	for _, l := range c.listeners {
		l.OnConnectionChanged(false)
	}
}

// Tick drives the ping cadence; call it once per control loop pass.
func (c *Core) Tick() {
	if !c.connected {
		return
	}
	now := c.clock.Now()
	if !c.lastPing.IsZero() && now.Sub(c.lastPing) < c.estimator.PingInterval() {
		return
	}
	c.lastPing = now
	token := c.estimator.RecordPingSent(c.nowMs())
	c.send(protocol.EncodePing(token))
}

// OnTextFrame processes one raw frame from the transport. Malformed
// frames are logged and dropped without side effects.
//
//nolint:cyclop // one branch per message type
func (c *Core) OnTextFrame(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Warn("dropping bad frame", log.ErrorField(err))
		return
	}
	switch m := msg.(type) {
	case *model.Ping:
		// answer as clock authority
		c.send(protocol.EncodePong(m.Time, c.SyncedNow()))
	case *model.Pong:
		c.handlePong(m)
	case *model.Start:
		c.handleStart(m)
	case *model.Reset:
		c.Reset()
	case *model.Split:
		c.handlePeerSplit(m)
	case *model.EventHeat:
		c.event, c.heat = m.Event, m.Heat
		log.Debug("event/heat updated",
			log.String("event", c.event), log.String("heat", c.heat))
		for _, l := range c.listeners {
			l.OnEventHeatChanged(c.event, c.heat)
		}
	case *model.Clear:
		c.handleClear()
	case nil:
		log.Debug("ignoring unknown frame")
	}
}

func (c *Core) handlePong(m *model.Pong) {
	wasSynced := c.estimator.Synchronized()
	c.estimator.RecordPong(m.ClientPingTime, c.nowMs(), m.ServerTime)
	rtt, _ := c.estimator.RoundTrip()
	log.Debug("pong",
		log.Int64("rtt", rtt),
		log.Int64("offset", c.estimator.Offset()),
		log.Int("samples", c.estimator.SampleCount()))
	if !wasSynced && c.estimator.Synchronized() {
		for _, l := range c.listeners {
			l.OnTimeSync(true)
		}
	}
}

func (c *Core) handleStart(m *model.Start) {
	prev := c.watch.State()
	if m.Timestamp != nil {
		c.watch.RemoteStart(*m.Timestamp)
	} else {
		if err := c.watch.LocalStart(); err != nil {
			log.Debug("start refused", log.ErrorField(err))
		}
		// a start message always engages the lock, even when refused
		c.watch.Lock()
	}
	if prev != c.watch.State() {
		c.splits.Clear()
		for _, l := range c.listeners {
			l.OnStateChanged(c.watch.State())
		}
	}
}

// Reset clears the session, the ledger, the peer table and the start
// lock, from any state.
func (c *Core) Reset() {
	c.watch.Reset()
	c.splits.Clear()
	c.peers.Clear()
	log.Info("reset")
	for _, l := range c.listeners {
		l.OnStateChanged(c.watch.State())
	}
}

func (c *Core) handlePeerSplit(m *model.Split) {
	if !c.peers.Update(m.Lane, m.Timestamp, m.Time) {
		log.Debug("split for lane out of range", log.Int("lane", m.Lane))
		return
	}
	for _, l := range c.listeners {
		l.OnPeerSplit(m.Lane, m.Time)
	}
}

func (c *Core) handleClear() {
	c.peers.Clear()
	c.splits.Clear()
	c.event, c.heat = "", ""
	for _, l := range c.listeners {
		l.OnClearRequested()
	}
}

// Start starts the stopwatch from a local command.
func (c *Core) Start() error {
	if err := c.watch.LocalStart(); err != nil {
		return err
	}
	c.splits.Clear()
	for _, l := range c.listeners {
		l.OnStateChanged(c.watch.State())
	}
	return nil
}

// Stop freezes the stopwatch from a local command.
func (c *Core) Stop() error {
	if err := c.watch.Stop(); err != nil {
		return err
	}
	for _, l := range c.listeners {
		l.OnStateChanged(c.watch.State())
	}
	return nil
}

// AppendSplit records a split at the current elapsed time and emits the
// split frame. The frame carries the moment the split was observed on
// the synchronized timeline, not a value derived from the elapsed-time
// model.
func (c *Core) AppendSplit() (ledger.SplitRecord, error) {
	if c.watch.State() != stopwatch.Running {
		return ledger.SplitRecord{}, stopwatch.ErrNotRunning
	}
	observed := c.SyncedNow()
	cumulative := c.watch.Elapsed()
	rec, err := c.splits.Append(cumulative, observed)
	if err != nil {
		return ledger.SplitRecord{}, fmt.Errorf("append split: %w", err)
	}
	c.send(protocol.EncodeSplit(c.lane, observed, utils.FormatTime(cumulative)))
	for _, l := range c.listeners {
		l.OnLapAdded(rec)
	}
	return rec, nil
}

// SendStart emits a start command. Only valid for starter devices and
// only while no start is pending; refused attempts are never queued.
func (c *Core) SendStart() error {
	if c.role != RoleStarter {
		return ErrNotStarter
	}
	if c.watch.StartLocked() || c.watch.State() == stopwatch.Running {
		log.Warn("start command refused",
			log.Bool("locked", c.watch.StartLocked()),
			log.String("state", c.watch.State().String()))
		return ErrStartRefused
	}
	c.send(protocol.EncodeStart(c.event, c.heat, c.SyncedNow()))
	return nil
}

// HandlePress maps a debounced button press onto the role's action.
func (c *Core) HandlePress() {
	switch c.role {
	case RoleStarter:
		if err := c.SendStart(); err != nil {
			log.Warn("press ignored", log.ErrorField(err))
		}
	case RoleLane:
		if _, err := c.AppendSplit(); err != nil {
			log.Warn("press ignored", log.ErrorField(err))
		}
	}
}

func (c *Core) State() stopwatch.State { return c.watch.State() }

func (c *Core) Elapsed() int64 { return c.watch.Elapsed() }

func (c *Core) Connected() bool { return c.connected }

func (c *Core) EventHeat() (event, heat string) { return c.event, c.heat }

func (c *Core) Stopwatch() *stopwatch.Stopwatch { return c.watch }

func (c *Core) ClockSync() *clocksync.Estimator { return c.estimator }

func (c *Core) Splits() *ledger.Ledger { return c.splits }

func (c *Core) Peers() *ledger.PeerTable { return c.peers }
