package stopwatch

import (
	"errors"

	"github.com/jonboulle/clockwork"
)

type State int

const (
	Stopped State = iota
	Running
	// Paused is reserved for future use; no transition reaches it.
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Running:
		return "RUNNING"
	case Paused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrAlreadyRunning is returned for a start while RUNNING.
	ErrAlreadyRunning = errors.New("stopwatch already running")
	// ErrStartLocked is returned for a local start after a start was
	// accepted; only a reset clears the lock.
	ErrStartLocked = errors.New("start locked until reset")
	// ErrNotRunning is returned for a stop while STOPPED.
	ErrNotRunning = errors.New("stopwatch not running")
)

// SyncedTimeFunc returns the current synchronized time in milliseconds.
// ok is false while no clock sync is established.
type SyncedTimeFunc func() (ms int64, ok bool)

// Stopwatch is the STOPPED/RUNNING state machine. While RUNNING either
// the synchronized start epoch or the local one is authoritative for
// elapsed time; while STOPPED only the frozen duration is.
type Stopwatch struct {
	clock       clockwork.Clock
	syncedNow   SyncedTimeFunc
	state       State
	localStart  int64
	syncStart   *int64
	elapsedStop int64
	startLocked bool
}

type Option func(*Stopwatch)

// WithSyncedTime wires the synchronized clock source, usually the clock
// sync estimator.
func WithSyncedTime(fn SyncedTimeFunc) Option {
	return func(s *Stopwatch) {
		s.syncedNow = fn
	}
}

func New(clock clockwork.Clock, opts ...Option) *Stopwatch {
	ret := &Stopwatch{clock: clock}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (s *Stopwatch) nowMs() int64 {
	return s.clock.Now().UnixMilli()
}

func (s *Stopwatch) syncTime() (int64, bool) {
	if s.syncedNow == nil {
		return 0, false
	}
	return s.syncedNow()
}

// LocalStart starts the stopwatch from STOPPED. The split sequence is
// reset by the owning core, not here.
func (s *Stopwatch) LocalStart() error {
	if s.state == Running {
		return ErrAlreadyRunning
	}
	if s.startLocked {
		return ErrStartLocked
	}
	s.localStart = s.nowMs()
	s.syncStart = nil
	if syncMs, ok := s.syncTime(); ok {
		s.syncStart = &syncMs
	}
	s.elapsedStop = 0
	s.state = Running
	s.startLocked = true
	return nil
}

// RemoteStart starts the stopwatch with the server's declared start
// instant. Idempotent while RUNNING. While the start lock is engaged and
// the watch is stopped the command is a replayed or late one and is
// refused without touching the frozen session; only a reset accepts
// starts again.
func (s *Stopwatch) RemoteStart(serverTimestamp int64) {
	if s.state == Running || s.startLocked {
		return
	}
	s.localStart = s.nowMs()
	ts := serverTimestamp
	s.syncStart = &ts
	s.elapsedStop = 0
	s.state = Running
	s.startLocked = true
}

// Lock engages the start lock without touching the session, used when a
// start command was accepted but could not transition the machine.
func (s *Stopwatch) Lock() {
	s.startLocked = true
}

// Stop freezes the elapsed duration and transitions to STOPPED.
func (s *Stopwatch) Stop() error {
	if s.state != Running {
		return ErrNotRunning
	}
	s.elapsedStop = s.Elapsed()
	s.state = Stopped
	s.localStart = 0
	s.syncStart = nil
	return nil
}

// Reset returns the session to its initial values from any state. This is
// the only way to clear the start lock.
func (s *Stopwatch) Reset() {
	s.state = Stopped
	s.localStart = 0
	s.syncStart = nil
	s.elapsedStop = 0
	s.startLocked = false
}

// Elapsed returns the running duration in milliseconds, preferring the
// synchronized timeline so all clients agree, or the frozen value while
// STOPPED.
func (s *Stopwatch) Elapsed() int64 {
	if s.state != Running {
		return s.elapsedStop
	}
	if s.syncStart != nil {
		if syncMs, ok := s.syncTime(); ok {
			return syncMs - *s.syncStart
		}
	}
	return s.nowMs() - s.localStart
}

func (s *Stopwatch) State() State { return s.state }

func (s *Stopwatch) StartLocked() bool { return s.startLocked }

// SyncStartEpoch returns the synchronized start instant if one was
// captured at RUNNING entry.
func (s *Stopwatch) SyncStartEpoch() (int64, bool) {
	if s.syncStart == nil {
		return 0, false
	}
	return *s.syncStart, true
}

// LocalStartEpoch is only meaningful while RUNNING.
func (s *Stopwatch) LocalStartEpoch() int64 { return s.localStart }
