package clocksync

import "time"

const (
	// rapid acquisition burst after (re)connect
	burstSamples  = 5
	burstInterval = 500 * time.Millisecond
	// steady-state keep-alive and drift correction
	steadyInterval = 5 * time.Second
	// below this many samples the latest RTT is used for lag compensation
	minSamplesForBest = 3

	unknown = int64(-1)
)

// Estimator computes the client<->server clock offset and round-trip
// latency from ping/pong exchanges. All inputs are millisecond stamps
// supplied by the caller; the estimator itself never reads a clock and
// never blocks.
type Estimator struct {
	roundTripMs     int64
	bestRoundTripMs int64
	sampleCount     int
	offsetMs        int64
	synchronized    bool
}

func NewEstimator() *Estimator {
	e := &Estimator{}
	e.Reset()
	return e
}

// Reset discards all samples and the offset. Must be called on every
// reconnect so a stale offset never leaks into a new connection epoch.
func (e *Estimator) Reset() {
	e.roundTripMs = unknown
	e.bestRoundTripMs = unknown
	e.sampleCount = 0
	e.offsetMs = 0
	e.synchronized = false
}

// RecordPingSent returns the token to embed in the outgoing ping frame.
// The pong echoes the token, so no pending state is kept: an unanswered
// ping is simply superseded by the next scheduled one.
func (e *Estimator) RecordPingSent(localMs int64) int64 {
	return localMs
}

// RecordPong feeds a completed round trip. token is the echoed
// client_ping_time, localNowMs the local receive time, serverMs the
// server's clock reading when it answered.
func (e *Estimator) RecordPong(token, localNowMs, serverMs int64) {
	rtt := localNowMs - token
	if rtt < 0 {
		// stamp from a previous epoch or a rewound clock
		return
	}
	e.roundTripMs = rtt
	if e.bestRoundTripMs == unknown || rtt < e.bestRoundTripMs {
		e.bestRoundTripMs = rtt
	}
	e.sampleCount++

	// midpoint assumption: the server stamped serverMs half a round trip ago
	e.offsetMs = serverMs - localNowMs - e.LagCompensation()
	e.synchronized = true
}

// LagCompensation returns half of the preferred RTT: the best sample once
// enough samples exist, the latest one otherwise. A lower RTT sample is
// evidence of less queuing delay.
func (e *Estimator) LagCompensation() int64 {
	rtt := e.roundTripMs
	if e.bestRoundTripMs != unknown && e.sampleCount >= minSamplesForBest {
		rtt = e.bestRoundTripMs
	}
	if rtt == unknown {
		return 0
	}
	return rtt / 2
}

// PingInterval returns the current cadence: a rapid burst until enough
// samples were collected this epoch, the keep-alive interval afterwards.
func (e *Estimator) PingInterval() time.Duration {
	if e.sampleCount < burstSamples {
		return burstInterval
	}
	return steadyInterval
}

// SyncedTime maps a local millisecond stamp onto the server clock.
// Without a completed round trip the local stamp is returned unchanged.
func (e *Estimator) SyncedTime(localMs int64) int64 {
	return localMs + e.offsetMs
}

func (e *Estimator) RoundTrip() (ms int64, ok bool) {
	return e.roundTripMs, e.roundTripMs != unknown
}

func (e *Estimator) BestRoundTrip() (ms int64, ok bool) {
	return e.bestRoundTripMs, e.bestRoundTripMs != unknown
}

func (e *Estimator) Offset() int64 { return e.offsetMs }

func (e *Estimator) SampleCount() int { return e.sampleCount }

func (e *Estimator) Synchronized() bool { return e.synchronized }
