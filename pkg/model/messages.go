package model

// message type tags used on the wire
const (
	MsgPing        = "ping"
	MsgPong        = "pong"
	MsgStart       = "start"
	MsgReset       = "reset"
	MsgSplit       = "split"
	MsgEventHeat   = "event-heat"
	MsgSelectEvent = "select-event" // semantically identical to event-heat
	MsgClear       = "clear"
)

// Ping is sent by either side to probe the other side's clock.
type Ping struct {
	Time int64 `json:"time"`
}

// Pong answers a Ping, echoing the originator's send time.
type Pong struct {
	ClientPingTime int64 `json:"client_ping_time"`
	ServerTime     int64 `json:"server_time"`
}

// Start commands the stopwatch to run. Timestamp, when present, is the
// server's declared start instant.
type Start struct {
	Event     string `json:"event,omitempty"`
	Heat      string `json:"heat,omitempty"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// Reset clears the session on all devices.
type Reset struct{}

// Split announces a timed split for one lane. Time carries the
// display-formatted duration and may be absent.
type Split struct {
	Lane      int    `json:"lane"`
	Timestamp int64  `json:"timestamp"`
	Time      string `json:"time,omitempty"`
}

// EventHeat updates the current event/heat labels.
type EventHeat struct {
	Event string `json:"event"`
	Heat  string `json:"heat"`
}

// Clear wipes display-facing state without touching the stopwatch.
type Clear struct{}
