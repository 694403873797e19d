package protocol

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/azckamp/lanetimer/pkg/model"
)

// ErrInvalidMessage tags frames that parse as JSON but violate the
// message schema (missing type, missing required field, bad field type).
var ErrInvalidMessage = errors.New("invalid message")

var encOptions = ojg.Options{Sort: true, OmitNil: true}

// Decode parses a wire frame into one of the typed messages in
// pkg/model. Unknown message types yield (nil, nil) so they can be
// ignored without being treated as faults.
//
//nolint:cyclop // one branch per message type
func Decode(data []byte) (any, error) {
	parsed, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: frame is not an object", ErrInvalidMessage)
	}
	msgType, ok := obj["type"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing type tag", ErrInvalidMessage)
	}

	switch msgType {
	case model.MsgPing:
		t, err := requireInt(obj, msgType, "time")
		if err != nil {
			return nil, err
		}
		return &model.Ping{Time: t}, nil
	case model.MsgPong:
		cpt, err := requireInt(obj, msgType, "client_ping_time")
		if err != nil {
			return nil, err
		}
		st, err := requireInt(obj, msgType, "server_time")
		if err != nil {
			return nil, err
		}
		return &model.Pong{ClientPingTime: cpt, ServerTime: st}, nil
	case model.MsgStart:
		ret := &model.Start{}
		if ts, ok := intField(obj["timestamp"]); ok {
			ret.Timestamp = &ts
		}
		ret.Event, _ = obj["event"].(string)
		ret.Heat, _ = obj["heat"].(string)
		return ret, nil
	case model.MsgReset:
		return &model.Reset{}, nil
	case model.MsgSplit:
		lane, ok := laneField(obj["lane"])
		if !ok {
			return nil, fmt.Errorf("%w: %s: missing lane", ErrInvalidMessage, msgType)
		}
		ts, err := requireInt(obj, msgType, "timestamp")
		if err != nil {
			return nil, err
		}
		text, _ := obj["time"].(string)
		return &model.Split{Lane: lane, Timestamp: ts, Time: text}, nil
	case model.MsgEventHeat, model.MsgSelectEvent:
		event, ok := obj["event"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: missing event", ErrInvalidMessage, msgType)
		}
		heat, ok := obj["heat"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: missing heat", ErrInvalidMessage, msgType)
		}
		return &model.EventHeat{Event: event, Heat: heat}, nil
	case model.MsgClear:
		return &model.Clear{}, nil
	default:
		// forward-compatible: unknown types are ignored
		return nil, nil
	}
}

func requireInt(obj map[string]any, msgType, key string) (int64, error) {
	v, ok := intField(obj[key])
	if !ok {
		return 0, fmt.Errorf("%w: %s: missing %s", ErrInvalidMessage, msgType, key)
	}
	return v, nil
}

func intField(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case float64:
		return int64(val), true
	default:
		return 0, false
	}
}

// laneField also accepts numeric strings: older firmware revisions sent
// the lane as a string.
func laneField(v any) (int, bool) {
	switch val := v.(type) {
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// EncodePing serializes an outbound ping carrying the local send time.
func EncodePing(timeMs int64) string {
	return oj.JSON(map[string]any{
		"type": model.MsgPing,
		"time": timeMs,
	}, &encOptions)
}

// EncodePong answers an inbound ping as if this device were a clock
// authority.
func EncodePong(clientPingTime, serverTime int64) string {
	return oj.JSON(map[string]any{
		"type":             model.MsgPong,
		"client_ping_time": clientPingTime,
		"server_time":      serverTime,
	}, &encOptions)
}

// EncodeSplit serializes an outbound split for this device's lane.
func EncodeSplit(lane int, timestampMs int64, text string) string {
	m := map[string]any{
		"type":      model.MsgSplit,
		"lane":      lane,
		"timestamp": timestampMs,
	}
	if text != "" {
		m["time"] = text
	}
	return oj.JSON(m, &encOptions)
}

// EncodeStart serializes an outbound start command (starter role only).
func EncodeStart(event, heat string, timestampMs int64) string {
	return oj.JSON(map[string]any{
		"type":      model.MsgStart,
		"event":     event,
		"heat":      heat,
		"timestamp": timestampMs,
	}, &encOptions)
}
