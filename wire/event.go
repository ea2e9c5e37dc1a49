package wire

import (
	"encoding/json"
	"errors"
	"io"
)

// Inbound event names. One Event envelope per websocket text frame.
const (
	EvJoinChannel      = "join-channel"
	EvLeaveChannel     = "leave-channel"
	EvMessage          = "message"
	EvTypingStart      = "typing-start"
	EvTypingStop       = "typing-stop"
	EvVoiceStateUpdate = "voice-state-update"
)

// Outbound event names.
const (
	EvUserTyping        = "user-typing"
	EvUserStopTyping    = "user-stop-typing"
	EvUserStatusUpdate  = "user-status-update"
	EvRateLimitExceeded = "rate_limit_exceeded"
)

// ErrEmptyEvent ErrEmptyEvent
var ErrEmptyEvent = errors.New("event name is empty")

// Event is the envelope every frame carries. Data stays raw until the
// dispatcher knows which payload type to decode it into.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent wraps a payload into an envelope
func NewEvent(name string, payload interface{}) (*Event, error) {
	if name == "" {
		return nil, ErrEmptyEvent
	}
	ev := &Event{Event: name}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		ev.Data = data
	}
	return ev, nil
}

// Marshal builds a ready-to-send frame
func Marshal(name string, payload interface{}) ([]byte, error) {
	ev, err := NewEvent(name, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ev)
}

// Decode Decode reader to Event
func (e *Event) Decode(r io.Reader) error {
	if err := json.NewDecoder(r).Decode(e); err != nil {
		return err
	}
	if e.Event == "" {
		return ErrEmptyEvent
	}
	return nil
}

// Encode Encode Event to writer
func (e *Event) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(e)
}
