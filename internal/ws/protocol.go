package ws

import (
	"encoding/json"
	"errors"

	"veilmatch/internal/dispatch"
)

// ErrMalformedEnvelope marks an inbound frame that failed to parse. The
// frame is dropped and logged; the connection stays open.
var ErrMalformedEnvelope = errors.New("malformed_envelope")

// Envelope is the wire frame for the persistent channel, both directions.
// EventID is only present server-to-client; a reconnecting client echoes the
// last one it saw to resume the stream without gaps.
type Envelope struct {
	Type    string          `json:"type"`
	EventID int64           `json:"event_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type InboundMessage struct {
	Content string `json:"content"`
}

type InboundTyping struct {
	Typing bool `json:"typing"`
}

// Command is a decoded client frame handed to the dispatcher side.
type Command struct {
	Type    dispatch.EventType
	Message InboundMessage
	Typing  InboundTyping
}

// DecodeCommand parses one inbound frame. Only message and typing flow
// client-to-server; decisions ride the request/response API.
func DecodeCommand(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, ErrMalformedEnvelope
	}
	switch dispatch.EventType(env.Type) {
	case dispatch.EventMessage:
		var m InboundMessage
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return Command{}, ErrMalformedEnvelope
		}
		return Command{Type: dispatch.EventMessage, Message: m}, nil
	case dispatch.EventTyping:
		var ty InboundTyping
		if err := json.Unmarshal(env.Data, &ty); err != nil {
			return Command{}, ErrMalformedEnvelope
		}
		return Command{Type: dispatch.EventTyping, Typing: ty}, nil
	default:
		return Command{}, ErrMalformedEnvelope
	}
}

// EncodeEvent wraps a queued event in the wire envelope.
func EncodeEvent(ev dispatch.Event) ([]byte, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:    string(ev.Type),
		EventID: ev.ID,
		Data:    data,
	})
}
