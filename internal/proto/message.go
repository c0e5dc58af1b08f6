package proto

import (
	"encoding/json"
	"fmt"
)

// Inbound is the envelope for frames the bot sends to the server.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello = "hello"
	InboundTypeJoin  = "join"
	InboundTypeLeave = "leave"
	InboundTypeMsg   = "msg"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameMessage    = "message"
	EventNameUserJoined = "user_joined"
	EventNameUserLeft   = "user_left"
	EventNameHistory    = "history"
)

// HelloData introduces the client to the server.
type HelloData struct {
	User     string `json:"user"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// JoinData requests to join or leave a specific room.
type JoinData struct {
	Room string `json:"room"`
}

// MsgData is a chat message to a room.
type MsgData struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// Outbound is the envelope for frames the server sends. Data is kept raw
// so it can be decoded once the event name is known.
type Outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// EventMessage is a chat message delivered to a room.
type EventMessage struct {
	ID   int64  `json:"id,omitempty"`
	Room string `json:"room,omitempty"`
	User string `json:"user"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// EventUserJoined notifies that a user joined a room.
type EventUserJoined struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// EventUserLeft notifies that a user left a room.
type EventUserLeft struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// EventHistory delivers recent room messages after a join.
type EventHistory struct {
	Room     string         `json:"room"`
	Messages []EventMessage `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// NewInbound marshals data into an envelope of the given type.
func NewInbound(typ string, data any) (Inbound, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Inbound{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return Inbound{Type: typ, Data: raw}, nil
}

// DecodeData unmarshals the event payload into v.
func (o Outbound) DecodeData(v any) error {
	if len(o.Data) == 0 {
		return fmt.Errorf("event %q has no data", o.Event)
	}
	if err := json.Unmarshal(o.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", o.Event, err)
	}
	return nil
}
