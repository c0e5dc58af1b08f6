package backend

import (
	"context"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/identity"
)

// Server is the part of a backend the serve loop drives.
type Server interface {
	// ServeOnce connects and serves until the connection ends. Returning an
	// error, or false with a nil error, asks for a reconnect after backoff.
	// Returning true asks for a clean, final stop.
	ServeOnce(ctx context.Context) (shutdown bool, err error)

	// Shutdown releases the backend. It is called exactly once when the serve loop exits.
	Shutdown() error
}

// Backend is the contract every chat network adapter implements. Adapters
// usually hold a *Runtime and delegate ServeForever, BuildMessage and the
// connect/disconnect callbacks to it.
type Backend interface {
	Server

	// ServeForever runs ServeOnce with reconnection until ctx is cancelled
	// or ServeOnce requests shutdown.
	ServeForever(ctx context.Context) error

	SendMessage(ctx context.Context, msg *core.Message) error
	ChangePresence(ctx context.Context, status core.Status, message string) error

	// BuildReply addresses a response to msg. A private reply goes to the
	// sender directly even when msg came from a room.
	BuildReply(msg *core.Message, text string, private bool) *core.Message
	BuildMessage(text string) *core.Message
	BuildIdentifier(text string) (identity.Identifier, error)
	QueryRoom(ctx context.Context, name string) (identity.Room, error)

	// PrefixGroupchatReply rewrites msg to ping id the way the network expects.
	PrefixGroupchatReply(msg *core.Message, id identity.Identifier)

	ConnectCallback()
	DisconnectCallback()

	Mode() string
	Rooms() []identity.Room
}

// Handler receives inbound events. Calls are synchronous and happen on the
// serve loop goroutine in the order events arrived, so a handler must not block.
type Handler interface {
	CallbackConnect()
	CallbackDisconnect()
	CallbackMessage(msg *core.Message)
	CallbackPresence(p *core.Presence)
	CallbackRoomJoined(room identity.Room)
	CallbackRoomLeft(room identity.Room)
	CallbackRoomTopic(room identity.Room)
	CallbackStream(s *core.Stream)
}

// NopHandler ignores every event. Embed it to implement only some callbacks.
type NopHandler struct{}

func (NopHandler) CallbackConnect()                 {}
func (NopHandler) CallbackDisconnect()              {}
func (NopHandler) CallbackMessage(*core.Message)    {}
func (NopHandler) CallbackPresence(*core.Presence)  {}
func (NopHandler) CallbackRoomJoined(identity.Room) {}
func (NopHandler) CallbackRoomLeft(identity.Room)   {}
func (NopHandler) CallbackRoomTopic(identity.Room)  {}
func (NopHandler) CallbackStream(*core.Stream)      {}

var _ Handler = NopHandler{}
