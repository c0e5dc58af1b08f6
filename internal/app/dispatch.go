package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/history"
	"github.com/vovakirdan/wirebot/internal/identity"
	"github.com/vovakirdan/wirebot/internal/transfer"
)

const releaseTimeout = 5 * time.Second

// dispatcher is the default event handler: it logs events, keeps the
// command history and refuses inbound streams, since nothing consumes them.
type dispatcher struct {
	log       *zerolog.Logger
	history   *history.Store
	transfers *transfer.Manager
}

func newDispatcher(logger *zerolog.Logger, hist *history.Store, transfers *transfer.Manager) *dispatcher {
	return &dispatcher{log: logger, history: hist, transfers: transfers}
}

func (d *dispatcher) CallbackConnect() {
	d.log.Info().Msg("backend connected")
}

func (d *dispatcher) CallbackDisconnect() {
	d.log.Warn().Msg("backend disconnected")
}

// CallbackMessage records live messages in the sender's history. Backlog
// replayed on join is only logged.
func (d *dispatcher) CallbackMessage(msg *core.Message) {
	from := ""
	if msg.From != nil {
		from = msg.From.String()
	}
	d.log.Debug().
		Str("from", from).
		Bool("group", msg.IsGroup()).
		Bool("delayed", msg.Delayed).
		Msg("message received")

	user := identity.ACLAttr(msg.From)
	if user == "" || msg.Delayed || msg.Body == "" {
		return
	}
	d.history.Push(user, msg.Body)
}

func (d *dispatcher) CallbackPresence(p *core.Presence) {
	d.log.Debug().Str("nick", p.Nick()).Str("status", string(p.Status())).Msg("presence")
}

func (d *dispatcher) CallbackRoomJoined(room identity.Room) {
	d.log.Info().Str("room", room.String()).Msg("room joined")
}

func (d *dispatcher) CallbackRoomLeft(room identity.Room) {
	d.log.Info().Str("room", room.String()).Msg("room left")
}

func (d *dispatcher) CallbackRoomTopic(room identity.Room) {
	topic, err := room.Topic()
	if err != nil {
		d.log.Debug().Err(err).Str("room", room.String()).Msg("topic unavailable")
		return
	}
	d.log.Info().Str("room", room.String()).Str("topic", topic).Msg("room topic changed")
}

func (d *dispatcher) CallbackStream(s *core.Stream) {
	if err := s.Reject(); err != nil {
		d.log.Warn().Err(err).Str("stream_id", s.ID()).Msg("reject stream")
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if _, err := d.transfers.Release(ctx, s.ID()); err != nil {
		d.log.Warn().Err(err).Str("stream_id", s.ID()).Msg("release stream")
	}
}
