package wirechat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/wirebot/internal/auth"
	"github.com/vovakirdan/wirebot/internal/backend"
	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/identity"
	"github.com/vovakirdan/wirebot/internal/proto"
)

// Mode is the backend name reported by Adapter.Mode.
const Mode = "wirechat"

var (
	// ErrDirectUnsupported is returned when sending to a person outside any room.
	ErrDirectUnsupported = errors.New("wirechat has no direct messages")
	// ErrNotConnected is returned when sending while no connection is up.
	ErrNotConnected = errors.New("not connected")
	// ErrInvalidIdentifier is returned for identifiers this backend cannot address.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// Config configures the wirechat adapter.
type Config struct {
	URL   string
	User  string
	Rooms []string
	// JWT signs the hello token; an empty secret sends an anonymous hello.
	JWT auth.JWTConfig
	// SendRate is the outbound message rate per second; zero disables throttling.
	SendRate    float64
	SendBurst   int
	DialTimeout time.Duration
}

// Adapter connects the bot to a wirechat server over WebSocket.
type Adapter struct {
	*backend.Runtime

	cfg     Config
	log     *zerolog.Logger
	limiter *rate.Limiter
	self    *Person

	mu    sync.Mutex
	sess  *session
	rooms map[string]*Room
}

// session is one live connection. Work queued on it runs on the serve loop
// between inbound frames.
type session struct {
	conn  *websocket.Conn
	queue chan func()
	done  chan struct{}
}

// New builds an adapter dispatching events through rt.
func New(cfg Config, rt *backend.Runtime, logger *zerolog.Logger) *Adapter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.SendRate > 0 {
		limit = rate.Limit(cfg.SendRate)
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}

	l := logger.With().Str("backend", Mode).Logger()
	return &Adapter{
		Runtime: rt,
		cfg:     cfg,
		log:     &l,
		limiter: rate.NewLimiter(limit, burst),
		self:    NewPerson(cfg.User),
		rooms:   make(map[string]*Room),
	}
}

// ServeForever runs the reconnecting serve loop over this adapter.
func (a *Adapter) ServeForever(ctx context.Context) error {
	return a.Runtime.ServeForever(ctx, a)
}

// ServeOnce dials, says hello, joins the configured rooms and dispatches
// events until the connection drops. It never asks for a final shutdown.
// The reconnection count is reset once the server sends its first frame,
// so a server that rejects the hello keeps the backoff growing.
func (a *Adapter) ServeOnce(ctx context.Context) (bool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, a.cfg.DialTimeout)
	conn, _, err := websocket.Dial(dialCtx, a.cfg.URL, nil)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("dial %s: %w", a.cfg.URL, err)
	}

	sess := a.startSession(conn)
	defer func() {
		a.endSession(sess)
		a.forgetRooms()
		conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	if err := a.hello(ctx); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}
	a.log.Info().Str("url", a.cfg.URL).Str("user", a.cfg.User).Msg("connected")

	a.ConnectCallback()
	defer a.DisconnectCallback()

	for _, name := range a.cfg.Rooms {
		if err := a.room(name).Join(ctx, a.cfg.User, ""); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, fmt.Errorf("join %s: %w", name, err)
		}
	}

	err = a.readLoop(ctx, sess)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		a.log.Info().Msg("server closed the connection")
		return false, nil
	}
	return false, fmt.Errorf("read: %w", err)
}

// Shutdown closes the current connection, if any.
func (a *Adapter) Shutdown() error {
	a.mu.Lock()
	sess := a.sess
	a.mu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.conn.Close(websocket.StatusGoingAway, "shutdown")
}

func (a *Adapter) hello(ctx context.Context) error {
	data := proto.HelloData{User: a.cfg.User, Protocol: proto.ProtocolVersion}
	if len(a.cfg.JWT.Secret) > 0 {
		token, err := auth.GenerateToken(&a.cfg.JWT, a.cfg.User)
		if err != nil {
			return fmt.Errorf("hello token: %w", err)
		}
		data.Token = token
	}
	return a.send(ctx, proto.InboundTypeHello, data)
}

// readLoop dispatches inbound frames and queued session work in order on
// the calling goroutine until the connection fails.
func (a *Adapter) readLoop(ctx context.Context, sess *session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan proto.Outbound)
	errc := make(chan error, 1)
	go func() {
		for {
			var out proto.Outbound
			if err := wsjson.Read(ctx, sess.conn, &out); err != nil {
				errc <- err
				return
			}
			select {
			case frames <- out:
			case <-ctx.Done():
				return
			}
		}
	}()

	confirmed := false
	for {
		// queued work goes before any frame that arrived after it
		select {
		case fn := <-sess.queue:
			fn()
			continue
		default:
		}

		select {
		case out := <-frames:
			if !confirmed {
				confirmed = true
				a.ResetReconnectionCount()
			}
			if err := a.dispatch(out); err != nil {
				a.log.Warn().Err(err).Str("event", out.Event).Msg("drop malformed frame")
			}
		case fn := <-sess.queue:
			fn()
		case err := <-errc:
			sess.drain()
			return err
		}
	}
}

func (s *session) drain() {
	for {
		select {
		case fn := <-s.queue:
			fn()
		default:
			return
		}
	}
}

func (a *Adapter) dispatch(out proto.Outbound) error {
	switch out.Type {
	case proto.OutboundTypeEvent:
	case proto.OutboundTypeError:
		if out.Error != nil {
			a.log.Warn().Str("code", out.Error.Code).Str("msg", out.Error.Msg).Msg("server error")
		}
		return nil
	default:
		return fmt.Errorf("unknown frame type %q", out.Type)
	}

	switch out.Event {
	case proto.EventNameMessage:
		var ev proto.EventMessage
		if err := out.DecodeData(&ev); err != nil {
			return err
		}
		a.handleMessage(ev, false)
	case proto.EventNameHistory:
		var ev proto.EventHistory
		if err := out.DecodeData(&ev); err != nil {
			return err
		}
		for _, m := range ev.Messages {
			if m.Room == "" {
				m.Room = ev.Room
			}
			a.handleMessage(m, true)
		}
	case proto.EventNameUserJoined:
		var ev proto.EventUserJoined
		if err := out.DecodeData(&ev); err != nil {
			return err
		}
		a.handleJoined(ev.Room, ev.User)
	case proto.EventNameUserLeft:
		var ev proto.EventUserLeft
		if err := out.DecodeData(&ev); err != nil {
			return err
		}
		a.handleLeft(ev.Room, ev.User)
	default:
		a.log.Debug().Str("event", out.Event).Msg("ignore event")
	}
	return nil
}

func (a *Adapter) handleMessage(ev proto.EventMessage, delayed bool) {
	if ev.User == a.cfg.User {
		return
	}
	room := a.room(ev.Room)

	msg := a.BuildMessage(ev.Text)
	msg.From = room.occupant(ev.User)
	msg.To = room
	msg.Delayed = delayed
	if ev.ID != 0 {
		msg.Extras["id"] = ev.ID
	}
	if ev.TS != 0 {
		msg.Extras["timestamp"] = time.Unix(ev.TS, 0)
	}
	a.CallbackMessage(msg)
}

func (a *Adapter) handleJoined(name, user string) {
	room := a.room(name)
	if user == a.cfg.User {
		if room.setJoined(true) {
			a.CallbackRoomJoined(room)
		}
		return
	}
	a.presence(room.addOccupant(user), core.StatusOnline)
}

func (a *Adapter) handleLeft(name, user string) {
	room := a.room(name)
	if user == a.cfg.User {
		if room.setJoined(false) {
			a.CallbackRoomLeft(room)
		}
		return
	}
	a.presence(room.removeOccupant(user), core.StatusOffline)
}

func (a *Adapter) presence(o *Occupant, status core.Status) {
	p, err := core.NewPresence(o, status, "")
	if err != nil {
		a.log.Warn().Err(err).Str("occupant", o.String()).Msg("build presence")
		return
	}
	a.CallbackPresence(p)
}

func (a *Adapter) joinRoom(ctx context.Context, r *Room) error {
	return a.send(ctx, proto.InboundTypeJoin, proto.JoinData{Room: r.name})
}

func (a *Adapter) leaveRoom(ctx context.Context, r *Room) error {
	if err := a.send(ctx, proto.InboundTypeLeave, proto.JoinData{Room: r.name}); err != nil {
		return err
	}
	return a.enqueue(ctx, func() {
		if r.setJoined(false) {
			a.CallbackRoomLeft(r)
		}
	})
}

// enqueue hands fn to the serve loop of the current session.
func (a *Adapter) enqueue(ctx context.Context, fn func()) error {
	a.mu.Lock()
	sess := a.sess
	a.mu.Unlock()
	if sess == nil {
		return ErrNotConnected
	}

	select {
	case sess.queue <- fn:
		return nil
	case <-sess.done:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendMessage posts msg to its recipient. Occupants are addressed inside
// their room with an "@nick" prefix.
func (a *Adapter) SendMessage(ctx context.Context, msg *core.Message) error {
	if msg == nil || msg.To == nil {
		return fmt.Errorf("%w: message has no recipient", ErrInvalidIdentifier)
	}

	var data proto.MsgData
	switch to := msg.To.(type) {
	case *Room:
		data = proto.MsgData{Room: to.name, Text: msg.Body}
	case *Occupant:
		data = proto.MsgData{Room: to.room.name, Text: mention(to.Nick(), msg.Body)}
	case *Person:
		return ErrDirectUnsupported
	default:
		return fmt.Errorf("%w: %T", ErrInvalidIdentifier, msg.To)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	return a.send(ctx, proto.InboundTypeMsg, data)
}

// ChangePresence is not supported, the protocol has no presence frames.
func (a *Adapter) ChangePresence(context.Context, core.Status, string) error {
	return identity.ErrNotSupported
}

// BuildReply answers in the room a group message came from, or to the
// sender when private is set or msg was not a group message.
func (a *Adapter) BuildReply(msg *core.Message, text string, private bool) *core.Message {
	reply := a.BuildMessage(text)
	reply.From = a.self
	switch {
	case private:
		reply.To = msg.From
	case msg.IsGroup():
		reply.To = msg.To
	default:
		reply.To = msg.From
	}
	return reply
}

// BuildIdentifier parses "#room", "#room/nick" or "nick".
func (a *Adapter) BuildIdentifier(text string) (identity.Identifier, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " \t\n") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, text)
	}

	if !strings.HasPrefix(text, "#") {
		if strings.Contains(text, "/") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, text)
		}
		return NewPerson(text), nil
	}

	name, nick, hasNick := strings.Cut(text[1:], "/")
	if name == "" || (hasNick && (nick == "" || strings.Contains(nick, "/"))) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, text)
	}
	room := a.room(name)
	if !hasNick {
		return room, nil
	}
	return room.occupant(nick), nil
}

// QueryRoom returns the room named name, with or without a leading "#".
func (a *Adapter) QueryRoom(_ context.Context, name string) (identity.Room, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")
	if name == "" {
		return nil, fmt.Errorf("%w: empty room name", ErrInvalidIdentifier)
	}
	return a.room(name), nil
}

// PrefixGroupchatReply prepends "@nick " to the body. A nil message or
// identifier leaves the message untouched.
func (a *Adapter) PrefixGroupchatReply(msg *core.Message, id identity.Identifier) {
	if msg == nil || id == nil {
		return
	}
	nick := id.String()
	if p, ok := identity.AsPerson(id); ok {
		nick = p.Nick()
	}
	msg.Body = mention(nick, msg.Body)
}

func (a *Adapter) Mode() string {
	return Mode
}

// Rooms lists the rooms the bot is currently in, sorted by name.
func (a *Adapter) Rooms() []identity.Room {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]identity.Room, 0, len(a.rooms))
	for _, r := range a.rooms {
		if r.Joined() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

func (a *Adapter) room(name string) *Room {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.rooms[name]
	if !ok {
		r = newRoom(name, a)
		a.rooms[name] = r
	}
	return r
}

func (a *Adapter) forgetRooms() {
	a.mu.Lock()
	rooms := make([]*Room, 0, len(a.rooms))
	for _, r := range a.rooms {
		rooms = append(rooms, r)
	}
	a.mu.Unlock()

	for _, r := range rooms {
		r.setJoined(false)
	}
}

func (a *Adapter) startSession(conn *websocket.Conn) *session {
	sess := &session{
		conn:  conn,
		queue: make(chan func(), 16),
		done:  make(chan struct{}),
	}
	a.mu.Lock()
	a.sess = sess
	a.mu.Unlock()
	return sess
}

func (a *Adapter) endSession(sess *session) {
	a.mu.Lock()
	if a.sess == sess {
		a.sess = nil
	}
	a.mu.Unlock()
	close(sess.done)
}

func (a *Adapter) send(ctx context.Context, typ string, data any) error {
	a.mu.Lock()
	sess := a.sess
	a.mu.Unlock()
	if sess == nil {
		return ErrNotConnected
	}
	conn := sess.conn

	in, err := proto.NewInbound(typ, data)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, in); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

func mention(nick, body string) string {
	return "@" + nick + " " + body
}

var _ backend.Backend = (*Adapter)(nil)
