package backend

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/history"
	"github.com/vovakirdan/wirebot/internal/identity"
	"github.com/vovakirdan/wirebot/internal/metrics"
)

// State is where the runtime is in the connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateBackingOff
	StateShutdown
)

var allStates = []State{StateDisconnected, StateConnecting, StateConnected, StateBackingOff, StateShutdown}

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackingOff:
		return "backing_off"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// StreamTracker adopts streams before they reach the handler.
type StreamTracker interface {
	Track(s *core.Stream)
}

// Status is a point in time snapshot of the runtime.
type Status struct {
	State             State
	ReconnectionCount int
	ReconnectionDelay time.Duration
}

// Runtime is the backend independent half of a bot connection: the
// reconnecting serve loop, callback dispatch and per user command history.
// One goroutine runs ServeForever; Status may be read from any goroutine.
type Runtime struct {
	log     *zerolog.Logger
	handler Handler
	metrics *metrics.Metrics
	history *history.Store
	streams StreamTracker
	sleep   func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	state   State
	backoff *Backoff
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithHandler sets the receiver of inbound events.
func WithHandler(h Handler) Option {
	return func(r *Runtime) {
		if h != nil {
			r.handler = h
		}
	}
}

// WithBackoff overrides the reconnection backoff settings.
func WithBackoff(cfg BackoffConfig) Option {
	return func(r *Runtime) {
		r.backoff = NewBackoff(cfg)
	}
}

// WithMetrics records lifecycle and callback counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runtime) {
		r.metrics = m
	}
}

// WithHistory replaces the command history store.
func WithHistory(h *history.Store) Option {
	return func(r *Runtime) {
		if h != nil {
			r.history = h
		}
	}
}

// WithStreamTracker hands every dispatched stream to t first.
func WithStreamTracker(t StreamTracker) Option {
	return func(r *Runtime) {
		r.streams = t
	}
}

// NewRuntime builds a disconnected runtime.
func NewRuntime(logger *zerolog.Logger, opts ...Option) *Runtime {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	r := &Runtime{
		log:     logger,
		handler: NopHandler{},
		history: history.NewStore(history.DefaultCapacity),
		sleep:   sleepContext,
		state:   StateDisconnected,
		backoff: NewBackoff(DefaultBackoffConfig()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// ServeForever calls srv.ServeOnce until it requests shutdown or ctx is
// cancelled, sleeping with backoff between failed cycles. srv.Shutdown is
// called exactly once before returning.
func (r *Runtime) ServeForever(ctx context.Context, srv Server) error {
	defer func() {
		r.setState(StateShutdown)
		r.log.Info().Msg("trigger shutdown")
		if err := srv.Shutdown(); err != nil {
			r.log.Warn().Err(err).Msg("backend shutdown failed")
		}
	}()

	for {
		if ctx.Err() != nil {
			r.log.Info().Msg("interrupt received, shutting down")
			return nil
		}

		r.setState(StateConnecting)
		done, err := srv.ServeOnce(ctx)
		switch {
		case ctx.Err() != nil:
			r.log.Info().Msg("interrupt received, shutting down")
			return nil
		case err != nil:
			if r.metrics != nil {
				r.metrics.ServeErrors.Inc()
			}
			r.log.Error().Err(err).Msg("serve cycle failed")
		case done:
			r.log.Info().Msg("shutdown requested by backend")
			return nil
		default:
			r.log.Warn().Msg("serve cycle ended without shutdown request")
		}

		base, sleep, count := r.scheduleReconnect()
		r.log.Info().
			Float64("delay_seconds", base.Seconds()).
			Float64("sleep_seconds", sleep.Seconds()).
			Int("attempt", count).
			Msg("reconnecting")

		if err := r.sleep(ctx, sleep); err != nil {
			r.log.Info().Msg("interrupt received, shutting down")
			return nil
		}
	}
}

func (r *Runtime) scheduleReconnect() (base, sleep time.Duration, count int) {
	r.mu.Lock()
	base, sleep = r.backoff.Next()
	count = r.backoff.Count()
	r.mu.Unlock()

	r.setState(StateBackingOff)
	if r.metrics != nil {
		r.metrics.Reconnections.Inc()
	}
	return base, sleep, count
}

// ResetReconnectionCount must be called by the backend after a successful
// connect; otherwise the backoff keeps growing across healthy sessions.
func (r *Runtime) ResetReconnectionCount() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backoff.Reset()
}

// Status returns the current state and backoff counters.
func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		State:             r.state,
		ReconnectionCount: r.backoff.Count(),
		ReconnectionDelay: r.backoff.Delay(),
	}
}

// History is the per user command history owned by this runtime.
func (r *Runtime) History() *history.Store {
	return r.history
}

// BuildMessage is the default message builder for backends.
func (r *Runtime) BuildMessage(text string) *core.Message {
	return core.NewMessage(text)
}

// ConnectCallback marks the runtime connected and notifies the handler.
func (r *Runtime) ConnectCallback() {
	r.setState(StateConnected)
	r.count("connect")
	r.handler.CallbackConnect()
}

// DisconnectCallback marks the runtime disconnected and notifies the handler.
func (r *Runtime) DisconnectCallback() {
	r.setState(StateDisconnected)
	r.count("disconnect")
	r.handler.CallbackDisconnect()
}

func (r *Runtime) CallbackMessage(msg *core.Message) {
	r.count("message")
	r.handler.CallbackMessage(msg)
}

func (r *Runtime) CallbackPresence(p *core.Presence) {
	r.count("presence")
	r.log.Debug().Str("presence", p.String()).Msg("presence changed")
	r.handler.CallbackPresence(p)
}

func (r *Runtime) CallbackRoomJoined(room identity.Room) {
	r.count("room_joined")
	r.log.Info().Str("room", room.String()).Msg("joined room")
	r.handler.CallbackRoomJoined(room)
}

func (r *Runtime) CallbackRoomLeft(room identity.Room) {
	r.count("room_left")
	r.log.Info().Str("room", room.String()).Msg("left room")
	r.handler.CallbackRoomLeft(room)
}

func (r *Runtime) CallbackRoomTopic(room identity.Room) {
	r.count("room_topic")
	r.handler.CallbackRoomTopic(room)
}

// CallbackStream hands s to the stream tracker, if any, then to the handler.
func (r *Runtime) CallbackStream(s *core.Stream) {
	r.count("stream")
	if r.streams != nil {
		r.streams.Track(s)
	}
	r.handler.CallbackStream(s)
}

func (r *Runtime) setState(s State) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()

	if prev != s {
		r.log.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("connection state")
	}
	if r.metrics != nil {
		names := make([]string, 0, len(allStates))
		for _, st := range allStates {
			names = append(names, st.String())
		}
		r.metrics.SetState(s.String(), names)
	}
}

func (r *Runtime) count(kind string) {
	if r.metrics != nil {
		r.metrics.Callbacks.WithLabelValues(kind).Inc()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
