package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/identity"
	"github.com/vovakirdan/wirebot/internal/metrics"
	"github.com/vovakirdan/wirebot/internal/store"
)

// ReleasedReason is recorded for streams released before they finished.
const ReleasedReason = "released"

// ErrUnknownStream is returned for stream IDs the manager does not own.
var ErrUnknownStream = errors.New("unknown stream")

// Manager owns the streams of in-flight transfers. Streams are mutated by
// their single owner; the manager only guards its own index.
type Manager struct {
	mu      sync.Mutex
	streams map[string]*core.Stream

	store   store.TransferStore
	metrics *metrics.Metrics
	log     *zerolog.Logger
}

// NewManager builds a manager. st and m may be nil.
func NewManager(st store.TransferStore, m *metrics.Metrics, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{
		streams: make(map[string]*core.Stream),
		store:   st,
		metrics: m,
		log:     logger,
	}
}

// Open creates and tracks a new pending stream.
func (m *Manager) Open(id identity.Identifier, source io.Reader, name string, size int64, streamType string) *core.Stream {
	s := core.NewStream(id, source, name, size, streamType)
	m.Track(s)
	return s
}

// Track adopts a stream built elsewhere, typically by a backend.
func (m *Manager) Track(s *core.Stream) {
	m.mu.Lock()
	m.streams[s.ID()] = s
	m.mu.Unlock()

	m.log.Debug().Str("stream_id", s.ID()).Str("name", s.Name()).Msg("tracking stream")
}

// Get returns a tracked stream.
func (m *Manager) Get(id string) (*core.Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[id]
	return s, ok
}

// Active returns the IDs of tracked streams, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.streams))
	for id := range m.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len is the number of tracked streams.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

// Release stops tracking a stream and records its outcome. A stream that
// has not reached a terminal status is failed with ReleasedReason first.
func (m *Manager) Release(ctx context.Context, id string) (*store.Transfer, error) {
	m.mu.Lock()
	s, ok := m.streams[id]
	delete(m.streams, id)
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("release %s: %w", id, ErrUnknownStream)
	}

	if !s.Status().Terminal() {
		s.Fail(ReleasedReason)
	}

	record := &store.Transfer{
		ID:          s.ID(),
		Identifier:  peerName(s.Identifier()),
		Name:        s.Name(),
		Size:        s.Size(),
		Transferred: s.Transferred(),
		StreamType:  s.StreamType(),
		Status:      string(s.Status()),
		Reason:      reasonOf(s),
	}

	if m.metrics != nil {
		m.metrics.Transfers.WithLabelValues(record.Status).Inc()
	}
	m.log.Info().
		Str("stream_id", record.ID).
		Str("peer", record.Identifier).
		Str("status", record.Status).
		Int64("transferred", record.Transferred).
		Msg("transfer finished")

	if m.store != nil {
		if err := m.store.SaveTransfer(ctx, record); err != nil {
			return record, fmt.Errorf("save transfer: %w", err)
		}
	}
	return record, nil
}

// peerName prefers the ACL attribute so records match access control.
func peerName(id identity.Identifier) string {
	if id == nil {
		return ""
	}
	if attr := identity.ACLAttr(id); attr != "" {
		return attr
	}
	return id.String()
}

func reasonOf(s *core.Stream) string {
	if s.Status() == core.StreamError {
		return s.Reason()
	}
	return ""
}
