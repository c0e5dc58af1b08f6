package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirebot/internal/backend"
	"github.com/vovakirdan/wirebot/internal/history"
	"github.com/vovakirdan/wirebot/internal/identity"
	"github.com/vovakirdan/wirebot/internal/identity/identitytest"
	"github.com/vovakirdan/wirebot/internal/metrics"
	"github.com/vovakirdan/wirebot/internal/store/sqlite"
	"github.com/vovakirdan/wirebot/internal/transfer"
)

type stubBot struct {
	status backend.Status
	rooms  []identity.Room
}

func (b *stubBot) Mode() string {
	return "stub"
}

func (b *stubBot) Status() backend.Status {
	return b.status
}

func (b *stubBot) Rooms() []identity.Room {
	return b.rooms
}

type testEnv struct {
	server    *http.Server
	transfers *transfer.Manager
	history   *history.Store
	metrics   *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := metrics.New()
	mgr := transfer.NewManager(st, m, nil)
	hist := history.NewStore(history.DefaultCapacity)

	room := identitytest.NewRoom("general")
	bot := &stubBot{
		status: backend.Status{
			State:             backend.StateBackingOff,
			ReconnectionCount: 2,
			ReconnectionDelay: 3062500 * time.Microsecond,
		},
		rooms: []identity.Room{room},
	}

	srv := NewServer(":0", Deps{
		Bot:       bot,
		Transfers: mgr,
		Ledger:    st,
		History:   hist,
		Metrics:   m,
	}, nil)
	return &testEnv{server: srv, transfers: mgr, history: hist, metrics: m}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", resp.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	s := env.transfers.Open(identitytest.NewUser("alice"), strings.NewReader("x"), "a.bin", 10, "application/octet-stream")
	require.NoError(t, s.Accept())
	s.AckData(4)

	resp := env.get(t, "/status")
	require.Equal(t, http.StatusOK, resp.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "stub", body.Mode)
	assert.Equal(t, "backing_off", body.State)
	assert.Equal(t, 2, body.ReconnectionCount)
	assert.InDelta(t, 3.0625, body.ReconnectionDelaySeconds, 1e-9)
	assert.Equal(t, []string{"general"}, body.Rooms)
	require.Len(t, body.ActiveTransfers, 1)
	assert.Equal(t, s.ID(), body.ActiveTransfers[0].ID)
	assert.Equal(t, "alice", body.ActiveTransfers[0].Identifier)
	assert.Equal(t, "a.bin", body.ActiveTransfers[0].Name)
	assert.Equal(t, int64(10), body.ActiveTransfers[0].Size)
	assert.NotContains(t, resp.Body.String(), `"transferred"`)
}

func TestStatusWhileStreamProgresses(t *testing.T) {
	env := newTestEnv(t)
	s := env.transfers.Open(identitytest.NewUser("alice"), strings.NewReader("x"), "a.bin", 1000, "application/octet-stream")
	require.NoError(t, s.Accept())

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := int64(0); ; i++ {
			select {
			case <-stop:
				return
			default:
				s.AckData(i % 1000)
			}
		}
	}()

	for i := 0; i < 20; i++ {
		resp := env.get(t, "/status")
		require.Equal(t, http.StatusOK, resp.Code)
	}
	close(stop)
	<-done
	require.NoError(t, s.Success())
}

func TestStatusWithoutBackend(t *testing.T) {
	srv := NewServer(":0", Deps{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	resp := httptest.NewRecorder()
	srv.Handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp = httptest.NewRecorder()
	srv.Handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTransfersEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s := env.transfers.Open(identitytest.NewUser("alice"), strings.NewReader("x"), "a.bin", 1, "")
	_, err := env.transfers.Release(ctx, s.ID())
	require.NoError(t, err)

	resp := env.get(t, "/transfers?identifier=alice")
	require.Equal(t, http.StatusOK, resp.Code)
	var body []TransferResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "error", body[0].Status)
	assert.Equal(t, transfer.ReleasedReason, body[0].Reason)
	assert.NotEmpty(t, body[0].CreatedAt)

	tests := []struct {
		path string
		code int
	}{
		{path: "/transfers", code: http.StatusBadRequest},
		{path: "/transfers?identifier=alice&limit=abc", code: http.StatusBadRequest},
		{path: "/transfers?identifier=nobody", code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.code, env.get(t, tt.path).Code)
		})
	}
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.history.Push("alice", "!status")
	env.history.Push("alice", "!help")

	resp := env.get(t, "/history/alice")
	require.Equal(t, http.StatusOK, resp.Code)
	var body HistoryResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.User)
	assert.Equal(t, []string{"!status", "!help"}, body.Commands)

	resp = env.get(t, "/history/bob")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"user":"bob","commands":[]}`, resp.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.metrics.Reconnections.Inc()

	resp := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "wirebot_reconnections_total 1")
}
