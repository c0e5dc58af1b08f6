package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirebot/internal/backend"
	"github.com/vovakirdan/wirebot/internal/config"
	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/proto"
)

// chatServer accepts bots, echoes their joins and then greets them. Every
// inbound frame is copied to the returned channel.
func chatServer(t *testing.T) (*httptest.Server, <-chan proto.Inbound) {
	t.Helper()
	frames := make(chan proto.Inbound, 64)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := context.Background()
		var user string
		for {
			var in proto.Inbound
			if err := wsjson.Read(ctx, conn, &in); err != nil {
				return
			}
			frames <- in
			switch in.Type {
			case proto.InboundTypeHello:
				var hello proto.HelloData
				_ = json.Unmarshal(in.Data, &hello)
				user = hello.User
			case proto.InboundTypeJoin:
				var join proto.JoinData
				_ = json.Unmarshal(in.Data, &join)
				joined, _ := json.Marshal(proto.EventUserJoined{Room: join.Room, User: user})
				_ = wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventNameUserJoined, Data: joined})
				msg, _ := json.Marshal(proto.EventMessage{Room: join.Room, User: "alice", Text: "!status"})
				_ = wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventNameMessage, Data: msg})
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts, frames
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func testConfig(url string) config.Config {
	cfg := config.Default()
	cfg.Adapter.URL = url
	cfg.Adapter.User = "helper"
	cfg.Adapter.Rooms = []string{"general"}
	cfg.DatabasePath = ":memory:"
	cfg.StatusAddr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	cfg.Reconnect = backend.BackoffConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 1.75}
	return cfg
}

func TestRunUntilCancelled(t *testing.T) {
	ts, _ := chatServer(t)
	cfg := testConfig(wsURL(ts))

	a, err := New(&cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.backend.Status().State == backend.StateConnected && len(a.Backend().Rooms()) == 1
	}, 3*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return a.History().Len("alice") == 1
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"!status"}, a.History().Entries("alice"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, backend.StateShutdown, a.backend.Status().State)
}

func TestInboundStreamIsRejectedAndRecorded(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1/ws")
	cfg.StatusAddr = ""
	a, err := New(&cfg, nil)
	require.NoError(t, err)
	t.Cleanup(a.cleanup)

	s := core.NewStream(nil, strings.NewReader("payload"), "upload.bin", 7, "")
	a.backend.CallbackStream(s)

	assert.Equal(t, core.StreamRejected, s.Status())
	assert.Zero(t, a.Transfers().Len())

	rec, err := a.store.GetTransfer(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, "rejected", rec.Status)
	assert.Equal(t, "upload.bin", rec.Name)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("")
	_, err := New(&cfg, nil)
	require.ErrorIs(t, err, config.ErrMissingURL)
}

func TestSendOnce(t *testing.T) {
	ts, frames := chatServer(t)
	cfg := testConfig(wsURL(ts))

	require.NoError(t, SendOnce(context.Background(), &cfg, nil, "ops", "deploy finished"))

	var sent []proto.Inbound
	for len(sent) < 3 {
		select {
		case f := <-frames:
			sent = append(sent, f)
		case <-time.After(3 * time.Second):
			t.Fatalf("got %d frames, want 3", len(sent))
		}
	}
	assert.Equal(t, proto.InboundTypeHello, sent[0].Type)
	assert.Equal(t, proto.InboundTypeJoin, sent[1].Type)
	assert.JSONEq(t, `{"room":"ops"}`, string(sent[1].Data))
	assert.Equal(t, proto.InboundTypeMsg, sent[2].Type)
	assert.JSONEq(t, `{"room":"ops","text":"deploy finished"}`, string(sent[2].Data))
}

func TestSendOnceUnreachable(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1/ws")
	err := SendOnce(context.Background(), &cfg, nil, "ops", "hi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotDelivered)
}
