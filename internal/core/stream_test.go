package core

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirebot/internal/identity/identitytest"
)

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	return NewStream(identitytest.NewUser("alice"), strings.NewReader("payload"), "notes.txt", 100, "text/plain")
}

// driveTo moves a fresh stream into the requested status through legal transitions.
func driveTo(t *testing.T, status StreamStatus) *Stream {
	t.Helper()
	s := newTestStream(t)
	switch status {
	case StreamPending:
	case StreamInProgress:
		require.NoError(t, s.Accept())
	case StreamSuccess:
		require.NoError(t, s.Accept())
		require.NoError(t, s.Success())
	case StreamRejected:
		require.NoError(t, s.Reject())
	case StreamError:
		s.Fail("disk full")
	default:
		t.Fatalf("cannot drive stream to %s", status)
	}
	return s
}

var allReachable = []StreamStatus{StreamPending, StreamInProgress, StreamSuccess, StreamRejected, StreamError}

func TestStreamGuardedTransitions(t *testing.T) {
	tests := []struct {
		op    string
		from  StreamStatus
		apply func(*Stream) error
		to    StreamStatus
	}{
		{op: "accept", from: StreamPending, apply: (*Stream).Accept, to: StreamInProgress},
		{op: "reject", from: StreamPending, apply: (*Stream).Reject, to: StreamRejected},
		{op: "success", from: StreamInProgress, apply: (*Stream).Success, to: StreamSuccess},
	}

	for _, tt := range tests {
		for _, from := range allReachable {
			t.Run(tt.op+"_from_"+string(from), func(t *testing.T) {
				s := driveTo(t, from)
				err := tt.apply(s)
				if from == tt.from {
					require.NoError(t, err)
					assert.Equal(t, tt.to, s.Status())
					return
				}
				require.ErrorIs(t, err, ErrInvalidState)
				var serr *StateError
				require.ErrorAs(t, err, &serr)
				assert.Equal(t, tt.op, serr.Op)
				assert.Equal(t, from, serr.From)
				assert.Equal(t, from, s.Status(), "failed transition leaves status unchanged")
			})
		}
	}
}

func TestStreamFailFromAnyState(t *testing.T) {
	for _, from := range allReachable {
		t.Run(string(from), func(t *testing.T) {
			s := driveTo(t, from)
			s.Fail("connection reset")
			assert.Equal(t, StreamError, s.Status())
			assert.Equal(t, "connection reset", s.Reason())
		})
	}

	s := newTestStream(t)
	s.Fail("")
	assert.Equal(t, StreamError, s.Status())
	assert.Equal(t, DefaultReason, s.Reason())
}

func TestStreamTransferScenario(t *testing.T) {
	alice := identitytest.NewUser("alice")
	s := NewStream(alice, strings.NewReader("x"), "", 100, "")

	require.NoError(t, s.Accept())
	assert.Equal(t, StreamInProgress, s.Status())

	s.AckData(50)
	assert.Equal(t, int64(50), s.Transferred())
	assert.Equal(t, StreamInProgress, s.Status())

	require.NoError(t, s.Success())
	assert.Equal(t, StreamSuccess, s.Status())

	require.ErrorIs(t, s.Accept(), ErrInvalidState)
	assert.Equal(t, StreamSuccess, s.Status())
}

func TestStreamAckDataInAnyState(t *testing.T) {
	s := newTestStream(t)
	s.AckData(10)
	assert.Equal(t, int64(10), s.Transferred())
	assert.Equal(t, StreamPending, s.Status())
}

func TestStreamReadThrough(t *testing.T) {
	s := newTestStream(t)
	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestStreamClone(t *testing.T) {
	s := driveTo(t, StreamInProgress)
	s.AckData(7)

	clone := s.Clone(strings.NewReader("retry"))
	assert.NotEqual(t, s.ID(), clone.ID())
	assert.Equal(t, s.Identifier(), clone.Identifier())
	assert.Equal(t, "notes.txt", clone.Name())
	assert.Equal(t, int64(100), clone.Size())
	assert.Equal(t, "text/plain", clone.StreamType())
	assert.Equal(t, StreamPending, clone.Status())
	assert.Zero(t, clone.Transferred())

	data, err := io.ReadAll(clone)
	require.NoError(t, err)
	assert.Equal(t, "retry", string(data))
}

func TestStreamStatusTerminal(t *testing.T) {
	assert.False(t, StreamPending.Terminal())
	assert.False(t, StreamInProgress.Terminal())
	assert.False(t, StreamPaused.Terminal())
	assert.True(t, StreamSuccess.Terminal())
	assert.True(t, StreamError.Terminal())
	assert.True(t, StreamRejected.Terminal())
}
