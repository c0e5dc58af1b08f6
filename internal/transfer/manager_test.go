package transfer

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/identity/identitytest"
	"github.com/vovakirdan/wirebot/internal/metrics"
	"github.com/vovakirdan/wirebot/internal/store"
	"github.com/vovakirdan/wirebot/internal/store/sqlite"
)

func newTestManager(t *testing.T) (*Manager, *sqlite.SQLiteStore, *metrics.Metrics) {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := metrics.New()
	return NewManager(st, m, nil), st, m
}

func TestReleaseRecordsSuccessfulTransfer(t *testing.T) {
	mgr, st, m := newTestManager(t)
	ctx := context.Background()

	s := mgr.Open(identitytest.NewUser("alice"), strings.NewReader("data"), "notes.txt", 100, "text/plain")
	assert.Equal(t, []string{s.ID()}, mgr.Active())

	require.NoError(t, s.Accept())
	s.AckData(100)
	require.NoError(t, s.Success())

	rec, err := mgr.Release(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, "success", rec.Status)
	assert.Empty(t, rec.Reason)
	assert.Zero(t, mgr.Len())

	saved, err := st.GetTransfer(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, "alice", saved.Identifier)
	assert.Equal(t, int64(100), saved.Transferred)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transfers.WithLabelValues("success")))
}

func TestReleaseFailsUnfinishedStream(t *testing.T) {
	mgr, st, _ := newTestManager(t)
	ctx := context.Background()

	s := mgr.Open(identitytest.NewRoom("general"), strings.NewReader(""), "", core.SizeUnknown, "")
	require.NoError(t, s.Accept())

	rec, err := mgr.Release(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, core.StreamError, s.Status())
	assert.Equal(t, ReleasedReason, rec.Reason)
	assert.Equal(t, "general", rec.Identifier)

	list, err := st.ListTransfers(ctx, "general", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "error", list[0].Status)
}

func TestReleaseKeepsRejection(t *testing.T) {
	mgr := NewManager(nil, nil, nil)

	s := core.NewStream(identitytest.NewUser("bob"), strings.NewReader(""), "big.iso", 1<<30, "")
	mgr.Track(s)
	require.NoError(t, s.Reject())

	got, ok := mgr.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	rec, err := mgr.Release(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, "rejected", rec.Status)
}

func TestReleaseUnknownStream(t *testing.T) {
	mgr := NewManager(nil, nil, nil)

	_, err := mgr.Release(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownStream)
}

type failingStore struct{}

func (failingStore) SaveTransfer(context.Context, *store.Transfer) error {
	return assert.AnError
}

func (failingStore) GetTransfer(context.Context, string) (*store.Transfer, error) {
	return nil, store.ErrNotFound
}

func (failingStore) ListTransfers(context.Context, string, int) ([]*store.Transfer, error) {
	return nil, nil
}

func TestReleaseSurfacesStoreError(t *testing.T) {
	mgr := NewManager(failingStore{}, nil, nil)
	s := mgr.Open(identitytest.NewUser("alice"), strings.NewReader(""), "", 0, "")

	rec, err := mgr.Release(context.Background(), s.ID())
	require.ErrorIs(t, err, assert.AnError)
	require.NotNil(t, rec)
	assert.Zero(t, mgr.Len())
}
