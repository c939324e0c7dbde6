package tombstone

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-storefront/internal/docstore/memory"
	"github.com/safar/go-storefront/internal/store"
)

func newTracker() (*Tracker, *store.MemoryMirror, *memory.Store) {
	local := store.NewMemoryMirror()
	remote := memory.New()
	return NewTracker(local, remote), local, remote
}

func localIDs(t *testing.T, m store.Mirror) []string {
	t.Helper()
	var ids []string
	_, err := store.GetJSON(context.Background(), m, store.GlobalScope, store.KeyDeletedProductIDs, &ids)
	require.NoError(t, err)
	return ids
}

func TestAddWritesBothLocations(t *testing.T) {
	ctx := context.Background()
	tr, local, remote := newTracker()

	require.NoError(t, tr.Add(ctx, "p1"))
	require.NoError(t, tr.Add(ctx, "p1"))

	assert.Equal(t, []string{"p1"}, localIDs(t, local), "append-if-absent")
	assert.True(t, remote.HasTombstone("p1"))
	assert.True(t, tr.DeletedIDs(ctx).Has("p1"))
}

func TestAddIsLocalFirstWhenRemoteFails(t *testing.T) {
	ctx := context.Background()
	tr, local, remote := newTracker()
	remote.SetFailure(func(s *memory.Store) { s.FailTombstoneWrite = true })

	err := tr.Add(ctx, "p1")

	assert.ErrorIs(t, err, ErrRemoteWrite)
	assert.NotErrorIs(t, err, ErrLocalWrite)
	assert.Equal(t, []string{"p1"}, localIDs(t, local))
	assert.True(t, tr.DeletedIDs(ctx).Has("p1"))
}

func TestAddFailsWhenLocalMirrorFails(t *testing.T) {
	ctx := context.Background()
	tr, local, remote := newTracker()
	local.FailWrites = errors.New("read-only")

	err := tr.Add(ctx, "p1")

	assert.ErrorIs(t, err, ErrLocalWrite)
	assert.False(t, remote.HasTombstone("p1"))
}

func TestRepairUnionsAndHealsLocalMirror(t *testing.T) {
	ctx := context.Background()
	tr, local, remote := newTracker()

	require.NoError(t, store.PutJSON(ctx, local, store.GlobalScope, store.KeyDeletedProductIDs, []string{"local-only"}))
	require.NoError(t, remote.PutTombstone(ctx, "remote-only", time.Now()))

	set, err := tr.Repair(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"local-only", "remote-only"}, set.IDs())
	assert.Equal(t, []string{"local-only", "remote-only"}, localIDs(t, local))
}

func TestRepairFallsBackToLocalWhenRemoteUnreadable(t *testing.T) {
	ctx := context.Background()
	tr, local, remote := newTracker()
	require.NoError(t, store.PutJSON(ctx, local, store.GlobalScope, store.KeyDeletedProductIDs, []string{"p1"}))
	remote.SetFailure(func(s *memory.Store) { s.FailTombstoneReads = true })

	set, err := tr.Repair(ctx)

	assert.ErrorIs(t, err, ErrRemoteRead)
	assert.Equal(t, []string{"p1"}, set.IDs())
	assert.True(t, tr.DeletedIDs(ctx).Has("p1"), "DeletedIDs degrades instead of failing")
}

func TestRepairReplacesCorruptLocalMirror(t *testing.T) {
	ctx := context.Background()
	tr, local, remote := newTracker()
	require.NoError(t, local.Put(ctx, store.GlobalScope, store.KeyDeletedProductIDs, []byte(`{"not":"a list"}`)))
	require.NoError(t, remote.PutTombstone(ctx, "p9", time.Now()))

	set, err := tr.Repair(ctx)

	assert.ErrorIs(t, err, ErrLocalRead)
	assert.True(t, set.Has("p9"))
	assert.Equal(t, []string{"p9"}, localIDs(t, local))
}

func TestRemoveUndeletes(t *testing.T) {
	ctx := context.Background()
	tr, local, remote := newTracker()
	require.NoError(t, tr.Add(ctx, "p1"))
	require.NoError(t, tr.Add(ctx, "p2"))

	require.NoError(t, tr.Remove(ctx, "p1"))

	assert.Equal(t, []string{"p2"}, localIDs(t, local))
	assert.False(t, remote.HasTombstone("p1"))
	assert.False(t, tr.DeletedIDs(ctx).Has("p1"))
}

func TestRemoveKeepsLocalWhenRemoteFails(t *testing.T) {
	ctx := context.Background()
	tr, local, remote := newTracker()
	require.NoError(t, tr.Add(ctx, "p1"))
	remote.SetFailure(func(s *memory.Store) { s.FailTombstoneWrite = true })

	err := tr.Remove(ctx, "p1")

	assert.ErrorIs(t, err, ErrRemoteWrite)
	assert.Equal(t, []string{"p1"}, localIDs(t, local), "product stays hidden until both copies agree")
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	tr, local, remote := newTracker()
	require.NoError(t, tr.Add(ctx, "p1"))
	require.NoError(t, tr.Add(ctx, "p2"))

	require.NoError(t, tr.ClearAll(ctx))

	assert.Empty(t, localIDs(t, local))
	assert.False(t, remote.HasTombstone("p1"))
	assert.Empty(t, tr.DeletedIDs(ctx))
}

func TestLocalOnlyTracker(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(store.NewMemoryMirror(), nil)

	require.NoError(t, tr.Add(ctx, "p1"))
	set, err := tr.Repair(ctx)
	require.NoError(t, err)
	assert.True(t, set.Has("p1"))
}
