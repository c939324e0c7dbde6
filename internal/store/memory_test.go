package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMirrorJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMirror()

	require.NoError(t, PutJSON(ctx, m, "sess-1", KeyWishlist, []string{"a", "b"}))

	var got []string
	ok, err := GetJSON(ctx, m, "sess-1", KeyWishlist, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	ok, err = GetJSON(ctx, m, "sess-2", KeyWishlist, &got)
	require.NoError(t, err)
	assert.False(t, ok, "scopes must not leak into each other")
}

func TestMemoryMirrorTakeReadsOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMirror()
	require.NoError(t, PutJSON(ctx, m, "sess", KeyLastOrder, map[string]string{"order_id": "o-1"}))

	var first map[string]string
	ok, err := TakeJSON(ctx, m, "sess", KeyLastOrder, &first)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "o-1", first["order_id"])

	var second map[string]string
	ok, err = TakeJSON(ctx, m, "sess", KeyLastOrder, &second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestMutateJSON(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMirror()

	appendID := func(id string) error {
		return MutateJSON(ctx, m, GlobalScope, KeyDeletedProductIDs, func(ids *[]string, _ bool) (bool, error) {
			*ids = append(*ids, id)
			return true, nil
		})
	}
	require.NoError(t, appendID("p1"))
	require.NoError(t, appendID("p2"))

	var ids []string
	_, err := GetJSON(ctx, m, GlobalScope, KeyDeletedProductIDs, &ids)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	err = MutateJSON(ctx, m, GlobalScope, KeyDeletedProductIDs, func(ids *[]string, exists bool) (bool, error) {
		assert.True(t, exists)
		return false, nil
	})
	require.NoError(t, err)
	assert.Zero(t, m.Len())
}

func TestMutateJSONKeepsEntryOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMirror()
	require.NoError(t, PutJSON(ctx, m, "s", KeyCart, []int{1}))

	boom := errors.New("boom")
	err := MutateJSON(ctx, m, "s", KeyCart, func(v *[]int, _ bool) (bool, error) {
		*v = nil
		return true, boom
	})
	assert.ErrorIs(t, err, boom)

	var got []int
	_, err = GetJSON(ctx, m, "s", KeyCart, &got)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got)
}

func TestMemoryMirrorFailWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMirror()
	m.FailWrites = errors.New("disk full")

	assert.Error(t, PutJSON(ctx, m, "s", KeyCart, 1))
	assert.Error(t, m.Delete(ctx, "s", KeyCart))
}
