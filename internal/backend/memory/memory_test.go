package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/syncstate/internal/backend"
	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/variant"
)

func TestBackend_FetchRemote(t *testing.T) {
	t.Parallel()

	b := New()
	b.PutFile(backend.Head, "/projA/src/a.txt", "1.2", []byte("a"))
	b.PutFile(backend.Head, "/projA/b.txt", "1.1", []byte("b"))
	ctx := context.Background()

	all, err := b.FetchRemote(ctx, backend.Head, "/projA", resource.DepthInfinite, true)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, resource.Path("/projA"), all[0].Path)
	assert.Equal(t, resource.KindFolder, all[0].Kind)

	shallow, err := b.FetchRemote(ctx, backend.Head, "/projA", resource.DepthOne, false)
	require.NoError(t, err)
	require.Len(t, shallow, 3)
	for _, v := range shallow {
		assert.False(t, v.HasContent)
	}
	assert.Equal(t, 2, b.Calls("/projA"))
}

func TestBackend_Tags(t *testing.T) {
	t.Parallel()

	b := New()
	v1 := backend.Tag{Kind: backend.TagVersion, Name: "v1"}
	b.PutFile(v1, "/projA/a.txt", "1.1", nil)

	got, err := b.FetchRemote(context.Background(), v1, "/projA/a.txt", resource.DepthZero, false)
	require.NoError(t, err)
	require.Len(t, got, 1)

	head, err := b.FetchRemote(context.Background(), backend.Head, "/projA", resource.DepthInfinite, false)
	require.NoError(t, err)
	assert.Empty(t, head)

	_, err = b.FetchRemote(context.Background(), backend.Tag{Kind: backend.TagVersion, Name: "v9"}, "/projA", resource.DepthZero, false)
	assert.ErrorIs(t, err, backend.ErrTagNotFound)
}

func TestBackend_FailRootAndRemove(t *testing.T) {
	t.Parallel()

	b := New()
	b.Put(backend.Head, variant.Variant{Path: "/projA/a.txt", Revision: "1"})
	boom := errors.New("boom")
	b.FailRoot("/projA", boom)

	_, err := b.FetchRemote(context.Background(), backend.Head, "/projA", resource.DepthInfinite, false)
	assert.ErrorIs(t, err, boom)

	b.FailRoot("/projA", nil)
	b.Remove(backend.Head, "/projA")
	got, err := b.FetchRemote(context.Background(), backend.Head, "/projA", resource.DepthInfinite, false)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBackend_Contains(t *testing.T) {
	t.Parallel()

	assert.True(t, New().Contains("/anything"))

	b := New("/projA")
	assert.True(t, b.Contains("/projA/x"))
	assert.False(t, b.Contains("/projB"))
}
