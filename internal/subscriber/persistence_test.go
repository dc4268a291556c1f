package subscriber

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/syncstate/internal/backend"
	"github.com/stacklok/syncstate/internal/resource"
)

func TestFilePersistence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := memfs.New()
	p := NewFilePersistence(fs)

	record := &MergeRecord{
		ID:        "merge-1",
		Name:      "release",
		Roots:     []resource.Path{resource.NewPath("p"), resource.NewPath("q/sub")},
		Start:     "version:v1.0.0",
		End:       "branch:main",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.Save(ctx, record))

	_, err := fs.Stat("merge-1/" + MergeFileName + ".tmp")
	assert.Error(t, err, "temporary file must be renamed away")

	loaded, err := p.Load(ctx, "merge-1")
	require.NoError(t, err)
	assert.Equal(t, record, loaded)

	start, end, err := loaded.Tags()
	require.NoError(t, err)
	assert.Equal(t, backend.Tag{Kind: backend.TagVersion, Name: "v1.0.0"}, start)
	assert.Equal(t, backend.Tag{Kind: backend.TagBranch, Name: "main"}, end)

	record.End = "HEAD"
	require.NoError(t, p.Save(ctx, record))
	loaded, err = p.Load(ctx, "merge-1")
	require.NoError(t, err)
	assert.Equal(t, "HEAD", loaded.End)

	require.NoError(t, p.Save(ctx, &MergeRecord{ID: "merge-2", Start: "HEAD", End: "HEAD"}))
	all, err := p.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, "merge-1")
	assert.Contains(t, all, "merge-2")

	require.NoError(t, p.Delete(ctx, "merge-1"))
	require.NoError(t, p.Delete(ctx, "merge-1"))
	loaded, err = p.Load(ctx, "merge-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFilePersistence_LoadAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty filesystem", func(t *testing.T) {
		t.Parallel()

		all, err := NewFilePersistence(memfs.New()).LoadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("skips unreadable records and stray files", func(t *testing.T) {
		t.Parallel()

		fs := memfs.New()
		require.NoError(t, util.WriteFile(fs, "merge-broken/"+MergeFileName, []byte("{not json"), 0600))
		require.NoError(t, util.WriteFile(fs, "README", []byte("stray"), 0600))
		require.NoError(t, fs.MkdirAll("empty", 0750))

		p := NewFilePersistence(fs)
		require.NoError(t, p.Save(ctx, &MergeRecord{ID: "merge-ok", Start: "HEAD", End: "HEAD"}))

		all, err := p.LoadAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Contains(t, all, "merge-ok")

		_, err = p.Load(ctx, "merge-broken")
		assert.ErrorContains(t, err, "failed to unmarshal merge 'merge-broken'")
	})
}

func TestFilePersistence_InvalidIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewFilePersistence(memfs.New())

	for _, id := range []string{"", ".", "..", "a/b", "../escape"} {
		assert.Error(t, p.Save(ctx, &MergeRecord{ID: id}), id)
		_, err := p.Load(ctx, id)
		assert.Error(t, err, id)
		assert.Error(t, p.Delete(ctx, id), id)
	}
}

func TestMergeRecord_Tags(t *testing.T) {
	t.Parallel()

	_, _, err := (&MergeRecord{ID: "m", Start: "nope:x", End: "HEAD"}).Tags()
	assert.ErrorContains(t, err, "invalid start tag")

	_, _, err = (&MergeRecord{ID: "m", Start: "HEAD", End: "date:yesterday"}).Tags()
	assert.ErrorContains(t, err, "invalid end tag")
}
