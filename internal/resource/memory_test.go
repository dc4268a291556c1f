package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_StatAndContent(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.AddFile("/projA/src/a.txt", []byte("hello"))

	info, err := s.Stat("/projA/src/a.txt")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, KindFile, info.Kind)

	info, err = s.Stat("/projA/src")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, KindFolder, info.Kind)

	content, err := s.Content("/projA/src/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	_, err = s.Content("/projA/missing")
	assert.True(t, errors.Is(err, ErrPathNotFound))
}

func TestMemoryStore_MetadataLifecycle(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.AddFile("/projA/a.txt", []byte("v1"))
	ch := s.Events().Subscribe()
	defer s.Events().Unsubscribe(ch)

	require.NoError(t, s.SetMetadata("/projA/a.txt", &Metadata{Revision: "1.1", Checksum: Checksum([]byte("v1"))}))
	assert.Equal(t, Path("/projA/a.txt"), (<-ch).Path)
	assert.True(t, s.Tracked("/projA/a.txt"))

	md, err := s.Metadata("/projA/a.txt")
	require.NoError(t, err)
	assert.False(t, md.Modified)
	assert.False(t, md.Timestamp.IsZero())

	require.NoError(t, s.WriteContent("/projA/a.txt", []byte("v2")))
	md, err = s.Metadata("/projA/a.txt")
	require.NoError(t, err)
	assert.True(t, md.Modified)

	require.NoError(t, s.Unmanage("/projA/a.txt"))
	assert.Equal(t, Path("/projA/a.txt"), (<-ch).Path)
	assert.False(t, s.Tracked("/projA/a.txt"))

	// unmanaging twice does nothing and publishes nothing
	require.NoError(t, s.Unmanage("/projA/a.txt"))
	assert.Empty(t, ch)
}

func TestMemoryStore_CorruptMetadata(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.AddFile("/a.txt", nil)
	s.SetRawMetadata("/a.txt", []byte("garbage"))

	md, err := s.Metadata("/a.txt")
	assert.Nil(t, md)
	var mdErr *MetadataError
	assert.True(t, errors.As(err, &mdErr))
	assert.True(t, s.Tracked("/a.txt"))
}

func TestMemoryStore_ChildrenIncludePhantoms(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.AddFile("/projA/keep.txt", nil)
	s.AddFile("/projA/gone.txt", nil)
	s.AddFolder("/projA/sub")
	require.NoError(t, s.SetMetadata("/projA/gone.txt", &Metadata{Revision: "1.1"}))
	require.NoError(t, s.SetMetadata("/projA/sub", &Metadata{Folder: true}))
	s.Remove("/projA/gone.txt")
	s.Remove("/projA/sub")

	children, err := s.Children("/projA")
	require.NoError(t, err)
	require.Len(t, children, 3)

	assert.Equal(t, Info{Path: "/projA/gone.txt", Kind: KindFile}, children[0])
	assert.Equal(t, Info{Path: "/projA/keep.txt", Kind: KindFile, Exists: true}, children[1])
	assert.Equal(t, Info{Path: "/projA/sub", Kind: KindFolder}, children[2])
}

func TestMemoryStore_Projects(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.AddFolder("/projB")
	s.AddFolder("/projA")
	s.AddFolder("/scratch")
	s.AddFolder("/projA/nested")
	require.NoError(t, s.SetMetadata("/projA", &Metadata{Folder: true}))
	require.NoError(t, s.SetMetadata("/projB", &Metadata{Folder: true}))
	require.NoError(t, s.SetMetadata("/projA/nested", &Metadata{Folder: true}))

	projects, err := s.Projects()
	require.NoError(t, err)
	assert.Equal(t, []Path{"/projA", "/projB"}, projects)
}

func TestWalk(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.AddFile("/projA/a.txt", nil)
	s.AddFile("/projA/sub/b.txt", nil)
	require.NoError(t, s.SetMetadata("/projA/c.txt", &Metadata{Revision: "1.1"}))

	tests := []struct {
		name  string
		depth Depth
		want  []Path
	}{
		{name: "zero", depth: DepthZero, want: []Path{"/projA"}},
		{name: "one", depth: DepthOne, want: []Path{"/projA", "/projA/a.txt", "/projA/c.txt", "/projA/sub"}},
		{name: "infinite", depth: DepthInfinite, want: []Path{"/projA", "/projA/a.txt", "/projA/c.txt", "/projA/sub", "/projA/sub/b.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []Path
			err := Walk(s, "/projA", tt.depth, func(info Info) error {
				got = append(got, info.Path)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWalk_SkipDir(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.AddFile("/projA/sub/b.txt", nil)
	s.AddFile("/projA/z.txt", nil)

	var got []Path
	err := Walk(s, "/projA", DepthInfinite, func(info Info) error {
		got = append(got, info.Path)
		if info.Path == "/projA/sub" {
			return SkipDir
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []Path{"/projA", "/projA/sub", "/projA/z.txt"}, got)
}
