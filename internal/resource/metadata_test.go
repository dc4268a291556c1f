package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataCodec(t *testing.T) {
	t.Parallel()

	md := &Metadata{Revision: "1.2", Branch: "main", Checksum: Checksum([]byte("hello"))}
	blob, err := EncodeMetadata(md)
	require.NoError(t, err)

	decoded, err := DecodeMetadata("/a", blob)
	require.NoError(t, err)
	assert.Equal(t, md.Revision, decoded.Revision)
	assert.Equal(t, md.Branch, decoded.Branch)
	assert.Equal(t, md.Checksum, decoded.Checksum)

	empty, err := EncodeMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestDecodeMetadata_Empty(t *testing.T) {
	t.Parallel()

	md, err := DecodeMetadata("/a", nil)
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestDecodeMetadata_Corrupt(t *testing.T) {
	t.Parallel()

	md, err := DecodeMetadata("/a/b.txt", []byte("{not json"))
	require.Error(t, err)
	assert.Nil(t, md)

	var mdErr *MetadataError
	require.True(t, errors.As(err, &mdErr))
	assert.Equal(t, Path("/a/b.txt"), mdErr.Path)
	assert.Contains(t, err.Error(), "/a/b.txt")
}

func TestMetadataIsClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		md   *Metadata
		want bool
	}{
		{name: "nil", md: nil, want: false},
		{name: "clean", md: &Metadata{Revision: "1.1"}, want: true},
		{name: "no revision", md: &Metadata{}, want: false},
		{name: "folder", md: &Metadata{Folder: true, Revision: "x"}, want: false},
		{name: "added", md: &Metadata{Revision: "1.1", Added: true}, want: false},
		{name: "deleted", md: &Metadata{Revision: "1.1", Deleted: true}, want: false},
		{name: "merged", md: &Metadata{Revision: "1.1", Merged: true}, want: false},
		{name: "modified", md: &Metadata{Revision: "1.1", Modified: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.md.IsClean())
		})
	}
}
