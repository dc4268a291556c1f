package criteria

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/variant"
)

func localFile(rev, branch string, content string) *Local {
	return &Local{
		Path:     "/projA/a.txt",
		Kind:     resource.KindFile,
		Exists:   true,
		Metadata: &resource.Metadata{Revision: rev, Branch: branch},
		Content:  func() ([]byte, error) { return []byte(content), nil },
	}
}

func remoteFile(rev, branch string) *variant.Variant {
	return &variant.Variant{Path: "/projA/a.txt", Kind: resource.KindFile, Revision: rev, Branch: branch}
}

func withContent(v *variant.Variant, content string) *variant.Variant {
	v.Content = []byte(content)
	v.HasContent = true
	return v
}

func TestRevisionNumber_CompareLocal(t *testing.T) {
	t.Parallel()

	c := NewRevisionNumber()
	tests := []struct {
		name   string
		local  *Local
		remote *variant.Variant
		want   bool
	}{
		{name: "same revision", local: localFile("1.2", "", ""), remote: remoteFile("1.2", ""), want: true},
		{name: "different revision", local: localFile("1.2", "", ""), remote: remoteFile("1.3", ""), want: false},
		{name: "no metadata", local: &Local{Kind: resource.KindFile, Exists: true}, remote: remoteFile("1.2", ""), want: false},
		{name: "nil remote", local: localFile("1.2", "", ""), remote: nil, want: false},
		{
			name:   "modified",
			local:  &Local{Kind: resource.KindFile, Exists: true, Metadata: &resource.Metadata{Revision: "1.2", Modified: true}},
			remote: remoteFile("1.2", ""),
			want:   false,
		},
		{
			name:   "added marker",
			local:  &Local{Kind: resource.KindFile, Exists: true, Metadata: &resource.Metadata{Revision: "1.2", Added: true}},
			remote: remoteFile("1.2", ""),
			want:   false,
		},
		{
			name:   "deletion marker",
			local:  &Local{Kind: resource.KindFile, Exists: true, Metadata: &resource.Metadata{Revision: "1.2", Deleted: true}},
			remote: remoteFile("1.2", ""),
			want:   false,
		},
		{
			name:   "merge marker",
			local:  &Local{Kind: resource.KindFile, Exists: true, Metadata: &resource.Metadata{Revision: "1.2", Merged: true}},
			remote: remoteFile("1.2", ""),
			want:   false,
		},
		{
			name:   "folders",
			local:  &Local{Kind: resource.KindFolder, Exists: true},
			remote: &variant.Variant{Kind: resource.KindFolder},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.CompareLocal(tt.local, tt.remote))
		})
	}
}

func TestRevisionNumber_CompareVariants(t *testing.T) {
	t.Parallel()

	c := NewRevisionNumber()
	assert.True(t, c.CompareVariants(remoteFile("1.2", ""), remoteFile("1.2", "")))
	assert.False(t, c.CompareVariants(remoteFile("1.2", ""), remoteFile("1.3", "")))
	assert.False(t, c.CompareVariants(nil, remoteFile("1.3", "")))
	assert.False(t, c.CompareVariants(remoteFile("1.3", ""), nil))
	folder := &variant.Variant{Kind: resource.KindFolder}
	assert.True(t, c.CompareVariants(folder, folder))
	assert.False(t, c.CompareVariants(folder, remoteFile("1.3", "")))
	assert.False(t, c.UsesContent())
	assert.Equal(t, IDRevision, c.ID())
}

func TestContent_CompareLocal(t *testing.T) {
	t.Parallel()

	c := NewContent()
	assert.True(t, c.UsesContent())

	// revisions match without looking at content
	assert.True(t, c.CompareLocal(localFile("1.2", "", "x"), remoteFile("1.2", "")))

	// different revision, same bytes
	assert.True(t, c.CompareLocal(localFile("1.2", "", "hello"), withContent(remoteFile("1.3", ""), "hello")))

	// different bytes
	assert.False(t, c.CompareLocal(localFile("1.2", "", "hello"), withContent(remoteFile("1.3", ""), "world")))

	// remote content not fetched
	assert.False(t, c.CompareLocal(localFile("1.2", "", "hello"), remoteFile("1.3", "")))

	// unreadable local content
	broken := localFile("1.2", "", "")
	broken.Content = func() ([]byte, error) { return nil, errors.New("io") }
	assert.False(t, c.CompareLocal(broken, withContent(remoteFile("1.3", ""), "")))

	// modified files compare by content
	modified := localFile("1.2", "", "same")
	modified.Metadata.Modified = true
	assert.True(t, c.CompareLocal(modified, withContent(remoteFile("1.2", ""), "same")))
}

func TestContent_IgnoreWhitespace(t *testing.T) {
	t.Parallel()

	strict := NewContent()
	loose := NewContent(WithIgnoreWhitespace(true))

	local := localFile("1.2", "", "a b\n\tc")
	remote := withContent(remoteFile("1.3", ""), "ab c ")

	assert.False(t, strict.CompareLocal(local, remote))
	assert.True(t, loose.CompareLocal(local, remote))
}

func TestContent_CompareVariants(t *testing.T) {
	t.Parallel()

	c := NewContent()
	assert.True(t, c.CompareVariants(withContent(remoteFile("1.2", ""), "x"), withContent(remoteFile("1.3", ""), "x")))
	assert.False(t, c.CompareVariants(withContent(remoteFile("1.2", ""), "x"), withContent(remoteFile("1.3", ""), "y")))
	assert.False(t, c.CompareVariants(remoteFile("1.2", ""), withContent(remoteFile("1.3", ""), "y")))
	assert.True(t, c.CompareVariants(remoteFile("1.2", ""), remoteFile("1.2", "")))
}

func TestRevisionOnBranch(t *testing.T) {
	t.Parallel()

	c := NewRevisionOnBranch()
	tests := []struct {
		name   string
		local  *Local
		remote *variant.Variant
		want   bool
	}{
		{name: "later on same branch", local: localFile("1.3", "main", ""), remote: remoteFile("1.5", "main"), want: true},
		{name: "equal", local: localFile("1.3", "main", ""), remote: remoteFile("1.3", "main"), want: true},
		{name: "earlier", local: localFile("1.5", "main", ""), remote: remoteFile("1.3", "main"), want: false},
		{name: "different branch name", local: localFile("1.3", "main", ""), remote: remoteFile("1.5", "dev"), want: false},
		{name: "different dotted branch", local: localFile("1.3", "", ""), remote: remoteFile("1.3.2.1", ""), want: false},
		{name: "deep branch later", local: localFile("1.3.2.1", "fix", ""), remote: remoteFile("1.3.2.4", "fix"), want: true},
		{name: "git ids only match exactly", local: localFile("abc", "", ""), remote: remoteFile("abd", ""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.CompareLocal(tt.local, tt.remote))
		})
	}

	modified := localFile("1.3", "main", "")
	modified.Metadata.Modified = true
	assert.False(t, c.CompareLocal(modified, remoteFile("1.5", "main")))

	// variants are compared strictly
	assert.True(t, c.CompareVariants(remoteFile("1.3", "main"), remoteFile("1.3", "main")))
	assert.False(t, c.CompareVariants(remoteFile("1.3", "main"), remoteFile("1.5", "main")))
	assert.False(t, c.CompareVariants(remoteFile("1.3", "main"), remoteFile("1.5", "other")))
}

func TestParseRevision(t *testing.T) {
	t.Parallel()

	rev, ok := ParseRevision("1.3.2.1")
	require.True(t, ok)
	assert.Equal(t, Revision{1, 3, 2, 1}, rev)
	assert.Equal(t, "1.3.2.1", rev.String())
	assert.Equal(t, Revision{1, 3, 2}, rev.Branch())
	assert.Equal(t, 1, rev.Last())

	for _, bad := range []string{"", "7", "1.x", "1..2", "-1.2", "a1b2c3"} {
		_, ok := ParseRevision(bad)
		assert.False(t, ok, bad)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg, err := DefaultRegistry(IDContent)
	require.NoError(t, err)
	assert.Equal(t, IDContent, reg.Default().ID())
	assert.Equal(t, IDRevisionOnBranch, reg.Get(IDRevisionOnBranch).ID())
	assert.Equal(t, IDContent, reg.Get("").ID())
	assert.Equal(t, IDContent, reg.Get("nope").ID())
	assert.Equal(t, []string{IDContent, IDRevision, IDRevisionOnBranch}, reg.IDs())

	def, err := DefaultRegistry("")
	require.NoError(t, err)
	assert.Equal(t, IDRevision, def.Default().ID())

	_, err = DefaultRegistry("bogus")
	assert.Error(t, err)
}
