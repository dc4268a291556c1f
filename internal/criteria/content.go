package criteria

import (
	"bytes"
	"log/slog"
	"unicode"

	"github.com/stacklok/syncstate/internal/variant"
)

// content compares bytes when revisions differ
type content struct {
	revisions        Criterion
	ignoreWhitespace bool
}

// ContentOption configures the content criterion
type ContentOption func(*content)

// WithIgnoreWhitespace drops all Unicode whitespace before comparing
func WithIgnoreWhitespace(ignore bool) ContentOption {
	return func(c *content) {
		c.ignoreWhitespace = ignore
	}
}

// NewContent creates the content criterion. Equal revisions short-circuit to
// equal; otherwise the local (or base) bytes are compared with the fetched
// remote bytes. Missing remote content is never equal.
func NewContent(opts ...ContentOption) Criterion {
	c := &content{revisions: NewRevisionNumber()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (*content) ID() string {
	return IDContent
}

func (*content) UsesContent() bool {
	return true
}

func (c *content) CompareLocal(local *Local, remote *variant.Variant) bool {
	if c.revisions.CompareLocal(local, remote) {
		return true
	}
	if local == nil || remote == nil || local.IsFolder() || remote.IsFolder() {
		return false
	}
	if !local.Exists || local.Content == nil || !remote.HasContent {
		return false
	}
	data, err := local.Content()
	if err != nil {
		slog.Debug("Failed to read local content for comparison", "path", local.Path, "error", err)
		return false
	}
	return c.equal(data, remote.Content)
}

func (c *content) CompareVariants(base, remote *variant.Variant) bool {
	if c.revisions.CompareVariants(base, remote) {
		return true
	}
	if base == nil || remote == nil || base.IsFolder() || remote.IsFolder() {
		return false
	}
	if !base.HasContent || !remote.HasContent {
		return false
	}
	return c.equal(base.Content, remote.Content)
}

func (c *content) equal(a, b []byte) bool {
	if c.ignoreWhitespace {
		return bytes.Equal(stripWhitespace(a), stripWhitespace(b))
	}
	return bytes.Equal(a, b)
}

func stripWhitespace(data []byte) []byte {
	return bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, data)
}
