// Package variant holds remote and base resource variants and the cached
// trees that keep them per subscriber.
package variant

import (
	"bytes"
	"context"

	"github.com/stacklok/syncstate/internal/resource"
)

// MergeHint is the backend's verdict on merging a remote variant into a
// locally modified file
type MergeHint int

const (
	// MergeHintNone means the backend gave no hint
	MergeHintNone MergeHint = iota
	// MergeHintMergeable means the changes can be merged automatically
	MergeHintMergeable
	// MergeHintConflict means the changes overlap and need a manual merge
	MergeHintConflict
)

// String returns the string representation of the merge hint
func (h MergeHint) String() string {
	switch h {
	case MergeHintNone:
		return "none"
	case MergeHintMergeable:
		return "mergeable"
	case MergeHintConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Variant is an immutable snapshot of a resource as a backend reports it
type Variant struct {
	Path     resource.Path
	Kind     resource.Kind
	Revision string
	Branch   string

	// Content is only meaningful when HasContent is set
	Content    []byte
	HasContent bool

	MergeHint MergeHint
}

// IsFolder reports whether the variant describes a folder
func (v *Variant) IsFolder() bool {
	return v != nil && v.Kind == resource.KindFolder
}

// Equal reports whether two variants describe the same remote state.
// Content only takes part when both sides carry it.
func (v *Variant) Equal(o *Variant) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Path != o.Path || v.Kind != o.Kind || v.Revision != o.Revision ||
		v.Branch != o.Branch || v.MergeHint != o.MergeHint {
		return false
	}
	if v.HasContent && o.HasContent {
		return bytes.Equal(v.Content, o.Content)
	}
	return true
}

// Fetcher retrieves the variants of a subtree from wherever a tree's data
// comes from: a backend tag or the local metadata.
type Fetcher interface {
	// Fetch returns the variants of root and its members down to depth.
	// Nodes that do not exist at the source are simply absent.
	Fetch(ctx context.Context, root resource.Path, depth resource.Depth, withContent bool) ([]Variant, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, root resource.Path, depth resource.Depth, withContent bool) ([]Variant, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context, root resource.Path, depth resource.Depth, withContent bool) ([]Variant, error) {
	return f(ctx, root, depth, withContent)
}
