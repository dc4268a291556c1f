// Package criteria decides whether a local resource or a base variant is
// equal to a remote variant. Different criteria trade accuracy against cost:
// comparing revision ids is free, comparing content needs the bytes.
package criteria

import (
	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/variant"
)

// Criterion ids
const (
	IDRevision         = "revision"
	IDContent          = "content"
	IDRevisionOnBranch = "revision-on-branch"
)

// Local is the view of a local resource a criterion compares
type Local struct {
	Path     resource.Path
	Kind     resource.Kind
	Exists   bool
	Metadata *resource.Metadata

	// Content loads the local bytes on demand
	Content func() ([]byte, error)
}

// IsFolder reports whether the local resource is a folder
func (l *Local) IsFolder() bool {
	return l != nil && l.Kind == resource.KindFolder
}

// Criterion compares a resource against a remote variant
type Criterion interface {
	// ID returns the stable identifier of the criterion
	ID() string

	// CompareLocal reports whether the local resource equals remote
	CompareLocal(local *Local, remote *variant.Variant) bool

	// CompareVariants reports whether base equals remote
	CompareVariants(base, remote *variant.Variant) bool

	// UsesContent reports whether refreshes must fetch variant content
	UsesContent() bool
}
