package subscriber

import (
	"github.com/stacklok/syncstate/internal/backend"
)

// Kind selects what a subscriber compares. It is one of Workspace, Compare
// or Merge.
type Kind interface {
	// Name returns the kind label used in ids, logs and spans
	Name() string

	sealed()
}

// Workspace compares the working copy with the head of the configured branch
type Workspace struct{}

// Compare compares resources with Tag, two-way. GenID keeps concurrent
// comparisons against the same tag apart.
type Compare struct {
	Tag   backend.Tag
	GenID string
}

// Merge compares the changes between Start and End with the working copy
type Merge struct {
	Start backend.Tag
	End   backend.Tag
}

// Name returns "workspace"
func (Workspace) Name() string { return "workspace" }

// Name returns "compare"
func (Compare) Name() string { return "compare" }

// Name returns "merge"
func (Merge) Name() string { return "merge" }

func (Workspace) sealed() {}
func (Compare) sealed()   {}
func (Merge) sealed()     {}

// threeWay reports whether k classifies against a base
func threeWay(k Kind) bool {
	switch k.(type) {
	case Compare:
		return false
	default:
		return true
	}
}

// remoteTag returns the tag the remote tree of k is keyed to
func remoteTag(k Kind) backend.Tag {
	switch k := k.(type) {
	case Compare:
		return k.Tag
	case Merge:
		return k.End
	default:
		return backend.Head
	}
}
