package criteria

import (
	"github.com/stacklok/syncstate/internal/variant"
)

// revisionNumber compares cached revision ids
type revisionNumber struct{}

// NewRevisionNumber creates the revision id criterion. Folders are always
// equal. A local file equals the remote when it has a cached revision, is
// not modified or marked, and the revisions match.
func NewRevisionNumber() Criterion {
	return revisionNumber{}
}

func (revisionNumber) ID() string {
	return IDRevision
}

func (revisionNumber) UsesContent() bool {
	return false
}

func (revisionNumber) CompareLocal(local *Local, remote *variant.Variant) bool {
	if local == nil || remote == nil {
		return false
	}
	if local.IsFolder() {
		return remote.IsFolder()
	}
	if remote.IsFolder() || !local.Exists || !local.Metadata.IsClean() {
		return false
	}
	return local.Metadata.Revision == remote.Revision
}

func (revisionNumber) CompareVariants(base, remote *variant.Variant) bool {
	if base == nil || remote == nil {
		return false
	}
	if base.IsFolder() || remote.IsFolder() {
		return base.IsFolder() && remote.IsFolder()
	}
	return base.Revision != "" && base.Revision == remote.Revision
}
