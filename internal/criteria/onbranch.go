package criteria

import (
	"github.com/stacklok/syncstate/internal/variant"
)

// revisionOnBranch tolerates later revisions of the same branch
type revisionOnBranch struct {
	revisions Criterion
}

// NewRevisionOnBranch creates a criterion that treats a remote revision as
// equal to a local copy when it is a later revision on the same branch as the
// local tracking record. Ids that are not dotted numbers only match exactly.
func NewRevisionOnBranch() Criterion {
	return &revisionOnBranch{revisions: NewRevisionNumber()}
}

func (*revisionOnBranch) ID() string {
	return IDRevisionOnBranch
}

func (*revisionOnBranch) UsesContent() bool {
	return false
}

func (c *revisionOnBranch) CompareLocal(local *Local, remote *variant.Variant) bool {
	if c.revisions.CompareLocal(local, remote) {
		return true
	}
	if local == nil || remote == nil || local.IsFolder() || remote.IsFolder() {
		return false
	}
	if !local.Exists || !local.Metadata.IsClean() {
		return false
	}
	return laterOnBranch(local.Metadata.Revision, local.Metadata.Branch, remote.Revision, remote.Branch)
}

// CompareVariants is strict: a remote that moved ahead of the base is an
// incoming change, not a stale record
func (c *revisionOnBranch) CompareVariants(base, remote *variant.Variant) bool {
	return c.revisions.CompareVariants(base, remote)
}

// laterOnBranch reports whether remote is a later revision than local on the
// same branch
func laterOnBranch(localRev, localBranch, remoteRev, remoteBranch string) bool {
	if localBranch != remoteBranch {
		return false
	}
	l, ok := ParseRevision(localRev)
	if !ok {
		return false
	}
	r, ok := ParseRevision(remoteRev)
	if !ok {
		return false
	}
	return l.SameBranch(r) && r.Last() > l.Last()
}
