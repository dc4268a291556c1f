// Package syncinfo classifies a resource from its local copy, its base
// variant and its remote variant.
//
// Classify is pure: it reads nothing but its Input and writes nothing. The
// one side effect the classification can call for, dropping the tracking
// record of a resource that was deleted on both sides, is returned as a
// Cleanup for the caller to apply.
//
// # Three-way classification
//
// With a base, the local copy and the remote are each compared against the
// base with the active criterion. Folders are special-cased first since they
// carry no revision of their own; files go through the generic matrix. A
// conflicting result is then refined by the backend merge hint.
//
// # Two-way classification
//
// Without a base there is no way to tell which side moved, so every
// difference is reported as incoming.
package syncinfo

import (
	"github.com/stacklok/syncstate/internal/criteria"
	"github.com/stacklok/syncstate/internal/resource"
	"github.com/stacklok/syncstate/internal/variant"
)

// CleanupAction is a recommended side effect of a classification
type CleanupAction int

const (
	// CleanupUnmanage drops the tracking record of the resource
	CleanupUnmanage CleanupAction = iota
)

// String returns the string representation of the action
func (a CleanupAction) String() string {
	switch a {
	case CleanupUnmanage:
		return "unmanage"
	default:
		return "unknown"
	}
}

// Cleanup is a side effect recommended by Classify
type Cleanup struct {
	Action CleanupAction
	Path   resource.Path
}

// Input is everything Classify looks at
type Input struct {
	// Local is the local resource. Exists is false for phantoms and for
	// resources that were never here.
	Local *criteria.Local

	// Tracked reports whether a local folder is under version control
	Tracked bool

	// OnlyOutgoingDeletions reports whether a phantom folder contains at
	// least one outgoing file deletion and nothing else. It is only called
	// for tracked phantom folders that still exist remotely.
	OnlyOutgoingDeletions func() bool

	Base   *variant.Variant
	Remote *variant.Variant

	Criterion criteria.Criterion

	// ThreeWay selects three-way classification; Base is ignored otherwise
	ThreeWay bool
}

// Result is the outcome of Classify
type Result struct {
	State   State
	Cleanup *Cleanup
}

// Classify computes the synchronization state of one resource
func Classify(in Input) Result {
	local := in.Local
	if local == nil {
		local = &criteria.Local{}
	}

	var state State
	switch {
	case !in.ThreeWay:
		state = twoWay(local, in.Remote, in.Criterion)
	case local.IsFolder() || in.Remote.IsFolder():
		state = folder(local, in)
	default:
		state = threeWay(local, in.Base, in.Remote, in.Criterion)
		state = applyMergeHint(state, in.Remote)
	}

	// a deletion on both sides leaves nothing to synchronize, only a stale record
	if state == (State{Direction: Conflicting, Change: ChangeDeletion, Conflict: ConflictPseudo}) {
		return Result{
			State:   InSyncState,
			Cleanup: &Cleanup{Action: CleanupUnmanage, Path: local.Path},
		}
	}
	return Result{State: state}
}

func folder(local *criteria.Local, in Input) State {
	remote := in.Remote
	switch {
	case !local.Exists && remote != nil:
		if in.Tracked && in.OnlyOutgoingDeletions != nil && in.OnlyOutgoingDeletions() {
			return InSyncState
		}
		return State{Direction: Incoming, Change: ChangeAddition}
	case !local.Exists:
		return InSyncState
	case remote == nil && in.Tracked:
		return State{Direction: Incoming, Change: ChangeDeletion}
	case remote == nil:
		return State{Direction: Outgoing, Change: ChangeAddition}
	case !in.Tracked:
		return State{Direction: Conflicting, Change: ChangeAddition}
	default:
		return InSyncState
	}
}

func threeWay(local *criteria.Local, base, remote *variant.Variant, c criteria.Criterion) State {
	if base == nil {
		if remote == nil {
			if local.Exists {
				return State{Direction: Outgoing, Change: ChangeAddition}
			}
			return InSyncState
		}
		if !local.Exists {
			return State{Direction: Incoming, Change: ChangeAddition}
		}
		if c.CompareLocal(local, remote) {
			return State{Direction: Conflicting, Change: ChangeAddition, Conflict: ConflictPseudo}
		}
		return State{Direction: Conflicting, Change: ChangeAddition}
	}

	if !local.Exists {
		if remote == nil {
			return State{Direction: Conflicting, Change: ChangeDeletion, Conflict: ConflictPseudo}
		}
		if c.CompareVariants(base, remote) {
			return State{Direction: Outgoing, Change: ChangeDeletion}
		}
		return State{Direction: Conflicting, Change: ChangeModification}
	}

	localUnchanged := c.CompareLocal(local, base)
	if remote == nil {
		if localUnchanged {
			return State{Direction: Incoming, Change: ChangeDeletion}
		}
		return State{Direction: Conflicting, Change: ChangeModification}
	}

	remoteUnchanged := c.CompareVariants(base, remote)
	switch {
	case localUnchanged && remoteUnchanged:
		return InSyncState
	case localUnchanged:
		return State{Direction: Incoming, Change: ChangeModification}
	case remoteUnchanged:
		return State{Direction: Outgoing, Change: ChangeModification}
	case c.CompareLocal(local, remote):
		return State{Direction: Conflicting, Change: ChangeModification, Conflict: ConflictPseudo}
	default:
		return State{Direction: Conflicting, Change: ChangeModification}
	}
}

func twoWay(local *criteria.Local, remote *variant.Variant, c criteria.Criterion) State {
	if remote == nil {
		if local.Exists {
			return State{Direction: Incoming, Change: ChangeDeletion}
		}
		return InSyncState
	}
	if !local.Exists {
		return State{Direction: Incoming, Change: ChangeAddition}
	}
	if c.CompareLocal(local, remote) {
		return InSyncState
	}
	return State{Direction: Incoming, Change: ChangeModification}
}

// applyMergeHint upgrades a plain conflict with the backend's merge verdict
func applyMergeHint(s State, remote *variant.Variant) State {
	if remote == nil || s.Direction != Conflicting || s.Conflict == ConflictPseudo {
		return s
	}
	switch remote.MergeHint {
	case variant.MergeHintMergeable:
		s.Conflict = ConflictAutomerge
	case variant.MergeHintConflict:
		s.Conflict = ConflictManual
	}
	return s
}
