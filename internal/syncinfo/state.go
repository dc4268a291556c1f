package syncinfo

import (
	"strings"
)

// Direction says which side has to act to bring a resource in sync
type Direction int

const (
	// InSync means local and remote agree
	InSync Direction = iota
	// Incoming means the remote changed
	Incoming
	// Outgoing means the local copy changed
	Outgoing
	// Conflicting means both changed
	Conflicting
)

// String returns the string representation of the direction
func (d Direction) String() string {
	switch d {
	case InSync:
		return "in-sync"
	case Incoming:
		return "incoming"
	case Outgoing:
		return "outgoing"
	case Conflicting:
		return "conflicting"
	default:
		return "unknown"
	}
}

// ChangeType is the kind of difference
type ChangeType int

const (
	// ChangeNone means no difference
	ChangeNone ChangeType = iota
	// ChangeAddition means the resource exists on one side only, newly
	ChangeAddition
	// ChangeDeletion means the resource was removed on one side
	ChangeDeletion
	// ChangeModification means both sides have differing versions
	ChangeModification
)

// String returns the string representation of the change type
func (c ChangeType) String() string {
	switch c {
	case ChangeNone:
		return "none"
	case ChangeAddition:
		return "addition"
	case ChangeDeletion:
		return "deletion"
	case ChangeModification:
		return "change"
	default:
		return "unknown"
	}
}

// ConflictKind refines a conflicting state
type ConflictKind int

const (
	// ConflictNone is a plain conflict, or no conflict at all
	ConflictNone ConflictKind = iota
	// ConflictAutomerge means the backend can merge both sides
	ConflictAutomerge
	// ConflictManual means the merge needs a human
	ConflictManual
	// ConflictPseudo means both sides made the same change
	ConflictPseudo
)

// String returns the string representation of the conflict kind
func (k ConflictKind) String() string {
	switch k {
	case ConflictNone:
		return "none"
	case ConflictAutomerge:
		return "automerge"
	case ConflictManual:
		return "manual"
	case ConflictPseudo:
		return "pseudo"
	default:
		return "unknown"
	}
}

// State is the synchronization state of a resource
type State struct {
	Direction Direction
	Change    ChangeType
	Conflict  ConflictKind
}

// InSyncState is the state of a resource with nothing to do
var InSyncState = State{Direction: InSync, Change: ChangeNone, Conflict: ConflictNone}

// IsInSync reports whether there is nothing to synchronize
func (s State) IsInSync() bool {
	return s == InSyncState
}

// Valid reports whether s is one of the reportable combinations
func (s State) Valid() bool {
	switch s.Direction {
	case InSync:
		return s.Change == ChangeNone && s.Conflict == ConflictNone
	case Incoming, Outgoing:
		return s.Change > ChangeNone && s.Change <= ChangeModification && s.Conflict == ConflictNone
	case Conflicting:
		if s.Change != ChangeAddition && s.Change != ChangeModification {
			return false
		}
		return s.Conflict >= ConflictNone && s.Conflict <= ConflictPseudo
	default:
		return false
	}
}

// String renders the state as direction/change[/conflict]
func (s State) String() string {
	if s.Direction == InSync {
		return s.Direction.String()
	}
	parts := []string{s.Direction.String(), s.Change.String()}
	if s.Conflict != ConflictNone {
		parts = append(parts, s.Conflict.String())
	}
	return strings.Join(parts, "/")
}

// ValidStates lists every reportable state
func ValidStates() []State {
	states := []State{InSyncState}
	for _, d := range []Direction{Incoming, Outgoing} {
		for _, c := range []ChangeType{ChangeAddition, ChangeDeletion, ChangeModification} {
			states = append(states, State{Direction: d, Change: c})
		}
	}
	for _, c := range []ChangeType{ChangeAddition, ChangeModification} {
		for _, k := range []ConflictKind{ConflictNone, ConflictPseudo, ConflictAutomerge, ConflictManual} {
			states = append(states, State{Direction: Conflicting, Change: c, Conflict: k})
		}
	}
	return states
}
