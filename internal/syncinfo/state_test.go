package syncinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateValid(t *testing.T) {
	t.Parallel()

	valid := ValidStates()
	assert.Len(t, valid, 15)

	allowed := make(map[State]bool, len(valid))
	for _, s := range valid {
		allowed[s] = true
		assert.True(t, s.Valid(), s.String())
	}

	// every other combination of the enums is rejected
	for d := InSync; d <= Conflicting; d++ {
		for c := ChangeNone; c <= ChangeModification; c++ {
			for k := ConflictNone; k <= ConflictPseudo; k++ {
				s := State{Direction: d, Change: c, Conflict: k}
				assert.Equal(t, allowed[s], s.Valid(), s.String())
			}
		}
	}

	assert.False(t, State{Direction: Conflicting, Change: ChangeDeletion, Conflict: ConflictPseudo}.Valid())
	assert.False(t, State{Direction: Direction(7)}.Valid())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "in-sync", InSyncState.String())
	assert.Equal(t, "incoming/change", State{Direction: Incoming, Change: ChangeModification}.String())
	assert.Equal(t, "conflicting/addition/pseudo",
		State{Direction: Conflicting, Change: ChangeAddition, Conflict: ConflictPseudo}.String())
	assert.Equal(t, "unmanage", CleanupUnmanage.String())
	assert.True(t, InSyncState.IsInSync())
}
