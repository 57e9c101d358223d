package importer

import (
	"testing"

	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerConflicts() []Conflict {
	return []Conflict{
		{Incoming: kvk.MatchRecord{KingdomID: 172, KvKID: 5}},
		{Incoming: kvk.MatchRecord{KingdomID: 204, KvKID: 5}},
	}
}

func TestLedger_DefaultsToSkip(t *testing.T) {
	l := NewLedger(ledgerConflicts())

	d, ok := l.Decision(kvk.MatchKey{KingdomID: 172, KvKID: 5})
	require.True(t, ok)
	assert.Equal(t, DecisionSkip, d)
}

func TestLedger_Toggle(t *testing.T) {
	l := NewLedger(ledgerConflicts())
	key := kvk.MatchKey{KingdomID: 172, KvKID: 5}

	d, ok := l.Toggle(key)
	require.True(t, ok)
	assert.Equal(t, DecisionReplace, d)

	d, ok = l.Toggle(key)
	require.True(t, ok)
	assert.Equal(t, DecisionSkip, d)

	// The other conflict is untouched.
	other, _ := l.Decision(kvk.MatchKey{KingdomID: 204, KvKID: 5})
	assert.Equal(t, DecisionSkip, other)
}

func TestLedger_ToggleUnknownKey(t *testing.T) {
	l := NewLedger(ledgerConflicts())

	_, ok := l.Toggle(kvk.MatchKey{KingdomID: 999, KvKID: 5})
	assert.False(t, ok)
}

func TestLedger_SetAll(t *testing.T) {
	l := NewLedger(ledgerConflicts())
	l.SetAll(DecisionReplace)

	for key, d := range l.Snapshot() {
		assert.Equal(t, DecisionReplace, d, "key %+v", key)
	}
}

func TestLedger_SnapshotIsImmutable(t *testing.T) {
	l := NewLedger(ledgerConflicts())
	snapshot := l.Snapshot()

	l.SetAll(DecisionReplace)

	// The snapshot taken before the edit still reads skip.
	assert.Equal(t, DecisionSkip, snapshot[kvk.MatchKey{KingdomID: 172, KvKID: 5}])
}
