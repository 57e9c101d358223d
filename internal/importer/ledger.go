package importer

import (
	"fmt"
	"sync"

	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
)

// Decision is the operator's choice for one conflicting row.
type Decision string

const (
	DecisionSkip    Decision = "skip"
	DecisionReplace Decision = "replace"
)

// Ledger holds one decision per conflicting row, defaulting to skip. The
// commit engine reads a snapshot once at commit time; ledger edits after
// that do not affect an in-flight commit.
type Ledger struct {
	mu        sync.RWMutex
	decisions map[kvk.MatchKey]Decision
}

// NewLedger builds a ledger over the detected conflicts, all set to skip.
func NewLedger(conflicts []Conflict) *Ledger {
	decisions := make(map[kvk.MatchKey]Decision, len(conflicts))
	for _, c := range conflicts {
		decisions[c.Incoming.Key()] = DecisionSkip
	}
	return &Ledger{decisions: decisions}
}

// SetAll bulk-sets every decision.
func (l *Ledger) SetAll(d Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.decisions {
		l.decisions[key] = d
	}
}

// Toggle flips one row's decision and returns the new value. The second
// return is false when the key is not a known conflict.
func (l *Ledger) Toggle(key kvk.MatchKey) (Decision, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.decisions[key]
	if !ok {
		return "", false
	}
	next := DecisionReplace
	if current == DecisionReplace {
		next = DecisionSkip
	}
	l.decisions[key] = next
	return next, true
}

// Decision returns the current decision for a key.
func (l *Ledger) Decision(key kvk.MatchKey) (Decision, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.decisions[key]
	return d, ok
}

// Snapshot returns an immutable copy of the decision set.
func (l *Ledger) Snapshot() map[kvk.MatchKey]Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snapshot := make(map[kvk.MatchKey]Decision, len(l.decisions))
	for key, d := range l.decisions {
		snapshot[key] = d
	}
	return snapshot
}

// Decisions returns a JSON-friendly view for the preview response, keyed
// "kingdomID/kvkID".
func (l *Ledger) Decisions() map[string]Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()
	view := make(map[string]Decision, len(l.decisions))
	for key, d := range l.decisions {
		view[fmt.Sprintf("%d/%d", key.KingdomID, key.KvKID)] = d
	}
	return view
}
