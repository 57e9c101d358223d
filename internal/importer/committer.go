package importer

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/kingdom-atlas/kvk-tracker/internal/kingdom"
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
)

// CommitResult carries the commit engine's counts. Partial progress stays in
// the result even when a batch fails fatally.
type CommitResult struct {
	Inserted        int
	Replaced        int
	KingdomsCreated int
	Warnings        []string
	// TouchedKingdoms and Cycles feed the recalculation cascade; they only
	// cover records actually written.
	TouchedKingdoms []int64
	Cycles          []int64
}

// commit applies an accepted import to the store. Provisioning and the
// maintenance-mode toggles degrade to warnings; a failed record batch is
// fatal and aborts the remaining batches while keeping everything already
// applied. Derived-data recomputation is suspended for the duration and
// resumed on every exit path.
func commit(store kingdom.Store, fresh, replace []kvk.MatchRecord, missing []int64, onProgress ProgressFunc) (*CommitResult, error) {
	result := &CommitResult{}

	total := len(missing) + len(fresh) + len(replace)
	completed := 0
	report := func(phase string, n int) {
		completed += n
		if onProgress != nil {
			onProgress(Progress{Completed: completed, Total: total, Phase: phase})
		}
	}

	// Phase 1: provision kingdoms referenced by the file but not stored yet.
	// Provisioning is idempotent, so a partial failure here only costs a
	// retry; the commit proceeds and the affected rows fail loudly instead.
	for start := 0; start < len(missing); start += kingdomBatchSize {
		batch := missing[start:min(start+kingdomBatchSize, len(missing))]
		if err := store.ProvisionKingdoms(batch); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("provisioning batch at offset %d failed: %v", start, err))
		} else {
			result.KingdomsCreated += len(batch)
		}
		report("provisioning", len(batch))
	}

	// Phase 2: enter maintenance mode so per-write recomputation does not
	// fire once per record. A failure to enter is survivable, just slow.
	if err := store.SuspendDerivedTriggers(); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("failed to suspend derived recomputation: %v", err))
	}
	defer func() {
		if err := store.ResumeDerivedTriggers(); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("failed to resume derived recomputation: %v", err))
			log.Error("Derived recomputation left suspended", "error", err)
		}
	}()

	touched := make(map[int64]bool)
	cycles := make(map[int64]bool)
	recordApplied := func(records []kvk.MatchRecord) {
		for _, r := range records {
			touched[r.KingdomID] = true
			cycles[r.KvKID] = true
			if r.OpponentID != kvk.NoOpponent {
				touched[r.OpponentID] = true
			}
		}
	}
	flush := func() {
		result.TouchedKingdoms = sortedKeys(touched)
		result.Cycles = sortedKeys(cycles)
	}

	// Rows present on their own line in the file keep their own write; the
	// mirror is only derived when the opposite side is not in the file.
	ownSide := make(map[kvk.MatchKey]bool, len(fresh)+len(replace))
	for _, r := range fresh {
		ownSide[r.Key()] = true
	}
	for _, r := range replace {
		ownSide[r.Key()] = true
	}

	// Phase 3: fresh rows in strict-insert batches so a racing write since
	// the preview surfaces as an error instead of a silent overwrite. The
	// batch counts as applied as soon as its own-side write lands; a failing
	// mirror upsert still aborts, but the durable rows keep their place in
	// the counts and the cascade.
	for start := 0; start < len(fresh); start += recordBatchSize {
		batch := fresh[start:min(start+recordBatchSize, len(fresh))]
		if err := store.InsertMatchRecords(batch); err != nil {
			flush()
			return result, fmt.Errorf("insert batch %d (rows %d-%d) failed: %w",
				start/recordBatchSize+1, start+1, start+len(batch), err)
		}
		result.Inserted += len(batch)
		recordApplied(batch)
		if err := writeMirrors(store, batch, ownSide); err != nil {
			flush()
			return result, fmt.Errorf("mirror upsert for insert batch %d failed: %w", start/recordBatchSize+1, err)
		}
		report("inserting", len(batch))
	}

	// Phase 4: operator-approved replacements.
	for start := 0; start < len(replace); start += recordBatchSize {
		batch := replace[start:min(start+recordBatchSize, len(replace))]
		if err := store.UpsertMatchRecords(batch); err != nil {
			flush()
			return result, fmt.Errorf("replace batch %d (rows %d-%d) failed: %w",
				start/recordBatchSize+1, start+1, start+len(batch), err)
		}
		result.Replaced += len(batch)
		recordApplied(batch)
		if err := writeMirrors(store, batch, ownSide); err != nil {
			flush()
			return result, fmt.Errorf("mirror upsert for replace batch %d failed: %w", start/recordBatchSize+1, err)
		}
		report("replacing", len(batch))
	}

	flush()
	return result, nil
}

// writeMirrors upserts the opponent-side record for every non-bye record in
// the batch whose opposite side is not itself being written from the file.
func writeMirrors(store kingdom.Store, batch []kvk.MatchRecord, ownSide map[kvk.MatchKey]bool) error {
	var mirrors []kvk.MatchRecord
	for _, r := range batch {
		if r.OpponentID == kvk.NoOpponent {
			continue
		}
		m := r.Mirror()
		if ownSide[m.Key()] {
			continue
		}
		mirrors = append(mirrors, m)
	}
	if len(mirrors) == 0 {
		return nil
	}
	return store.UpsertMatchRecords(mirrors)
}

func sortedKeys(set map[int64]bool) []int64 {
	keys := make([]int64, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
