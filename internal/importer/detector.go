package importer

import (
	"sort"

	"github.com/kingdom-atlas/kvk-tracker/internal/kingdom"
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
)

// Detect partitions the accepted candidates into fresh rows and conflicts
// against the store, and discovers which referenced kingdoms do not exist
// yet. Lookups are batched across the whole candidate set; the store is
// never mutated.
func Detect(store kingdom.Store, accepted []Candidate) (*Partition, error) {
	keys := make([]kvk.MatchKey, 0, len(accepted))
	idSet := make(map[int64]bool)
	for _, c := range accepted {
		keys = append(keys, c.Record.Key())
		idSet[c.Record.KingdomID] = true
		if c.Record.OpponentID != kvk.NoOpponent {
			idSet[c.Record.OpponentID] = true
		}
	}

	existing, err := store.GetMatchRecords(keys)
	if err != nil {
		return nil, err
	}

	partition := &Partition{}
	for _, c := range accepted {
		if stored, ok := existing[c.Record.Key()]; ok {
			partition.Conflicts = append(partition.Conflicts, Conflict{
				Row:      c.Row,
				Incoming: c.Record,
				Existing: stored,
			})
		} else {
			partition.Fresh = append(partition.Fresh, c)
		}
	}

	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	known, err := store.KnownKingdoms(ids)
	if err != nil {
		return nil, err
	}
	for id, exists := range known {
		if !exists {
			partition.MissingKingdoms = append(partition.MissingKingdoms, id)
		}
	}
	sort.Slice(partition.MissingKingdoms, func(i, j int) bool {
		return partition.MissingKingdoms[i] < partition.MissingKingdoms[j]
	})

	return partition, nil
}
