package importer

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/kingdom-atlas/kvk-tracker/internal/kingdom"
)

// runCascade refreshes the derived data touched by a committed import:
// kingdom aggregates, history snapshots per cycle, and leaderboard ranks.
// Every step is best-effort; a failure becomes a warning on the report and
// the remaining steps still run, since all of it can be rebuilt later with a
// full recalculation.
func runCascade(store kingdom.Store, kingdomIDs, cycles []int64, report *Report) {
	agg, err := store.RecomputeAggregates(kingdomIDs)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("aggregate recomputation failed: %v", err))
		log.Error("Aggregate recomputation failed", "error", err, "kingdoms", len(kingdomIDs))
	} else {
		report.AggregatesUpdated = agg.Updated
		report.AvgScore = agg.AvgScore
	}

	for _, cycle := range cycles {
		created, err := store.BackfillHistory(cycle)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("history backfill for KvK %d failed: %v", cycle, err))
			log.Error("History backfill failed", "error", err, "kvk", cycle)
			// Rank repair still runs: whatever snapshots the cycle already
			// has can hold stale ranks worth fixing.
		} else {
			report.SnapshotsCreated += created
		}

		// Rank repair walks the leaderboard in pages so one enormous cycle
		// cannot hold a connection for its whole duration.
		offset := 0
		for {
			repair, err := store.RepairRanks(cycle, offset)
			if err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("rank repair for KvK %d at offset %d failed: %v", cycle, offset, err))
				log.Error("Rank repair failed", "error", err, "kvk", cycle, "offset", offset)
				break
			}
			report.RanksFixed += repair.Fixed
			if !repair.HasMore {
				break
			}
			offset = repair.NextOffset
		}
	}
}
