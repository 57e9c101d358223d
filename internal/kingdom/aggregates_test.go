package kingdom_test

import (
	"testing"

	"github.com/kingdom-atlas/kvk-tracker/internal/kingdom"
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHistory(t *testing.T, store kingdom.Store) {
	t.Helper()
	require.NoError(t, store.ProvisionKingdoms([]int64{10, 20, 30}))
	require.NoError(t, store.SuspendDerivedTriggers())

	records := []kvk.MatchRecord{
		record(10, 1, 20, kvk.PhaseWin, kvk.PhaseWin),  // Domination
		record(20, 1, 10, kvk.PhaseLoss, kvk.PhaseLoss),
		record(10, 2, 20, kvk.PhaseLoss, kvk.PhaseWin), // Comeback
		record(20, 2, 10, kvk.PhaseWin, kvk.PhaseLoss),
		record(30, 2, 0, kvk.PhaseBye, kvk.PhaseBye),
		record(10, 3, 30, kvk.PhaseWin, kvk.PhaseLoss), // Reversal
		record(30, 3, 10, kvk.PhaseLoss, kvk.PhaseWin),
	}
	require.NoError(t, store.InsertMatchRecords(records))
}

func TestRecomputeAggregates(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()
	seedHistory(t, store)

	result, err := store.RecomputeAggregates(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Updated)

	k, err := store.GetKingdom(10)
	require.NoError(t, err)
	assert.Equal(t, 2, k.PrepWins)
	assert.Equal(t, 1, k.PrepLosses)
	assert.Equal(t, 2, k.BattleWins)
	assert.Equal(t, 1, k.BattleLosses)
	// Domination(5) + Comeback(4) + Reversal(2)
	assert.Equal(t, float64(11), k.Score)
	assert.Equal(t, 0, k.CurrentStreak)
	assert.Equal(t, 2, k.BestStreak)
	assert.Equal(t, kvk.OutcomeReversal, k.LastOutcome)

	k30, err := store.GetKingdom(30)
	require.NoError(t, err)
	assert.Equal(t, 1, k30.Byes)
	assert.Equal(t, 1, k30.BattleWins)
	assert.Equal(t, kvk.OutcomeComeback, k30.LastOutcome)
}

func TestRecomputeAggregatesIsIdempotent(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()
	seedHistory(t, store)

	first, err := store.RecomputeAggregates(nil)
	require.NoError(t, err)
	firstKingdoms, err := store.GetAllKingdoms()
	require.NoError(t, err)

	second, err := store.RecomputeAggregates(nil)
	require.NoError(t, err)
	secondKingdoms, err := store.GetAllKingdoms()
	require.NoError(t, err)

	assert.Equal(t, first.Updated, second.Updated)
	assert.Equal(t, first.AvgScore, second.AvgScore)
	require.Len(t, secondKingdoms, len(firstKingdoms))
	for i := range firstKingdoms {
		// updated_at moves, everything derived must not
		firstKingdoms[i].UpdatedAt = 0
		secondKingdoms[i].UpdatedAt = 0
		assert.Equal(t, firstKingdoms[i], secondKingdoms[i])
	}
}

func TestBackfillHistoryUpsertSemantics(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()
	seedHistory(t, store)

	created, err := store.BackfillHistory(2)
	require.NoError(t, err)
	assert.Equal(t, 3, created) // kingdoms 10, 20 and 30 hold records at cycle 2

	// Re-running must not create duplicate snapshot rows.
	created, err = store.BackfillHistory(2)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	snaps, err := store.GetHistory(10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	// Cumulative through cycle 2: Domination(5) + Comeback(4)
	assert.Equal(t, float64(9), snaps[0].Score)
	assert.Equal(t, 1, snaps[0].Rank)
}

func TestRepairRanksPagination(t *testing.T) {
	store, db, teardown := setupTestDB(t)
	defer teardown()

	// Build a cycle large enough to span multiple pages (page size is 100).
	const n = 250
	ids := make([]int64, 0, n)
	for i := int64(1); i <= n; i++ {
		ids = append(ids, i)
	}
	require.NoError(t, store.ProvisionKingdoms(ids))
	require.NoError(t, store.SuspendDerivedTriggers())

	var records []kvk.MatchRecord
	for i := int64(1); i <= n; i++ {
		prep, battle := kvk.PhaseWin, kvk.PhaseWin
		if i%2 == 0 {
			prep, battle = kvk.PhaseLoss, kvk.PhaseLoss
		}
		records = append(records, record(i, 1, 0, prep, battle))
	}
	require.NoError(t, store.InsertMatchRecords(records))

	_, err := store.BackfillHistory(1)
	require.NoError(t, err)

	// Corrupt every stored rank, then drive the repair page by page.
	_, err = db.Exec("UPDATE history_snapshots SET rank = 0 WHERE kvk_id = 1")
	require.NoError(t, err)

	totalFixed := 0
	offset := 0
	pages := 0
	for {
		result, err := store.RepairRanks(1, offset)
		require.NoError(t, err)
		totalFixed += result.Fixed
		pages++
		if !result.HasMore {
			break
		}
		assert.Greater(t, result.NextOffset, offset, "cursor must advance")
		offset = result.NextOffset
	}

	assert.Equal(t, n, totalFixed, "every snapshot rank was corrupted and must be fixed")
	assert.GreaterOrEqual(t, pages, 3)

	// A second full drive finds nothing left to fix.
	result, err := store.RepairRanks(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Fixed)

	// Spot-check the final ordering: winners (odd ids, 5 points) outrank
	// losers (even ids, 1 point).
	var rank int
	require.NoError(t, db.QueryRow("SELECT rank FROM history_snapshots WHERE kvk_id = 1 AND kingdom_id = 1").Scan(&rank))
	assert.Equal(t, 1, rank)
}
