package importer

import (
	"testing"

	"github.com/kingdom-atlas/kvk-tracker/internal/kingdom"
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(kingdomID, kvkID, opponentID int64, prep, battle kvk.PhaseResult) Candidate {
	return Candidate{
		Record: kvk.MatchRecord{
			KingdomID:    kingdomID,
			KvKID:        kvkID,
			OpponentID:   opponentID,
			PrepResult:   prep,
			BattleResult: battle,
			Outcome:      kvk.Classify(prep, battle),
		},
		Valid: true,
	}
}

func TestDetect_PartitionsFreshAndConflicts(t *testing.T) {
	store := kingdom.NewMock()
	stored := kvk.MatchRecord{KingdomID: 172, KvKID: 5, OpponentID: 189, PrepResult: kvk.PhaseLoss, BattleResult: kvk.PhaseLoss, Outcome: kvk.OutcomeInvasion}
	store.GetMatchRecordsFunc = func(keys []kvk.MatchKey) (map[kvk.MatchKey]kvk.MatchRecord, error) {
		return map[kvk.MatchKey]kvk.MatchRecord{stored.Key(): stored}, nil
	}

	accepted := []Candidate{
		candidate(172, 5, 189, kvk.PhaseWin, kvk.PhaseWin),
		candidate(204, 5, 310, kvk.PhaseLoss, kvk.PhaseWin),
	}

	partition, err := Detect(store, accepted)
	require.NoError(t, err)

	require.Len(t, partition.Fresh, 1)
	assert.Equal(t, int64(204), partition.Fresh[0].Record.KingdomID)

	require.Len(t, partition.Conflicts, 1)
	assert.Equal(t, kvk.OutcomeDomination, partition.Conflicts[0].Incoming.Outcome)
	assert.Equal(t, kvk.OutcomeInvasion, partition.Conflicts[0].Existing.Outcome)

	// One batched lookup for all keys.
	require.Len(t, store.GetMatchRecordsCalls, 1)
	assert.Len(t, store.GetMatchRecordsCalls[0], 2)
}

func TestDetect_MissingKingdomsIncludeOpponents(t *testing.T) {
	store := kingdom.NewMock()
	store.KnownKingdomsFunc = func(ids []int64) (map[int64]bool, error) {
		known := make(map[int64]bool, len(ids))
		for _, id := range ids {
			known[id] = id == 172 // only 172 exists
		}
		return known, nil
	}

	accepted := []Candidate{
		candidate(172, 5, 310, kvk.PhaseWin, kvk.PhaseWin),
		candidate(204, 5, 172, kvk.PhaseLoss, kvk.PhaseLoss),
	}

	partition, err := Detect(store, accepted)
	require.NoError(t, err)
	assert.Equal(t, []int64{204, 310}, partition.MissingKingdoms)
}

func TestDetect_ByeOpponentNotLookedUp(t *testing.T) {
	store := kingdom.NewMock()

	accepted := []Candidate{
		candidate(172, 5, kvk.NoOpponent, kvk.PhaseBye, kvk.PhaseBye),
	}

	_, err := Detect(store, accepted)
	require.NoError(t, err)

	require.Len(t, store.KnownKingdomsCalls, 1)
	assert.Equal(t, []int64{172}, store.KnownKingdomsCalls[0])
}
