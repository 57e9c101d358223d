package kvk_test

import (
	"testing"

	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, kvk.OutcomeDomination, kvk.Classify(kvk.PhaseWin, kvk.PhaseWin))
	assert.Equal(t, kvk.OutcomeComeback, kvk.Classify(kvk.PhaseLoss, kvk.PhaseWin))
	assert.Equal(t, kvk.OutcomeReversal, kvk.Classify(kvk.PhaseWin, kvk.PhaseLoss))
	assert.Equal(t, kvk.OutcomeInvasion, kvk.Classify(kvk.PhaseLoss, kvk.PhaseLoss))
	assert.Equal(t, kvk.OutcomeBye, kvk.Classify(kvk.PhaseBye, kvk.PhaseBye))
}

// The classification of the opposing side must equal the mirrored
// classification of this side, for every non-bye pair.
func TestClassifyMirrorSymmetry(t *testing.T) {
	results := []kvk.PhaseResult{kvk.PhaseWin, kvk.PhaseLoss}
	for _, prep := range results {
		for _, battle := range results {
			mirrored := kvk.MirrorOutcome(kvk.Classify(prep, battle))
			opposing := kvk.Classify(kvk.InvertResult(prep), kvk.InvertResult(battle))
			assert.Equal(t, opposing, mirrored, "prep=%s battle=%s", prep, battle)
		}
	}
}

func TestMirrorOutcomeIsInvolution(t *testing.T) {
	outcomes := []kvk.Outcome{
		kvk.OutcomeDomination, kvk.OutcomeComeback, kvk.OutcomeReversal,
		kvk.OutcomeInvasion, kvk.OutcomeBye,
	}
	for _, o := range outcomes {
		assert.Equal(t, o, kvk.MirrorOutcome(kvk.MirrorOutcome(o)))
	}
}

func TestMirrorRecord(t *testing.T) {
	rec := kvk.MatchRecord{
		KingdomID:    172,
		KvKID:        5,
		OpponentID:   189,
		PrepResult:   kvk.PhaseWin,
		BattleResult: kvk.PhaseWin,
		Outcome:      kvk.OutcomeDomination,
		OrderIndex:   2,
		Date:         "2025-03-01",
	}

	mirror := rec.Mirror()
	assert.Equal(t, int64(189), mirror.KingdomID)
	assert.Equal(t, int64(172), mirror.OpponentID)
	assert.Equal(t, rec.KvKID, mirror.KvKID)
	assert.Equal(t, kvk.PhaseLoss, mirror.PrepResult)
	assert.Equal(t, kvk.PhaseLoss, mirror.BattleResult)
	assert.Equal(t, kvk.OutcomeInvasion, mirror.Outcome)
	assert.Equal(t, rec.Date, mirror.Date)

	// Mirroring twice returns the original record.
	assert.Equal(t, rec, mirror.Mirror())
}

func TestMirrorRecordBye(t *testing.T) {
	bye := kvk.MatchRecord{
		KingdomID:    172,
		KvKID:        6,
		OpponentID:   kvk.NoOpponent,
		PrepResult:   kvk.PhaseBye,
		BattleResult: kvk.PhaseBye,
		Outcome:      kvk.OutcomeBye,
	}
	assert.Equal(t, bye, bye.Mirror())
}
