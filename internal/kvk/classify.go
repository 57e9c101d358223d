package kvk

// Classify maps a (prep, battle) result pair to the overall outcome for that
// side of the match. A bye in either phase classifies the whole record as a
// bye; byes only ever occur in both phases at once.
func Classify(prep, battle PhaseResult) Outcome {
	if prep == PhaseBye || battle == PhaseBye {
		return OutcomeBye
	}
	switch {
	case prep == PhaseWin && battle == PhaseWin:
		return OutcomeDomination
	case prep == PhaseLoss && battle == PhaseWin:
		return OutcomeComeback
	case prep == PhaseWin && battle == PhaseLoss:
		return OutcomeReversal
	default:
		return OutcomeInvasion
	}
}

// InvertResult flips a phase result to the opposing side's result.
// Byes have no opposing side and map to themselves.
func InvertResult(r PhaseResult) PhaseResult {
	switch r {
	case PhaseWin:
		return PhaseLoss
	case PhaseLoss:
		return PhaseWin
	default:
		return PhaseBye
	}
}

// MirrorOutcome maps an outcome to the outcome of the opposing side of the
// same match: Domination<->Invasion, Comeback<->Reversal, Bye<->Bye.
func MirrorOutcome(o Outcome) Outcome {
	switch o {
	case OutcomeDomination:
		return OutcomeInvasion
	case OutcomeInvasion:
		return OutcomeDomination
	case OutcomeComeback:
		return OutcomeReversal
	case OutcomeReversal:
		return OutcomeComeback
	default:
		return OutcomeBye
	}
}

// Mirror builds the opposing side's record for a non-bye match. The two
// records name each other as opponent and carry inverted phase results and
// the cross-mapped outcome. Calling Mirror on a bye returns the record
// unchanged; byes have a single record.
func (m MatchRecord) Mirror() MatchRecord {
	if m.IsBye() {
		return m
	}
	return MatchRecord{
		KingdomID:    m.OpponentID,
		KvKID:        m.KvKID,
		OpponentID:   m.KingdomID,
		PrepResult:   InvertResult(m.PrepResult),
		BattleResult: InvertResult(m.BattleResult),
		Outcome:      MirrorOutcome(m.Outcome),
		OrderIndex:   m.OrderIndex,
		Date:         m.Date,
	}
}

// ValidOutcome reports whether s names one of the five canonical outcomes.
func ValidOutcome(s string) bool {
	switch Outcome(s) {
	case OutcomeDomination, OutcomeComeback, OutcomeReversal, OutcomeInvasion, OutcomeBye:
		return true
	}
	return false
}

// ValidPhaseResult reports whether s is one of the W/L/B codes.
func ValidPhaseResult(s string) bool {
	switch PhaseResult(s) {
	case PhaseWin, PhaseLoss, PhaseBye:
		return true
	}
	return false
}
