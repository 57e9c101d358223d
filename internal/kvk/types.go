package kvk

// PhaseResult is the outcome code of one phase (prep or battle) of a KvK cycle.
type PhaseResult string

const (
	PhaseWin  PhaseResult = "W"
	PhaseLoss PhaseResult = "L"
	PhaseBye  PhaseResult = "B"
)

// Outcome is the derived overall classification of one kingdom's match record.
type Outcome string

const (
	OutcomeDomination Outcome = "Domination"
	OutcomeComeback   Outcome = "Comeback"
	OutcomeReversal   Outcome = "Reversal"
	OutcomeInvasion   Outcome = "Invasion"
	OutcomeBye        Outcome = "Bye"
)

// NoOpponent is the sentinel opponent id used on bye records.
const NoOpponent int64 = 0

// OutcomePoints maps each outcome to the points it contributes to a
// kingdom's composite score.
var OutcomePoints = map[Outcome]float64{
	OutcomeDomination: 5,
	OutcomeComeback:   4,
	OutcomeReversal:   2,
	OutcomeInvasion:   1,
	OutcomeBye:        0,
}

// MatchKey identifies one kingdom's record for one KvK cycle. It is the
// uniqueness key of the match_records table.
type MatchKey struct {
	KingdomID int64 `json:"kingdom_id"`
	KvKID     int64 `json:"kvk_id"`
}

// MatchRecord is one kingdom's recorded outcome for one KvK cycle.
// Outcome is derived from PrepResult/BattleResult and is never set
// independently.
type MatchRecord struct {
	KingdomID    int64       `json:"kingdom_id"`
	KvKID        int64       `json:"kvk_id"`
	OpponentID   int64       `json:"opponent_id"`
	PrepResult   PhaseResult `json:"prep_result"`
	BattleResult PhaseResult `json:"battle_result"`
	Outcome      Outcome     `json:"overall_outcome"`
	OrderIndex   int         `json:"order_index"`
	Date         string      `json:"kvk_date,omitempty"` // YYYY-MM-DD, empty when unknown
}

// Kingdom is a participant with its derived aggregate statistics.
type Kingdom struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name,omitempty"`
	PrepWins      int     `json:"prep_wins"`
	PrepLosses    int     `json:"prep_losses"`
	BattleWins    int     `json:"battle_wins"`
	BattleLosses  int     `json:"battle_losses"`
	Byes          int     `json:"byes"`
	CurrentStreak int     `json:"current_streak"`
	BestStreak    int     `json:"best_streak"`
	Score         float64 `json:"score"`
	LastOutcome   Outcome `json:"last_outcome,omitempty"`
	UpdatedAt     int64   `json:"updated_at"`
}

// HistorySnapshot is the point-in-time score/rank of a kingdom at one cycle,
// used for historical score charts.
type HistorySnapshot struct {
	KingdomID  int64   `json:"kingdom_id"`
	KvKID      int64   `json:"kvk_id"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	SnapshotAt int64   `json:"snapshot_at"`
}

// ImportBatch is the immutable audit record of one completed import run.
type ImportBatch struct {
	ID               string  `json:"id"`
	Operator         string  `json:"operator"`
	TotalRows        int     `json:"total_rows"`
	InsertedRows     int     `json:"inserted_rows"`
	ReplacedRows     int     `json:"replaced_rows"`
	SkippedRows      int     `json:"skipped_rows"`
	KingdomsCreated  int     `json:"kingdoms_created"`
	ValidationErrors int     `json:"validation_errors"`
	KvKIDs           []int64 `json:"kvk_ids"`
	CreatedAt        int64   `json:"created_at"`
}

// Key returns the uniqueness key of the record.
func (m MatchRecord) Key() MatchKey {
	return MatchKey{KingdomID: m.KingdomID, KvKID: m.KvKID}
}

// IsBye reports whether the record is a bye.
func (m MatchRecord) IsBye() bool {
	return m.Outcome == OutcomeBye
}
