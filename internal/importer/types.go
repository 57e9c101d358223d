package importer

import (
	"sync"
	"time"

	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
)

// Table is a parsed tabular file: a normalized header plus the raw data
// rows. Row numbers count the header as row 1, so the first data row is 2,
// matching what an operator sees in their spreadsheet.
type Table struct {
	Header []string
	Rows   [][]string
}

// RowError is one validation diagnostic, correlated to its source row.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Candidate is a best-effort parsed record for one data row. Rows with
// diagnostics still produce a candidate (with invalid fields defaulted) so
// the preview can line errors up with rows; only clean candidates enter the
// accepted set.
type Candidate struct {
	Row    int             `json:"row"`
	Record kvk.MatchRecord `json:"record"`
	Valid  bool            `json:"valid"`
}

// Validation is the output of the validator stage.
type Validation struct {
	Candidates  []Candidate `json:"candidates"`
	Diagnostics []RowError  `json:"diagnostics"`
}

// Accepted returns the candidates with zero diagnostics.
func (v *Validation) Accepted() []Candidate {
	accepted := make([]Candidate, 0, len(v.Candidates))
	for _, c := range v.Candidates {
		if c.Valid {
			accepted = append(accepted, c)
		}
	}
	return accepted
}

// Conflict pairs an incoming row with the stored record occupying its
// (kingdom_id, kvk_id) key, for operator display.
type Conflict struct {
	Row      int             `json:"row"`
	Incoming kvk.MatchRecord `json:"incoming"`
	Existing kvk.MatchRecord `json:"existing"`
}

// Partition is the duplicate detector's split of the accepted candidates.
type Partition struct {
	Fresh     []Candidate `json:"fresh"`
	Conflicts []Conflict  `json:"conflicts"`
	// MissingKingdoms are referenced kingdom ids (own side or opponent)
	// with no stored entity yet.
	MissingKingdoms []int64 `json:"missing_kingdoms"`
}

// Stage is the operator-visible state of an import session.
type Stage string

const (
	StageInput      Stage = "input"
	StagePreview    Stage = "preview"
	StageDuplicates Stage = "duplicates"
	StageCommitting Stage = "committing"
)

// Session is one operator's in-flight import run.
type Session struct {
	mu sync.Mutex

	ID         string      `json:"id"`
	Stage      Stage       `json:"stage"`
	Validation *Validation `json:"validation"`
	Partition  *Partition  `json:"partition"`
	Ledger     *Ledger     `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Progress is one progress event emitted by the commit engine, covering the
// provisioning, insert and replace phases under a single monotonically
// increasing counter.
type Progress struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Phase     string `json:"phase"`
}

// ProgressFunc receives progress events after every batch.
type ProgressFunc func(Progress)

// Report is the final outcome of one import run, rolled up across the
// commit engine and the recalculation cascade.
type Report struct {
	BatchID          string  `json:"batch_id"`
	Operator         string  `json:"operator"`
	TotalRows        int     `json:"total_rows"`
	Inserted         int     `json:"inserted"`
	Replaced         int     `json:"replaced"`
	Skipped          int     `json:"skipped"`
	KingdomsCreated  int     `json:"kingdoms_created"`
	ValidationErrors int     `json:"validation_errors"`
	Cycles           []int64 `json:"cycles"`

	AggregatesUpdated int     `json:"aggregates_updated"`
	AvgScore          float64 `json:"avg_score"`
	SnapshotsCreated  int     `json:"snapshots_created"`
	RanksFixed        int     `json:"ranks_fixed"`

	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
	Summary  string   `json:"summary"`
}

const (
	// kingdomBatchSize bounds one provisioning upsert.
	kingdomBatchSize = 200
	// recordBatchSize bounds one insert/replace batch.
	recordBatchSize = 50
)
