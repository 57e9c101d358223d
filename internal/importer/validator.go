package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
)

// Required columns of an import file. The opponent column is satisfied by
// either of two accepted aliases.
const (
	colKingdom    = "kingdom_number"
	colKvK        = "kvk_number"
	colPrep       = "prep_result"
	colBattle     = "battle_result"
	colOverall    = "overall_result"
	colDate       = "kvk_date"
	colOrderIndex = "order_index" // optional

	colOpponent    = "opponent_kingdom"
	colOpponentAlt = "opponent_number"
)

var requiredColumns = []string{colKingdom, colKvK, colPrep, colBattle, colOverall, colDate}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Validate checks a parsed table against the record schema. The only abort
// condition is a missing required column, reported with the full missing
// set at once. Every other problem becomes a RowError diagnostic; the row
// still yields a best-effort candidate so the preview can highlight it.
func Validate(table *Table) (*Validation, error) {
	var missing []string
	for _, col := range requiredColumns {
		if !table.hasColumn(col) {
			missing = append(missing, col)
		}
	}
	opponentCol := ""
	switch {
	case table.hasColumn(colOpponent):
		opponentCol = colOpponent
	case table.hasColumn(colOpponentAlt):
		opponentCol = colOpponentAlt
	default:
		missing = append(missing, colOpponent+"|"+colOpponentAlt)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	v := &Validation{}
	for i, row := range table.Rows {
		rowNum := i + 2 // header is row 1
		candidate := validateRow(table, row, rowNum, opponentCol, v)
		v.Candidates = append(v.Candidates, candidate)
	}

	flagIntraFileDuplicates(v)
	return v, nil
}

func validateRow(table *Table, row []string, rowNum int, opponentCol string, v *Validation) Candidate {
	errBefore := len(v.Diagnostics)
	addErr := func(field, value, message string) {
		v.Diagnostics = append(v.Diagnostics, RowError{Row: rowNum, Field: field, Value: value, Message: message})
	}

	var rec kvk.MatchRecord

	kingdomRaw := table.cell(row, colKingdom)
	if id, err := strconv.ParseInt(kingdomRaw, 10, 64); err == nil && id > 0 {
		rec.KingdomID = id
	} else {
		addErr(colKingdom, kingdomRaw, "kingdom number must be a positive integer")
	}

	kvkRaw := table.cell(row, colKvK)
	if id, err := strconv.ParseInt(kvkRaw, 10, 64); err == nil && id > 0 {
		rec.KvKID = id
	} else {
		addErr(colKvK, kvkRaw, "KvK number must be a positive integer")
	}

	prepRaw := strings.ToUpper(table.cell(row, colPrep))
	if kvk.ValidPhaseResult(prepRaw) {
		rec.PrepResult = kvk.PhaseResult(prepRaw)
	} else {
		addErr(colPrep, table.cell(row, colPrep), "prep result must be one of W, L, B")
	}

	battleRaw := strings.ToUpper(table.cell(row, colBattle))
	if kvk.ValidPhaseResult(battleRaw) {
		rec.BattleResult = kvk.PhaseResult(battleRaw)
	} else {
		addErr(colBattle, table.cell(row, colBattle), "battle result must be one of W, L, B")
	}

	overallRaw := table.cell(row, colOverall)
	if overallRaw != "" && !kvk.ValidOutcome(canonicalOutcome(overallRaw)) {
		addErr(colOverall, overallRaw, "overall result must be Domination, Comeback, Reversal, Invasion or Bye")
	}

	// A bye is declared by outcome label, or implied by the zero opponent
	// sentinel combined with bye codes in both phases.
	opponentRaw := table.cell(row, opponentCol)
	declaredBye := strings.EqualFold(overallRaw, string(kvk.OutcomeBye))
	isBye := declaredBye ||
		(opponentRaw == "0" && rec.PrepResult == kvk.PhaseBye && rec.BattleResult == kvk.PhaseBye)

	if isBye {
		// A declared bye carrying real result codes or an opponent is an
		// error, not something to coerce away; the contradiction usually
		// means the wrong row got the Bye label.
		if declaredBye {
			if (rec.PrepResult != "" && rec.PrepResult != kvk.PhaseBye) ||
				(rec.BattleResult != "" && rec.BattleResult != kvk.PhaseBye) {
				addErr(colOverall, overallRaw, "declared bye disagrees with the result codes")
			}
			if id, err := strconv.ParseInt(opponentRaw, 10, 64); err == nil && id > 0 {
				addErr(opponentCol, opponentRaw, "a bye row must not name an opponent")
			}
		}
		rec.OpponentID = kvk.NoOpponent
		rec.PrepResult = kvk.PhaseBye
		rec.BattleResult = kvk.PhaseBye
	} else if id, err := strconv.ParseInt(opponentRaw, 10, 64); err == nil && id > 0 {
		rec.OpponentID = id
	} else {
		addErr(opponentCol, opponentRaw, "opponent must be a positive integer unless the match is a bye")
	}

	dateRaw := table.cell(row, colDate)
	if dateRaw != "" {
		if datePattern.MatchString(dateRaw) {
			rec.Date = dateRaw
		} else {
			addErr(colDate, dateRaw, "date must match YYYY-MM-DD")
		}
	}

	if orderRaw := table.cell(row, colOrderIndex); orderRaw != "" {
		if idx, err := strconv.Atoi(orderRaw); err == nil {
			rec.OrderIndex = idx
		} else {
			addErr(colOrderIndex, orderRaw, "order index must be an integer")
		}
	}

	// The overall outcome is derived, never taken from the file. A declared
	// label that disagrees with the derived value is an error, since it
	// usually means the result codes are wrong.
	rec.Outcome = kvk.Classify(rec.PrepResult, rec.BattleResult)
	if overallRaw != "" && rec.PrepResult != "" && rec.BattleResult != "" &&
		kvk.ValidOutcome(canonicalOutcome(overallRaw)) && kvk.Outcome(canonicalOutcome(overallRaw)) != rec.Outcome {
		addErr(colOverall, overallRaw, fmt.Sprintf("declared outcome disagrees with results (derived %s)", rec.Outcome))
	}

	return Candidate{Row: rowNum, Record: rec, Valid: len(v.Diagnostics) == errBefore}
}

// flagIntraFileDuplicates applies the last-write-wins policy for rows in the
// same file sharing a (kingdom, kvk) key: every occurrence but the last gets
// a diagnostic and drops out of the accepted set.
func flagIntraFileDuplicates(v *Validation) {
	last := make(map[kvk.MatchKey]int) // key -> row number of last valid occurrence
	for _, c := range v.Candidates {
		if c.Valid {
			last[c.Record.Key()] = c.Row
		}
	}
	for i, c := range v.Candidates {
		if !c.Valid || last[c.Record.Key()] == c.Row {
			continue
		}
		v.Candidates[i].Valid = false
		v.Diagnostics = append(v.Diagnostics, RowError{
			Row:     c.Row,
			Field:   colKingdom,
			Value:   fmt.Sprintf("%d/%d", c.Record.KingdomID, c.Record.KvKID),
			Message: fmt.Sprintf("duplicate of row %d for the same kingdom and KvK; the later row wins", last[c.Record.Key()]),
		})
	}
}

// canonicalOutcome normalizes the case of a declared outcome label.
func canonicalOutcome(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
