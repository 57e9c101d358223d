package kingdom

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
)

// New creates a new Store backed by db.
func New(db *sql.DB) Store {
	return &store{
		db: db,
	}
}

// GetMatchRecords loads the existing records for the given keys in a single
// batched query, not one query per key.
func (s *store) GetMatchRecords(keys []kvk.MatchKey) (map[kvk.MatchKey]kvk.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[kvk.MatchKey]kvk.MatchRecord, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		placeholders = append(placeholders, "(?, ?)")
		args = append(args, k.KingdomID, k.KvKID)
	}

	query := fmt.Sprintf(`
		SELECT kingdom_id, kvk_id, opponent_id, prep_result, battle_result, overall_outcome, order_index, kvk_date
		FROM match_records
		WHERE (kingdom_id, kvk_id) IN (VALUES %s)
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query match records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanMatchRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.Key()] = rec
	}
	return out, rows.Err()
}

// InsertMatchRecords inserts records in one transaction. The records must
// not already exist; a duplicate key fails the whole call.
func (s *store) InsertMatchRecords(records []kvk.MatchRecord) error {
	return s.writeMatchRecords(records, false)
}

// UpsertMatchRecords inserts or replaces records on the (kingdom_id, kvk_id)
// key in one transaction.
func (s *store) UpsertMatchRecords(records []kvk.MatchRecord) error {
	return s.writeMatchRecords(records, true)
}

func (s *store) writeMatchRecords(records []kvk.MatchRecord, upsert bool) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()

	query := `
		INSERT INTO match_records (kingdom_id, kvk_id, opponent_id, prep_result, battle_result, overall_outcome, order_index, kvk_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if upsert {
		query += `
		ON CONFLICT(kingdom_id, kvk_id) DO UPDATE SET
			opponent_id = excluded.opponent_id,
			prep_result = excluded.prep_result,
			battle_result = excluded.battle_result,
			overall_outcome = excluded.overall_outcome,
			order_index = excluded.order_index,
			kvk_date = excluded.kvk_date`
	}

	err := func() error {
		defer s.mu.Unlock()

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(query)
		if err != nil {
			tx.Rollback()
			return err
		}
		defer stmt.Close()

		for _, rec := range records {
			if _, err := stmt.Exec(rec.KingdomID, rec.KvKID, rec.OpponentID, rec.PrepResult, rec.BattleResult, rec.Outcome, rec.OrderIndex, nullableDate(rec.Date)); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to write record (%d, %d): %w", rec.KingdomID, rec.KvKID, err)
			}
		}
		return tx.Commit()
	}()
	if err != nil {
		return err
	}

	// Per-row derived-data trigger: unless maintenance mode suspended it,
	// every write immediately recomputes the touched kingdoms' aggregates.
	suspended, serr := s.DerivedTriggersSuspended()
	if serr != nil {
		log.Warn("Could not read derived-trigger state, skipping inline recompute", "error", serr)
		return nil
	}
	if !suspended {
		touched := make([]int64, 0, len(records))
		seen := make(map[int64]bool, len(records))
		for _, rec := range records {
			if !seen[rec.KingdomID] {
				seen[rec.KingdomID] = true
				touched = append(touched, rec.KingdomID)
			}
		}
		if _, err := s.RecomputeAggregates(touched); err != nil {
			log.Warn("Inline aggregate recompute failed", "error", err)
		}
	}
	return nil
}

// GetAllMatchRecords returns every stored record, ordered for display.
func (s *store) GetAllMatchRecords() ([]kvk.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT kingdom_id, kvk_id, opponent_id, prep_result, battle_result, overall_outcome, order_index, kvk_date
		FROM match_records
		ORDER BY kvk_id DESC, order_index DESC, kingdom_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []kvk.MatchRecord
	for rows.Next() {
		rec, err := scanMatchRecord(rows)
		if err != nil {
			log.Error("Failed to scan match record row", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// KnownKingdoms reports, per id, whether the kingdom exists in the store.
func (s *store) KnownKingdoms(ids []int64) (map[int64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	known := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	for _, id := range ids {
		known[id] = false
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	rows, err := s.db.Query("SELECT id FROM kingdoms WHERE id IN ("+placeholders+")", toAnySlice(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = true
	}
	return known, rows.Err()
}

// ProvisionKingdoms creates a zero-value baseline entity per id. The insert
// is keyed on the kingdom id and ignores ids that already exist, so a
// retried provisioning step is a no-op.
func (s *store) ProvisionKingdoms(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO kingdoms (id, updated_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, id := range ids {
		if _, err := stmt.Exec(id, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to provision kingdom %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *store) GetKingdom(id int64) (*kvk.Kingdom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(kingdomSelect+" WHERE id = ?", id)
	k, err := scanKingdom(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("kingdom %d not found", id)
		}
		return nil, err
	}
	return &k, nil
}

func (s *store) GetAllKingdoms() ([]kvk.Kingdom, error) {
	return s.queryKingdoms(kingdomSelect + " ORDER BY id ASC")
}

// Leaderboard returns all kingdoms ordered by composite score.
func (s *store) Leaderboard() ([]kvk.Kingdom, error) {
	return s.queryKingdoms(kingdomSelect + " ORDER BY score DESC, battle_wins DESC, id ASC")
}

const kingdomSelect = `
	SELECT id, name, prep_wins, prep_losses, battle_wins, battle_losses, byes,
		current_streak, best_streak, score, last_outcome, updated_at
	FROM kingdoms`

func (s *store) queryKingdoms(query string, args ...any) ([]kvk.Kingdom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kingdoms []kvk.Kingdom
	for rows.Next() {
		k, err := scanKingdom(rows)
		if err != nil {
			log.Error("Failed to scan kingdom row", "error", err)
			continue
		}
		kingdoms = append(kingdoms, k)
	}
	return kingdoms, rows.Err()
}

// SuspendDerivedTriggers turns maintenance mode on: match-record writes stop
// recomputing aggregates inline until ResumeDerivedTriggers.
func (s *store) SuspendDerivedTriggers() error {
	return s.setSetting(settingDerivedTriggers, "suspended")
}

// ResumeDerivedTriggers turns maintenance mode off.
func (s *store) ResumeDerivedTriggers() error {
	return s.setSetting(settingDerivedTriggers, "active")
}

func (s *store) DerivedTriggersSuspended() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", settingDerivedTriggers).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return value == "suspended", nil
}

func (s *store) setSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// RecordImportBatch persists the immutable audit record of one import run.
func (s *store) RecordImportBatch(batch kvk.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cycles, err := json.Marshal(batch.KvKIDs)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO import_batches (id, operator, total_rows, inserted_rows, replaced_rows, skipped_rows, kingdoms_created, validation_errors, kvk_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, batch.ID, batch.Operator, batch.TotalRows, batch.InsertedRows, batch.ReplacedRows, batch.SkippedRows, batch.KingdomsCreated, batch.ValidationErrors, string(cycles), batch.CreatedAt)
	return err
}

// ListImportBatches returns audit records, most recent first.
func (s *store) ListImportBatches(limit int) ([]kvk.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, operator, total_rows, inserted_rows, replaced_rows, skipped_rows, kingdoms_created, validation_errors, kvk_ids, created_at
		FROM import_batches
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []kvk.ImportBatch
	for rows.Next() {
		var b kvk.ImportBatch
		var cycles string
		if err := rows.Scan(&b.ID, &b.Operator, &b.TotalRows, &b.InsertedRows, &b.ReplacedRows, &b.SkippedRows, &b.KingdomsCreated, &b.ValidationErrors, &cycles, &b.CreatedAt); err != nil {
			log.Error("Failed to scan import batch row", "error", err)
			continue
		}
		if err := json.Unmarshal([]byte(cycles), &b.KvKIDs); err != nil {
			log.Error("Failed to unmarshal kvk_ids", "error", err, "batchID", b.ID)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		log.Error("Failed to begin transaction for clearing store", "error", err)
		return
	}

	for _, table := range []string{"match_records", "history_snapshots", "import_batches", "kingdoms", "settings"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			log.Error("Failed to clear table", "table", table, "error", err)
			tx.Rollback()
			return
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("Failed to commit transaction for clearing store", "error", err)
	}
}

// scanMatchRecord is a helper to scan a single match record row.
func scanMatchRecord(scanner interface{ Scan(...any) error }) (kvk.MatchRecord, error) {
	var rec kvk.MatchRecord
	var date sql.NullString
	err := scanner.Scan(&rec.KingdomID, &rec.KvKID, &rec.OpponentID, &rec.PrepResult, &rec.BattleResult, &rec.Outcome, &rec.OrderIndex, &date)
	if err != nil {
		return rec, err
	}
	rec.Date = date.String
	return rec, nil
}

func scanKingdom(scanner interface{ Scan(...any) error }) (kvk.Kingdom, error) {
	var k kvk.Kingdom
	var name, lastOutcome sql.NullString
	err := scanner.Scan(&k.ID, &name, &k.PrepWins, &k.PrepLosses, &k.BattleWins, &k.BattleLosses, &k.Byes,
		&k.CurrentStreak, &k.BestStreak, &k.Score, &lastOutcome, &k.UpdatedAt)
	if err != nil {
		return k, err
	}
	k.Name = name.String
	k.LastOutcome = kvk.Outcome(lastOutcome.String)
	return k, nil
}

func nullableDate(date string) any {
	if date == "" {
		return nil
	}
	return date
}

func toAnySlice[T any](s []T) []any {
	a := make([]any, len(s))
	for i, v := range s {
		a[i] = v
	}
	return a
}
