package kingdom

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
)

// RecomputeAggregates rebuilds the derived statistics of the given kingdoms
// from their full stored match history. An empty id list recomputes every
// kingdom. The computation reads only committed history, so running it twice
// on an unchanged store yields identical results.
func (s *store) RecomputeAggregates(kingdomIDs []int64) (AggregateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result AggregateResult

	if len(kingdomIDs) == 0 {
		rows, err := s.db.Query("SELECT id FROM kingdoms ORDER BY id")
		if err != nil {
			return result, fmt.Errorf("failed to list kingdoms: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return result, err
			}
			kingdomIDs = append(kingdomIDs, id)
		}
		rows.Close()
	}
	if len(kingdomIDs) == 0 {
		return result, nil
	}

	history, err := s.historyByKingdom(kingdomIDs)
	if err != nil {
		return result, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return result, err
	}
	stmt, err := tx.Prepare(`
		UPDATE kingdoms SET
			prep_wins = ?, prep_losses = ?, battle_wins = ?, battle_losses = ?, byes = ?,
			current_streak = ?, best_streak = ?, score = ?, last_outcome = ?, updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		tx.Rollback()
		return result, err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	var totalScore float64
	for _, id := range kingdomIDs {
		agg := computeAggregates(history[id])
		if _, err := stmt.Exec(agg.PrepWins, agg.PrepLosses, agg.BattleWins, agg.BattleLosses, agg.Byes,
			agg.CurrentStreak, agg.BestStreak, agg.Score, string(agg.LastOutcome), now, id); err != nil {
			tx.Rollback()
			return AggregateResult{}, fmt.Errorf("failed to update kingdom %d: %w", id, err)
		}
		totalScore += agg.Score
		result.Updated++
	}

	if err := tx.Commit(); err != nil {
		return AggregateResult{}, err
	}
	if result.Updated > 0 {
		result.AvgScore = totalScore / float64(result.Updated)
	}
	log.Debug("Recomputed kingdom aggregates", "updated", result.Updated, "avg_score", result.AvgScore)
	return result, nil
}

// historyByKingdom loads every match record of the given kingdoms, ordered
// by cycle then order index. Caller must hold the lock.
func (s *store) historyByKingdom(kingdomIDs []int64) (map[int64][]kvk.MatchRecord, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(kingdomIDs)), ", ")
	rows, err := s.db.Query(`
		SELECT kingdom_id, kvk_id, opponent_id, prep_result, battle_result, overall_outcome, order_index, kvk_date
		FROM match_records
		WHERE kingdom_id IN (`+placeholders+`)
		ORDER BY kvk_id ASC, order_index ASC
	`, toAnySlice(kingdomIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make(map[int64][]kvk.MatchRecord, len(kingdomIDs))
	for rows.Next() {
		rec, err := scanMatchRecord(rows)
		if err != nil {
			return nil, err
		}
		history[rec.KingdomID] = append(history[rec.KingdomID], rec)
	}
	return history, rows.Err()
}

// computeAggregates derives a kingdom's statistics from its ordered history.
func computeAggregates(history []kvk.MatchRecord) kvk.Kingdom {
	var k kvk.Kingdom
	var streak int
	for _, rec := range history {
		k.Score += kvk.OutcomePoints[rec.Outcome]
		k.LastOutcome = rec.Outcome

		if rec.IsBye() {
			k.Byes++
			continue // byes neither extend nor break a streak
		}

		switch rec.PrepResult {
		case kvk.PhaseWin:
			k.PrepWins++
		case kvk.PhaseLoss:
			k.PrepLosses++
		}
		switch rec.BattleResult {
		case kvk.PhaseWin:
			k.BattleWins++
			streak++
			if streak > k.BestStreak {
				k.BestStreak = streak
			}
		case kvk.PhaseLoss:
			k.BattleLosses++
			streak = 0
		}
	}
	k.CurrentStreak = streak
	return k
}

// BackfillHistory (re)generates the point-in-time snapshot rows for one
// cycle: each kingdom with a record at that cycle gets its cumulative score
// through the cycle and its rank within it. Snapshots are upserted on the
// (kingdom_id, kvk_id) key, so re-running for a backfilled cycle creates no
// duplicates. Returns the number of newly created snapshot rows.
func (s *store) BackfillHistory(kvkID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Cumulative score through the cycle, per kingdom holding a record at it.
	rows, err := s.db.Query(`
		SELECT mr.kingdom_id, mr.kvk_id, mr.overall_outcome
		FROM match_records mr
		WHERE mr.kvk_id <= ?
		  AND mr.kingdom_id IN (SELECT kingdom_id FROM match_records WHERE kvk_id = ?)
		ORDER BY mr.kingdom_id, mr.kvk_id
	`, kvkID, kvkID)
	if err != nil {
		return 0, err
	}

	scores := make(map[int64]float64)
	for rows.Next() {
		var kingdomID, cycle int64
		var outcome kvk.Outcome
		if err := rows.Scan(&kingdomID, &cycle, &outcome); err != nil {
			rows.Close()
			return 0, err
		}
		scores[kingdomID] += kvk.OutcomePoints[outcome]
	}
	rows.Close()
	if len(scores) == 0 {
		return 0, nil
	}

	var existing int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM history_snapshots WHERE kvk_id = ?", kvkID).Scan(&existing); err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO history_snapshots (kingdom_id, kvk_id, score, rank, snapshot_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kingdom_id, kvk_id) DO UPDATE SET
			score = excluded.score,
			rank = excluded.rank,
			snapshot_at = excluded.snapshot_at
	`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for rank, kingdomID := range rankedKingdomIDs(scores) {
		if _, err := stmt.Exec(kingdomID, kvkID, scores[kingdomID], rank+1, now); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to upsert snapshot (%d, %d): %w", kingdomID, kvkID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	created := len(scores) - existing
	if created < 0 {
		created = 0
	}
	return created, nil
}

// rankedKingdomIDs orders kingdoms by score descending, id ascending.
// Position in the returned slice is the zero-based rank.
func rankedKingdomIDs(scores map[int64]float64) []int64 {
	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// RepairRanks recomputes the rank ordering of one cycle and corrects stored
// ranks that disagree, one bounded page per call. The caller drives the
// pagination: pass 0 first, then NextOffset while HasMore is true.
func (s *store) RepairRanks(kvkID int64, offset int) (RankRepairResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := RankRepairResult{NextOffset: offset}
	if offset < 0 {
		offset = 0
		result.NextOffset = 0
	}

	rows, err := s.db.Query(`
		SELECT kingdom_id, rank
		FROM history_snapshots
		WHERE kvk_id = ?
		ORDER BY score DESC, kingdom_id ASC
		LIMIT ? OFFSET ?
	`, kvkID, rankPageSize, offset)
	if err != nil {
		return result, err
	}

	type snapshotRank struct {
		kingdomID int64
		rank      int
	}
	var page []snapshotRank
	for rows.Next() {
		var sr snapshotRank
		if err := rows.Scan(&sr.kingdomID, &sr.rank); err != nil {
			rows.Close()
			return result, err
		}
		page = append(page, sr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return result, err
	}
	for i, sr := range page {
		expected := offset + i + 1
		if sr.rank == expected {
			continue
		}
		if _, err := tx.Exec("UPDATE history_snapshots SET rank = ? WHERE kvk_id = ? AND kingdom_id = ?", expected, kvkID, sr.kingdomID); err != nil {
			tx.Rollback()
			return result, fmt.Errorf("failed to fix rank for kingdom %d: %w", sr.kingdomID, err)
		}
		result.Fixed++
	}
	if err := tx.Commit(); err != nil {
		return RankRepairResult{NextOffset: offset}, err
	}

	result.NextOffset = offset + len(page)
	result.HasMore = len(page) == rankPageSize
	return result, nil
}

// GetHistory returns a kingdom's snapshots in cycle order, for charting.
func (s *store) GetHistory(kingdomID int64) ([]kvk.HistorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT kingdom_id, kvk_id, score, rank, snapshot_at
		FROM history_snapshots
		WHERE kingdom_id = ?
		ORDER BY kvk_id ASC
	`, kingdomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []kvk.HistorySnapshot
	for rows.Next() {
		var snap kvk.HistorySnapshot
		if err := rows.Scan(&snap.KingdomID, &snap.KvKID, &snap.Score, &snap.Rank, &snap.SnapshotAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}
