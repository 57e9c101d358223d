package main

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/kingdom-atlas/kvk-tracker/internal/database"
	"github.com/kingdom-atlas/kvk-tracker/internal/kingdom"
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
)

const (
	numKingdoms = 120
	numCycles   = 12
	batchSize   = 100 // rows per INSERT statement
)

// Simplified config loading for the script. The seeder targets a local
// database by default; set TURSO_PRIMARY_URL and TURSO_AUTH_TOKEN to seed
// a remote one.
func loadConfig() (dbName, primaryURL, authToken string) {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, reading from environment variables")
	}

	dbName = os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "kvk.db"
	}
	return dbName, os.Getenv("TURSO_PRIMARY_URL"), os.Getenv("TURSO_AUTH_TOKEN")
}

func main() {
	log.Info("Starting database seeder...")
	dbName, primaryURL, authToken := loadConfig()

	db, teardown, err := database.InitDB(dbName, primaryURL, authToken, "./migrations")
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer teardown()

	// Fixed seeds so repeated runs produce the same standings.
	faker := gofakeit.New(42)
	rng := rand.New(rand.NewSource(42))

	ids := make([]int64, numKingdoms)
	for i := range ids {
		ids[i] = int64(1000 + i)
	}

	log.Info("Inserting kingdoms...", "count", numKingdoms)
	if err := insertKingdoms(db, faker, ids); err != nil {
		log.Fatalf("Failed to insert kingdoms: %s", err)
	}

	records := generateSeasons(rng, ids)
	log.Info("Preparing to insert match records...", "total", len(records), "batch_size", batchSize)
	startTime := time.Now()

	if err := insertMatchRecords(db, records); err != nil {
		log.Fatalf("Failed to insert match records: %s", err)
	}
	log.Info("Successfully inserted all match records.", "duration", time.Since(startTime))

	// Rebuild the derived tables the same way an import commit would.
	store := kingdom.New(db)
	aggregates, err := store.RecomputeAggregates(nil)
	if err != nil {
		log.Fatalf("Failed to recompute aggregates: %s", err)
	}
	log.Info("Aggregates recomputed", "kingdoms", aggregates.Updated, "avg_score", aggregates.AvgScore)

	for cycle := int64(1); cycle <= numCycles; cycle++ {
		created, err := store.BackfillHistory(cycle)
		if err != nil {
			log.Fatalf("Failed to backfill history for cycle %d: %s", cycle, err)
		}
		offset := 0
		for {
			repair, err := store.RepairRanks(cycle, offset)
			if err != nil {
				log.Fatalf("Failed to repair ranks for cycle %d: %s", cycle, err)
			}
			if !repair.HasMore {
				break
			}
			offset = repair.NextOffset
		}
		log.Info("History backfilled", "cycle", cycle, "snapshots", created)
	}

	log.Info("Seeding complete.")
}

func insertKingdoms(db *sql.DB, faker *gofakeit.Faker, ids []int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	now := time.Now().Unix()
	for _, id := range ids {
		name := fmt.Sprintf("%s %s", faker.AdjectiveDescriptive(), faker.City())
		_, err := tx.Exec(`
			INSERT INTO kingdoms (id, name, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name;`, id, name, now)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert kingdom %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// generateSeasons builds a full pairing for every cycle. Each cycle shuffles
// the kingdoms and pairs them off; with an odd count the last one takes a bye.
// Both sides of every match are generated, mirrored, so the dataset matches
// what the import pipeline writes.
func generateSeasons(rng *rand.Rand, ids []int64) []kvk.MatchRecord {
	baseDate := time.Date(2025, time.January, 4, 0, 0, 0, 0, time.UTC)
	records := make([]kvk.MatchRecord, 0, numCycles*len(ids))

	for cycle := int64(1); cycle <= numCycles; cycle++ {
		shuffled := make([]int64, len(ids))
		copy(shuffled, ids)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		date := baseDate.AddDate(0, 0, int(cycle-1)*14).Format("2006-01-02")

		for i := 0; i+1 < len(shuffled); i += 2 {
			prep := randomPhase(rng)
			battle := randomPhase(rng)
			record := kvk.MatchRecord{
				KingdomID:    shuffled[i],
				KvKID:        cycle,
				OpponentID:   shuffled[i+1],
				PrepResult:   prep,
				BattleResult: battle,
				Outcome:      kvk.Classify(prep, battle),
				Date:         date,
			}
			records = append(records, record, record.Mirror())
		}

		if len(shuffled)%2 == 1 {
			records = append(records, kvk.MatchRecord{
				KingdomID:    shuffled[len(shuffled)-1],
				KvKID:        cycle,
				OpponentID:   kvk.NoOpponent,
				PrepResult:   kvk.PhaseBye,
				BattleResult: kvk.PhaseBye,
				Outcome:      kvk.OutcomeBye,
				Date:         date,
			})
		}
	}
	return records
}

func randomPhase(rng *rand.Rand) kvk.PhaseResult {
	if rng.Intn(2) == 0 {
		return kvk.PhaseWin
	}
	return kvk.PhaseLoss
}

func insertMatchRecords(db *sql.DB, records []kvk.MatchRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	valueStrings := make([]string, 0, batchSize)
	valueArgs := make([]interface{}, 0, batchSize*8) // 8 columns per record

	for i, r := range records {
		valueStrings = append(valueStrings, "(?, ?, ?, ?, ?, ?, ?, ?)")
		valueArgs = append(valueArgs,
			r.KingdomID,
			r.KvKID,
			r.OpponentID,
			string(r.PrepResult),
			string(r.BattleResult),
			string(r.Outcome),
			r.OrderIndex,
			r.Date,
		)

		if (i+1)%batchSize == 0 || (i+1) == len(records) {
			stmt := fmt.Sprintf(`
				INSERT INTO match_records (kingdom_id, kvk_id, opponent_id, prep_result,
					battle_result, overall_outcome, order_index, kvk_date)
				VALUES %s
				ON CONFLICT(kingdom_id, kvk_id) DO UPDATE SET
					opponent_id = excluded.opponent_id,
					prep_result = excluded.prep_result,
					battle_result = excluded.battle_result,
					overall_outcome = excluded.overall_outcome,
					order_index = excluded.order_index,
					kvk_date = excluded.kvk_date;`, strings.Join(valueStrings, ","))

			if _, err := tx.Exec(stmt, valueArgs...); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to execute batch insert: %w", err)
			}

			// Reset for the next batch
			valueStrings = make([]string, 0, batchSize)
			valueArgs = make([]interface{}, 0, batchSize*8)
			log.Info("Inserted batch", "completed", i+1, "total", len(records))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
