package kingdom

import "github.com/kingdom-atlas/kvk-tracker/internal/kvk"

// Store defines the interface for interacting with kingdom and match data.
type Store interface {
	// Match records.
	GetMatchRecords(keys []kvk.MatchKey) (map[kvk.MatchKey]kvk.MatchRecord, error)
	InsertMatchRecords(records []kvk.MatchRecord) error
	UpsertMatchRecords(records []kvk.MatchRecord) error
	GetAllMatchRecords() ([]kvk.MatchRecord, error)

	// Kingdoms.
	KnownKingdoms(ids []int64) (map[int64]bool, error)
	ProvisionKingdoms(ids []int64) error
	GetKingdom(id int64) (*kvk.Kingdom, error)
	GetAllKingdoms() ([]kvk.Kingdom, error)
	Leaderboard() ([]kvk.Kingdom, error)

	// Maintenance mode: store-wide suspension of derived-data recomputation
	// during bulk writes. Both toggles are idempotent.
	SuspendDerivedTriggers() error
	ResumeDerivedTriggers() error
	DerivedTriggersSuspended() (bool, error)

	// Recompute procedures.
	RecomputeAggregates(kingdomIDs []int64) (AggregateResult, error)
	BackfillHistory(kvkID int64) (int, error)
	RepairRanks(kvkID int64, offset int) (RankRepairResult, error)
	GetHistory(kingdomID int64) ([]kvk.HistorySnapshot, error)

	// Import audit records.
	RecordImportBatch(batch kvk.ImportBatch) error
	ListImportBatches(limit int) ([]kvk.ImportBatch, error)

	Clear()
}
