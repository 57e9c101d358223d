package kingdom

import (
	"sync"

	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
)

// MockStore is a mock implementation of the Store interface for testing.
// It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	// Spies for method calls
	GetMatchRecordsFunc          func(keys []kvk.MatchKey) (map[kvk.MatchKey]kvk.MatchRecord, error)
	InsertMatchRecordsFunc       func(records []kvk.MatchRecord) error
	UpsertMatchRecordsFunc       func(records []kvk.MatchRecord) error
	GetAllMatchRecordsFunc       func() ([]kvk.MatchRecord, error)
	KnownKingdomsFunc            func(ids []int64) (map[int64]bool, error)
	ProvisionKingdomsFunc        func(ids []int64) error
	GetKingdomFunc               func(id int64) (*kvk.Kingdom, error)
	GetAllKingdomsFunc           func() ([]kvk.Kingdom, error)
	LeaderboardFunc              func() ([]kvk.Kingdom, error)
	SuspendDerivedTriggersFunc   func() error
	ResumeDerivedTriggersFunc    func() error
	DerivedTriggersSuspendedFunc func() (bool, error)
	RecomputeAggregatesFunc      func(kingdomIDs []int64) (AggregateResult, error)
	BackfillHistoryFunc          func(kvkID int64) (int, error)
	RepairRanksFunc              func(kvkID int64, offset int) (RankRepairResult, error)
	GetHistoryFunc               func(kingdomID int64) ([]kvk.HistorySnapshot, error)
	RecordImportBatchFunc        func(batch kvk.ImportBatch) error
	ListImportBatchesFunc        func(limit int) ([]kvk.ImportBatch, error)

	// Call records
	GetMatchRecordsCalls    [][]kvk.MatchKey
	InsertMatchRecordsCalls [][]kvk.MatchRecord
	UpsertMatchRecordsCalls [][]kvk.MatchRecord
	KnownKingdomsCalls      [][]int64
	ProvisionKingdomsCalls  [][]int64
	SuspendCalls            int
	ResumeCalls             int
	RecomputeCalls          [][]int64
	BackfillCalls           []int64
	RepairRanksCalls        []struct {
		KvKID  int64
		Offset int
	}
	RecordImportBatchCalls []kvk.ImportBatch
	ClearCalls             int
}

// NewMock creates a new mock instance.
func NewMock() *MockStore {
	return &MockStore{}
}

// Reset clears all call records.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetMatchRecordsCalls = nil
	m.InsertMatchRecordsCalls = nil
	m.UpsertMatchRecordsCalls = nil
	m.KnownKingdomsCalls = nil
	m.ProvisionKingdomsCalls = nil
	m.SuspendCalls = 0
	m.ResumeCalls = 0
	m.RecomputeCalls = nil
	m.BackfillCalls = nil
	m.RepairRanksCalls = nil
	m.RecordImportBatchCalls = nil
	m.ClearCalls = 0
}

func (m *MockStore) GetMatchRecords(keys []kvk.MatchKey) (map[kvk.MatchKey]kvk.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetMatchRecordsCalls = append(m.GetMatchRecordsCalls, keys)
	if m.GetMatchRecordsFunc != nil {
		return m.GetMatchRecordsFunc(keys)
	}
	return map[kvk.MatchKey]kvk.MatchRecord{}, nil
}

func (m *MockStore) InsertMatchRecords(records []kvk.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertMatchRecordsCalls = append(m.InsertMatchRecordsCalls, records)
	if m.InsertMatchRecordsFunc != nil {
		return m.InsertMatchRecordsFunc(records)
	}
	return nil
}

func (m *MockStore) UpsertMatchRecords(records []kvk.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertMatchRecordsCalls = append(m.UpsertMatchRecordsCalls, records)
	if m.UpsertMatchRecordsFunc != nil {
		return m.UpsertMatchRecordsFunc(records)
	}
	return nil
}

func (m *MockStore) GetAllMatchRecords() ([]kvk.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetAllMatchRecordsFunc != nil {
		return m.GetAllMatchRecordsFunc()
	}
	return nil, nil
}

func (m *MockStore) KnownKingdoms(ids []int64) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.KnownKingdomsCalls = append(m.KnownKingdomsCalls, ids)
	if m.KnownKingdomsFunc != nil {
		return m.KnownKingdomsFunc(ids)
	}
	known := make(map[int64]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return known, nil
}

func (m *MockStore) ProvisionKingdoms(ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProvisionKingdomsCalls = append(m.ProvisionKingdomsCalls, ids)
	if m.ProvisionKingdomsFunc != nil {
		return m.ProvisionKingdomsFunc(ids)
	}
	return nil
}

func (m *MockStore) GetKingdom(id int64) (*kvk.Kingdom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetKingdomFunc != nil {
		return m.GetKingdomFunc(id)
	}
	return &kvk.Kingdom{ID: id}, nil
}

func (m *MockStore) GetAllKingdoms() ([]kvk.Kingdom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetAllKingdomsFunc != nil {
		return m.GetAllKingdomsFunc()
	}
	return nil, nil
}

func (m *MockStore) Leaderboard() ([]kvk.Kingdom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LeaderboardFunc != nil {
		return m.LeaderboardFunc()
	}
	return nil, nil
}

func (m *MockStore) SuspendDerivedTriggers() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SuspendCalls++
	if m.SuspendDerivedTriggersFunc != nil {
		return m.SuspendDerivedTriggersFunc()
	}
	return nil
}

func (m *MockStore) ResumeDerivedTriggers() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResumeCalls++
	if m.ResumeDerivedTriggersFunc != nil {
		return m.ResumeDerivedTriggersFunc()
	}
	return nil
}

func (m *MockStore) DerivedTriggersSuspended() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DerivedTriggersSuspendedFunc != nil {
		return m.DerivedTriggersSuspendedFunc()
	}
	return false, nil
}

func (m *MockStore) RecomputeAggregates(kingdomIDs []int64) (AggregateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecomputeCalls = append(m.RecomputeCalls, kingdomIDs)
	if m.RecomputeAggregatesFunc != nil {
		return m.RecomputeAggregatesFunc(kingdomIDs)
	}
	return AggregateResult{Updated: len(kingdomIDs)}, nil
}

func (m *MockStore) BackfillHistory(kvkID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BackfillCalls = append(m.BackfillCalls, kvkID)
	if m.BackfillHistoryFunc != nil {
		return m.BackfillHistoryFunc(kvkID)
	}
	return 0, nil
}

func (m *MockStore) RepairRanks(kvkID int64, offset int) (RankRepairResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RepairRanksCalls = append(m.RepairRanksCalls, struct {
		KvKID  int64
		Offset int
	}{kvkID, offset})
	if m.RepairRanksFunc != nil {
		return m.RepairRanksFunc(kvkID, offset)
	}
	return RankRepairResult{NextOffset: offset}, nil
}

func (m *MockStore) GetHistory(kingdomID int64) ([]kvk.HistorySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetHistoryFunc != nil {
		return m.GetHistoryFunc(kingdomID)
	}
	return nil, nil
}

func (m *MockStore) RecordImportBatch(batch kvk.ImportBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordImportBatchCalls = append(m.RecordImportBatchCalls, batch)
	if m.RecordImportBatchFunc != nil {
		return m.RecordImportBatchFunc(batch)
	}
	return nil
}

func (m *MockStore) ListImportBatches(limit int) ([]kvk.ImportBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListImportBatchesFunc != nil {
		return m.ListImportBatchesFunc(limit)
	}
	return nil, nil
}

func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
}
