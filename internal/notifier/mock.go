package notifier

import (
	"sync"

	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
)

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Spies for method calls
	SendImportSummaryFunc func(batch kvk.ImportBatch, warnings []string, dryRun bool) error
	SendLeaderboardFunc   func(kingdoms []kvk.Kingdom, dryRun bool) error

	// Call records
	SendImportSummaryCalls []ImportSummaryCall
	SendLeaderboardCalls   [][]kvk.Kingdom

	// Call records for format functions
	LastLeaderboardResponse any
}

// ImportSummaryCall holds the arguments for a call to SendImportSummary.
type ImportSummaryCall struct {
	Batch    kvk.ImportBatch
	Warnings []string
	DryRun   bool
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendImportSummaryCalls = nil
	m.SendLeaderboardCalls = nil
	m.LastLeaderboardResponse = nil
}

func (m *Mock) SendImportSummary(batch kvk.ImportBatch, warnings []string, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendImportSummaryCalls = append(m.SendImportSummaryCalls, ImportSummaryCall{Batch: batch, Warnings: warnings, DryRun: dryRun})
	if m.SendImportSummaryFunc != nil {
		return m.SendImportSummaryFunc(batch, warnings, dryRun)
	}
	return nil
}

func (m *Mock) SendLeaderboard(kingdoms []kvk.Kingdom, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendLeaderboardCalls = append(m.SendLeaderboardCalls, kingdoms)
	if m.SendLeaderboardFunc != nil {
		return m.SendLeaderboardFunc(kingdoms, dryRun)
	}
	return nil
}

func (m *Mock) FormatLeaderboardResponse(kingdoms []kvk.Kingdom) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastLeaderboardResponse = "formatted_leaderboard"
	return "formatted_leaderboard", nil
}
