package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu               sync.Mutex
	importRuns       int
	importFailures   int
	importDurations  []float64
	rowsInserted     int
	rowsReplaced     int
	rowsSkipped      int
	slackNotifSent   int
	slackNotifFailed int
	startupTime      float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		importDurations: make([]float64, 0),
	}
}

func (m *Mock) IncImportRuns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.importRuns++
}

func (m *Mock) IncImportFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.importFailures++
}

func (m *Mock) ObserveImportDuration(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.importDurations = append(m.importDurations, duration)
}

func (m *Mock) AddRowsInserted(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rowsInserted += n
}

func (m *Mock) AddRowsReplaced(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rowsReplaced += n
}

func (m *Mock) AddRowsSkipped(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rowsSkipped += n
}

func (m *Mock) IncSlackNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifSent++
}

func (m *Mock) IncSlackNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifFailed++
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// ImportRuns returns the number of times IncImportRuns was called.
func (m *Mock) ImportRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.importRuns
}

// ImportFailures returns the number of times IncImportFailures was called.
func (m *Mock) ImportFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.importFailures
}

// RowsInserted returns the accumulated inserted-row count.
func (m *Mock) RowsInserted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rowsInserted
}

// RowsReplaced returns the accumulated replaced-row count.
func (m *Mock) RowsReplaced() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rowsReplaced
}

// RowsSkipped returns the accumulated skipped-row count.
func (m *Mock) RowsSkipped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rowsSkipped
}

// SlackNotifSent returns the number of times IncSlackNotifSent was called.
func (m *Mock) SlackNotifSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifSent
}

// SlackNotifFailed returns the number of times IncSlackNotifFailed was called.
func (m *Mock) SlackNotifFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifFailed
}
