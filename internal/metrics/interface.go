package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncImportRuns()
	IncImportFailures()
	ObserveImportDuration(duration float64)
	AddRowsInserted(n int)
	AddRowsReplaced(n int)
	AddRowsSkipped(n int)
	IncSlackNotifSent()
	IncSlackNotifFailed()
	SetStartupTime(duration float64)
}

// MetricsStore persists lifetime counters in the database so they survive
// restarts, unlike the in-process Prometheus registry.
type MetricsStore interface {
	Increment(key string)
	Add(key string, n int)
	GetAll() (map[string]int, error)
}
