package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		ImportRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvk_import_runs_total",
			Help: "The total number of import runs that reached the commit phase.",
		}),
		ImportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvk_import_failures_total",
			Help: "The total number of import runs that ended with a fatal error.",
		}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kvk_import_duration_seconds",
			Help:    "The duration of import commits, including the recalculation cascade.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvk_import_rows_inserted_total",
			Help: "The total number of match records inserted by imports.",
		}),
		RowsReplaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvk_import_rows_replaced_total",
			Help: "The total number of match records replaced by imports.",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvk_import_rows_skipped_total",
			Help: "The total number of conflicting rows skipped by imports.",
		}),
		SlackNotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvk_slack_notifications_sent_total",
			Help: "The total number of Slack notifications successfully sent.",
		}),
		SlackNotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvk_slack_notifications_failed_total",
			Help: "The total number of Slack notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvk_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.ImportRuns,
		s.ImportFailures,
		s.ImportDuration,
		s.RowsInserted,
		s.RowsReplaced,
		s.RowsSkipped,
		s.SlackNotifSent,
		s.SlackNotifFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncImportRuns() {
	s.ImportRuns.Inc()
}

func (s *Service) IncImportFailures() {
	s.ImportFailures.Inc()
}

func (s *Service) ObserveImportDuration(duration float64) {
	s.ImportDuration.Observe(duration)
}

func (s *Service) AddRowsInserted(n int) {
	s.RowsInserted.Add(float64(n))
}

func (s *Service) AddRowsReplaced(n int) {
	s.RowsReplaced.Add(float64(n))
}

func (s *Service) AddRowsSkipped(n int) {
	s.RowsSkipped.Add(float64(n))
}

func (s *Service) IncSlackNotifSent() {
	s.SlackNotifSent.Inc()
}

func (s *Service) IncSlackNotifFailed() {
	s.SlackNotifFailed.Inc()
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
