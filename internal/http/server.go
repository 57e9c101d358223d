package http

import (
	"net/http"

	"github.com/kingdom-atlas/kvk-tracker/internal/config"
	"github.com/kingdom-atlas/kvk-tracker/internal/importer"
	"github.com/kingdom-atlas/kvk-tracker/internal/kingdom"
	"github.com/kingdom-atlas/kvk-tracker/internal/metrics"
	"github.com/kingdom-atlas/kvk-tracker/internal/notifier"
	"github.com/kingdom-atlas/kvk-tracker/internal/pubsub"
)

func NewServer(store kingdom.Store, metricsSvc metrics.Metrics, metricsHandler http.Handler, cfg config.Config, imp *importer.Importer, notifier notifier.Notifier, pubsub pubsub.PubSubClient) *Server {
	server := &Server{
		Store:          store,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Importer:       imp,
		Notifier:       notifier,
		Router:         http.NewServeMux(),
		pubsub:         pubsub,
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// This makes it easy to add more middlewares in the future, like an authentication middleware.
	// e.g. Chain(s.MyHandler(), paramsMiddleware, authMiddleware)
	s.Router.Handle("/metrics", s.MetricsHandler)
	s.Router.Handle("/health", Chain(s.HealthCheckHandler(), paramsMiddleware))
	s.Router.Handle("/clear", Chain(s.ClearStoreHandler(), paramsMiddleware))
	s.Router.Handle("/kingdoms", Chain(s.ListKingdomsHandler(), paramsMiddleware))
	s.Router.Handle("/kingdoms/chart", Chain(s.ScoreChartHandler(), paramsMiddleware))
	s.Router.Handle("/matches", Chain(s.ListMatchesHandler(), paramsMiddleware))
	s.Router.Handle("/leaderboard", Chain(s.LeaderboardHandler(), paramsMiddleware))
	s.Router.Handle("/import/preview", Chain(s.ImportPreviewHandler(), paramsMiddleware))
	s.Router.Handle("/import/session", Chain(s.ImportSessionHandler(), paramsMiddleware))
	s.Router.Handle("/import/resolve", Chain(s.ImportResolveHandler(), paramsMiddleware))
	s.Router.Handle("/import/back", Chain(s.ImportBackHandler(), paramsMiddleware))
	s.Router.Handle("/import/commit", Chain(s.ImportCommitHandler(), paramsMiddleware))
	s.Router.Handle("/import/batches", Chain(s.ImportBatchesHandler(), paramsMiddleware))
	s.Router.Handle("/recalculate-stats", Chain(s.RecalculateStatsHandler(), paramsMiddleware))
	s.Router.Handle("/slack/command/leaderboard", Chain(s.LeaderboardCommandHandler(), paramsMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
