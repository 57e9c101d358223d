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

type Server struct {
	Store          kingdom.Store
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	Cfg            config.Config
	Importer       *importer.Importer
	Notifier       notifier.Notifier
	Router         *http.ServeMux
	pubsub         pubsub.PubSubClient
}
