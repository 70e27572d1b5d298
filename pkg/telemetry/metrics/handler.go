package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the collector's registry in the Prometheus and OpenMetrics
// text formats. Scrapes are themselves counted under
// promhttp_metric_handler_requests_total. A metric that fails to gather is
// logged and skipped rather than failing the scrape.
func (c *Collector) Handler() http.Handler {
	logger := slog.Default().With("component", "metrics")
	return promhttp.InstrumentMetricHandler(c.registry, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
		Registry:          c.registry,
	}))
}
