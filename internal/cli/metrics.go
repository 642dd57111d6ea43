package cli

import (
	"github.com/rs/zerolog"

	"etlmanifest/internal/config"
	"etlmanifest/internal/metrics"
	"etlmanifest/internal/metrics/datadog"
	"etlmanifest/internal/metrics/prompush"
)

// setupMetrics installs the configured backend and returns a func that
// flushes it. A backend that fails to initialize is logged and skipped;
// metrics never fail a run.
func setupMetrics(m config.Metrics, log zerolog.Logger) func() {
	log = log.With().Str("component", "metrics").Str("backend", m.Backend).Logger()

	var closeFn func() error
	switch m.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(m.Job, m.PushgatewayURL)
		if err != nil {
			log.Warn().Err(err).Msg("metrics disabled")
			return func() {}
		}
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       m.DatadogAddr,
			Namespace:  "etl.",
			GlobalTags: []string{"service:" + m.Job},
		})
		if err != nil {
			log.Warn().Err(err).Msg("metrics disabled")
			return func() {}
		}
		metrics.SetBackend(b)
		closeFn = b.Close

	case "", "none":
		return func() {}

	default:
		log.Warn().Msg("unknown metrics backend; metrics disabled")
		return func() {}
	}

	log.Debug().Msg("metrics enabled")
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Msg("metrics flush failed")
		}
		if closeFn != nil {
			if err := closeFn(); err != nil {
				log.Warn().Err(err).Msg("metrics close failed")
			}
		}
		metrics.Reset()
	}
}
