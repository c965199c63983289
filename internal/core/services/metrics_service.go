package services

import (
	"beamcast/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsService exposes broadcast control metrics to Prometheus.
type MetricsService struct {
	sessionStarts     prometheus.Counter
	sessionStops      prometheus.Counter
	sessionState      *prometheus.GaugeVec
	reconnectAttempts *prometheus.CounterVec
	deviceExchanges   prometheus.Counter
	deviceFailures    prometheus.Counter
	probeRuns         *prometheus.CounterVec
	probeDuration     prometheus.Histogram
}

func NewMetricsService() *MetricsService {
	return &MetricsService{
		sessionStarts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beamcast_session_starts_total",
			Help: "Total number of broadcast session start attempts",
		}),

		sessionStops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beamcast_session_stops_total",
			Help: "Total number of broadcast session stops",
		}),

		sessionState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "beamcast_session_state",
			Help: "Current session state (1 for the active state, 0 otherwise)",
		}, []string{"state"}),

		reconnectAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beamcast_reconnect_attempts_total",
			Help: "Reconnect attempts by strategy",
		}, []string{"strategy"}),

		deviceExchanges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beamcast_device_exchanges_total",
			Help: "Total number of device attach/exchange operations issued",
		}),

		deviceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beamcast_device_failures_total",
			Help: "Total number of failed device operations",
		}),

		probeRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beamcast_autoconfig_runs_total",
			Help: "Auto-configuration probe runs by outcome",
		}, []string{"outcome"}),

		probeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "beamcast_autoconfig_duration_seconds",
			Help:    "Duration of auto-configuration probe runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}
}

func (m *MetricsService) RecordSessionStart() { m.sessionStarts.Inc() }
func (m *MetricsService) RecordSessionStop()  { m.sessionStops.Inc() }

func (m *MetricsService) RecordSessionState(state domain.SessionState) {
	for _, s := range []domain.SessionState{
		domain.StateInvalid, domain.StateConnecting, domain.StateConnected,
		domain.StateDisconnected, domain.StateError,
	} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.sessionState.WithLabelValues(string(s)).Set(v)
	}
}

func (m *MetricsService) RecordReconnectAttempt(strategy string) {
	m.reconnectAttempts.WithLabelValues(strategy).Inc()
}

func (m *MetricsService) RecordDeviceExchange() { m.deviceExchanges.Inc() }
func (m *MetricsService) RecordDeviceFailure()  { m.deviceFailures.Inc() }

func (m *MetricsService) RecordProbeRun(outcome string, seconds float64) {
	m.probeRuns.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		m.probeDuration.Observe(seconds)
	}
}
