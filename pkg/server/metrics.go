package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/filterbind/pkg/filter"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "filterd"

// Metrics holds the Prometheus collectors for a Server.
type Metrics struct {
	sessionsActive   prometheus.Gauge
	sessionsTotal    prometheus.Counter
	messagesTotal    *prometheus.CounterVec
	commitsTotal     *prometheus.CounterVec
	reconcilesTotal  *prometheus.CounterVec
	navigationErrors *prometheus.CounterVec
}

// NewMetrics registers the server's collectors with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open websocket sessions",
		}),

		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of websocket sessions opened",
		}),

		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Client messages received, by type and outcome",
		}, []string{"type", "status"}),

		commitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "URL writes issued by filters, by filter, navigation mode and action",
		}, []string{"filter", "mode", "action"}),

		reconcilesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciles_total",
			Help:      "URL values adopted into filter state after external navigation",
		}, []string{"filter"}),

		navigationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigation_errors_total",
			Help:      "Filter navigations that failed",
		}, []string{"filter"}),
	}
}

func (m *Metrics) sessionOpened() {
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *Metrics) sessionClosed() {
	m.sessionsActive.Dec()
}

func (m *Metrics) message(typ string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.messagesTotal.WithLabelValues(typ, status).Inc()
}

func (m *Metrics) commit(c filter.Commit) {
	action := "set"
	if c.Removed {
		action = "remove"
	}
	m.commitsTotal.WithLabelValues(c.Name, c.Mode.String(), action).Inc()
}

func (m *Metrics) reconcile(r filter.Reconcile) {
	m.reconcilesTotal.WithLabelValues(r.Name).Inc()
}

func (m *Metrics) navigationError(name string) {
	m.navigationErrors.WithLabelValues(name).Inc()
}
