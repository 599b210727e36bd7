package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/izzocam/internal/domain"
)

func (m *Monitor) initMetrics() {
	m.metricsOnce.Do(func() {
		m.usageTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "izzocam",
			Subsystem: "monitoring",
			Name:      "usage_operations_total",
			Help:      "Governed operations recorded by the usage monitor",
		}, []string{"service", "operation", "success"})

		m.costTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "izzocam",
			Subsystem: "monitoring",
			Name:      "usage_cost_usd_total",
			Help:      "Estimated spend in USD by service",
		}, []string{"service"})

		m.errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "izzocam",
			Subsystem: "monitoring",
			Name:      "errors_total",
			Help:      "Error records by service and severity",
		}, []string{"service", "severity"})

		for _, vec := range []**prometheus.CounterVec{&m.usageTotal, &m.costTotal, &m.errorsTotal} {
			if err := prometheus.Register(*vec); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
						*vec = existing
					}
				}
			}
		}
	})
}

func (m *Monitor) observeUsage(record domain.UsageRecord) {
	m.usageTotal.With(prometheus.Labels{
		"service":   record.Service,
		"operation": record.Operation,
		"success":   strconv.FormatBool(record.Success),
	}).Inc()
	if record.Cost != nil && *record.Cost > 0 {
		m.costTotal.With(prometheus.Labels{"service": record.Service}).Add(*record.Cost)
	}
}

func (m *Monitor) observeError(record domain.ErrorRecord) {
	m.errorsTotal.With(prometheus.Labels{
		"service":  record.Service,
		"severity": string(record.Severity),
	}).Inc()
}
