// Package metrics exposes Prometheus instrumentation for the license
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"pfagent/internal/domain"
)

// Collector bundles the license pipeline metrics.
type Collector struct {
	RefreshTotal  *prometheus.CounterVec
	ApplyTotal    *prometheus.CounterVec
	LicenseStatus *prometheus.GaugeVec
	LicenseDays   *prometheus.GaugeVec
}

// NewCollector creates and registers the pipeline metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pfagent",
			Name:      "refresh_total",
			Help:      "License refresh attempts by instance and result.",
		}, []string{"instance", "result"}),
		ApplyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pfagent",
			Name:      "apply_total",
			Help:      "License apply attempts by instance and result.",
		}, []string{"instance", "result"}),
		LicenseStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pfagent",
			Name:      "license_status",
			Help:      "Per-instance license status (1 for the current status label, 0 otherwise).",
		}, []string{"instance", "status"}),
		LicenseDays: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pfagent",
			Name:      "license_days_to_expiry",
			Help:      "Per-instance days until license expiry (negative when expired).",
		}, []string{"instance"}),
	}

	reg.MustRegister(c.RefreshTotal, c.ApplyTotal, c.LicenseStatus, c.LicenseDays)
	return c
}

// ObserveRecord updates the per-instance gauges after a successful
// refresh or apply.
func (c *Collector) ObserveRecord(record domain.LicenseRecord) {
	if c == nil {
		return
	}
	for _, status := range []domain.Status{domain.StatusOK, domain.StatusWarning, domain.StatusExpired} {
		value := 0.0
		if record.Status == status {
			value = 1.0
		}
		c.LicenseStatus.WithLabelValues(record.InstanceID, string(status)).Set(value)
	}
	c.LicenseDays.WithLabelValues(record.InstanceID).Set(float64(record.DaysToExpiry))
}

// IncRefresh records one refresh outcome.
func (c *Collector) IncRefresh(instanceID, result string) {
	if c == nil {
		return
	}
	c.RefreshTotal.WithLabelValues(instanceID, result).Inc()
}

// IncApply records one apply outcome.
func (c *Collector) IncApply(instanceID, result string) {
	if c == nil {
		return
	}
	c.ApplyTotal.WithLabelValues(instanceID, result).Inc()
}
