// Package metricsx owns the process-wide Prometheus registry and the
// promhttp handler the admin surface serves it through.
package metricsx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles a dedicated Prometheus registry (rather than the
// global default) so tests can construct isolated instances.
type Registry struct {
	reg *prometheus.Registry
}

// New returns a Registry pre-populated with the standard process and Go
// runtime collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reg.MustRegister(prometheus.NewGoCollector())
	return &Registry{reg: reg}
}

// Registerer exposes the underlying prometheus.Registerer for packages
// that register their own metrics (stats.Reporter, regulator.Regulator).
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Handler returns the HTTP handler that serves metrics in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
