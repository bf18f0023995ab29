package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the instrumentation an instance exposes on /metrics.
type Collector struct {
	RPCRequests       *prometheus.CounterVec
	RPCDuration       *prometheus.HistogramVec
	SlavesProvisioned *prometheus.CounterVec
	ProbeAttempts     prometheus.Counter

	registry *prometheus.Registry
}

// New builds a Collector backed by its own registry so every process
// gets an independent set (forked children must not share collectors).
func New() *Collector {
	c := &Collector{
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instance_rpc_requests_total",
			Help: "RPC requests served, by handler, method and outcome.",
		}, []string{"handler", "method", "status"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "instance_rpc_request_duration_seconds",
			Help:    "RPC request latency, by handler and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler", "method"}),
		SlavesProvisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instance_slaves_provisioned_total",
			Help: "Slave instances provisioned, by mode.",
		}, []string{"mode"}),
		ProbeAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "instance_liveness_probe_attempts_total",
			Help: "Individual liveness probe attempts against spawned slaves.",
		}),
		registry: prometheus.NewRegistry(),
	}

	c.registry.MustRegister(c.RPCRequests, c.RPCDuration, c.SlavesProvisioned, c.ProbeAttempts)
	return c
}

// Registry for wiring the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
