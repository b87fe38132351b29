// Package metrics exposes reservation counters for Prometheus scraping.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromRecorder counts named events on a private registry.
type PromRecorder struct {
	reg    *prometheus.Registry
	events *prometheus.CounterVec
}

func NewPromRecorder(namespace string) *PromRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Reservation lifecycle events by metric name and subscription tier.",
	}, []string{"metric", "tier"})
	reg.MustRegister(events)

	return &PromRecorder{reg: reg, events: events}
}

// RecordCount increments the counter for name. Only the Tier dimension becomes a label.
func (p *PromRecorder) RecordCount(_ context.Context, name string, dimensions map[string]string) error {
	p.events.WithLabelValues(name, dimensions["Tier"]).Inc()
	return nil
}

func (p *PromRecorder) IsEnabled() bool { return p != nil }

// Handler serves the registry in the text exposition format.
func (p *PromRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}
