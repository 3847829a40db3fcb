package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"

	"github.com/veilapp/veil-server/internal/metrics"
)

// ProvideMetricsRegistry provides the process-wide prometheus registry.
func ProvideMetricsRegistry(i do.Injector) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, nil
}

// ProvideMetricsRecorder provides the exclusion engine metrics recorder.
func ProvideMetricsRecorder(i do.Injector) (*metrics.PromRecorder, error) {
	registry := do.MustInvoke[*prometheus.Registry](i)
	return metrics.NewPromRecorder(registry), nil
}
