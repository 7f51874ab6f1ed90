package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the counters exported by the build scheduler.
type Metrics struct {
	builds     *prometheus.CounterVec
	containers *prometheus.CounterVec
	failures   *prometheus.CounterVec
	running    prometheus.Gauge
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	builds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jarforge_builds_total",
		Help: "Total build jobs by kind and result.",
	}, []string{"kind", "result"})
	containers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jarforge_containers_total",
		Help: "Total container lifecycle transitions by state.",
	}, []string{"state"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jarforge_failures_total",
		Help: "Total build failures by category.",
	}, []string{"category"})
	running := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jarforge_running_containers",
		Help: "Containers currently tracked for teardown.",
	})

	builds = registerCounterVec(registerer, builds)
	containers = registerCounterVec(registerer, containers)
	failures = registerCounterVec(registerer, failures)
	running = registerGauge(registerer, running)

	return &Metrics{
		builds:     builds,
		containers: containers,
		failures:   failures,
		running:    running,
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) IncBuild(kind, result string) {
	if m == nil || m.builds == nil {
		return
	}
	m.builds.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncContainer(state string) {
	if m == nil || m.containers == nil {
		return
	}
	m.containers.WithLabelValues(state).Inc()
}

func (m *Metrics) IncFailure(category string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(category).Inc()
}

func (m *Metrics) SetRunning(n int) {
	if m == nil || m.running == nil {
		return
	}
	m.running.Set(float64(n))
}

func registerCounterVec(registerer prometheus.Registerer, counter *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return counter
}

func registerGauge(registerer prometheus.Registerer, gauge prometheus.Gauge) prometheus.Gauge {
	if err := registerer.Register(gauge); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Gauge); ok {
				return existing
			}
		}
	}
	return gauge
}
