package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements every hook interface with Prometheus metrics held
// in a private registry.
type Prometheus struct {
	registry *prometheus.Registry

	layouts        *prometheus.CounterVec
	layoutDuration *prometheus.HistogramVec
	phases         *prometheus.CounterVec
	layoutNodes    prometheus.Histogram

	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	refreshSkipped  *prometheus.CounterVec
}

// NewPrometheus creates the collectors under namespace and registers them
// with a fresh registry.
func NewPrometheus(namespace string) *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		layouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layouts_total",
			Help:      "Layout passes by strategy and outcome",
		}, []string{"strategy", "status"}),
		layoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_duration_seconds",
			Help:      "Time from pass start to interactive",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_phases_total",
			Help:      "Phase transitions of the layout controller",
		}, []string{"phase"}),
		layoutNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_nodes",
			Help:      "Node count per layout pass",
			Buckets:   []float64{10, 50, 100, 200, 500, 1000, 2000, 5000},
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_jobs_total",
			Help:      "Simulation worker jobs by transport and outcome",
		}, []string{"transport", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_job_duration_seconds",
			Help:      "Simulation worker job duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Periodic refreshes by source and outcome",
		}, []string{"source", "status"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Periodic refresh duration",
			Buckets:   prometheus.DefBuckets,
		}),
		refreshSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_skipped_total",
			Help:      "Refresh ticks dropped while a refresh was in flight",
		}, []string{"source"}),
	}
	p.registry.MustRegister(
		p.layouts, p.layoutDuration, p.phases, p.layoutNodes,
		p.jobs, p.jobDuration,
		p.refreshes, p.refreshDuration, p.refreshSkipped,
	)
	return p
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (p *Prometheus) OnLayoutStart(_ context.Context, _ string, nodeCount int) {
	p.layoutNodes.Observe(float64(nodeCount))
}

func (p *Prometheus) OnPhase(_ context.Context, phase string) {
	p.phases.WithLabelValues(phase).Inc()
}

func (p *Prometheus) OnLayoutComplete(_ context.Context, strategy string, d time.Duration, err error) {
	p.layouts.WithLabelValues(strategy, status(err)).Inc()
	if err == nil {
		p.layoutDuration.WithLabelValues(strategy).Observe(d.Seconds())
	}
}

func (p *Prometheus) OnJob(context.Context, string, int) {}

func (p *Prometheus) OnJobComplete(_ context.Context, transport string, d time.Duration, err error) {
	p.jobs.WithLabelValues(transport, status(err)).Inc()
	p.jobDuration.WithLabelValues(transport).Observe(d.Seconds())
}

func (p *Prometheus) OnRefresh(_ context.Context, source string, _ int, d time.Duration, err error) {
	p.refreshes.WithLabelValues(source, status(err)).Inc()
	p.refreshDuration.Observe(d.Seconds())
}

func (p *Prometheus) OnRefreshSkipped(_ context.Context, source string) {
	p.refreshSkipped.WithLabelValues(source).Inc()
}
