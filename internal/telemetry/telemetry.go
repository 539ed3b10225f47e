// Package telemetry exposes scheduler and delivery measurements to
// Prometheus.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/playperu/manhunt/internal/manhunt"
)

type Recorder struct {
	ticks         *prometheus.CounterVec
	tickDuration  prometheus.Histogram
	skipped       prometheus.Counter
	transitions   *prometheus.CounterVec
	deliveryFails prometheus.Counter
}

// NewRecorder registers the service metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "manhunt",
			Name:      "scheduler_ticks_total",
			Help:      "Completed scheduler ticks by outcome.",
		}, []string{"outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "manhunt",
			Name:      "scheduler_tick_duration_seconds",
			Help:      "Time spent processing one scheduler tick.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "manhunt",
			Name:      "scheduler_ticks_skipped_total",
			Help:      "Ticks skipped because the previous tick was still running.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "manhunt",
			Name:      "game_transitions_total",
			Help:      "Game status changes by new status and result.",
		}, []string{"status", "result"}),
		deliveryFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "manhunt",
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be delivered.",
		}),
	}
	reg.MustRegister(r.ticks, r.tickDuration, r.skipped, r.transitions, r.deliveryFails)
	return r
}

func (r *Recorder) TickCompleted(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.ticks.WithLabelValues(outcome).Inc()
	r.tickDuration.Observe(d.Seconds())
}

func (r *Recorder) TickSkipped() { r.skipped.Inc() }

func (r *Recorder) Transition(status manhunt.Status, result manhunt.Result) {
	res := string(result)
	if res == "" {
		res = "none"
	}
	r.transitions.WithLabelValues(string(status), res).Inc()
}

func (r *Recorder) DeliveryFailed() { r.deliveryFails.Inc() }

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
