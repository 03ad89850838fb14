package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/forgeline/signalbus"
)

// newMetricsRegistry builds a prometheus registry whose collectors read the
// broker's own counters, so /metrics always reflects SystemStatus without a
// separate bookkeeping path.
func newMetricsRegistry(m signalbus.Manager) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "signalbus",
		Name:      "events_published_total",
		Help:      "Events recorded into history and broadcast.",
	}, func() float64 { return float64(m.SystemStatus().EventsRecorded) }))

	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "signalbus",
		Name:      "events_dropped_total",
		Help:      "Events dropped by dispatch queue backpressure.",
	}, func() float64 { return float64(m.SystemStatus().Scheduler.Dropped) }))

	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "signalbus",
		Name:      "dispatch_tasks_processed_total",
		Help:      "Dispatch tasks completed by the worker pool.",
	}, func() float64 { return float64(m.SystemStatus().Scheduler.Processed) }))

	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "signalbus",
		Name:      "dispatch_panics_total",
		Help:      "Panics recovered inside dispatch tasks.",
	}, func() float64 { return float64(m.SystemStatus().Scheduler.Panicked) }))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "signalbus",
		Name:      "subscribers",
		Help:      "Currently registered subscribers.",
	}, func() float64 { return float64(m.SystemStatus().SubscriberCount) }))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "signalbus",
		Name:      "history_size",
		Help:      "Events currently retained in history.",
	}, func() float64 { return float64(m.SystemStatus().HistorySize) }))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "signalbus",
		Name:      "dispatch_queue_depth",
		Help:      "Dispatch tasks queued, not yet started.",
	}, func() float64 { return float64(m.SystemStatus().Scheduler.QueueDepth) }))

	return reg
}
