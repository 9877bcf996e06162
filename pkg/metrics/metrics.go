// Package metrics exposes kvcron activity as Prometheus metrics.
//
//	c, err := metrics.New(prometheus.DefaultRegisterer)
//	if err != nil {
//		return err
//	}
//	m, err := kvcron.NewManager(store, kvcron.WithHooks(c.Hooks()), ...)
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/kvcron/pkg/kvcron"
)

// Processing outcome label values.
const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Collector records manager activity reported through kvcron.Hooks.
type Collector struct {
	enqueued  *prometheus.CounterVec
	retries   *prometheus.CounterVec
	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	skipped   *prometheus.CounterVec
	aborted   prometheus.Counter
}

// Option configures the collector.
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
}

// WithNamespace sets the metric namespace.
// Default: "kvcron".
func WithNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithBuckets sets the handler duration histogram buckets, in seconds.
// Default: prometheus.DefBuckets.
func WithBuckets(b ...float64) Option {
	return func(o *options) {
		if len(b) > 0 {
			o.buckets = b
		}
	}
}

// New creates a collector and registers its metrics with reg.
func New(reg prometheus.Registerer, opts ...Option) (*Collector, error) {
	o := &options{namespace: "kvcron", buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(o)
	}

	c := &Collector{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "enqueued_total",
			Help:      "Occurrences committed by enqueue or reschedule.",
		}, []string{"job"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "enqueue_retries_total",
			Help:      "Enqueue commits retried along the backoff schedule.",
		}, []string{"job"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "processed_total",
			Help:      "Handler invocations by outcome.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "handler_duration_seconds",
			Help:      "Handler run time.",
			Buckets:   o.buckets,
		}, []string{"job"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "skipped_deliveries_total",
			Help:      "Deliveries that did not run a handler, by reason.",
		}, []string{"reason"}),
		aborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "aborted_total",
			Help:      "Occurrences aborted.",
		}),
	}

	for _, col := range []prometheus.Collector{c.enqueued, c.retries, c.processed, c.duration, c.skipped, c.aborted} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Hooks returns manager hooks that update the collector.
func (c *Collector) Hooks() kvcron.Hooks {
	return kvcron.Hooks{
		Enqueued: func(job string) {
			c.enqueued.WithLabelValues(job).Inc()
		},
		EnqueueRetry: func(job string, _ int) {
			c.retries.WithLabelValues(job).Inc()
		},
		Processed: func(job string, took time.Duration, err error) {
			status := statusSuccess
			if err != nil {
				status = statusFailure
			}
			c.processed.WithLabelValues(job, status).Inc()
			c.duration.WithLabelValues(job).Observe(took.Seconds())
		},
		Skipped: func(reason kvcron.SkipReason) {
			c.skipped.WithLabelValues(string(reason)).Inc()
		},
		Aborted: c.aborted.Inc,
	}
}

// statsTimeout bounds the store reads behind one scrape.
const statsTimeout = 2 * time.Second

// RegisterStats exports the store-wide counters of m as gauges read at scrape
// time. Unlike the hook metrics they include work done by every process
// sharing the store.
func RegisterStats(reg prometheus.Registerer, m *kvcron.Manager, log *slog.Logger, opts ...Option) error {
	o := &options{namespace: "kvcron"}
	for _, opt := range opts {
		opt(o)
	}

	read := func(pick func(kvcron.Stats) uint64) func() float64 {
		return func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
			defer cancel()

			st, err := m.Stats(ctx)
			if err != nil {
				if log != nil {
					log.WarnContext(ctx, "read kvcron stats", slog.Any("error", err))
				}
				return 0
			}
			return float64(pick(st))
		}
	}

	return errors.Join(
		reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "store_enqueued_count",
			Help:      "Value of the enqueued counter in the store.",
		}, read(func(s kvcron.Stats) uint64 { return s.Enqueued }))),
		reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "store_processed_count",
			Help:      "Value of the processed counter in the store.",
		}, read(func(s kvcron.Stats) uint64 { return s.Processed }))),
	)
}
