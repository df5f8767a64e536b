// Package metrics owns the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	slotQueries     prometheus.Histogram
	slotsReturned   prometheus.Histogram
	scheduleSaves   *prometheus.CounterVec
	consumed        *prometheus.CounterVec
	outboxPublished prometheus.Counter
	outboxFailures  prometheus.Counter
	outboxPending   prometheus.Gauge
	retentionPruned *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		slotQueries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduling_slot_generation_seconds",
			Help:    "Time spent generating slots for one query",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		slotsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduling_slots_returned",
			Help:    "Number of slots returned by one query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}),
		scheduleSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_schedule_saves_total",
			Help: "Schedule saves by result",
		}, []string{"result"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_events_consumed_total",
			Help: "Kafka events handled by topic and result",
		}, []string{"topic", "result"}),
		outboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_outbox_published_total",
			Help: "Outbox events published to Kafka",
		}),
		outboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_outbox_failures_total",
			Help: "Failed outbox publish batches",
		}),
		outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scheduling_outbox_pending",
			Help: "Outbox events waiting to be published",
		}),
		retentionPruned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_retention_pruned_total",
			Help: "Rows removed by retention jobs",
		}, []string{"table"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration,
		m.requestTotal,
		m.slotQueries,
		m.slotsReturned,
		m.scheduleSaves,
		m.consumed,
		m.outboxPublished,
		m.outboxFailures,
		m.outboxPending,
		m.retentionPruned,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument records duration and status of h under a fixed route label.
func (m *Metrics) Instrument(route string, h http.Handler) http.Handler {
	if m == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cw, status := httpx.CaptureStatus(w)
		h.ServeHTTP(cw, r)
		labels := prometheus.Labels{"method": r.Method, "route": route, "status": strconv.Itoa(status())}
		m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
		m.requestTotal.With(labels).Inc()
	})
}

func (m *Metrics) ObserveSlots(count int, took time.Duration) {
	if m == nil {
		return
	}
	m.slotQueries.Observe(took.Seconds())
	m.slotsReturned.Observe(float64(count))
}

// ObserveScheduleSave takes "ok", "invalid" or "error".
func (m *Metrics) ObserveScheduleSave(result string) {
	if m == nil {
		return
	}
	m.scheduleSaves.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveConsumed(topic string, err error) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(topic, resultOf(err)).Inc()
}

func (m *Metrics) ObserveOutboxBatch(published int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.outboxFailures.Inc()
		return
	}
	m.outboxPublished.Add(float64(published))
}

func (m *Metrics) SetOutboxPending(n int64) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(n))
}

func (m *Metrics) ObservePruned(table string, rows int64) {
	if m == nil {
		return
	}
	m.retentionPruned.WithLabelValues(table).Add(float64(rows))
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
