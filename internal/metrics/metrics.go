// Package metrics exposes Prometheus collectors for order activity, polling
// health and HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kiwari-pos/orderdesk/internal/enum"
	"github.com/kiwari-pos/orderdesk/internal/refresh"
	"github.com/kiwari-pos/orderdesk/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orderdesk"

// Metrics holds every collector. Create one per registry.
type Metrics struct {
	orderEvents    *prometheus.CounterVec
	ordersCreated  *prometheus.CounterVec
	ordersByStatus *prometheus.GaugeVec
	polls          *prometheus.CounterVec
	pollDuration   prometheus.Histogram
	pollsDiscarded prometheus.Counter
	snapshotGen    prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		orderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_events_total",
			Help:      "Committed order changes by event type.",
		}, []string{"type"}),
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders created by order type.",
		}, []string{"order_type"}),
		ordersByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orders_in_status",
			Help:      "Orders per status in the latest snapshot.",
		}, []string{"status"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "polls_total",
			Help:      "Completed store polls by result.",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "poll_duration_seconds",
			Help:      "Duration of store polls.",
			Buckets:   prometheus.DefBuckets,
		}),
		pollsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "polls_discarded_total",
			Help:      "Polls superseded by a newer one before finishing.",
		}),
		snapshotGen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "snapshot_generation",
			Help:      "Generation of the latest published snapshot.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.orderEvents,
		m.ordersCreated,
		m.ordersByStatus,
		m.polls,
		m.pollDuration,
		m.pollsDiscarded,
		m.snapshotGen,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// OrderChanged counts committed order changes.
func (m *Metrics) OrderChanged(ctx context.Context, ev service.Event) {
	m.orderEvents.WithLabelValues(string(ev.Type)).Inc()
	if ev.Type == service.EventOrderCreated {
		m.ordersCreated.WithLabelValues(string(ev.Order.OrderType)).Inc()
	}
}

// PollCompleted records one finished poll.
func (m *Metrics) PollCompleted(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.polls.WithLabelValues(result).Inc()
	m.pollDuration.Observe(d.Seconds())
}

// PollDiscarded records a superseded poll.
func (m *Metrics) PollDiscarded() {
	m.pollsDiscarded.Inc()
}

// RecordSnapshot updates the per-status gauges from snap.
func (m *Metrics) RecordSnapshot(snap refresh.Snapshot) {
	counts := make(map[enum.OrderStatus]int, len(enum.AllOrderStatuses))
	for _, o := range snap.Orders {
		counts[o.Status]++
	}
	for _, s := range enum.AllOrderStatuses {
		m.ordersByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
	m.snapshotGen.Set(float64(snap.Generation))
}

// WatchSnapshots records every snapshot from updates until ctx is done.
func (m *Metrics) WatchSnapshots(ctx context.Context, updates <-chan refresh.Snapshot) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			m.RecordSnapshot(snap)
		}
	}
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
