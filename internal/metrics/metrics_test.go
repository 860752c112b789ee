package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/orderdesk/internal/enum"
	"github.com/kiwari-pos/orderdesk/internal/model"
	"github.com/kiwari-pos/orderdesk/internal/refresh"
	"github.com/kiwari-pos/orderdesk/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOrderChanged(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ctx := context.Background()

	m.OrderChanged(ctx, service.Event{Type: service.EventOrderCreated, Order: model.Order{OrderType: enum.OrderTypeTakeOut}})
	m.OrderChanged(ctx, service.Event{Type: service.EventOrderCreated, Order: model.Order{OrderType: enum.OrderTypeTakeOut}})
	m.OrderChanged(ctx, service.Event{Type: service.EventOrderCancelled})

	if got := testutil.ToFloat64(m.orderEvents.WithLabelValues("order.created")); got != 2 {
		t.Errorf("expected 2 created events, got %v", got)
	}
	if got := testutil.ToFloat64(m.ordersCreated.WithLabelValues("take-out")); got != 2 {
		t.Errorf("expected 2 take-out orders, got %v", got)
	}
	if got := testutil.ToFloat64(m.orderEvents.WithLabelValues("order.cancelled")); got != 1 {
		t.Errorf("expected 1 cancelled event, got %v", got)
	}
}

func TestPollObserver(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.PollCompleted(20*time.Millisecond, nil)
	m.PollCompleted(time.Second, errors.New("timeout"))
	m.PollDiscarded()

	if got := testutil.ToFloat64(m.polls.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.polls.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(m.pollsDiscarded); got != 1 {
		t.Errorf("expected 1 discarded, got %v", got)
	}
}

func TestRecordSnapshot(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordSnapshot(refresh.Snapshot{Generation: 4, Orders: []model.Order{
		{Status: enum.OrderStatusPending},
		{Status: enum.OrderStatusPending},
		{Status: enum.OrderStatusServed},
	}})

	if got := testutil.ToFloat64(m.ordersByStatus.WithLabelValues("pending")); got != 2 {
		t.Errorf("expected 2 pending, got %v", got)
	}
	if got := testutil.ToFloat64(m.ordersByStatus.WithLabelValues("cancelled")); got != 0 {
		t.Errorf("expected 0 cancelled, got %v", got)
	}
	if got := testutil.ToFloat64(m.snapshotGen); got != 4 {
		t.Errorf("expected generation 4, got %v", got)
	}

	// A later snapshot resets statuses that emptied out.
	m.RecordSnapshot(refresh.Snapshot{Generation: 5})
	if got := testutil.ToFloat64(m.ordersByStatus.WithLabelValues("pending")); got != 0 {
		t.Errorf("expected pending reset to 0, got %v", got)
	}
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
	}

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/orders/{id}", "404")); got != 2 {
		t.Errorf("expected 2 requests on /orders/{id}, got %v", got)
	}
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("expected panic registering twice on one registry")
		}
	}()
	New(reg)
}
