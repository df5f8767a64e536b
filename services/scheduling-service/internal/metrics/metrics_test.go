package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentLabelsByRoute(t *testing.T) {
	m := New()
	h := m.Instrument("GET /api/v1/events/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/events/abc", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/events/def", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "GET /api/v1/events/{id}", "404")))
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.ObserveScheduleSave("invalid")
	m.ObserveConsumed("booking.appointment.booked.v1", nil)
	m.ObserveConsumed("booking.appointment.booked.v1", errors.New("x"))
	m.ObserveOutboxBatch(3, nil)
	m.ObserveOutboxBatch(0, errors.New("kafka down"))
	m.ObservePruned("bookings", 5)
	m.ObserveSlots(12, 2*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scheduleSaves.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.consumed.WithLabelValues("booking.appointment.booked.v1", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.outboxPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxFailures))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.retentionPruned.WithLabelValues("bookings")))

	rw := httptest.NewRecorder()
	m.Handler().ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rw.Code)
	assert.True(t, strings.Contains(rw.Body.String(), "scheduling_slots_returned_bucket"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveScheduleSave("ok")
	m.ObserveSlots(1, time.Millisecond)
	h := m.Instrument("x", http.NotFoundHandler())
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rw.Code)
}
