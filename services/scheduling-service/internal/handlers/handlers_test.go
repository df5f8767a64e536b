package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/events"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/identity"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/schedules"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSchedules struct {
	byOwner map[string]model.Schedule
}

func (m *memSchedules) LoadSchedule(_ context.Context, ownerID string) (model.Schedule, error) {
	s, ok := m.byOwner[ownerID]
	if !ok {
		return model.Schedule{}, storage.ErrNotFound
	}
	return s, nil
}

func (m *memSchedules) SaveSchedule(_ context.Context, ownerID, timezone string, windows []model.AvailabilityWindow) (model.Schedule, error) {
	s := model.Schedule{ID: "sched-" + ownerID, OwnerID: ownerID, Timezone: timezone, Availabilities: windows}
	m.byOwner[ownerID] = s
	return s, nil
}

func (m *memSchedules) DeleteSchedule(_ context.Context, ownerID string) error {
	if _, ok := m.byOwner[ownerID]; !ok {
		return storage.ErrNotFound
	}
	delete(m.byOwner, ownerID)
	return nil
}

type memEvents struct {
	byID map[string]model.Event
	seq  int
}

func (m *memEvents) CreateEvent(_ context.Context, e model.Event) (model.Event, error) {
	m.seq++
	e.ID = "evt-" + strconv.Itoa(m.seq)
	m.byID[e.ID] = e
	return e, nil
}

func (m *memEvents) ListEvents(_ context.Context, ownerID string, _ int) ([]model.Event, error) {
	var out []model.Event
	for _, e := range m.byID {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) GetEvent(_ context.Context, ownerID, id string) (model.Event, error) {
	e, ok := m.byID[id]
	if !ok || (ownerID != "" && e.OwnerID != ownerID) {
		return model.Event{}, storage.ErrNotFound
	}
	return e, nil
}

func (m *memEvents) UpdateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if _, err := m.GetEvent(ctx, e.OwnerID, e.ID); err != nil {
		return model.Event{}, err
	}
	m.byID[e.ID] = e
	return e, nil
}

func (m *memEvents) DeleteEvent(ctx context.Context, ownerID, id string) error {
	if _, err := m.GetEvent(ctx, ownerID, id); err != nil {
		return err
	}
	delete(m.byID, id)
	return nil
}

type memBookings struct {
	items []model.Booking
	err   error
}

func (m *memBookings) ListBookedIntervals(_ context.Context, ownerID string, from, to time.Time) ([]model.Booking, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Booking
	for _, b := range m.items {
		if b.OwnerID == ownerID && b.Overlaps(from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type testServer struct {
	handler   http.Handler
	schedules *memSchedules
	bookings  *memBookings
	metrics   *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &memSchedules{byOwner: map[string]model.Schedule{}}
	bookings := &memBookings{}
	m := metrics.New()
	h := New(Deps{
		Schedules: schedules.NewSession(store, nil, nil, logger),
		Events:    events.NewService(&memEvents{byID: map[string]model.Event{}}, nil),
		Bookings:  bookings,
		Metrics:   m,
		Logger:    logger,
	})
	h.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	mux := http.NewServeMux()
	h.Register(mux)
	return &testServer{handler: identity.Middleware(nil, true)(mux), schedules: store, bookings: bookings, metrics: m}
}

func (s *testServer) do(t *testing.T, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if user != "" {
		req.Header.Set(identity.HeaderUserID, user)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const mondayMorning = `{"timezone":"UTC","availabilities":[
	{"day_of_week":"monday","start_time":"09:00","end_time":"10:00"}
]}`

func TestPrivateRoutesRequireCaller(t *testing.T) {
	s := newTestServer(t)
	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/api/v1/schedule"},
		{http.MethodPut, "/api/v1/schedule"},
		{http.MethodGet, "/api/v1/events"},
		{http.MethodGet, "/api/v1/me/booking-link"},
	} {
		rec := s.do(t, tc.method, tc.target, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.target)
	}
}

func TestSaveScheduleReportsFieldIssues(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPut, "/api/v1/schedule", "u1", `{"timezone":"UTC","availabilities":[
		{"day_of_week":"monday","start_time":"09:00","end_time":"10:00"},
		{"day_of_week":"monday","start_time":"11:00","end_time":"10:00"},
		{"day_of_week":"funday","start_time":"11:00","end_time":"12:00"}
	]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode[errorBody](t, rec)
	assert.Equal(t, "validation failed", body.Error)
	require.Len(t, body.Fields, 2)
	assert.Equal(t, 1, body.Fields[0].Index)
	assert.Equal(t, "end_time", body.Fields[0].Field)
	assert.Equal(t, 2, body.Fields[1].Index)
	assert.Equal(t, "day_of_week", body.Fields[1].Field)

	rec = s.do(t, http.MethodGet, "/api/v1/schedule", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "rejected save must not persist")
}

func TestSaveScheduleBadRequests(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/v1/schedule", "u1", `{"timezone":"Mars/Olympus","availabilities":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/schedule", "u1", `{"timezone":"UTC","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/schedule", "u1", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveThenReadMergedSchedule(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPut, "/api/v1/schedule", "u1", `{"timezone":"Europe/Berlin","availabilities":[
		{"day_of_week":"Tuesday","start_time":"9:00","end_time":"11:00"},
		{"day_of_week":"tuesday","start_time":"10:30","end_time":"12:00"},
		{"day_of_week":"monday","start_time":"14:00","end_time":"15:00"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[model.Schedule](t, rec)
	require.Len(t, saved.Availabilities, 3)
	assert.Equal(t, model.Monday, saved.Availabilities[0].DayOfWeek)
	assert.Equal(t, "09:00", saved.Availabilities[1].StartTime)

	rec = s.do(t, http.MethodGet, "/api/v1/schedule/merged", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	merged := decode[mergedResponse](t, rec)
	assert.Equal(t, "Europe/Berlin", merged.Timezone)
	assert.Equal(t, []model.MergedInterval{
		{DayOfWeek: model.Monday, StartTime: "14:00", EndTime: "15:00"},
		{DayOfWeek: model.Tuesday, StartTime: "09:00", EndTime: "12:00"},
	}, merged.Intervals)
	assert.Empty(t, merged.Week)

	// 2026-03-31 is a Tuesday, in the first week of Berlin summer time.
	rec = s.do(t, http.MethodGet, "/api/v1/schedule/merged?week_of=2026-03-31", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	week := decode[mergedResponse](t, rec).Week
	require.Len(t, week, 2)
	assert.Equal(t, model.Monday, week[0].DayOfWeek)
	assert.True(t, week[0].Start.Equal(time.Date(2026, 3, 30, 12, 0, 0, 0, time.UTC)), week[0].Start)
	assert.True(t, week[1].End.Equal(time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC)), week[1].End)

	rec = s.do(t, http.MethodGet, "/api/v1/schedule/merged?week_of=2026-01-07", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	week = decode[mergedResponse](t, rec).Week
	assert.True(t, week[0].Start.Equal(time.Date(2026, 1, 5, 13, 0, 0, 0, time.UTC)), week[0].Start)

	rec = s.do(t, http.MethodGet, "/api/v1/schedule/merged?week_of=next-week", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/schedule", "u1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/v1/schedule", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventLifecycle(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/events", "u1", `{"name":"  Intro call ","duration_minutes":30}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Event](t, rec)
	assert.Equal(t, "Intro call", created.Name)
	assert.True(t, created.IsActive)

	rec = s.do(t, http.MethodGet, "/api/v1/events/"+created.ID, "u2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "other owners cannot read the event")

	rec = s.do(t, http.MethodPut, "/api/v1/events/"+created.ID, "u1", `{"name":"Intro","duration_minutes":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/events/"+created.ID, "u1", `{"name":"Intro","duration_minutes":45,"is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[model.Event](t, rec).IsActive)

	rec = s.do(t, http.MethodGet, "/api/v1/events?limit=0", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/events", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Items []model.Event `json:"items"`
	}](t, rec)
	assert.Len(t, list.Items, 1)

	rec = s.do(t, http.MethodDelete, "/api/v1/events/"+created.ID, "u1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPublicSlots(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/v1/schedule", "u1", mondayMorning).Code)
	rec := s.do(t, http.MethodPost, "/api/v1/events", "u1", `{"name":"Chat","duration_minutes":30}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	evt := decode[model.Event](t, rec)

	s.bookings.items = []model.Booking{{
		ID:      "b1",
		OwnerID: "u1",
		Start:   time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC),
		End:     time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}}

	rec = s.do(t, http.MethodGet, "/api/v1/public/slots?owner_id=u1&event_id="+evt.ID+"&from=2026-01-05", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[slotsResponse](t, rec)
	assert.Equal(t, "UTC", body.Timezone)
	assert.Equal(t, 30, body.DurationMinutes)
	assert.Equal(t, "2026-01-05", body.To)
	require.Len(t, body.Slots, 1)
	assert.True(t, body.Slots[0].Start.Equal(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-01-05", body.Slots[0].ViewerDate)

	rec = s.do(t, http.MethodGet, "/api/v1/public/slots?owner_id=u1&duration_minutes=15&from=2026-01-05&timezone=Asia/Kolkata", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode[slotsResponse](t, rec)
	assert.Equal(t, "Asia/Kolkata", body.Timezone)
	require.Len(t, body.Slots, 2)
	assert.Equal(t, "2026-01-05T14:30:00+05:30", body.Slots[0].Start.Format(time.RFC3339))

	count, err := testutil.GatherAndCount(s.metrics.Registry(), "scheduling_slots_returned")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPublicSlotsErrors(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/v1/schedule", "u1", mondayMorning).Code)
	rec := s.do(t, http.MethodPost, "/api/v1/events", "u1", `{"name":"Off","duration_minutes":30,"is_active":false}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	inactive := decode[model.Event](t, rec)

	cases := []struct {
		name   string
		query  string
		status int
	}{
		{"missing owner", "from=2026-01-05&duration_minutes=30", http.StatusBadRequest},
		{"missing from", "owner_id=u1&duration_minutes=30", http.StatusBadRequest},
		{"missing duration", "owner_id=u1&from=2026-01-05", http.StatusBadRequest},
		{"zero duration", "owner_id=u1&from=2026-01-05&duration_minutes=0", http.StatusBadRequest},
		{"duration over a day", "owner_id=u1&from=2026-01-05&duration_minutes=1441", http.StatusBadRequest},
		{"overflowing duration", "owner_id=u1&from=2026-01-05&duration_minutes=307445735", http.StatusBadRequest},
		{"reversed range", "owner_id=u1&from=2026-01-06&to=2026-01-05&duration_minutes=30", http.StatusBadRequest},
		{"range too long", "owner_id=u1&from=2026-01-01&to=2026-06-01&duration_minutes=30", http.StatusBadRequest},
		{"bad viewer zone", "owner_id=u1&from=2026-01-05&duration_minutes=30&timezone=Nowhere/Land", http.StatusBadRequest},
		{"bad limit", "owner_id=u1&from=2026-01-05&duration_minutes=30&limit=-1", http.StatusBadRequest},
		{"unknown owner", "owner_id=u9&from=2026-01-05&duration_minutes=30", http.StatusNotFound},
		{"inactive event", "owner_id=u1&from=2026-01-05&event_id=" + inactive.ID, http.StatusNotFound},
		{"unknown event", "owner_id=u1&from=2026-01-05&event_id=evt-404", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/v1/public/slots?"+tc.query, "", "")
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestCorruptStoredScheduleIsRootError(t *testing.T) {
	s := newTestServer(t)
	s.schedules.byOwner["u1"] = model.Schedule{
		ID:       "sched-u1",
		OwnerID:  "u1",
		Timezone: "UTC",
		Availabilities: []model.AvailabilityWindow{
			{DayOfWeek: model.Monday, StartTime: "9am", EndTime: "10:00"},
		},
	}

	for _, target := range []string{
		"/api/v1/public/slots?owner_id=u1&from=2026-01-05&duration_minutes=30",
		"/api/v1/schedule/merged",
	} {
		rec := s.do(t, http.MethodGet, target, "u1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		body := decode[errorBody](t, rec)
		assert.Contains(t, body.Error, "wall clock", target)
		assert.Empty(t, body.Fields, target)
	}

	s.schedules.byOwner["u1"] = model.Schedule{
		OwnerID:  "u1",
		Timezone: "UTC",
		Availabilities: []model.AvailabilityWindow{
			{DayOfWeek: model.Monday, StartTime: "11:00", EndTime: "10:00"},
		},
	}
	rec := s.do(t, http.MethodGet, "/api/v1/public/slots?owner_id=u1&from=2026-01-05&duration_minutes=30", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, decode[errorBody](t, rec).Fields)
}

func TestPublicSlotsStorageUnavailable(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/v1/schedule", "u1", mondayMorning).Code)
	s.bookings.err = storage.ErrUnavailable

	rec := s.do(t, http.MethodGet, "/api/v1/public/slots?owner_id=u1&from=2026-01-05&duration_minutes=30", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTimezoneLabel(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/timezones?name=Asia/Kolkata", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"name": "Asia/Kolkata", "label": "UTC+05:30"}, decode[map[string]string](t, rec))

	rec = s.do(t, http.MethodGet, "/api/v1/timezones?name=America/New_York&at=2026-07-01T12:00:00Z", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UTC-04:00", decode[map[string]string](t, rec)["label"])

	rec = s.do(t, http.MethodGet, "/api/v1/timezones?name=Bogus/Zone", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/timezones?name=UTC&at=yesterday", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingLink(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/me/booking-link", "user 7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/book/user%207", decode[map[string]string](t, rec)["url"])
}
