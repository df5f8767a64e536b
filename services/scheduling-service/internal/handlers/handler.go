package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/events"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/identity"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/schedules"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
)

type ScheduleService interface {
	Load(ctx context.Context, ownerID string) (model.Schedule, bool, error)
	Save(ctx context.Context, ownerID, timezone string, proposed []schedules.WindowInput) (model.Schedule, error)
	Delete(ctx context.Context, ownerID string) error
}

type EventService interface {
	Create(ctx context.Context, ownerID string, in events.Input) (model.Event, error)
	List(ctx context.Context, ownerID string, limit int) ([]model.Event, error)
	Get(ctx context.Context, ownerID, id string) (model.Event, error)
	Update(ctx context.Context, ownerID, id string, in events.Input) (model.Event, error)
	Delete(ctx context.Context, ownerID, id string) error
	Bookable(ctx context.Context, ownerID, id string) (model.Event, error)
}

type BookingSource interface {
	ListBookedIntervals(ctx context.Context, ownerID string, from, to time.Time) ([]model.Booking, error)
}

type Handler struct {
	schedules ScheduleService
	events    EventService
	bookings  BookingSource
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

type Deps struct {
	Schedules ScheduleService
	Events    EventService
	Bookings  BookingSource
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		schedules: d.Schedules,
		events:    d.Events,
		bookings:  d.Bookings,
		metrics:   d.Metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Register mounts the API on mux. Routes marked private need a resolved caller;
// identity.Middleware must run before the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	private := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.metrics.Instrument(pattern, identity.Require(fn)))
	}
	public := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.metrics.Instrument(pattern, fn))
	}

	private("GET /api/v1/schedule", h.GetSchedule)
	private("PUT /api/v1/schedule", h.SaveSchedule)
	private("DELETE /api/v1/schedule", h.DeleteSchedule)
	private("GET /api/v1/schedule/merged", h.MergedSchedule)

	private("POST /api/v1/events", h.CreateEvent)
	private("GET /api/v1/events", h.ListEvents)
	private("GET /api/v1/events/{id}", h.GetEvent)
	private("PUT /api/v1/events/{id}", h.UpdateEvent)
	private("DELETE /api/v1/events/{id}", h.DeleteEvent)

	private("GET /api/v1/me/booking-link", h.BookingLink)

	public("GET /api/v1/public/slots", h.Slots)
	public("GET /api/v1/timezones", h.Timezone)
}

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", errBadRequest, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string               `json:"error"`
	Fields []availability.Issue `json:"fields,omitempty"`
}

// writeError maps the error taxonomy onto HTTP. Field-level problems go out as
// 422 with one entry per offending row; everything else is a single root message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *availability.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: verr.Issues})
	case errors.Is(err, clock.ErrInvalidTimezone),
		errors.Is(err, clock.ErrInvalidWallClock),
		errors.Is(err, availability.ErrInvalidDuration),
		errors.Is(err, availability.ErrInvalidRange),
		errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, schedules.ErrMissingOwner):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		h.logger.Error("storage unavailable", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage unavailable, please retry"})
	default:
		h.logger.Error("request failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid json body")
	}
	return nil
}

func currentOwner(r *http.Request) string {
	u, _ := identity.CurrentUser(r.Context())
	return u.ID
}

func isClientError(err error) bool {
	var verr *availability.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, clock.ErrInvalidTimezone) ||
		errors.Is(err, clock.ErrInvalidWallClock) ||
		errors.Is(err, errBadRequest)
}
