package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

// maxSlots bounds one response; callers page by narrowing the date range.
const maxSlots = 2000

type slotsResponse struct {
	OwnerID         string              `json:"owner_id"`
	EventID         string              `json:"event_id,omitempty"`
	Timezone        string              `json:"timezone"`
	DurationMinutes int                 `json:"duration_minutes"`
	From            string              `json:"from"`
	To              string              `json:"to"`
	Slots           []availability.Slot `json:"slots"`
}

// Slots lists bookable slots for owner_id over the viewer dates from..to.
// Duration comes from an active event_id or an explicit duration_minutes.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ownerID := strings.TrimSpace(q.Get("owner_id"))
	if ownerID == "" {
		h.writeError(w, r, badRequest("owner_id is required"))
		return
	}
	from := strings.TrimSpace(q.Get("from"))
	to := strings.TrimSpace(q.Get("to"))
	if from == "" {
		h.writeError(w, r, badRequest("from is required (YYYY-MM-DD)"))
		return
	}
	if to == "" {
		to = from
	}
	dateRange, err := availability.ParseDateRange(from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	limit := maxSlots
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxSlots {
			h.writeError(w, r, badRequest("limit must be between 1 and "+strconv.Itoa(maxSlots)))
			return
		}
		limit = n
	}

	ctx := r.Context()
	eventID := strings.TrimSpace(q.Get("event_id"))
	var duration int
	switch {
	case eventID != "":
		e, err := h.events.Bookable(ctx, ownerID, eventID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		duration = e.DurationMinutes
	case q.Get("duration_minutes") != "":
		n, err := strconv.Atoi(q.Get("duration_minutes"))
		if err != nil || n <= 0 || n > availability.MaxDurationMinutes {
			h.writeError(w, r, availability.ErrInvalidDuration)
			return
		}
		duration = n
	default:
		h.writeError(w, r, badRequest("event_id or duration_minutes is required"))
		return
	}

	sched, ok, err := h.schedules.Load(ctx, ownerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		h.writeError(w, r, storage.ErrNotFound)
		return
	}
	viewerTZ := strings.TrimSpace(q.Get("timezone"))
	if viewerTZ == "" {
		viewerTZ = sched.Timezone
	}

	// Civil dates stretch at most 14h either side of their UTC midnight.
	windowFrom := dateRange.Start.AddDate(0, 0, -1)
	windowTo := dateRange.End.AddDate(0, 0, 2)
	bookings, err := h.bookings.ListBookedIntervals(ctx, ownerID, windowFrom, windowTo)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	started := time.Now()
	ctx, span := otelx.StartSpan(ctx, "scheduling", "slots.generate",
		attribute.String("owner_id", ownerID),
		attribute.Int("duration_minutes", duration),
		attribute.Int("days", dateRange.Days()),
	)
	seq, err := availability.GenerateSlots(availability.SlotRequest{
		Schedule:        sched,
		DurationMinutes: duration,
		Range:           dateRange,
		ViewerTimezone:  viewerTZ,
		Bookings:        bookings,
		Now:             h.now(),
	})
	if err != nil {
		otelx.EndSpan(span, err)
		h.writeError(w, r, err)
		return
	}
	slots := availability.Collect(seq, limit)
	span.SetAttributes(attribute.Int("slots", len(slots)))
	otelx.EndSpan(span, nil)
	h.metrics.ObserveSlots(len(slots), time.Since(started))

	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		OwnerID:         ownerID,
		EventID:         eventID,
		Timezone:        viewerTZ,
		DurationMinutes: duration,
		From:            from,
		To:              to,
		Slots:           slots,
	})
}

// Timezone reports the UTC offset label for name at the given instant (default now).
func (h *Handler) Timezone(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	at := h.now()
	if v := r.URL.Query().Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, r, badRequest("at must be an RFC3339 timestamp"))
			return
		}
		at = t
	}
	label, err := clock.TimezoneOffsetLabel(name, at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "label": label})
}

// BookingLink returns the public page path where others book the caller.
func (h *Handler) BookingLink(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"url": "/book/" + url.PathEscape(currentOwner(r))})
}
