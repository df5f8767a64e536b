package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/schedules"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
)

type saveScheduleRequest struct {
	Timezone       string                  `json:"timezone"`
	Availabilities []schedules.WindowInput `json:"availabilities"`
}

type mergedResponse struct {
	Timezone  string                 `json:"timezone"`
	Intervals []model.MergedInterval `json:"intervals"`
	// Week is set when week_of is given: the intervals pinned to that week.
	Week []weekInterval `json:"week,omitempty"`
}

type weekInterval struct {
	DayOfWeek model.Weekday `json:"day_of_week"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, ok, err := h.schedules.Load(r.Context(), currentOwner(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		h.writeError(w, r, storage.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (h *Handler) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	var req saveScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	saved, err := h.schedules.Save(r.Context(), currentOwner(r), req.Timezone, req.Availabilities)
	if err != nil {
		h.metrics.ObserveScheduleSave(saveResult(err))
		h.writeError(w, r, err)
		return
	}
	h.metrics.ObserveScheduleSave("ok")
	h.logger.Info("schedule saved", "owner_id", saved.OwnerID, "windows", len(saved.Availabilities))
	writeJSON(w, http.StatusOK, saved)
}

func saveResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isClientError(err):
		return "invalid"
	default:
		return "error"
	}
}

func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.schedules.Delete(r.Context(), currentOwner(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MergedSchedule(w http.ResponseWriter, r *http.Request) {
	sched, ok, err := h.schedules.Load(r.Context(), currentOwner(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		h.writeError(w, r, storage.ErrNotFound)
		return
	}
	merged, err := availability.Merge(sched.Availabilities)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if merged == nil {
		merged = []model.MergedInterval{}
	}
	resp := mergedResponse{Timezone: sched.Timezone, Intervals: merged}
	if weekOf := strings.TrimSpace(r.URL.Query().Get("week_of")); weekOf != "" {
		resp.Week, err = pinToWeek(merged, sched.Timezone, weekOf)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// pinToWeek resolves each interval to instants in the Monday-first week that
// holds the civil date weekOf in the owner's timezone.
func pinToWeek(merged []model.MergedInterval, tz, weekOf string) ([]weekInterval, error) {
	loc, err := clock.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	anchor, err := time.ParseInLocation(time.DateOnly, weekOf, loc)
	if err != nil {
		return nil, badRequest("week_of must be YYYY-MM-DD")
	}
	out := make([]weekInterval, 0, len(merged))
	for _, m := range merged {
		day := m.DayOfWeek.TimeWeekday()
		start, err := clock.LocalWallClockToInstant(day, m.StartTime, tz, anchor)
		if err != nil {
			return nil, err
		}
		end, err := clock.LocalWallClockToInstant(day, m.EndTime, tz, anchor)
		if err != nil {
			return nil, err
		}
		out = append(out, weekInterval{DayOfWeek: m.DayOfWeek, Start: start, End: end})
	}
	return out, nil
}
