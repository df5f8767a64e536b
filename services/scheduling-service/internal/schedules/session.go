// Package schedules is the only write path into an owner's weekly availability.
package schedules

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/validation"
	"go.opentelemetry.io/otel/attribute"
)

var ErrMissingOwner = errors.New("owner id is required")

type Store interface {
	LoadSchedule(ctx context.Context, ownerID string) (model.Schedule, error)
	SaveSchedule(ctx context.Context, ownerID, timezone string, windows []model.AvailabilityWindow) (model.Schedule, error)
	DeleteSchedule(ctx context.Context, ownerID string) error
}

type Cache interface {
	Get(ctx context.Context, ownerID string) (model.Schedule, bool, error)
	Set(ctx context.Context, s model.Schedule) error
	Invalidate(ctx context.Context, ownerID string) error
}

// WindowInput is one proposed row as submitted by the edit form.
type WindowInput struct {
	DayOfWeek string `json:"day_of_week" validate:"required,weekday"`
	StartTime string `json:"start_time" validate:"required,wallclock"`
	EndTime   string `json:"end_time" validate:"required,wallclock"`
}

type Session struct {
	store    Store
	cache    Cache
	validate *validator.Validate
	logger   *slog.Logger
	// writes counts invalidations. A Load that saw it move while reading the
	// store does not fill the cache with what it read.
	writes atomic.Uint64
}

func NewSession(store Store, cache Cache, validate *validator.Validate, logger *slog.Logger) *Session {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: store, cache: cache, validate: validate, logger: logger}
}

// PrepareSave validates the proposed rows and returns them normalized: lowercase
// weekday, zero-padded HH:MM, sorted by weekday, start and end. Every problem is
// reported against the index of the row that caused it.
func (s *Session) PrepareSave(proposed []WindowInput) ([]model.AvailabilityWindow, error) {
	verr := &availability.ValidationError{}
	out := make([]model.AvailabilityWindow, 0, len(proposed))
	seen := make(map[model.AvailabilityWindow]int, len(proposed))

	for i, in := range proposed {
		if err := s.validate.Struct(in); err != nil {
			if err := validation.AddIssues(verr, i, err); err != nil {
				return nil, err
			}
			continue
		}
		w := normalize(in)
		var rowErr *availability.ValidationError
		if errors.As(availability.Validate([]model.AvailabilityWindow{w}), &rowErr) {
			for _, issue := range rowErr.Issues {
				verr.Add(i, issue.Field, issue.Reason)
			}
			continue
		}
		if j, dup := seen[w]; dup {
			verr.Add(i, "row", fmt.Sprintf("duplicate of row %d", j))
			continue
		}
		seen[w] = i
		out = append(out, w)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b model.AvailabilityWindow) int {
		if c := cmp.Compare(a.DayOfWeek.Index(), b.DayOfWeek.Index()); c != 0 {
			return c
		}
		if c := cmp.Compare(hours(a.StartTime), hours(b.StartTime)); c != 0 {
			return c
		}
		return cmp.Compare(hours(a.EndTime), hours(b.EndTime))
	})
	return out, nil
}

// hours is only called on rows that already passed validation.
func hours(wallClock string) float64 {
	h, _ := clock.ToFloatHours(wallClock)
	return h
}

func normalize(in WindowInput) model.AvailabilityWindow {
	day, _ := model.ParseWeekday(in.DayOfWeek)
	start, _ := clock.ParseWallClock(in.StartTime)
	end, _ := clock.ParseWallClock(in.EndTime)
	return model.AvailabilityWindow{DayOfWeek: day, StartTime: start.String(), EndTime: end.String()}
}

// Save replaces the owner's whole schedule. Nothing reaches the store unless the
// timezone and every row are valid.
func (s *Session) Save(ctx context.Context, ownerID, timezone string, proposed []WindowInput) (model.Schedule, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return model.Schedule{}, ErrMissingOwner
	}
	loc, err := clock.LoadLocation(timezone)
	if err != nil {
		return model.Schedule{}, err
	}
	windows, err := s.PrepareSave(proposed)
	if err != nil {
		return model.Schedule{}, err
	}

	ctx, span := otelx.StartSpan(ctx, "scheduling", "schedules.save",
		attribute.String("owner_id", ownerID),
		attribute.Int("windows", len(windows)),
	)
	saved, err := s.store.SaveSchedule(ctx, ownerID, loc.String(), windows)
	otelx.EndSpan(span, err)
	if err != nil {
		return model.Schedule{}, err
	}
	s.invalidate(ctx, ownerID)
	return saved, nil
}

// Load returns the owner's schedule, reading through the cache. ok is false when
// the owner has never saved one.
func (s *Session) Load(ctx context.Context, ownerID string) (model.Schedule, bool, error) {
	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, ownerID)
		if err != nil {
			s.logger.Warn("schedule cache read failed", "err", err, "owner_id", ownerID)
		} else if hit {
			return cached, true, nil
		}
	}

	gen := s.writes.Load()
	sched, err := s.store.LoadSchedule(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Schedule{}, false, nil
	}
	if err != nil {
		return model.Schedule{}, false, err
	}
	if s.cache != nil && s.writes.Load() == gen {
		if err := s.cache.Set(ctx, sched); err != nil {
			s.logger.Warn("schedule cache write failed", "err", err, "owner_id", ownerID)
		}
	}
	return sched, true, nil
}

// Delete removes the schedule and its windows. Events are left alone.
func (s *Session) Delete(ctx context.Context, ownerID string) error {
	if err := s.store.DeleteSchedule(ctx, ownerID); err != nil {
		return err
	}
	s.invalidate(ctx, ownerID)
	return nil
}

func (s *Session) invalidate(ctx context.Context, ownerID string) {
	s.writes.Add(1)
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ownerID); err != nil {
		s.logger.Warn("schedule cache invalidate failed", "err", err, "owner_id", ownerID)
	}
}
