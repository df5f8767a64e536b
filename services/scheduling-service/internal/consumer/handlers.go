package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/segmentio/kafka-go"
)

const (
	TopicAppointmentBooked    = "booking.appointment.booked.v1"
	TopicAppointmentCancelled = "booking.appointment.cancelled.v1"
	TopicUserDeleted          = "auth.user.deleted.v1"
)

var ErrBadPayload = errors.New("bad event payload")

type BookingStore interface {
	UpsertBooking(ctx context.Context, b model.Booking) error
	DeleteBooking(ctx context.Context, id string) error
	DeleteOwnerData(ctx context.Context, ownerID string) error
}

type ScheduleCache interface {
	Invalidate(ctx context.Context, ownerID string) error
}

// Dispatch routes a message to the handler registered for its topic. Unknown
// topics are ignored.
func Dispatch(routes map[string]Handler) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		h, ok := routes[msg.Topic]
		if !ok {
			return nil
		}
		return h(ctx, msg)
	}
}

type appointmentPayload struct {
	AppointmentID string `json:"appointment_id"`
	OwnerID       string `json:"owner_id"`
	StaffID       string `json:"staff_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

func (p appointmentPayload) owner() string {
	if p.OwnerID != "" {
		return p.OwnerID
	}
	return p.StaffID
}

// BookedHandler records a booked appointment in the bookings read model.
func BookedHandler(store BookingStore) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p appointmentPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if p.AppointmentID == "" || p.owner() == "" {
			return fmt.Errorf("%w: appointment_id and owner are required", ErrBadPayload)
		}
		start, err := time.Parse(time.RFC3339, p.StartTime)
		if err != nil {
			return fmt.Errorf("%w: start_time: %v", ErrBadPayload, err)
		}
		end, err := time.Parse(time.RFC3339, p.EndTime)
		if err != nil {
			return fmt.Errorf("%w: end_time: %v", ErrBadPayload, err)
		}
		if !end.After(start) {
			return fmt.Errorf("%w: end_time must be after start_time", ErrBadPayload)
		}
		return store.UpsertBooking(ctx, model.Booking{
			ID:      p.AppointmentID,
			OwnerID: p.owner(),
			Start:   start,
			End:     end,
		})
	}
}

// CancelledHandler frees the slot held by a cancelled appointment.
func CancelledHandler(store BookingStore) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p appointmentPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if p.AppointmentID == "" {
			return fmt.Errorf("%w: appointment_id is required", ErrBadPayload)
		}
		return store.DeleteBooking(ctx, p.AppointmentID)
	}
}

// UserDeletedHandler removes the owner's schedule, events and bookings.
func UserDeletedHandler(store BookingStore, cache ScheduleCache) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		ownerID := strings.TrimSpace(p.UserID)
		if ownerID == "" {
			return fmt.Errorf("%w: user_id is required", ErrBadPayload)
		}
		if err := store.DeleteOwnerData(ctx, ownerID); err != nil {
			return err
		}
		if cache != nil {
			return cache.Invalidate(ctx, ownerID)
		}
		return nil
	}
}
