// Package events manages an owner's bookable meeting types.
package events

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/validation"
)

// MaxDurationMinutes caps event length at the longest slot the generator accepts.
const MaxDurationMinutes = availability.MaxDurationMinutes

type Store interface {
	CreateEvent(ctx context.Context, e model.Event) (model.Event, error)
	ListEvents(ctx context.Context, ownerID string, limit int) ([]model.Event, error)
	GetEvent(ctx context.Context, ownerID, id string) (model.Event, error)
	UpdateEvent(ctx context.Context, e model.Event) (model.Event, error)
	DeleteEvent(ctx context.Context, ownerID, id string) error
}

type Input struct {
	Name            string  `json:"name" validate:"required,max=255"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=1,max=1440"`
	IsActive        *bool   `json:"is_active"`
}

type Service struct {
	store    Store
	validate *validator.Validate
}

func NewService(store Store, validate *validator.Validate) *Service {
	if validate == nil {
		validate = validation.New()
	}
	return &Service{store: store, validate: validate}
}

func (s *Service) build(ownerID string, in Input) (model.Event, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			in.Description = nil
		} else {
			in.Description = &d
		}
	}
	if err := s.validate.Struct(in); err != nil {
		verr := &availability.ValidationError{}
		if err := validation.AddIssues(verr, 0, err); err != nil {
			return model.Event{}, err
		}
		return model.Event{}, verr
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return model.Event{
		OwnerID:         ownerID,
		Name:            in.Name,
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		IsActive:        active,
	}, nil
}

func (s *Service) Create(ctx context.Context, ownerID string, in Input) (model.Event, error) {
	e, err := s.build(ownerID, in)
	if err != nil {
		return model.Event{}, err
	}
	return s.store.CreateEvent(ctx, e)
}

func (s *Service) List(ctx context.Context, ownerID string, limit int) ([]model.Event, error) {
	return s.store.ListEvents(ctx, ownerID, limit)
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (model.Event, error) {
	return s.store.GetEvent(ctx, ownerID, id)
}

func (s *Service) Update(ctx context.Context, ownerID, id string, in Input) (model.Event, error) {
	e, err := s.build(ownerID, in)
	if err != nil {
		return model.Event{}, err
	}
	e.ID = id
	return s.store.UpdateEvent(ctx, e)
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.store.DeleteEvent(ctx, ownerID, id)
}

// Bookable resolves the event behind a public slot query. Inactive events are
// reported as not found so they are never offered.
func (s *Service) Bookable(ctx context.Context, ownerID, id string) (model.Event, error) {
	e, err := s.store.GetEvent(ctx, ownerID, id)
	if err != nil {
		return model.Event{}, err
	}
	if !e.IsActive {
		return model.Event{}, storage.ErrNotFound
	}
	return e, nil
}
