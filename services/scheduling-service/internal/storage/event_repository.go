package storage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/outbox"
)

const (
	EventEventChanged = "scheduling.event.changed.v1"
	EventEventDeleted = "scheduling.event.deleted.v1"
)

type EventRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewEventRepository(pool *db.Pool, outboxRepo *outbox.Repository) *EventRepository {
	return &EventRepository{pool: pool, outbox: outboxRepo}
}

const eventColumns = `id::text, owner_id, name, description, duration_minutes, is_active, created_at, updated_at`

func scanEvent(row pgx.Row) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Description, &e.DurationMinutes, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *EventRepository) CreateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	var out model.Event
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanEvent(tx.QueryRow(ctx, `
			INSERT INTO events (id, owner_id, name, description, duration_minutes, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+eventColumns,
			uuid.NewString(), e.OwnerID, e.Name, e.Description, e.DurationMinutes, e.IsActive))
		if err != nil {
			return err
		}
		return r.emit(ctx, tx, EventEventChanged, out)
	})
	if err != nil {
		return model.Event{}, classify("create event", err)
	}
	return out, nil
}

func (r *EventRepository) ListEvents(ctx context.Context, ownerID string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, classify("list events", err)
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, classify("scan event", err)
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, classify("list events", rows.Err())
	}
	return out, nil
}

// GetEvent loads one event. An empty ownerID skips the ownership filter, which the
// public slot query relies on.
func (r *EventRepository) GetEvent(ctx context.Context, ownerID, id string) (model.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Event{}, ErrNotFound
	}
	e, err := scanEvent(r.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1 AND ($2 = '' OR owner_id = $2)
	`, id, ownerID))
	if err != nil {
		return model.Event{}, classify("get event", err)
	}
	return e, nil
}

func (r *EventRepository) UpdateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if _, err := uuid.Parse(e.ID); err != nil {
		return model.Event{}, ErrNotFound
	}
	var out model.Event
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanEvent(tx.QueryRow(ctx, `
			UPDATE events
			SET name = $3,
				description = $4,
				duration_minutes = $5,
				is_active = $6,
				updated_at = now()
			WHERE id = $1 AND owner_id = $2
			RETURNING `+eventColumns,
			e.ID, e.OwnerID, e.Name, e.Description, e.DurationMinutes, e.IsActive))
		if err != nil {
			return err
		}
		return r.emit(ctx, tx, EventEventChanged, out)
	})
	if err != nil {
		return model.Event{}, classify("update event", err)
	}
	return out, nil
}

// DeleteEvent removes one event; the owner's schedule is untouched.
func (r *EventRepository) DeleteEvent(ctx context.Context, ownerID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		e, err := scanEvent(tx.QueryRow(ctx, `
			DELETE FROM events
			WHERE id = $1 AND owner_id = $2
			RETURNING `+eventColumns, id, ownerID))
		if err != nil {
			return err
		}
		return r.emit(ctx, tx, EventEventDeleted, e)
	})
	return classify("delete event", err)
}

func (r *EventRepository) emit(ctx context.Context, tx pgx.Tx, eventType string, e model.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "event",
		AggregateID:   e.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}
