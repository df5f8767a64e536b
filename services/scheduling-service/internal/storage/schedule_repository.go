package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/outbox"
)

const EventAvailabilityReplaced = "scheduling.availability.replaced.v1"

type ScheduleRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewScheduleRepository(pool *db.Pool, outboxRepo *outbox.Repository) *ScheduleRepository {
	return &ScheduleRepository{pool: pool, outbox: outboxRepo}
}

func (r *ScheduleRepository) LoadSchedule(ctx context.Context, ownerID string) (model.Schedule, error) {
	var s model.Schedule
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, owner_id, timezone, created_at, updated_at
		FROM schedules
		WHERE owner_id = $1
	`, ownerID).Scan(&s.ID, &s.OwnerID, &s.Timezone, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.Schedule{}, classify("load schedule", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT day_of_week::text, start_time, end_time
		FROM schedule_availabilities
		WHERE schedule_id = $1
		ORDER BY array_position(enum_range(NULL::day_of_week), day_of_week), start_time, end_time
	`, s.ID)
	if err != nil {
		return model.Schedule{}, classify("load availabilities", err)
	}
	defer rows.Close()

	s.Availabilities = []model.AvailabilityWindow{}
	for rows.Next() {
		var w model.AvailabilityWindow
		var day string
		if err := rows.Scan(&day, &w.StartTime, &w.EndTime); err != nil {
			return model.Schedule{}, classify("scan availability", err)
		}
		w.DayOfWeek = model.Weekday(day)
		s.Availabilities = append(s.Availabilities, w)
	}
	if rows.Err() != nil {
		return model.Schedule{}, classify("load availabilities", rows.Err())
	}
	return s, nil
}

// SaveSchedule upserts the owner's schedule and replaces all of its windows in one
// transaction. The upsert locks the schedule row, so concurrent saves for the same
// owner run one after the other; any failure leaves the previous windows in place.
func (r *ScheduleRepository) SaveSchedule(ctx context.Context, ownerID, timezone string, windows []model.AvailabilityWindow) (model.Schedule, error) {
	s := model.Schedule{OwnerID: ownerID, Timezone: timezone, Availabilities: windows}
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO schedules (id, owner_id, timezone)
			VALUES ($1, $2, $3)
			ON CONFLICT (owner_id) DO UPDATE
			SET timezone = EXCLUDED.timezone,
				updated_at = now()
			RETURNING id::text, created_at, updated_at
		`, uuid.NewString(), ownerID, timezone).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return err
		}
		if err := r.ReplaceAvailability(ctx, tx, s.ID, windows); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]any{
			"schedule_id":    s.ID,
			"owner_id":       ownerID,
			"timezone":       timezone,
			"availabilities": windows,
			"updated_at":     s.UpdatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "schedule",
			AggregateID:   s.ID,
			EventType:     EventAvailabilityReplaced,
			Payload:       payload,
		})
	})
	if err != nil {
		return model.Schedule{}, classify("save schedule", err)
	}
	return s, nil
}

// ReplaceAvailability deletes every window of the schedule and inserts windows. It
// must run inside the caller's transaction.
func (r *ScheduleRepository) ReplaceAvailability(ctx context.Context, tx pgx.Tx, scheduleID string, windows []model.AvailabilityWindow) error {
	if _, err := tx.Exec(ctx, `DELETE FROM schedule_availabilities WHERE schedule_id = $1`, scheduleID); err != nil {
		return err
	}
	if len(windows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, w := range windows {
		batch.Queue(`
			INSERT INTO schedule_availabilities (id, schedule_id, day_of_week, start_time, end_time)
			VALUES ($1, $2, $3::day_of_week, $4, $5)
		`, uuid.NewString(), scheduleID, string(w.DayOfWeek), w.StartTime, w.EndTime)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// DeleteSchedule removes the owner's schedule; windows cascade and events are untouched.
func (r *ScheduleRepository) DeleteSchedule(ctx context.Context, ownerID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE owner_id = $1`, ownerID)
	if err != nil {
		return classify("delete schedule", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
