package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

// BookingRepository keeps the bookings read model and owner-wide cleanup.
type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// ListBookedIntervals returns bookings of the owner that overlap [from, to).
func (r *BookingRepository) ListBookedIntervals(ctx context.Context, ownerID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, start_time, end_time
		FROM bookings
		WHERE owner_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, ownerID, from, to)
	if err != nil {
		return nil, classify("list bookings", err)
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Start, &b.End); err != nil {
			return nil, classify("scan booking", err)
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, classify("list bookings", rows.Err())
	}
	return out, nil
}

func (r *BookingRepository) UpsertBooking(ctx context.Context, b model.Booking) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (id, owner_id, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET owner_id = EXCLUDED.owner_id,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time
	`, b.ID, b.OwnerID, b.Start.UTC(), b.End.UTC())
	return classify("upsert booking", err)
}

func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	return classify("delete booking", err)
}

// DeleteOwnerData removes everything stored for an owner whose account was removed.
func (r *BookingRepository) DeleteOwnerData(ctx context.Context, ownerID string) error {
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		for _, q := range []string{
			`DELETE FROM schedules WHERE owner_id = $1`,
			`DELETE FROM events WHERE owner_id = $1`,
			`DELETE FROM bookings WHERE owner_id = $1`,
		} {
			if _, err := tx.Exec(ctx, q, ownerID); err != nil {
				return err
			}
		}
		return nil
	})
	return classify("delete owner data", err)
}

// PruneBookings drops bookings that ended before cutoff.
func (r *BookingRepository) PruneBookings(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE end_time < $1`, cutoff)
	if err != nil {
		return 0, classify("prune bookings", err)
	}
	return tag.RowsAffected(), nil
}
