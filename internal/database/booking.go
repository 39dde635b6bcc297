package database

import (
	"context"
	"fmt"

	"parkhub/internal/model"
)

// ActiveBookingCount returns the number of bookings for a garage that
// are upcoming or in progress. The mutator consults it before allowing
// a non-forced close.
func (db *DB) ActiveBookingCount(ctx context.Context, garageID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE garage_id = ? AND status IN (?, ?)`,
		garageID, model.BookingStatusUpcoming, model.BookingStatusActive,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("active booking count for garage %d: %w", garageID, err)
	}
	return count, nil
}

// InsertBooking records a booking row. The booking subsystem owns the
// lifecycle; this exists for seeding and tests.
func (db *DB) InsertBooking(ctx context.Context, b *model.Booking) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO bookings (garage_id, user_id, vehicle_id, status, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.GarageID, b.UserID, b.VehicleID, b.Status, b.StartTime, b.EndTime,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}
