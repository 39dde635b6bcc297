package model

import "time"

// Booking is the slice of the booking subsystem's record that the
// status engine can see. Booking lifecycle management is external; the
// engine only counts rows in an active status as a close-safety gate.
type Booking struct {
	ID        int64     `json:"id"`
	GarageID  int64     `json:"garage_id"`
	UserID    int64     `json:"user_id"`
	VehicleID int64     `json:"vehicle_id,omitempty"`
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

// Booking statuses counted as active for the close gate.
const (
	BookingStatusUpcoming  = "upcoming"
	BookingStatusActive    = "active"
	BookingStatusCompleted = "completed"
	BookingStatusCanceled  = "canceled"
)
