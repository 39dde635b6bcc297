// Package gate admits or refuses new bookings based on the effective
// operational status of the target garage.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parkhub/internal/status"
)

// StatusResolver is the read side the gate consults.
type StatusResolver interface {
	Resolve(ctx context.Context, garageID int64, now time.Time) (status.Resolution, error)
}

// ErrNotBookable is returned when the garage is not effectively open.
type ErrNotBookable struct {
	GarageID int64
	Status   string
	Reason   string
}

func (e *ErrNotBookable) Error() string {
	return fmt.Sprintf("garage %d is not bookable: %s (%s)", e.GarageID, e.Status, e.Reason)
}

// BookingGate is the admission check the booking subsystem runs before
// creating a booking. It holds no state beyond its resolver.
type BookingGate struct {
	resolver StatusResolver
	logger   zerolog.Logger
	now      func() time.Time
}

func NewBookingGate(resolver StatusResolver, logger zerolog.Logger) *BookingGate {
	return &BookingGate{
		resolver: resolver,
		logger:   logger.With().Str("component", "booking_gate").Logger(),
		now:      time.Now,
	}
}

// Admit returns nil when the garage is effectively open right now.
// Resolver errors, including missing garage rows, are passed through
// unchanged so the caller never books against a guessed status.
func (g *BookingGate) Admit(ctx context.Context, garageID int64) error {
	res, err := g.resolver.Resolve(ctx, garageID, g.now())
	if err != nil {
		return err
	}
	if !res.Open() {
		g.logger.Debug().
			Int64("garage_id", garageID).
			Str("status", string(res.Status)).
			Str("reason", res.Reason).
			Msg("booking refused")
		return &ErrNotBookable{GarageID: garageID, Status: string(res.Status), Reason: res.Reason}
	}
	return nil
}
