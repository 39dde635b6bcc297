package gate

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"parkhub/internal/model"
	"parkhub/internal/status"
)

type stubResolver struct {
	res status.Resolution
	err error
}

func (s stubResolver) Resolve(ctx context.Context, garageID int64, now time.Time) (status.Resolution, error) {
	return s.res, s.err
}

func TestAdmitOpenGarage(t *testing.T) {
	g := NewBookingGate(stubResolver{
		res: status.Resolution{GarageID: 1, Status: model.StatusOpen, Reason: "within operating hours"},
	}, zerolog.New(io.Discard))

	assert.NoError(t, g.Admit(context.Background(), 1))
}

func TestAdmitRefusesClosedGarage(t *testing.T) {
	g := NewBookingGate(stubResolver{
		res: status.Resolution{GarageID: 2, Status: model.StatusMaintenance, Reason: "lift inspection"},
	}, zerolog.New(io.Discard))

	err := g.Admit(context.Background(), 2)
	var nb *ErrNotBookable
	assert.ErrorAs(t, err, &nb)
	assert.Equal(t, int64(2), nb.GarageID)
	assert.Equal(t, string(model.StatusMaintenance), nb.Status)
	assert.Contains(t, err.Error(), "lift inspection")
}

func TestAdmitPassesThroughResolverErrors(t *testing.T) {
	wrapped := errors.New("garage 3: not found")
	g := NewBookingGate(stubResolver{err: wrapped}, zerolog.New(io.Discard))

	err := g.Admit(context.Background(), 3)
	assert.ErrorIs(t, err, wrapped)
}
