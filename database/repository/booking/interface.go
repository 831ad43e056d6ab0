package booking

import (
	"context"
	"errors"
	"time"

	"reservo/models"
)

// ErrNotFound is returned when a booking id does not exist.
var ErrNotFound = errors.New("booking not found")

// BookingRepository is the durable store for booking records. The ledger
// remains the runtime authority over interval occupancy; this store backs
// restarts and reconnection sync pulls.
type BookingRepository interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error
	ListByProviderSince(ctx context.Context, providerID string, since time.Time) ([]models.Booking, error)
}
