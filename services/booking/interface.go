package booking

import (
	"context"
	"time"

	"reservo/models"
)

// BookingService is the transactional entry point for reservation traffic.
type BookingService interface {
	CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error)
	CreateSeries(ctx context.Context, req models.BookingRequest) (*models.BookingSeries, []models.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID string) error
	RetryPayment(ctx context.Context, bookingID string) error
	Availability(ctx context.Context, providerID string, day time.Time) (*AvailabilityResult, error)
}

// EventSink is how the orchestrator reaches the real-time hub. Broadcast
// failures are the sink's problem; they never roll back ledger state.
type EventSink interface {
	BookingEvent(eventType string, b models.Booking)
	ConflictNotice(clientID string, payload models.ConflictPayload)
	WaitlistNotice(providerID string, payload models.WaitlistPayload)
}

// RetryScheduler schedules a bounded payment retry for a booking held in
// PAYMENT_PENDING.
type RetryScheduler interface {
	Schedule(bookingID string, delay time.Duration) error
}
