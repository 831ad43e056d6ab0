package notification

import (
	"context"

	"go.uber.org/zap"

	"reservo/models"
)

// Dispatcher delivers booking notifications best-effort. Failures are
// logged by implementations and never block the booking transaction.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.NotificationEvent) error
}

// LogDispatcher only logs the events. Used in development and as a safe
// fallback when no broker is configured.
type LogDispatcher struct {
	Logger *zap.Logger
}

func (d *LogDispatcher) Dispatch(_ context.Context, event models.NotificationEvent) error {
	d.Logger.Info("notification dispatched",
		zap.String("kind", string(event.Kind)),
		zap.String("recipient", event.Recipient),
		zap.String("booking_id", event.Booking.ID),
	)
	return nil
}
