package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"reservo/models"
)

const notificationQueue = "booking.notifications"

// AMQPDispatcher publishes notification events to a RabbitMQ queue for
// downstream delivery (push, email, WhatsApp). Publishing is best-effort:
// errors are logged and returned, and callers are free to ignore them.
type AMQPDispatcher struct {
	url    string
	logger *zap.Logger
}

func NewAMQPDispatcher(url string, logger *zap.Logger) *AMQPDispatcher {
	return &AMQPDispatcher{url: url, logger: logger}
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, event models.NotificationEvent) error {
	conn, err := amqp.Dial(d.url)
	if err != nil {
		d.logger.Warn("notification dial failed", zap.Error(err))
		return fmt.Errorf("amqp dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		d.logger.Warn("notification channel open failed", zap.Error(err))
		return fmt.Errorf("amqp channel failed: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(notificationQueue, true, false, false, false, nil); err != nil {
		d.logger.Warn("notification queue declare failed", zap.Error(err))
		return fmt.Errorf("amqp queue declare failed: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", notificationQueue, false, false, pub); err != nil {
		d.logger.Warn("notification publish failed", zap.Error(err))
		return fmt.Errorf("amqp publish failed: %w", err)
	}
	return nil
}
