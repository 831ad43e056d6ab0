package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"reservo/services/booking"
)

const TypePaymentRetry = "payment:retry"

type paymentRetryPayload struct {
	BookingID string `json:"bookingId"`
}

// PaymentRetryScheduler enqueues deferred payment re-authorization tasks.
// The queue lives in Redis, so scheduled retries survive process restarts.
type PaymentRetryScheduler struct {
	client *asynq.Client
	logger *zap.Logger
}

func NewPaymentRetryScheduler(redisOpts asynq.RedisClientOpt, logger *zap.Logger) *PaymentRetryScheduler {
	return &PaymentRetryScheduler{
		client: asynq.NewClient(redisOpts),
		logger: logger,
	}
}

// Schedule queues one re-authorization attempt after the given delay.
func (s *PaymentRetryScheduler) Schedule(bookingID string, delay time.Duration) error {
	payload, err := json.Marshal(paymentRetryPayload{BookingID: bookingID})
	if err != nil {
		return fmt.Errorf("failed to marshal retry payload: %w", err)
	}
	task := asynq.NewTask(TypePaymentRetry, payload)
	info, err := s.client.Enqueue(task, asynq.ProcessIn(delay), asynq.MaxRetry(0))
	if err != nil {
		return fmt.Errorf("failed to enqueue payment retry for booking %s: %w", bookingID, err)
	}
	s.logger.Info("payment retry scheduled",
		zap.String("booking_id", bookingID),
		zap.String("task_id", info.ID),
		zap.Duration("delay", delay),
	)
	return nil
}

// Close releases the underlying queue client.
func (s *PaymentRetryScheduler) Close() error {
	return s.client.Close()
}

// RetryWorker consumes scheduled payment retries and hands them back to
// the booking service.
type RetryWorker struct {
	srv     *asynq.Server
	svc     booking.BookingService
	logger  *zap.Logger
	started bool
}

func NewRetryWorker(redisOpts asynq.RedisClientOpt, svc booking.BookingService, logger *zap.Logger) *RetryWorker {
	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	return &RetryWorker{srv: srv, svc: svc, logger: logger}
}

// Start runs the worker in the background. Start failures after the
// retry budget are reported on the returned channel.
func (w *RetryWorker) Start() <-chan error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePaymentRetry, w.handlePaymentRetry)

	errc := make(chan error, 1)
	w.started = true
	go func() {
		const maxAttempts = 5
		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := w.srv.Run(mux)
			if err == nil {
				return
			}
			w.logger.Error("retry worker failed to start",
				zap.Int("attempt", attempts), zap.Error(err))
			if attempts == maxAttempts {
				errc <- err
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()
	return errc
}

// Shutdown stops the worker and waits for in-flight tasks.
func (w *RetryWorker) Shutdown() {
	if w.started {
		w.srv.Shutdown()
	}
}

func (w *RetryWorker) handlePaymentRetry(ctx context.Context, task *asynq.Task) error {
	var p paymentRetryPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		w.logger.Error("invalid payment retry payload", zap.Error(err))
		return err
	}

	w.logger.Info("re-authorizing payment", zap.String("booking_id", p.BookingID))
	if err := w.svc.RetryPayment(ctx, p.BookingID); err != nil {
		var declined *booking.PaymentDeclinedError
		if errors.As(err, &declined) {
			// Terminal outcome; the booking is already cancelled.
			w.logger.Info("payment retry declined, booking cancelled",
				zap.String("booking_id", p.BookingID))
			return nil
		}
		w.logger.Error("payment retry failed",
			zap.String("booking_id", p.BookingID), zap.Error(err))
		return err
	}
	return nil
}
