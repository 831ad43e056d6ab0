package models

import "time"

// NotificationKind enumerates the events the dispatch collaborator accepts.
type NotificationKind string

const (
	NotifyBookingConfirmed NotificationKind = "BookingConfirmed"
	NotifyBookingCancelled NotificationKind = "BookingCancelled"
	NotifyWaitlistOpened   NotificationKind = "WaitlistOpened"
)

// NotificationEvent is a fire-and-forget message to the dispatch
// collaborator. Delivery failures never block the booking transaction.
type NotificationEvent struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Recipient string           `json:"recipient"`
	Booking   Booking          `json:"booking"`
	CreatedAt time.Time        `json:"created_at"`
}
