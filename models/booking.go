package models

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending        BookingStatus = "PENDING"
	StatusPaymentPending BookingStatus = "PAYMENT_PENDING"
	StatusConfirmed      BookingStatus = "CONFIRMED"
	StatusCancelled      BookingStatus = "CANCELLED"
	StatusCompleted      BookingStatus = "COMPLETED"
)

// Booking is the durable reservation record. The ledger owns the interval;
// everything else references a booking by id.
type Booking struct {
	ID         string        `bson:"id" json:"id"`
	ProviderID string        `bson:"provider_id" json:"provider_id"`
	ClientID   string        `bson:"client_id" json:"client_id"`
	ServiceID  string        `bson:"service_id" json:"service_id"`
	Interval   Interval      `bson:"interval" json:"interval"`
	Status     BookingStatus `bson:"status" json:"status"`
	SeriesID   string        `bson:"series_id,omitempty" json:"series_id,omitempty"`
	CreatedAt  time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `bson:"updated_at" json:"updated_at"`
}
