package models

import "time"

// SeriesSpec is the optional recurrence part of a booking request.
type SeriesSpec struct {
	Frequency Frequency `json:"frequency" binding:"required,oneof=daily weekly"`
	Count     int       `json:"count" binding:"required,min=1"`
}

// BookingRequest is the ephemeral input to the orchestrator. It is never
// stored after resolution.
type BookingRequest struct {
	ClientID   string      `json:"client_id" binding:"required"`
	ProviderID string      `json:"provider_id" binding:"required"`
	ServiceID  string      `json:"service_id" binding:"required"`
	Start      time.Time   `json:"start" binding:"required"`
	End        time.Time   `json:"end" binding:"required"`
	Series     *SeriesSpec `json:"series,omitempty"`

	// Payment details forwarded to the payment collaborator.
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
}

// Interval returns the requested time range.
func (r BookingRequest) Interval() Interval {
	return Interval{Start: r.Start, End: r.End}
}
