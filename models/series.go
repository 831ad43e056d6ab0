package models

import "time"

// Frequency is the repetition cadence of a recurring series.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// RecurrenceRule describes how a base interval repeats.
type RecurrenceRule struct {
	Frequency Frequency `bson:"frequency" json:"frequency"`
	Count     int       `bson:"count" json:"count"`
}

// BookingSeries groups bookings generated from one recurrence rule.
// A series record exists only once every member booking is confirmed.
type BookingSeries struct {
	ID         string         `bson:"id" json:"id"`
	ProviderID string         `bson:"provider_id" json:"provider_id"`
	ClientID   string         `bson:"client_id" json:"client_id"`
	Rule       RecurrenceRule `bson:"rule" json:"rule"`
	Anchor     Interval       `bson:"anchor" json:"anchor"`
	BookingIDs []string       `bson:"booking_ids" json:"booking_ids"`
	CreatedAt  time.Time      `bson:"created_at" json:"created_at"`
}
