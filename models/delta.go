package models

import "time"

// SlotState describes what happened to one interval of a provider's day.
type SlotState string

const (
	SlotReserved  SlotState = "reserved"
	SlotConfirmed SlotState = "confirmed"
	SlotReleased  SlotState = "released"
)

// SlotChange is a single slot-state transition. The booking id lets
// receivers apply changes idempotently under at-least-once delivery.
type SlotChange struct {
	BookingID string    `json:"booking_id"`
	Interval  Interval  `json:"interval"`
	State     SlotState `json:"state"`
}

// AvailabilityDelta is the unit of real-time broadcast: the minimal
// description of what changed in a provider's availability.
type AvailabilityDelta struct {
	ID         string       `json:"id"`
	ProviderID string       `json:"provider_id"`
	Date       string       `json:"date"`
	Changes    []SlotChange `json:"changes"`
	ProducedAt time.Time    `json:"produced_at"`
}
