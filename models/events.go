package models

import (
	"encoding/json"
	"time"
)

// Server-to-client event types.
const (
	EventAvailabilityUpdated  = "availability:updated"
	EventBookingCreated       = "booking:created"
	EventBookingUpdated       = "booking:updated"
	EventBookingCancelled     = "booking:cancelled"
	EventBookingConflict      = "booking:conflict"
	EventWaitlistNotification = "waitlist:notification"
	EventSyncData             = "reconnect:sync-data"
)

// Client-to-server actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionRequestSync = "reconnect:request-sync"
)

// Envelope wraps every server-to-client message on the wire.
type Envelope struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	ProducedAt time.Time       `json:"produced_at"`
}

// ClientMessage is what a connected client may send: a room subscription
// change or a reconnection sync pull.
type ClientMessage struct {
	Action       string    `json:"action"`
	ProviderID   string    `json:"provider_id,omitempty"`
	LastSyncTime time.Time `json:"last_sync_time,omitempty"`
}

// AvailabilityUpdatedPayload carries one availability delta for a room.
type AvailabilityUpdatedPayload struct {
	ProviderID string            `json:"provider_id"`
	Date       string            `json:"date"`
	Delta      AvailabilityDelta `json:"delta"`
}

// BookingEventPayload carries a booking snapshot for the
// booking:created / booking:updated / booking:cancelled events.
type BookingEventPayload struct {
	Booking       Booking    `json:"booking"`
	AffectedSlots []Interval `json:"affected_slots"`
}

// ConflictPayload is unicast to the requesting client when a booking
// attempt collides with existing reservations.
type ConflictPayload struct {
	Reason         string     `json:"reason"`
	OverlappingIDs []string   `json:"overlapping_ids"`
	SuggestedSlots []Interval `json:"suggested_slots"`
}

// WaitlistPayload announces that a previously occupied slot reopened.
type WaitlistPayload struct {
	ProviderID string   `json:"provider_id"`
	Slot       Interval `json:"slot"`
}

// SyncDataPayload answers a reconnect:request-sync pull with the
// authoritative deltas and bookings produced since the client's
// last-known-good timestamp.
type SyncDataPayload struct {
	ProviderID     string              `json:"provider_id"`
	Since          time.Time           `json:"since"`
	MissedDeltas   []AvailabilityDelta `json:"missed_deltas"`
	MissedBookings []Booking           `json:"missed_bookings"`
}
