package booking

import (
	"fmt"
	"strings"
	"time"

	"reservo/models"
)

// PastDateError rejects requests whose start is not strictly after "now".
type PastDateError struct {
	Start time.Time
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("pastDateError: requested start %s is not in the future", e.Start.Format(time.RFC3339))
}

// SlotConflictError reports the bookings a candidate interval overlaps,
// together with actionable alternatives of equal duration.
type SlotConflictError struct {
	ProviderID            string
	Requested             models.Interval
	OverlappingIDs        []string
	SuggestedAlternatives []models.Interval
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slotConflictError: %s overlaps bookings [%s]", e.Requested, strings.Join(e.OverlappingIDs, ", "))
}

// SeriesConflictError rejects a recurring series as a whole, naming the
// zero-based indices of the conflicting occurrences. The ledger is left
// untouched when this error is returned.
type SeriesConflictError struct {
	ConflictingIndices []int
}

func (e *SeriesConflictError) Error() string {
	return fmt.Sprintf("seriesConflictError: occurrences %v conflict with existing bookings", e.ConflictingIndices)
}

// CapacityExceededError rejects a request that would push a provider's
// same-day confirmed count above its configured daily capacity.
type CapacityExceededError struct {
	ProviderID string
	Date       string
	Capacity   int
	RetryAfter time.Duration
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacityExceededError: provider %s is fully booked on %s (capacity %d), retry after %s",
		e.ProviderID, e.Date, e.Capacity, e.RetryAfter)
}

// RateLimitExceededError rejects a client that exceeded its request budget
// within the sliding window.
type RateLimitExceededError struct {
	ClientID   string
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rateLimitExceededError: client %s exceeded %d requests per %s, retry after %s",
		e.ClientID, e.Limit, e.Window, e.RetryAfter)
}

// PaymentDeclinedError is fatal to the booking it names; the slot is
// released when it surfaces.
type PaymentDeclinedError struct {
	BookingID string
	Reason    string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("paymentDeclinedError: booking %s: %s", e.BookingID, e.Reason)
}

// PaymentTimeoutError is non-fatal: the orchestrator downgrades the booking
// to PAYMENT_PENDING and retries while the slot stays held.
type PaymentTimeoutError struct {
	BookingID string
}

func (e *PaymentTimeoutError) Error() string {
	return fmt.Sprintf("paymentTimeoutError: authorization for booking %s timed out", e.BookingID)
}
