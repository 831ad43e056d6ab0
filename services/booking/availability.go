package booking

import (
	"context"
	"time"

	"reservo/models"
)

// AvailabilityResult describes one provider/day: what is free according
// to the working-hours template and what the ledger holds.
type AvailabilityResult struct {
	ProviderID string              `json:"provider_id"`
	Date       string              `json:"date"`
	FreeSlots  []models.Interval   `json:"free_slots"`
	Occupied   []models.SlotChange `json:"occupied"`
}

// Availability derives a provider's free and occupied intervals for one
// day. Slots are never stored; they are computed from the template and
// the ledger on every call.
func (o *Orchestrator) Availability(ctx context.Context, providerID string, day time.Time) (*AvailabilityResult, error) {
	prov, err := o.Providers.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	entries := o.Ledger.DaySnapshot(prov, day)
	result := &AvailabilityResult{
		ProviderID: prov.ID,
		Date:       day.In(prov.Location()).Format(dateLayout),
	}
	for _, w := range prov.WindowsOn(day) {
		result.FreeSlots = append(result.FreeSlots, freeGaps(w, entries)...)
	}
	for _, e := range entries {
		state := models.SlotReserved
		if e.Confirmed {
			state = models.SlotConfirmed
		}
		result.Occupied = append(result.Occupied, models.SlotChange{
			BookingID: e.BookingID,
			Interval:  e.Interval,
			State:     state,
		})
	}
	return result, nil
}
