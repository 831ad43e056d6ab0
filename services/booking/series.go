package booking

import (
	"go.uber.org/zap"

	"reservo/models"
)

// SeriesExpander turns a recurrence rule into candidate occurrences and
// reserves them as one atomic unit: either every occurrence is reserved or
// none are.
type SeriesExpander struct {
	ledger     *Ledger
	maxRetries int
	logger     *zap.Logger
}

// NewSeriesExpander builds an expander that retries the reserve phase up
// to maxRetries times when a concurrent booking lands mid-flight.
func NewSeriesExpander(ledger *Ledger, maxRetries int, logger *zap.Logger) *SeriesExpander {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &SeriesExpander{ledger: ledger, maxRetries: maxRetries, logger: logger}
}

// Expand produces the ordered candidate intervals for a recurrence rule
// anchored at base.
func (se *SeriesExpander) Expand(rule models.RecurrenceRule, base models.Interval) []models.Interval {
	step := 1
	if rule.Frequency == models.FrequencyWeekly {
		step = 7
	}
	occurrences := make([]models.Interval, 0, rule.Count)
	for i := 0; i < rule.Count; i++ {
		occurrences = append(occurrences, models.Interval{
			Start: base.Start.AddDate(0, 0, i*step),
			End:   base.End.AddDate(0, 0, i*step),
		})
	}
	return occurrences
}

// ReserveAll validates and reserves every occurrence atomically.
//
// Phase 1 checks each occurrence against the ledger without mutating it;
// any conflict rejects the whole series with the conflicting indices.
// Phase 2 reserves the occurrences in order. If a concurrent booking
// causes a late conflict, everything reserved so far is rolled back and
// the cycle retries; after maxRetries the series fails with the index
// that kept conflicting. The caller never observes a partial series.
func (se *SeriesExpander) ReserveAll(prov models.Provider, occurrences []models.Interval, bookingIDs []string) error {
	for attempt := 0; attempt <= se.maxRetries; attempt++ {
		var conflicting []int
		for i, occ := range occurrences {
			if ids := se.ledger.CheckInterval(prov, occ); len(ids) > 0 {
				conflicting = append(conflicting, i)
			}
		}
		if len(conflicting) > 0 {
			return &SeriesConflictError{ConflictingIndices: conflicting}
		}

		lateConflict := se.reservePhase(prov, occurrences, bookingIDs)
		if lateConflict < 0 {
			return nil
		}
		se.logger.Warn("series reserve phase lost race, rolling back",
			zap.String("provider_id", prov.ID),
			zap.Int("occurrence", lateConflict),
			zap.Int("attempt", attempt+1),
		)
		if attempt == se.maxRetries {
			return &SeriesConflictError{ConflictingIndices: []int{lateConflict}}
		}
	}
	return &SeriesConflictError{}
}

// reservePhase reserves occurrences in order, rolling back everything on a
// late conflict. Returns the conflicting index, or -1 on success.
func (se *SeriesExpander) reservePhase(prov models.Provider, occurrences []models.Interval, bookingIDs []string) int {
	for i, occ := range occurrences {
		if err := se.ledger.Reserve(prov, occ, bookingIDs[i]); err != nil {
			for j := 0; j < i; j++ {
				se.ledger.Release(bookingIDs[j])
			}
			return i
		}
	}
	return -1
}
