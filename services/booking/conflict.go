package booking

import (
	"sort"
	"time"

	"reservo/models"
)

// ConflictDetector computes overlap decisions and actionable alternatives
// over the ledger's current state. It never mutates the ledger.
type ConflictDetector struct {
	ledger          *Ledger
	maxAlternatives int
	lookaheadDays   int
}

// NewConflictDetector builds a detector suggesting up to maxAlternatives
// free intervals, looking at most lookaheadDays into the future.
func NewConflictDetector(ledger *Ledger, maxAlternatives, lookaheadDays int) *ConflictDetector {
	if maxAlternatives <= 0 {
		maxAlternatives = 3
	}
	if lookaheadDays <= 0 {
		lookaheadDays = 7
	}
	return &ConflictDetector{
		ledger:          ledger,
		maxAlternatives: maxAlternatives,
		lookaheadDays:   lookaheadDays,
	}
}

// Check reports the booking ids overlapping iv, or nil when the interval
// is free. Touching boundaries are not a conflict.
func (cd *ConflictDetector) Check(prov models.Provider, iv models.Interval) []string {
	return cd.ledger.CheckInterval(prov, iv)
}

// Suggest returns free intervals of the same duration as the request,
// nearest on the same day first, then rolling to following days, ordered
// by proximity to the requested start.
func (cd *ConflictDetector) Suggest(prov models.Provider, requested models.Interval) []models.Interval {
	duration := requested.Duration()
	if duration <= 0 {
		return nil
	}

	var suggestions []models.Interval
	for offset := 0; offset <= cd.lookaheadDays; offset++ {
		day := requested.Start.AddDate(0, 0, offset)
		// Anchor the proximity ordering to the requested time of day.
		anchor := requested.Start.AddDate(0, 0, offset)

		candidates := cd.dayCandidates(prov, day, anchor, duration)
		if offset == 0 {
			// Drop the requested interval itself if it happens to be free.
			filtered := candidates[:0]
			for _, c := range candidates {
				if !c.Start.Equal(requested.Start) {
					filtered = append(filtered, c)
				}
			}
			candidates = filtered
		}
		suggestions = append(suggestions, candidates...)
		if len(suggestions) >= cd.maxAlternatives {
			return suggestions[:cd.maxAlternatives]
		}
	}
	return suggestions
}

// dayCandidates finds, for every free gap of a day that fits the duration,
// the candidate start nearest to anchor, then orders the results by that
// proximity.
func (cd *ConflictDetector) dayCandidates(prov models.Provider, day, anchor time.Time, duration time.Duration) []models.Interval {
	windows := prov.WindowsOn(day)
	if len(windows) == 0 {
		return nil
	}
	entries := cd.ledger.DaySnapshot(prov, day)

	var candidates []models.Interval
	for _, w := range windows {
		for _, gap := range freeGaps(w, entries) {
			if gap.Duration() < duration {
				continue
			}
			start := anchor
			if start.Before(gap.Start) {
				start = gap.Start
			}
			if latest := gap.End.Add(-duration); start.After(latest) {
				start = latest
			}
			candidates = append(candidates, models.Interval{Start: start, End: start.Add(duration)})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return absDuration(candidates[i].Start.Sub(anchor)) < absDuration(candidates[j].Start.Sub(anchor))
	})
	return candidates
}

// freeGaps subtracts the occupied entries from one working window.
// Entries are sorted by start and pairwise disjoint.
func freeGaps(window models.Interval, entries []LedgerEntry) []models.Interval {
	var gaps []models.Interval
	cursor := window.Start
	for _, e := range entries {
		if !e.Interval.End.After(window.Start) || !e.Interval.Start.Before(window.End) {
			continue
		}
		if e.Interval.Start.After(cursor) {
			gaps = append(gaps, models.Interval{Start: cursor, End: e.Interval.Start})
		}
		if e.Interval.End.After(cursor) {
			cursor = e.Interval.End
		}
	}
	if cursor.Before(window.End) {
		gaps = append(gaps, models.Interval{Start: cursor, End: window.End})
	}
	return gaps
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
