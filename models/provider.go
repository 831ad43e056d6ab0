package models

import (
	"time"
)

// WorkingWindow is one published availability window for a weekday.
// Start and End are minutes from midnight in the provider's time zone.
type WorkingWindow struct {
	Weekday time.Weekday `bson:"weekday" json:"weekday"`
	Start   int          `bson:"start" json:"start"`
	End     int          `bson:"end" json:"end"`
}

// Provider holds the booking-relevant configuration of a service provider.
type Provider struct {
	ID            string          `bson:"id" json:"id"`
	Timezone      string          `bson:"timezone" json:"timezone"`
	WorkingHours  []WorkingWindow `bson:"working_hours" json:"working_hours"`
	DailyCapacity int             `bson:"daily_capacity" json:"daily_capacity"`
	MaxPending    int             `bson:"max_pending" json:"max_pending"`
}

// Location resolves the provider's time zone, falling back to UTC when the
// configured zone name is empty or unknown.
func (p Provider) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WindowsOn returns the provider's working windows for a given date as
// absolute intervals in the provider's time zone.
func (p Provider) WindowsOn(day time.Time) []Interval {
	loc := p.Location()
	day = day.In(loc)
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	var windows []Interval
	for _, w := range p.WorkingHours {
		if w.Weekday != day.Weekday() {
			continue
		}
		windows = append(windows, Interval{
			Start: midnight.Add(time.Duration(w.Start) * time.Minute),
			End:   midnight.Add(time.Duration(w.End) * time.Minute),
		})
	}
	return windows
}
