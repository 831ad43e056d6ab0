package models

import (
	"testing"
	"time"
)

func TestOverlapsHalfOpen(t *testing.T) {
	base := time.Date(2030, 3, 4, 14, 0, 0, 0, time.UTC)
	a := Interval{Start: base, End: base.Add(30 * time.Minute)}

	cases := []struct {
		name string
		b    Interval
		want bool
	}{
		{"identical", a, true},
		{"partial overlap", Interval{Start: base.Add(15 * time.Minute), End: base.Add(45 * time.Minute)}, true},
		{"contained", Interval{Start: base.Add(5 * time.Minute), End: base.Add(10 * time.Minute)}, true},
		{"touching after", Interval{Start: base.Add(30 * time.Minute), End: base.Add(time.Hour)}, false},
		{"touching before", Interval{Start: base.Add(-time.Hour), End: base}, false},
		{"disjoint", Interval{Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("Overlaps(%s, %s) = %v, want %v", a, tc.b, got, tc.want)
			}
			if got := tc.b.Overlaps(a); got != tc.want {
				t.Fatalf("overlap is not symmetric for %s", tc.name)
			}
		})
	}
}

func TestWindowsOnResolvesWeekdayInZone(t *testing.T) {
	prov := Provider{
		ID:       "p",
		Timezone: "UTC",
		WorkingHours: []WorkingWindow{
			{Weekday: time.Monday, Start: 9 * 60, End: 12 * 60},
			{Weekday: time.Monday, Start: 13 * 60, End: 17 * 60},
			{Weekday: time.Tuesday, Start: 10 * 60, End: 16 * 60},
		},
	}

	monday := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	windows := prov.WindowsOn(monday)
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows on Monday, got %d", len(windows))
	}
	wantStart := monday.Add(9 * time.Hour)
	if !windows[0].Start.Equal(wantStart) {
		t.Fatalf("expected first window at %s, got %s", wantStart, windows[0].Start)
	}

	if windows := prov.WindowsOn(monday.AddDate(0, 0, 2)); len(windows) != 0 {
		t.Fatalf("expected no windows on Wednesday, got %d", len(windows))
	}
}
