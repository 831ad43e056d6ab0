package booking

import (
	"testing"

	"go.uber.org/zap"

	"reservo/models"
)

func TestSuggestNearestSameDaySlotFirst(t *testing.T) {
	l := NewLedger(zap.NewNop())
	prov := testProvider(0)
	cd := NewConflictDetector(l, 3, 7)

	// Existing booking 14:00-14:30; request 14:15-14:45.
	if err := l.Reserve(prov, span(testDay, 14, 0, 14, 30), "existing"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	requested := span(testDay, 14, 15, 14, 45)

	suggestions := cd.Suggest(prov, requested)
	if len(suggestions) == 0 {
		t.Fatal("expected at least one suggestion")
	}
	want := span(testDay, 14, 30, 15, 0)
	if !suggestions[0].Start.Equal(want.Start) || !suggestions[0].End.Equal(want.End) {
		t.Fatalf("expected first suggestion %s, got %s", want, suggestions[0])
	}
	for _, s := range suggestions {
		if s.Duration() != requested.Duration() {
			t.Fatalf("suggestion %s does not match requested duration %s", s, requested.Duration())
		}
	}
}

func TestSuggestCapsAtMaxAlternatives(t *testing.T) {
	l := NewLedger(zap.NewNop())
	prov := testProvider(0)
	cd := NewConflictDetector(l, 3, 7)

	suggestions := cd.Suggest(prov, span(testDay, 12, 0, 12, 30))
	if len(suggestions) > 3 {
		t.Fatalf("expected at most 3 suggestions, got %d", len(suggestions))
	}
}

func TestSuggestExcludesRequestedStart(t *testing.T) {
	l := NewLedger(zap.NewNop())
	prov := testProvider(0)
	cd := NewConflictDetector(l, 5, 7)

	requested := span(testDay, 12, 0, 12, 30)
	for _, s := range cd.Suggest(prov, requested) {
		if s.Start.Equal(requested.Start) {
			t.Fatalf("suggestion %s duplicates the requested start", s)
		}
	}
}

func TestSuggestRollsToFollowingDayWhenFull(t *testing.T) {
	l := NewLedger(zap.NewNop())
	prov := testProvider(0)
	cd := NewConflictDetector(l, 1, 7)

	// Fill the entire working day.
	if err := l.Reserve(prov, span(testDay, 9, 0, 17, 0), "all-day"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	requested := span(testDay, 14, 0, 14, 30)
	suggestions := cd.Suggest(prov, requested)
	if len(suggestions) != 1 {
		t.Fatalf("expected one suggestion, got %d", len(suggestions))
	}
	nextDay := testDay.AddDate(0, 0, 1)
	if suggestions[0].Start.Before(at(nextDay, 0, 0)) {
		t.Fatalf("expected suggestion on a later day, got %s", suggestions[0])
	}
}

func TestFreeGapsSubtractsOccupiedIntervals(t *testing.T) {
	window := span(testDay, 9, 0, 12, 0)
	entries := []LedgerEntry{
		{BookingID: "a", Interval: span(testDay, 9, 30, 10, 0)},
		{BookingID: "b", Interval: span(testDay, 11, 0, 11, 30)},
	}

	gaps := freeGaps(window, entries)
	want := []models.Interval{
		span(testDay, 9, 0, 9, 30),
		span(testDay, 10, 0, 11, 0),
		span(testDay, 11, 30, 12, 0),
	}
	if len(gaps) != len(want) {
		t.Fatalf("expected %d gaps, got %d: %v", len(want), len(gaps), gaps)
	}
	for i := range want {
		if !gaps[i].Start.Equal(want[i].Start) || !gaps[i].End.Equal(want[i].End) {
			t.Fatalf("gap %d: expected %s, got %s", i, want[i], gaps[i])
		}
	}
}

func TestCheckReportsOverlapWithoutMutating(t *testing.T) {
	l := NewLedger(zap.NewNop())
	prov := testProvider(0)
	cd := NewConflictDetector(l, 3, 7)

	if err := l.Reserve(prov, span(testDay, 10, 0, 11, 0), "b1"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	if ids := cd.Check(prov, span(testDay, 10, 30, 11, 30)); len(ids) != 1 || ids[0] != "b1" {
		t.Fatalf("expected overlap with b1, got %v", ids)
	}
	if ids := cd.Check(prov, span(testDay, 11, 0, 12, 0)); ids != nil {
		t.Fatalf("touching interval should be free, got %v", ids)
	}

	// The check itself must not occupy anything.
	if err := l.Reserve(prov, span(testDay, 11, 30, 12, 30), "b2"); err != nil {
		t.Fatalf("reserve after check failed: %v", err)
	}
}
