package realtime

import (
	"context"
	"testing"
	"time"
)

func TestMemoryDeltaStoreSinceIsStrict(t *testing.T) {
	store := NewMemoryDeltaStore()
	ctx := context.Background()
	base := time.Date(2030, 3, 4, 12, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{base.Add(-time.Minute), base, base.Add(time.Minute)} {
		d := delta("prov-1", at)
		d.ID = string(rune('a' + i))
		if err := store.Append(ctx, d); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	if err := store.Append(ctx, delta("prov-2", base.Add(time.Hour))); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	got, err := store.Since(ctx, "prov-1", base)
	if err != nil {
		t.Fatalf("since failed: %v", err)
	}
	// The delta produced exactly at the boundary is excluded.
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("expected only delta c, got %v", got)
	}

	all, err := store.Since(ctx, "prov-1", time.Time{})
	if err != nil {
		t.Fatalf("since failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 deltas, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ProducedAt.Before(all[i-1].ProducedAt) {
			t.Fatal("deltas out of production order")
		}
	}
}
