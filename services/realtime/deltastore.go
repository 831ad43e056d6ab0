package realtime

import (
	"context"
	"sync"
	"time"

	"reservo/models"
)

// DeltaStore keeps the ordered per-provider history of availability
// deltas. It backs the reconnection sync pull, which is the correctness
// backstop for messages lost while a client was disconnected.
type DeltaStore interface {
	Append(ctx context.Context, delta models.AvailabilityDelta) error
	Since(ctx context.Context, providerID string, since time.Time) ([]models.AvailabilityDelta, error)
}

// MemoryDeltaStore is the in-process delta history.
type MemoryDeltaStore struct {
	mu         sync.RWMutex
	byProvider map[string][]models.AvailabilityDelta
}

func NewMemoryDeltaStore() *MemoryDeltaStore {
	return &MemoryDeltaStore{byProvider: make(map[string][]models.AvailabilityDelta)}
}

func (s *MemoryDeltaStore) Append(_ context.Context, delta models.AvailabilityDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byProvider[delta.ProviderID] = append(s.byProvider[delta.ProviderID], delta)
	return nil
}

// Since returns the deltas produced strictly after the given timestamp,
// in production order.
func (s *MemoryDeltaStore) Since(_ context.Context, providerID string, since time.Time) ([]models.AvailabilityDelta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AvailabilityDelta
	for _, d := range s.byProvider[providerID] {
		if d.ProducedAt.After(since) {
			out = append(out, d)
		}
	}
	return out, nil
}
