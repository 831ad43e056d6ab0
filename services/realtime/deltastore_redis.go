package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"reservo/models"
)

const deltaRetention = 24 * time.Hour

// RedisDeltaStore keeps delta history in per-provider sorted sets scored
// by production time, so the history survives process restarts and can be
// shared across instances.
type RedisDeltaStore struct {
	client *redis.Client
}

func NewRedisDeltaStore(client *redis.Client) *RedisDeltaStore {
	return &RedisDeltaStore{client: client}
}

func deltaKey(providerID string) string {
	return "reservo:deltas:" + providerID
}

func (s *RedisDeltaStore) Append(ctx context.Context, delta models.AvailabilityDelta) error {
	data, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("failed to marshal delta: %w", err)
	}
	key := deltaKey(delta.ProviderID)
	score := float64(delta.ProducedAt.UnixNano())

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{Score: score, Member: data})
	cutoff := float64(time.Now().Add(-deltaRetention).UnixNano())
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%f", cutoff))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append delta for provider %s: %w", delta.ProviderID, err)
	}
	return nil
}

func (s *RedisDeltaStore) Since(ctx context.Context, providerID string, since time.Time) ([]models.AvailabilityDelta, error) {
	members, err := s.client.ZRangeByScore(ctx, deltaKey(providerID), &redis.ZRangeBy{
		Min: fmt.Sprintf("(%d", since.UnixNano()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read deltas for provider %s: %w", providerID, err)
	}

	out := make([]models.AvailabilityDelta, 0, len(members))
	for _, m := range members {
		var d models.AvailabilityDelta
		if err := json.Unmarshal([]byte(m), &d); err != nil {
			return nil, fmt.Errorf("failed to decode stored delta: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}
