package booking

import (
	"context"
	"errors"
	"sync"

	"reservo/models"
)

// ErrProviderNotFound is returned for lookups of unknown provider ids.
var ErrProviderNotFound = errors.New("provider not found")

// ProviderDirectory resolves provider configuration (time zone, working
// hours, capacity) for the booking pipeline.
type ProviderDirectory interface {
	GetProvider(ctx context.Context, id string) (models.Provider, error)
	Register(ctx context.Context, prov models.Provider) error
}

// MemoryProviderDirectory is the in-process directory implementation.
type MemoryProviderDirectory struct {
	mu        sync.RWMutex
	providers map[string]models.Provider
}

func NewMemoryProviderDirectory() *MemoryProviderDirectory {
	return &MemoryProviderDirectory{providers: make(map[string]models.Provider)}
}

func (d *MemoryProviderDirectory) GetProvider(_ context.Context, id string) (models.Provider, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	prov, ok := d.providers[id]
	if !ok {
		return models.Provider{}, ErrProviderNotFound
	}
	return prov, nil
}

func (d *MemoryProviderDirectory) Register(_ context.Context, prov models.Provider) error {
	if prov.ID == "" {
		return errors.New("provider id is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.providers[prov.ID] = prov
	return nil
}
