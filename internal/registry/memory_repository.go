package registry

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu            sync.RWMutex
	registrations map[string]Registration
}

// NewMemoryRepository builds the process-lifetime registry. Entries are only
// dropped by restarting the process.
func NewMemoryRepository() Repository {
	return &memoryRepository{registrations: make(map[string]Registration)}
}

func (r *memoryRepository) Create(_ context.Context, reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.registrations[reg.Name]; exists {
		return ErrNameInUse
	}
	r.registrations[reg.Name] = reg
	return nil
}

func (r *memoryRepository) Find(_ context.Context, name string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.registrations[name]
	if !ok {
		return Registration{}, ErrUnknownAccount
	}
	return reg, nil
}

func (r *memoryRepository) Exists(_ context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.registrations[name]
	return ok, nil
}
