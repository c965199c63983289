package memory

import (
	"context"
	"sync"

	"beamcast/internal/core/ports"
)

// MemorySettingsRepository is the single-process settings store used when
// Redis is disabled. Screen-share coordination needs the Redis variant.
type MemorySettingsRepository struct {
	mu      sync.RWMutex
	strings map[string]string
	ints    map[string]int
	floats  map[string]float64
	bools   map[string]bool
}

func NewMemorySettingsRepository() *MemorySettingsRepository {
	return &MemorySettingsRepository{
		strings: make(map[string]string),
		ints:    make(map[string]int),
		floats:  make(map[string]float64),
		bools:   make(map[string]bool),
	}
}

var _ ports.SettingsRepository = (*MemorySettingsRepository)(nil)

func (r *MemorySettingsRepository) GetString(ctx context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.strings[key]
	return v, ok, nil
}

func (r *MemorySettingsRepository) SetString(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings[key] = value
	return nil
}

func (r *MemorySettingsRepository) GetInt(ctx context.Context, key string) (int, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.ints[key]
	return v, ok, nil
}

func (r *MemorySettingsRepository) SetInt(ctx context.Context, key string, value int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ints[key] = value
	return nil
}

func (r *MemorySettingsRepository) GetFloat(ctx context.Context, key string) (float64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.floats[key]
	return v, ok, nil
}

func (r *MemorySettingsRepository) SetFloat(ctx context.Context, key string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.floats[key] = value
	return nil
}

func (r *MemorySettingsRepository) GetBool(ctx context.Context, key string) (bool, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.bools[key]
	return v, ok, nil
}

func (r *MemorySettingsRepository) SetBool(ctx context.Context, key string, value bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bools[key] = value
	return nil
}
