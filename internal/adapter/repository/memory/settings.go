package memory

import (
	"strconv"
	"strings"
	"sync"

	"github.com/nekomusic/playd/internal/ports"
)

// SettingsRepository implements ports.SettingsRepository in process memory.
//
// Thread-safe: All operations protected by sync.RWMutex.
type SettingsRepository struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewSettingsRepository creates a new in-memory settings repository.
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{
		values: make(map[string]string),
	}
}

// SetString persists a string value under key.
func (r *SettingsRepository) SetString(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[key] = value
	return nil
}

// GetString returns the value for key, or fallback if the key is absent.
func (r *SettingsRepository) GetString(key, fallback string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if v, ok := r.values[key]; ok {
		return v, nil
	}
	return fallback, nil
}

// SetBool persists a boolean value under key.
func (r *SettingsRepository) SetBool(key string, value bool) error {
	return r.SetString(key, strconv.FormatBool(value))
}

// GetBool returns the value for key, or fallback if the key is absent.
func (r *SettingsRepository) GetBool(key string, fallback bool) (bool, error) {
	r.mu.RLock()
	v, ok := r.values[key]
	r.mu.RUnlock()

	if !ok {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, nil
	}
	return parsed, nil
}

// SetInt64 persists an integer value under key.
func (r *SettingsRepository) SetInt64(key string, value int64) error {
	return r.SetString(key, strconv.FormatInt(value, 10))
}

// GetInt64 returns the value for key, or fallback if the key is absent.
func (r *SettingsRepository) GetInt64(key string, fallback int64) (int64, error) {
	r.mu.RLock()
	v, ok := r.values[key]
	r.mu.RUnlock()

	if !ok {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback, nil
	}
	return parsed, nil
}

// SetFloat64 persists a float value under key.
func (r *SettingsRepository) SetFloat64(key string, value float64) error {
	return r.SetString(key, strconv.FormatFloat(value, 'f', -1, 64))
}

// GetFloat64 returns the value for key, or fallback if the key is absent.
func (r *SettingsRepository) GetFloat64(key string, fallback float64) (float64, error) {
	r.mu.RLock()
	v, ok := r.values[key]
	r.mu.RUnlock()

	if !ok {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, nil
	}
	return parsed, nil
}

// Delete removes a key, if present.
func (r *SettingsRepository) Delete(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.values, key)
	return nil
}

// DeletePrefix removes every key with the given prefix.
func (r *SettingsRepository) DeletePrefix(prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range r.values {
		if strings.HasPrefix(k, prefix) {
			delete(r.values, k)
		}
	}
	return nil
}

// KeysWithPrefix lists every stored key with the given prefix.
func (r *SettingsRepository) KeysWithPrefix(prefix string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0)
	for k := range r.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Verify interface implementation
var _ ports.SettingsRepository = (*SettingsRepository)(nil)
