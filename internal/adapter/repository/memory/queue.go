// Package memory provides in-memory repository implementations.
// These back the service tests and busless development runs; production uses
// the sqlite adapters.
package memory

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/ports"
)

// QueueRepository implements ports.QueueRepository in process memory.
//
// Thread-safe: All operations protected by sync.RWMutex.
type QueueRepository struct {
	entries map[int64]domain.QueueEntry
	mu      sync.RWMutex

	// now is swappable for deterministic touch timestamps in tests
	now func() time.Time
}

// NewQueueRepository creates a new in-memory queue repository.
func NewQueueRepository() *QueueRepository {
	return &QueueRepository{
		entries: make(map[int64]domain.QueueEntry),
		now:     time.Now,
	}
}

// SetClock replaces the timestamp source (tests only).
func (r *QueueRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Add inserts the track if absent. Adding an existing ID is a no-op.
func (r *QueueRepository) Add(track domain.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[track.ID]; ok {
		return nil
	}
	r.entries[track.ID] = domain.QueueEntry{Track: track, TouchedAt: r.now()}
	return nil
}

// Remove deletes the entry with the given track ID.
func (r *QueueRepository) Remove(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, id)
	return nil
}

// Clear deletes every entry.
func (r *QueueRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[int64]domain.QueueEntry)
	return nil
}

// ClearExcept deletes every entry but the one with the given ID.
func (r *QueueRepository) ClearExcept(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept, ok := r.entries[id]
	r.entries = make(map[int64]domain.QueueEntry)
	if ok {
		r.entries[id] = kept
	}
	return nil
}

// Count returns the number of entries.
func (r *QueueRepository) Count() (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.entries)), nil
}

// Touch updates the entry's last-touched timestamp to now.
func (r *QueueRepository) Touch(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil
	}
	entry.TouchedAt = r.now()
	r.entries[id] = entry
	return nil
}

// MostRecentlyTouched returns the entry with the newest touch timestamp.
func (r *QueueRepository) MostRecentlyTouched() (*domain.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *domain.QueueEntry
	for id := range r.entries {
		entry := r.entries[id]
		if best == nil || entry.TouchedAt.After(best.TouchedAt) {
			e := entry
			best = &e
		}
	}
	return best, nil
}

// NeighborNext returns the entry with the smallest ID greater than id.
func (r *QueueRepository) NeighborNext(id int64) (*domain.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *domain.QueueEntry
	for candidate := range r.entries {
		if candidate <= id {
			continue
		}
		if best == nil || candidate < best.ID {
			e := r.entries[candidate]
			best = &e
		}
	}
	return best, nil
}

// NeighborPrevious returns the entry with the largest ID less than id.
func (r *QueueRepository) NeighborPrevious(id int64) (*domain.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *domain.QueueEntry
	for candidate := range r.entries {
		if candidate >= id {
			continue
		}
		if best == nil || candidate > best.ID {
			e := r.entries[candidate]
			best = &e
		}
	}
	return best, nil
}

// First returns the entry with the smallest ID.
func (r *QueueRepository) First() (*domain.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *domain.QueueEntry
	for candidate := range r.entries {
		if best == nil || candidate < best.ID {
			e := r.entries[candidate]
			best = &e
		}
	}
	return best, nil
}

// Last returns the entry with the largest ID.
func (r *QueueRepository) Last() (*domain.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *domain.QueueEntry
	for candidate := range r.entries {
		if best == nil || candidate > best.ID {
			e := r.entries[candidate]
			best = &e
		}
	}
	return best, nil
}

// RandomExcluding returns a uniformly random entry whose ID differs from id.
func (r *QueueRepository) RandomExcluding(id int64) (*domain.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]int64, 0, len(r.entries))
	for candidate := range r.entries {
		if candidate != id {
			candidates = append(candidates, candidate)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	e := r.entries[candidates[rand.Intn(len(candidates))]]
	return &e, nil
}

// All returns the full snapshot ordered by ascending ID.
func (r *QueueRepository) All() ([]domain.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.QueueEntry, 0, len(r.entries))
	for id := range r.entries {
		all = append(all, r.entries[id])
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

// Verify interface implementation
var _ ports.QueueRepository = (*QueueRepository)(nil)
