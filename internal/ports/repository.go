// Package ports define repository interfaces for data persistence abstraction.
// These interfaces enable the repository pattern and allow swapping persistence mechanisms.
package ports

import (
	"github.com/nekomusic/playd/internal/domain"
)

// QueueRepository handles the durable play queue: the ordered set of tracks
// the user has played, keyed by track ID.
//
// Neighbor, first and last queries order by numeric track ID, independent of
// insertion order. That is a deliberate, collision-free tie-break that avoids
// an explicit position column, at the cost of "next" not meaning "next added".
//
// Callers treat any error as "no result" and fall back to their wrap/no-op
// policies; a broken store must never fail a play request.
//
// Thread-safety: Implementations must be thread-safe.
type QueueRepository interface {
	// Add inserts the track if absent (by ID). Inserting an existing ID is
	// a no-op; Add is idempotent and has no meaningful error path beyond I/O.
	Add(track domain.Track) error

	// Remove deletes the entry with the given track ID, if present.
	Remove(id int64) error

	// Clear deletes every entry.
	Clear() error

	// ClearExcept deletes every entry but the one with the given ID.
	ClearExcept(id int64) error

	// Count returns the number of entries in the store.
	Count() (int64, error)

	// Touch updates the entry's last-touched timestamp to now, marking it as
	// the most recently played for restore-on-launch.
	Touch(id int64) error

	// MostRecentlyTouched returns the entry with the newest touch timestamp,
	// or (nil, nil) if the store is empty.
	MostRecentlyTouched() (*domain.QueueEntry, error)

	// NeighborNext returns the entry with the smallest ID greater than id,
	// or (nil, nil) if none exists.
	NeighborNext(id int64) (*domain.QueueEntry, error)

	// NeighborPrevious returns the entry with the largest ID less than id,
	// or (nil, nil) if none exists.
	NeighborPrevious(id int64) (*domain.QueueEntry, error)

	// First returns the entry with the smallest ID, or (nil, nil) if empty.
	First() (*domain.QueueEntry, error)

	// Last returns the entry with the largest ID, or (nil, nil) if empty.
	Last() (*domain.QueueEntry, error)

	// RandomExcluding returns a uniformly random entry whose ID differs from
	// id, or (nil, nil) if the remaining set is empty.
	RandomExcluding(id int64) (*domain.QueueEntry, error)

	// All returns the full snapshot ordered by ascending ID.
	All() ([]domain.QueueEntry, error)
}

// SettingsRepository is the persisted key-value store backing player policy
// (play mode, playback speed, cache switch, favorites) and the per-track
// cache metadata records ("{kind}_{id}_{field}" keys).
//
// Missing keys are not errors: the typed getters return their fallback.
//
// Thread-safety: Implementations must be thread-safe.
type SettingsRepository interface {
	// SetString persists a string value under key.
	SetString(key, value string) error

	// GetString returns the value for key, or fallback if the key is absent.
	GetString(key, fallback string) (string, error)

	// SetBool persists a boolean value under key.
	SetBool(key string, value bool) error

	// GetBool returns the value for key, or fallback if the key is absent.
	GetBool(key string, fallback bool) (bool, error)

	// SetInt64 persists an integer value under key.
	SetInt64(key string, value int64) error

	// GetInt64 returns the value for key, or fallback if the key is absent.
	GetInt64(key string, fallback int64) (int64, error)

	// SetFloat64 persists a float value under key.
	SetFloat64(key string, value float64) error

	// GetFloat64 returns the value for key, or fallback if the key is absent.
	GetFloat64(key string, fallback float64) (float64, error)

	// Delete removes a key, if present.
	Delete(key string) error

	// DeletePrefix removes every key with the given prefix.
	DeletePrefix(prefix string) error

	// KeysWithPrefix lists every stored key with the given prefix.
	// Used to enumerate cache metadata records.
	KeysWithPrefix(prefix string) ([]string, error)
}
