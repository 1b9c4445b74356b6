package sqlite

import (
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/ports"
)

// queueRow is the persisted form of a queue entry. Track ID is the primary
// key, so duplicate adds collapse and neighbor queries can order by it.
type queueRow struct {
	TrackID    int64 `gorm:"primaryKey;column:track_id"`
	Title      string
	Artist     string
	Album      string
	DurationMS int64 `gorm:"column:duration_ms"`
	FileURL    string
	CoverURL   string
	UploaderID int64
	CreatedAt  time.Time
	TouchedAt  time.Time `gorm:"index"`
}

// TableName sets the table name for GORM.
func (queueRow) TableName() string {
	return "queue_entries"
}

func rowFromTrack(t domain.Track, touched time.Time) queueRow {
	return queueRow{
		TrackID:    t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		DurationMS: t.Duration.Milliseconds(),
		FileURL:    t.FileURL,
		CoverURL:   t.CoverURL,
		UploaderID: t.UploaderID,
		CreatedAt:  t.CreatedAt,
		TouchedAt:  touched,
	}
}

func (r queueRow) entry() domain.QueueEntry {
	return domain.QueueEntry{
		Track: domain.Track{
			ID:         r.TrackID,
			Title:      r.Title,
			Artist:     r.Artist,
			Album:      r.Album,
			Duration:   time.Duration(r.DurationMS) * time.Millisecond,
			FileURL:    r.FileURL,
			CoverURL:   r.CoverURL,
			UploaderID: r.UploaderID,
			CreatedAt:  r.CreatedAt,
		},
		TouchedAt: r.TouchedAt,
	}
}

// QueueRepository implements ports.QueueRepository on SQLite.
type QueueRepository struct {
	mu  sync.Mutex
	db  *gorm.DB
	now func() time.Time
}

// NewQueueRepository creates a queue repository on an open database.
func NewQueueRepository(db *gorm.DB) *QueueRepository {
	return &QueueRepository{
		db:  db,
		now: time.Now,
	}
}

// SetClock overrides the timestamp source. Only for tests.
func (r *QueueRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Add inserts the track if absent. An existing ID is left untouched.
func (r *QueueRepository) Add(track domain.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := rowFromTrack(track, r.now())
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return domain.NewStoreError("add", "queue", "insert failed", result.Error)
	}
	return nil
}

// Remove deletes the entry with the given track ID, if present.
func (r *QueueRepository) Remove(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Delete(&queueRow{}, "track_id = ?", id).Error; err != nil {
		return domain.NewStoreError("remove", "queue", "delete failed", err)
	}
	return nil
}

// Clear deletes every entry.
func (r *QueueRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Where("1 = 1").Delete(&queueRow{}).Error; err != nil {
		return domain.NewStoreError("clear", "queue", "delete failed", err)
	}
	return nil
}

// ClearExcept deletes every entry but the one with the given ID.
func (r *QueueRepository) ClearExcept(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Where("track_id <> ?", id).Delete(&queueRow{}).Error; err != nil {
		return domain.NewStoreError("clearExcept", "queue", "delete failed", err)
	}
	return nil
}

// Count returns the number of entries in the store.
func (r *QueueRepository) Count() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	if err := r.db.Model(&queueRow{}).Count(&count).Error; err != nil {
		return 0, domain.NewStoreError("count", "queue", "count failed", err)
	}
	return count, nil
}

// Touch updates the entry's last-touched timestamp to now.
func (r *QueueRepository) Touch(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.db.Model(&queueRow{}).
		Where("track_id = ?", id).
		Update("touched_at", r.now()).Error
	if err != nil {
		return domain.NewStoreError("touch", "queue", "update failed", err)
	}
	return nil
}

// MostRecentlyTouched returns the entry with the newest touch timestamp,
// or (nil, nil) if the store is empty.
func (r *QueueRepository) MostRecentlyTouched() (*domain.QueueEntry, error) {
	return r.one("mostRecentlyTouched", func(db *gorm.DB) *gorm.DB {
		return db.Order("touched_at DESC, track_id DESC")
	})
}

// NeighborNext returns the entry with the smallest ID greater than id,
// or (nil, nil) if none exists.
func (r *QueueRepository) NeighborNext(id int64) (*domain.QueueEntry, error) {
	return r.one("neighborNext", func(db *gorm.DB) *gorm.DB {
		return db.Where("track_id > ?", id).Order("track_id ASC")
	})
}

// NeighborPrevious returns the entry with the largest ID less than id,
// or (nil, nil) if none exists.
func (r *QueueRepository) NeighborPrevious(id int64) (*domain.QueueEntry, error) {
	return r.one("neighborPrevious", func(db *gorm.DB) *gorm.DB {
		return db.Where("track_id < ?", id).Order("track_id DESC")
	})
}

// First returns the entry with the smallest ID, or (nil, nil) if empty.
func (r *QueueRepository) First() (*domain.QueueEntry, error) {
	return r.one("first", func(db *gorm.DB) *gorm.DB {
		return db.Order("track_id ASC")
	})
}

// Last returns the entry with the largest ID, or (nil, nil) if empty.
func (r *QueueRepository) Last() (*domain.QueueEntry, error) {
	return r.one("last", func(db *gorm.DB) *gorm.DB {
		return db.Order("track_id DESC")
	})
}

// RandomExcluding returns a uniformly random entry whose ID differs from id,
// or (nil, nil) if the remaining set is empty.
func (r *QueueRepository) RandomExcluding(id int64) (*domain.QueueEntry, error) {
	return r.one("randomExcluding", func(db *gorm.DB) *gorm.DB {
		return db.Where("track_id <> ?", id).Order("RANDOM()")
	})
}

// All returns the full snapshot ordered by ascending ID.
func (r *QueueRepository) All() ([]domain.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rows []queueRow
	if err := r.db.Order("track_id ASC").Find(&rows).Error; err != nil {
		return nil, domain.NewStoreError("all", "queue", "select failed", err)
	}

	entries := make([]domain.QueueEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries, nil
}

// one runs a single-row query shaped by scope and maps "not found" to (nil, nil).
func (r *QueueRepository) one(op string, scope func(*gorm.DB) *gorm.DB) (*domain.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var row queueRow
	err := scope(r.db.Model(&queueRow{})).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStoreError(op, "queue", "select failed", err)
	}

	entry := row.entry()
	return &entry, nil
}

// Ensure QueueRepository implements the interface.
var _ ports.QueueRepository = (*QueueRepository)(nil)
