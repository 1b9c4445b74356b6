package sqlite

import (
	"errors"
	"strconv"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/ports"
)

// settingRow is one persisted key-value pair. Values are stored as text and
// decoded by the typed getters, matching how the settings port is used for
// both player policy and cache metadata records.
type settingRow struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

// TableName sets the table name for GORM.
func (settingRow) TableName() string {
	return "settings"
}

// SettingsRepository implements ports.SettingsRepository on SQLite.
type SettingsRepository struct {
	mu sync.Mutex
	db *gorm.DB
}

// NewSettingsRepository creates a settings repository on an open database.
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// SetString persists a string value under key.
func (r *SettingsRepository) SetString(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := settingRow{Key: key, Value: value}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row)
	if result.Error != nil {
		return domain.NewStoreError("set", "settings", "upsert failed", result.Error)
	}
	return nil
}

// GetString returns the value for key, or fallback if the key is absent.
func (r *SettingsRepository) GetString(key, fallback string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var row settingRow
	err := r.db.Take(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return fallback, domain.NewStoreError("get", "settings", "select failed", err)
	}
	return row.Value, nil
}

// SetBool persists a boolean value under key.
func (r *SettingsRepository) SetBool(key string, value bool) error {
	return r.SetString(key, strconv.FormatBool(value))
}

// GetBool returns the value for key, or fallback if the key is absent.
func (r *SettingsRepository) GetBool(key string, fallback bool) (bool, error) {
	raw, err := r.GetString(key, "")
	if err != nil || raw == "" {
		return fallback, err
	}
	v, perr := strconv.ParseBool(raw)
	if perr != nil {
		return fallback, nil
	}
	return v, nil
}

// SetInt64 persists an integer value under key.
func (r *SettingsRepository) SetInt64(key string, value int64) error {
	return r.SetString(key, strconv.FormatInt(value, 10))
}

// GetInt64 returns the value for key, or fallback if the key is absent.
func (r *SettingsRepository) GetInt64(key string, fallback int64) (int64, error) {
	raw, err := r.GetString(key, "")
	if err != nil || raw == "" {
		return fallback, err
	}
	v, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil {
		return fallback, nil
	}
	return v, nil
}

// SetFloat64 persists a float value under key.
func (r *SettingsRepository) SetFloat64(key string, value float64) error {
	return r.SetString(key, strconv.FormatFloat(value, 'f', -1, 64))
}

// GetFloat64 returns the value for key, or fallback if the key is absent.
func (r *SettingsRepository) GetFloat64(key string, fallback float64) (float64, error) {
	raw, err := r.GetString(key, "")
	if err != nil || raw == "" {
		return fallback, err
	}
	v, perr := strconv.ParseFloat(raw, 64)
	if perr != nil {
		return fallback, nil
	}
	return v, nil
}

// Delete removes a key, if present.
func (r *SettingsRepository) Delete(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Delete(&settingRow{}, "key = ?", key).Error; err != nil {
		return domain.NewStoreError("delete", "settings", "delete failed", err)
	}
	return nil
}

// DeletePrefix removes every key with the given prefix.
func (r *SettingsRepository) DeletePrefix(prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.db.Where("key LIKE ?", prefix+"%").Delete(&settingRow{}).Error
	if err != nil {
		return domain.NewStoreError("deletePrefix", "settings", "delete failed", err)
	}
	return nil
}

// KeysWithPrefix lists every stored key with the given prefix, sorted.
func (r *SettingsRepository) KeysWithPrefix(prefix string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keys []string
	err := r.db.Model(&settingRow{}).
		Where("key LIKE ?", prefix+"%").
		Order("key ASC").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, domain.NewStoreError("keysWithPrefix", "settings", "select failed", err)
	}
	return keys, nil
}

// Ensure SettingsRepository implements the interface.
var _ ports.SettingsRepository = (*SettingsRepository)(nil)
