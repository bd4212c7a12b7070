package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/runar/internal/models"
)

// Setting keys persisted by the conversation store.
const (
	SettingPrivateChats      = "privateChats"
	SettingGroupChats        = "groupChats"
	SettingUnreadData        = "unreadData"
	SettingFavorites         = "favorites"
	SettingMuted             = "mutedConversations"
	SettingPinnedMessages    = "pinnedMessages"
	SettingSharedBackgrounds = "sharedBackgrounds"
	SettingGlobalTheme       = "globalTheme"
)

// SettingsRepository is a namespaced durable key/value store holding JSON-shaped values.
type SettingsRepository interface {
	// Get decodes the stored value into out. It reports false when the key has never been written.
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

type settingsRepository struct {
	db        *gorm.DB
	namespace string
}

// NewSettingsRepository constructs a settings repository backed by GORM.
func NewSettingsRepository(db *gorm.DB, namespace string) SettingsRepository {
	return &settingsRepository{db: db, namespace: namespace}
}

func (r *settingsRepository) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	var row models.Setting
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", r.namespace, key).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(row.Value, out); err != nil {
		return false, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return true, nil
}

func (r *settingsRepository) Set(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}

	row := models.Setting{
		Namespace: r.namespace,
		Key:       key,
		Value:     datatypes.JSON(payload),
		UpdatedAt: time.Now().UTC(),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}
