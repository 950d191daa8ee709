package models

import (
	"time"

	"github.com/angelmondragon/personacraft-backend/pkg/enums"
)

// UserPreferences is one-to-one with User and created lazily.
// GenerationCount counts generations in the UTC month GenerationPeriod ("2006-01").
type UserPreferences struct {
	UserID           string      `gorm:"column:user_id;type:text;primaryKey"`
	Theme            enums.Theme `gorm:"column:theme;type:text;not null;default:system"`
	Language         string      `gorm:"column:language;type:text;not null;default:en"`
	Autosave         bool        `gorm:"column:autosave;not null"`
	GenerationCount  int         `gorm:"column:generation_count;not null;default:0"`
	GenerationPeriod string      `gorm:"column:generation_period;type:text;not null;default:''"`
	CreatedAt        time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserPreferences) TableName() string { return "user_preferences" }
