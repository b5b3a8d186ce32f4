package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MaxHP = 100
)

// UserProgress is the per-user progression row owned by the engine.
type UserProgress struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // links to profile service

	// Core progression
	TotalXP   int64 `json:"total_xp" gorm:"not null;default:0"`
	Level     int   `json:"level" gorm:"not null;default:1"`
	XPInLevel int64 `json:"xp_in_level" gorm:"not null;default:0"`
	XPToNext  int64 `json:"xp_to_next" gorm:"not null;default:100"`

	// Resources
	HP   int   `json:"hp" gorm:"not null;default:100"`
	Gold int64 `json:"gold" gorm:"not null;default:0"`

	// Streak
	Streak           int        `json:"streak" gorm:"not null;default:0"`
	LongestStreak    int        `json:"longest_streak" gorm:"not null;default:0"`
	LastStreakUpdate *time.Time `json:"last_streak_update,omitempty"`

	TotalCompletions int64 `json:"total_completions" gorm:"not null;default:0"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

func (p *UserProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
