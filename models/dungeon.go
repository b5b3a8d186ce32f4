package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dungeon is a themed set of one-shot missions. Completing every mission
// grants ThemeRewardID once.
type Dungeon struct {
	ID            string  `gorm:"primaryKey;type:uuid" json:"id"`
	Name          string  `gorm:"not null" json:"name"`
	Description   string  `json:"description"`
	ThemeRewardID *string `json:"theme_reward_id,omitempty"`
	IsActive      bool    `gorm:"not null;index" json:"is_active"`

	Missions []DungeonMission `json:"missions,omitempty" gorm:"foreignKey:DungeonID"`

	Timestamps
}

func (d *Dungeon) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

type DungeonMission struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	DungeonID  string `gorm:"index;not null" json:"dungeon_id"`
	Title      string `gorm:"not null" json:"title"`
	XPReward   int64  `gorm:"not null;default:0" json:"xp_reward"`
	GoldReward int64  `gorm:"not null;default:0" json:"gold_reward"`
	SortOrder  int    `gorm:"column:sort_order;default:0" json:"sort_order"`
}

func (m *DungeonMission) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// DungeonProgress records a one-shot mission completion.
type DungeonProgress struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"not null;uniqueIndex:idx_dungeon_progress,priority:1" json:"user_id"`
	DungeonID   string    `gorm:"not null;uniqueIndex:idx_dungeon_progress,priority:2" json:"dungeon_id"`
	MissionID   string    `gorm:"not null;uniqueIndex:idx_dungeon_progress,priority:3" json:"mission_id"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
}

func (p *DungeonProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// UnlockedTheme is a cosmetic grant; never revoked.
type UnlockedTheme struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string    `gorm:"not null;uniqueIndex:idx_unlocked_theme,priority:1" json:"user_id"`
	ThemeID    string    `gorm:"not null;uniqueIndex:idx_unlocked_theme,priority:2" json:"theme_id"`
	DungeonID  string    `gorm:"index" json:"dungeon_id"`
	UnlockedAt time.Time `gorm:"not null" json:"unlocked_at"`
}

func (t *UnlockedTheme) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
