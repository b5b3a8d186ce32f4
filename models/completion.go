package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SourceType names the kind of rewardable action a completion belongs to.
type SourceType string

const (
	SourceTask           SourceType = "task"
	SourceDailyChallenge SourceType = "daily_challenge"
	SourceDungeonMission SourceType = "dungeon_mission"
	SourceRaid           SourceType = "raid"
)

// WindowEver is the window key of one-shot sources.
const WindowEver = "ever"

// CompletionRecord is one ledger row. The unique index on (user, source, window)
// is what keeps an action from being rewarded twice.
type CompletionRecord struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string     `gorm:"not null;uniqueIndex:idx_completion_window,priority:1" json:"user_id"`
	SourceID    string     `gorm:"not null;uniqueIndex:idx_completion_window,priority:2" json:"source_id"`
	WindowKey   string     `gorm:"not null;size:16;uniqueIndex:idx_completion_window,priority:3" json:"window"`
	SourceType  SourceType `gorm:"not null;size:32;index" json:"source_type"`
	XPAwarded   int64      `json:"xp_awarded" gorm:"not null;default:0"`
	GoldAwarded int64      `json:"gold_awarded" gorm:"not null;default:0"`
	CompletedAt time.Time  `json:"completed_at" gorm:"not null"`
}

func (r *CompletionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
