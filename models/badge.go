package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BadgeType: static milestone config
type BadgeType struct {
	Code        string           `json:"code"` // e.g., "LEVEL_10", "STREAK_7"
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Rarity      string           `json:"rarity"`    // common, rare, epic, legendary
	Threshold   map[string]int64 `json:"threshold"` // e.g., {"level": 10}, {"streak": 7}
}

// UserBadge: awarded instance, once per user and code
type UserBadge struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_user_badge,priority:1" json:"user_id"`
	BadgeCode string    `gorm:"not null;size:64;uniqueIndex:idx_user_badge,priority:2" json:"badge_code"`
	AwardedAt time.Time `gorm:"not null" json:"awarded_at"`
}

func (b *UserBadge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// BadgeTriggers is the milestone catalog checked after every reward.
var BadgeTriggers = []BadgeType{
	{
		Code:        "FIRST_STEP",
		Name:        "First Step",
		Description: "Completed your first quest",
		Rarity:      "common",
		Threshold:   map[string]int64{"total_completions": 1},
	},
	{
		Code:        "STREAK_7",
		Name:        "Week Warrior",
		Description: "Kept a 7-day streak",
		Rarity:      "rare",
		Threshold:   map[string]int64{"streak": 7},
	},
	{
		Code:        "STREAK_30",
		Name:        "Unbreakable",
		Description: "Kept a 30-day streak",
		Rarity:      "epic",
		Threshold:   map[string]int64{"streak": 30},
	},
	{
		Code:        "LEVEL_10",
		Name:        "Seasoned Adventurer",
		Description: "Reached level 10",
		Rarity:      "rare",
		Threshold:   map[string]int64{"level": 10},
	},
	{
		Code:        "LEVEL_50",
		Name:        "Halfway There",
		Description: "Reached level 50",
		Rarity:      "legendary",
		Threshold:   map[string]int64{"level": 50},
	},
	{
		Code:        "CENTURION",
		Name:        "Centurion",
		Description: "Completed 100 quests",
		Rarity:      "epic",
		Threshold:   map[string]int64{"total_completions": 100},
	},
}

// AllModels lists every table the engine migrates.
func AllModels() []interface{} {
	return []interface{}{
		&UserProgress{},
		&CompletionRecord{},
		&Task{},
		&DailyChallenge{},
		&Pet{},
		&Guild{},
		&GuildMember{},
		&GuildUpgrade{},
		&GuildDonation{},
		&GuildRaid{},
		&RaidParticipant{},
		&Dungeon{},
		&DungeonMission{},
		&DungeonProgress{},
		&UnlockedTheme{},
		&UserBadge{},
	}
}
