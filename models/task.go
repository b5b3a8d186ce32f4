package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskRepeat string

const (
	TaskRepeatDaily TaskRepeat = "daily"
	TaskRepeatOnce  TaskRepeat = "once"
)

// Task is a user-owned habit or to-do. Daily tasks may be completed once per day,
// one-shot tasks once ever.
type Task struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string     `gorm:"index;not null" json:"user_id"`
	Title      string     `gorm:"not null" json:"title"`
	XPReward   int64      `json:"xp_reward" gorm:"not null;default:0"`
	GoldReward int64      `json:"gold_reward" gorm:"not null;default:0"`
	Repeat     TaskRepeat `json:"repeat" gorm:"type:varchar(16);not null;default:'once'"`

	Timestamps
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// DailyChallenge is a global challenge anyone can complete once per calendar day.
type DailyChallenge struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	Title      string `gorm:"not null" json:"title"`
	XPReward   int64  `json:"xp_reward" gorm:"not null;default:0"`
	GoldReward int64  `json:"gold_reward" gorm:"not null;default:0"`
	IsActive   bool   `json:"is_active" gorm:"not null"`

	Timestamps
}

func (d *DailyChallenge) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
