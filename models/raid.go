package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RaidStatus string

const (
	RaidStatusActive    RaidStatus = "active"
	RaidStatusCompleted RaidStatus = "completed"
	RaidStatusFailed    RaidStatus = "failed"
)

// GuildRaid completes once every guild member has participated, or fails when
// it is still active after the raid time budget. Terminal states are final.
type GuildRaid struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	GuildID     string     `gorm:"index;not null" json:"guild_id"`
	Title       string     `gorm:"not null" json:"title"`
	Status      RaidStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	XPReward    int64      `gorm:"not null" json:"xp_reward"`
	CreatedBy   string     `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	Participants []RaidParticipant `json:"participants,omitempty" gorm:"foreignKey:RaidID"`

	// Calculated fields (not stored in DB)
	ParticipantCount int64 `json:"participant_count" gorm:"-"`
}

func (r *GuildRaid) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r GuildRaid) Terminal() bool {
	return r.Status == RaidStatusCompleted || r.Status == RaidStatusFailed
}

type RaidParticipant struct {
	ID       string    `gorm:"primaryKey;type:uuid" json:"id"`
	RaidID   string    `gorm:"not null;uniqueIndex:idx_raid_participant,priority:1" json:"raid_id"`
	UserID   string    `gorm:"not null;uniqueIndex:idx_raid_participant,priority:2" json:"user_id"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

func (p *RaidParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
