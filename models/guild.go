package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GuildRole string

const (
	GuildRoleLeader GuildRole = "leader"
	GuildRoleMember GuildRole = "member"
)

// Guild groups users around a shared treasury and raids.
type Guild struct {
	ID                  string `gorm:"primaryKey;type:uuid" json:"id"`
	Name                string `gorm:"not null" json:"name"`
	Slug                string `gorm:"uniqueIndex;not null" json:"slug"`
	LeaderID            string `gorm:"index;not null" json:"leader_id"`
	TreasuryGold        int64  `gorm:"not null;default:0" json:"treasury_gold"`
	TotalXP             int64  `gorm:"not null;default:0" json:"total_xp"`
	TotalRaidsCompleted int64  `gorm:"not null;default:0" json:"total_raids_completed"`

	Members  []GuildMember  `json:"members,omitempty" gorm:"foreignKey:GuildID"`
	Upgrades []GuildUpgrade `json:"upgrades,omitempty" gorm:"foreignKey:GuildID"`

	Timestamps
}

func (g *Guild) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// GuildMember links a user to exactly one guild.
type GuildMember struct {
	ID       string    `gorm:"primaryKey;type:uuid" json:"id"`
	GuildID  string    `gorm:"index;not null" json:"guild_id"`
	UserID   string    `gorm:"uniqueIndex;not null" json:"user_id"`
	Role     GuildRole `gorm:"type:varchar(16);not null;default:'member'" json:"role"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

func (m *GuildMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// GuildUpgrade is a time-boxed treasury purchase. It contributes its bonus
// while ExpiresAt is in the future.
type GuildUpgrade struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	GuildID   string    `gorm:"not null;uniqueIndex:idx_guild_upgrade,priority:1" json:"guild_id"`
	UpgradeID string    `gorm:"not null;size:64;uniqueIndex:idx_guild_upgrade,priority:2" json:"upgrade_id"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (u *GuildUpgrade) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Active reports whether the upgrade still applies at now.
func (u GuildUpgrade) Active(now time.Time) bool {
	return u.ExpiresAt.After(now)
}

// GuildDonation is an audit row for every treasury donation.
type GuildDonation struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	GuildID   string    `gorm:"index;not null" json:"guild_id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

func (d *GuildDonation) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
