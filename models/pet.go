package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PetRarity string

const (
	PetRarityCommon    PetRarity = "common"
	PetRarityRare      PetRarity = "rare"
	PetRarityEpic      PetRarity = "epic"
	PetRarityLegendary PetRarity = "legendary"
)

// Pet is a companion owned by a user. While active it boosts rewards and
// grows from every reward its owner receives. At most one pet per user is active.
type Pet struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string    `gorm:"index;not null" json:"user_id"`
	Name       string    `gorm:"not null" json:"name"`
	Rarity     PetRarity `gorm:"type:varchar(16);not null;default:'common'" json:"rarity"`
	Level      int       `gorm:"not null;default:1" json:"level"`
	Experience int64     `gorm:"not null;default:0" json:"experience"` // experience inside the current level
	IsActive   bool      `gorm:"not null;index" json:"is_active"`

	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	Timestamps
}

func (p *Pet) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
