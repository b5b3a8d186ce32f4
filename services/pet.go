package services

import (
	"context"
	"fmt"
	"strings"

	"habit-progression-engine/logger"
	"habit-progression-engine/models"

	"gorm.io/gorm"
)

type PetService struct {
	DB    *gorm.DB
	log   *logger.Logger
	clock *DayClock
}

func NewPetService(db *gorm.DB, log *logger.Logger, clock *DayClock) *PetService {
	return &PetService{DB: db, log: log.With("service", "PetService"), clock: clock}
}

// ActivatePet makes petID the user's only active companion.
func (s *PetService) ActivatePet(ctx context.Context, userID, petID string) (*models.Pet, error) {
	var pet models.Pet
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", petID, userID).First(&pet).Error; err != nil {
			return notFound(err, "pet "+petID)
		}
		if err := tx.Model(&models.Pet{}).
			Where("user_id = ? AND id <> ? AND is_active = ?", userID, petID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		now := s.clock.Now()
		pet.IsActive = true
		pet.ActivatedAt = &now
		return tx.Model(&models.Pet{}).Where("id = ?", pet.ID).
			Updates(map[string]interface{}{"is_active": true, "activated_at": now}).Error
	})
	if err != nil {
		return nil, storageErr(err)
	}
	s.log.Info("Pet activated", "user_id", userID, "pet_id", petID, "rarity", pet.Rarity)
	return &pet, nil
}

// ListPets returns the user's companions, active first.
func (s *PetService) ListPets(ctx context.Context, userID string) ([]models.Pet, error) {
	var pets []models.Pet
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).
		Order("is_active DESC, created_at ASC").Find(&pets).Error; err != nil {
		return nil, storageErr(err)
	}
	return pets, nil
}

// GrantPet gives userID a new, inactive companion.
func (s *PetService) GrantPet(ctx context.Context, userID, name string, rarity models.PetRarity) (*models.Pet, error) {
	name = strings.TrimSpace(name)
	if userID == "" || name == "" {
		return nil, fmt.Errorf("pet needs an owner and a name: %w", ErrInvalidInput)
	}
	if _, ok := companionBonus[rarity]; !ok {
		return nil, fmt.Errorf("unknown rarity %q: %w", rarity, ErrInvalidInput)
	}

	pet := &models.Pet{UserID: userID, Name: name, Rarity: rarity, Level: 1}
	if err := s.DB.WithContext(ctx).Create(pet).Error; err != nil {
		return nil, storageErr(err)
	}
	s.log.Info("Pet granted", "user_id", userID, "pet_id", pet.ID, "rarity", rarity)
	return pet, nil
}
