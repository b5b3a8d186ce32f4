package services

import (
	"context"
	"fmt"

	"habit-progression-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB    *gorm.DB
	clock *DayClock
}

func NewBadgeService(db *gorm.DB, clock *DayClock) *BadgeService {
	return &BadgeService{DB: db, clock: clock}
}

// AutoAwardBadges checks all badge triggers for a user after a progress update.
// It runs on the caller's transaction and returns the codes newly awarded.
func (s *BadgeService) AutoAwardBadges(tx *gorm.DB, prog *models.UserProgress) ([]string, error) {
	var awarded []string
	for _, trigger := range models.BadgeTriggers {
		if !s.meetsThreshold(prog, trigger.Threshold) {
			continue
		}
		badge := models.UserBadge{
			UserID:    prog.UserID,
			BadgeCode: trigger.Code,
			AwardedAt: s.clock.Now(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&badge)
		if res.Error != nil {
			return nil, fmt.Errorf("award badge %s to %s: %w", trigger.Code, prog.UserID, res.Error)
		}
		if res.RowsAffected == 1 {
			awarded = append(awarded, trigger.Code)
		}
	}
	return awarded, nil
}

// ListBadges returns the user's awarded badges joined with the catalog.
func (s *BadgeService) ListBadges(ctx context.Context, userID string) ([]map[string]interface{}, error) {
	var rows []models.UserBadge
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("awarded_at ASC").Find(&rows).Error; err != nil {
		return nil, storageErr(err)
	}
	catalog := make(map[string]models.BadgeType, len(models.BadgeTriggers))
	for _, b := range models.BadgeTriggers {
		catalog[b.Code] = b
	}

	out := make([]map[string]interface{}, 0, len(rows))
	for _, ub := range rows {
		bt := catalog[ub.BadgeCode]
		out = append(out, map[string]interface{}{
			"id":          ub.ID,
			"code":        ub.BadgeCode,
			"name":        bt.Name,
			"description": bt.Description,
			"rarity":      bt.Rarity,
			"awarded_at":  ub.AwardedAt,
		})
	}
	return out, nil
}

func (s *BadgeService) meetsThreshold(prog *models.UserProgress, req map[string]int64) bool {
	if len(req) == 0 {
		return false
	}
	for key, required := range req {
		switch key {
		case "level":
			if int64(prog.Level) < required {
				return false
			}
		case "streak":
			if int64(prog.Streak) < required {
				return false
			}
		case "total_completions":
			if prog.TotalCompletions < required {
				return false
			}
		case "total_xp":
			if prog.TotalXP < required {
				return false
			}
		default:
			return false
		}
	}
	return true
}
