package services

import (
	"context"
	"fmt"

	"habit-progression-engine/events"
	"habit-progression-engine/logger"
	"habit-progression-engine/metrics"
	"habit-progression-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DungeonCompletion extends a completion result with the theme it unlocked, if any.
type DungeonCompletion struct {
	*CompletionResult
	ThemeUnlocked *string `json:"theme_unlocked"`
}

// DungeonStatus is a user's view of one dungeon.
type DungeonStatus struct {
	Dungeon   models.Dungeon `json:"dungeon"`
	Completed []string       `json:"completed_missions"`
	Cleared   bool           `json:"cleared"`
}

type DungeonService struct {
	DB          *gorm.DB
	log         *logger.Logger
	clock       *DayClock
	progression *ProgressionService
}

func NewDungeonService(progression *ProgressionService, log *logger.Logger) *DungeonService {
	return &DungeonService{
		DB:          progression.DB,
		log:         log.With("service", "DungeonService"),
		clock:       progression.clock,
		progression: progression,
	}
}

// CompleteDungeonMission rewards a one-shot mission and unlocks the dungeon's
// theme when it was the user's last missing mission.
func (s *DungeonService) CompleteDungeonMission(ctx context.Context, userID, dungeonID, missionID string) (*DungeonCompletion, error) {
	var dungeon models.Dungeon
	if err := s.DB.WithContext(ctx).Where("id = ?", dungeonID).First(&dungeon).Error; err != nil {
		return nil, notFound(err, "dungeon "+dungeonID)
	}
	var mission models.DungeonMission
	if err := s.DB.WithContext(ctx).Where("id = ? AND dungeon_id = ?", missionID, dungeon.ID).First(&mission).Error; err != nil {
		return nil, notFound(err, "mission "+missionID)
	}
	if !dungeon.IsActive {
		return nil, ErrDungeonInactive
	}

	out := &DungeonCompletion{}
	res, err := s.progression.complete(ctx, userID, models.SourceDungeonMission, mission.ID, models.WindowEver, Reward{
		XP:        mission.XPReward,
		Gold:      mission.GoldReward,
		Reason:    "mission_" + mission.ID,
		OwnAction: true,
	}, func(tx *gorm.DB, _ *RewardOutcome) error {
		theme, err := s.recordMission(tx, userID, &dungeon, mission.ID)
		out.ThemeUnlocked = theme
		return err
	})
	if err != nil {
		return nil, err
	}
	out.CompletionResult = res

	if out.ThemeUnlocked != nil {
		metrics.ThemesUnlocked.Inc()
		s.log.Info("Theme unlocked", "user_id", userID, "dungeon_id", dungeon.ID, "theme_id", *out.ThemeUnlocked)
		s.progression.publish(ctx, events.Event{
			Type:    events.ThemeUnlocked,
			UserID:  userID,
			Payload: map[string]interface{}{"dungeon_id": dungeon.ID, "theme_id": *out.ThemeUnlocked},
		})
	}
	return out, nil
}

// recordMission stores the mission progress and grants the theme once the user's
// completed set equals the dungeon's mission set.
func (s *DungeonService) recordMission(tx *gorm.DB, userID string, dungeon *models.Dungeon, missionID string) (*string, error) {
	now := s.clock.Now()
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.DungeonProgress{
		UserID:      userID,
		DungeonID:   dungeon.ID,
		MissionID:   missionID,
		CompletedAt: now,
	}).Error; err != nil {
		return nil, fmt.Errorf("record mission %s: %w", missionID, err)
	}

	if dungeon.ThemeRewardID == nil || *dungeon.ThemeRewardID == "" {
		return nil, nil
	}

	cleared, err := dungeonCleared(tx, userID, dungeon.ID)
	if err != nil || !cleared {
		return nil, err
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UnlockedTheme{
		UserID:     userID,
		ThemeID:    *dungeon.ThemeRewardID,
		DungeonID:  dungeon.ID,
		UnlockedAt: now,
	})
	if res.Error != nil {
		return nil, fmt.Errorf("unlock theme %s: %w", *dungeon.ThemeRewardID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	theme := *dungeon.ThemeRewardID
	return &theme, nil
}

// dungeonCleared compares the dungeon's mission set with the user's completed set.
func dungeonCleared(tx *gorm.DB, userID, dungeonID string) (bool, error) {
	var all []string
	if err := tx.Model(&models.DungeonMission{}).Where("dungeon_id = ?", dungeonID).Pluck("id", &all).Error; err != nil {
		return false, err
	}
	if len(all) == 0 {
		return false, nil
	}
	var done []string
	if err := tx.Model(&models.DungeonProgress{}).
		Where("user_id = ? AND dungeon_id = ?", userID, dungeonID).
		Pluck("mission_id", &done).Error; err != nil {
		return false, err
	}

	completed := make(map[string]struct{}, len(done))
	for _, id := range done {
		completed[id] = struct{}{}
	}
	for _, id := range all {
		if _, ok := completed[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// GetDungeonStatus returns the dungeon with its missions and the user's progress.
func (s *DungeonService) GetDungeonStatus(ctx context.Context, userID, dungeonID string) (*DungeonStatus, error) {
	db := s.DB.WithContext(ctx)
	var dungeon models.Dungeon
	err := db.Preload("Missions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("sort_order ASC")
	}).Where("id = ?", dungeonID).First(&dungeon).Error
	if err != nil {
		return nil, notFound(err, "dungeon "+dungeonID)
	}

	var done []string
	if err := db.Model(&models.DungeonProgress{}).
		Where("user_id = ? AND dungeon_id = ?", userID, dungeon.ID).
		Pluck("mission_id", &done).Error; err != nil {
		return nil, storageErr(err)
	}
	cleared, err := dungeonCleared(db, userID, dungeon.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	return &DungeonStatus{Dungeon: dungeon, Completed: done, Cleared: cleared}, nil
}

// ListUnlockedThemes returns every theme the user owns.
func (s *DungeonService) ListUnlockedThemes(ctx context.Context, userID string) ([]models.UnlockedTheme, error) {
	var themes []models.UnlockedTheme
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("unlocked_at ASC").Find(&themes).Error; err != nil {
		return nil, storageErr(err)
	}
	return themes, nil
}
