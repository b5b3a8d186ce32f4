package services

import (
	"context"
	"fmt"
	"strings"

	"habit-progression-engine/logger"
	"habit-progression-engine/models"

	"gorm.io/gorm"
)

// MissionInput describes one mission of a new dungeon.
type MissionInput struct {
	Title      string `json:"title"`
	XPReward   int64  `json:"xp_reward"`
	GoldReward int64  `json:"gold_reward"`
}

// CatalogService is plain CRUD for the rewardable content: user tasks, global
// daily challenges and dungeons.
type CatalogService struct {
	DB  *gorm.DB
	log *logger.Logger
}

func NewCatalogService(db *gorm.DB, log *logger.Logger) *CatalogService {
	return &CatalogService{DB: db, log: log.With("service", "CatalogService")}
}

func (s *CatalogService) CreateTask(ctx context.Context, userID, title string, xp, gold int64, repeat models.TaskRepeat) (*models.Task, error) {
	title = strings.TrimSpace(title)
	if userID == "" || title == "" {
		return nil, fmt.Errorf("task needs an owner and a title: %w", ErrInvalidInput)
	}
	if xp < 0 || gold < 0 {
		return nil, fmt.Errorf("task rewards must not be negative: %w", ErrInvalidInput)
	}
	switch repeat {
	case "":
		repeat = models.TaskRepeatOnce
	case models.TaskRepeatDaily, models.TaskRepeatOnce:
	default:
		return nil, fmt.Errorf("unknown repeat %q: %w", repeat, ErrInvalidInput)
	}

	task := &models.Task{UserID: userID, Title: title, XPReward: xp, GoldReward: gold, Repeat: repeat}
	if err := s.DB.WithContext(ctx).Create(task).Error; err != nil {
		return nil, storageErr(err)
	}
	return task, nil
}

func (s *CatalogService) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, storageErr(err)
	}
	return tasks, nil
}

func (s *CatalogService) CreateDailyChallenge(ctx context.Context, title string, xp, gold int64) (*models.DailyChallenge, error) {
	title = strings.TrimSpace(title)
	if title == "" || xp < 0 || gold < 0 {
		return nil, fmt.Errorf("challenge needs a title and non-negative rewards: %w", ErrInvalidInput)
	}
	ch := &models.DailyChallenge{Title: title, XPReward: xp, GoldReward: gold, IsActive: true}
	if err := s.DB.WithContext(ctx).Create(ch).Error; err != nil {
		return nil, storageErr(err)
	}
	s.log.Info("Daily challenge created", "challenge_id", ch.ID)
	return ch, nil
}

func (s *CatalogService) ListDailyChallenges(ctx context.Context) ([]models.DailyChallenge, error) {
	var out []models.DailyChallenge
	if err := s.DB.WithContext(ctx).Where("is_active = ?", true).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// CreateDungeon stores an active dungeon together with its missions.
func (s *CatalogService) CreateDungeon(ctx context.Context, name, description string, themeID *string, missions []MissionInput) (*models.Dungeon, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(missions) == 0 {
		return nil, fmt.Errorf("dungeon needs a name and at least one mission: %w", ErrInvalidInput)
	}

	dungeon := &models.Dungeon{
		Name:          name,
		Description:   description,
		ThemeRewardID: themeID,
		IsActive:      true,
	}
	for i, m := range missions {
		if strings.TrimSpace(m.Title) == "" || m.XPReward < 0 || m.GoldReward < 0 {
			return nil, fmt.Errorf("mission %d is invalid: %w", i, ErrInvalidInput)
		}
		dungeon.Missions = append(dungeon.Missions, models.DungeonMission{
			Title:      m.Title,
			XPReward:   m.XPReward,
			GoldReward: m.GoldReward,
			SortOrder:  i,
		})
	}

	if err := s.DB.WithContext(ctx).Create(dungeon).Error; err != nil {
		return nil, storageErr(err)
	}
	s.log.Info("Dungeon created", "dungeon_id", dungeon.ID, "missions", len(dungeon.Missions))
	return dungeon, nil
}

// SetDungeonActive toggles whether missions of the dungeon can be completed.
// Themes already unlocked are kept.
func (s *CatalogService) SetDungeonActive(ctx context.Context, dungeonID string, active bool) error {
	res := s.DB.WithContext(ctx).Model(&models.Dungeon{}).Where("id = ?", dungeonID).Update("is_active", active)
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("dungeon %s: %w", dungeonID, ErrNotFound)
	}
	return nil
}
