package services

import (
	"context"
	"fmt"
	"strings"

	"habit-progression-engine/logger"
	"habit-progression-engine/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GuildService struct {
	DB    *gorm.DB
	log   *logger.Logger
	clock *DayClock
}

func NewGuildService(db *gorm.DB, log *logger.Logger, clock *DayClock) *GuildService {
	return &GuildService{DB: db, log: log.With("service", "GuildService"), clock: clock}
}

// CreateGuild creates a guild led by leaderID. The leader must not belong to another guild.
func (s *GuildService) CreateGuild(ctx context.Context, leaderID, name string) (*models.Guild, error) {
	name = strings.TrimSpace(name)
	if name == "" || leaderID == "" {
		return nil, fmt.Errorf("guild name and leader are required: %w", ErrInvalidInput)
	}

	guild := &models.Guild{
		ID:       uuid.NewString(),
		Name:     name,
		Slug:     slug.Make(name),
		LeaderID: leaderID,
	}
	if guild.Slug == "" {
		guild.Slug = "guild"
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Guild{}).Where("slug = ?", guild.Slug).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			guild.Slug = guild.Slug + "-" + guild.ID[:8]
		}
		if err := tx.Create(guild).Error; err != nil {
			return fmt.Errorf("create guild: %w", err)
		}
		return s.addMember(tx, guild.ID, leaderID, models.GuildRoleLeader)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	s.log.Info("Guild created", "guild_id", guild.ID, "slug", guild.Slug, "leader_id", leaderID)
	return guild, nil
}

// JoinGuild adds userID to guildID. A user belongs to at most one guild.
func (s *GuildService) JoinGuild(ctx context.Context, userID, guildID string) (*models.GuildMember, error) {
	var member *models.GuildMember
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var guild models.Guild
		if err := tx.Where("id = ?", guildID).First(&guild).Error; err != nil {
			return notFound(err, "guild "+guildID)
		}
		if err := s.addMember(tx, guild.ID, userID, models.GuildRoleMember); err != nil {
			return err
		}
		m, err := membershipOf(tx, userID)
		member = m
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	s.log.Info("Guild joined", "guild_id", guildID, "user_id", userID)
	return member, nil
}

// GetGuild returns the guild with members and upgrades.
func (s *GuildService) GetGuild(ctx context.Context, guildID string) (*models.Guild, error) {
	var guild models.Guild
	err := s.DB.WithContext(ctx).
		Preload("Members").
		Preload("Upgrades").
		Where("id = ?", guildID).
		First(&guild).Error
	if err != nil {
		return nil, notFound(err, "guild "+guildID)
	}
	return &guild, nil
}

func (s *GuildService) addMember(tx *gorm.DB, guildID, userID string, role models.GuildRole) error {
	m := models.GuildMember{
		GuildID:  guildID,
		UserID:   userID,
		Role:     role,
		JoinedAt: s.clock.Now(),
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return fmt.Errorf("add guild member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyMember
	}
	return nil
}

// membershipOf returns the user's guild membership or ErrNotFound.
func membershipOf(tx *gorm.DB, userID string) (*models.GuildMember, error) {
	var m models.GuildMember
	if err := tx.Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, notFound(err, "guild membership for "+userID)
	}
	return &m, nil
}

// guildMembers reads the current member list inside tx.
func guildMembers(tx *gorm.DB, guildID string) ([]models.GuildMember, error) {
	var members []models.GuildMember
	if err := tx.Where("guild_id = ?", guildID).Order("joined_at ASC").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("load members of guild %s: %w", guildID, err)
	}
	return members, nil
}
