package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"habit-progression-engine/events"
	"habit-progression-engine/logger"
	"habit-progression-engine/metrics"
	"habit-progression-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RaidParticipation is the result of joining a raid.
type RaidParticipation struct {
	Success         bool              `json:"success"`
	AlreadyJoined   bool              `json:"already_joined"`
	RaidCompleted   bool              `json:"raid_completed"`
	Participants    int64             `json:"participants"`
	Members         int64             `json:"members"`
	MembersRewarded int               `json:"members_rewarded,omitempty"`
	Raid            *models.GuildRaid `json:"raid"`
}

type RaidService struct {
	DB          *gorm.DB
	log         *logger.Logger
	clock       *DayClock
	progression *ProgressionService
	events      events.Publisher

	timeBudget time.Duration
	hpPenalty  int
}

func NewRaidService(progression *ProgressionService, log *logger.Logger, timeBudget time.Duration, hpPenalty int) *RaidService {
	return &RaidService{
		DB:          progression.DB,
		log:         log.With("service", "RaidService"),
		clock:       progression.clock,
		progression: progression,
		events:      progression.events,
		timeBudget:  timeBudget,
		hpPenalty:   hpPenalty,
	}
}

// Expired reports whether an active raid has outlived the time budget at now.
func (s *RaidService) Expired(raid models.GuildRaid, now time.Time) bool {
	return raid.Status == models.RaidStatusActive && now.Sub(raid.CreatedAt) > s.timeBudget
}

// CreateRaid opens a new raid for the guild. Only the guild leader may do this.
func (s *RaidService) CreateRaid(ctx context.Context, leaderID, guildID, title string, xpReward int64) (*models.GuildRaid, error) {
	title = strings.TrimSpace(title)
	if title == "" || xpReward <= 0 {
		return nil, fmt.Errorf("raid needs a title and a positive xp reward: %w", ErrInvalidInput)
	}

	var guild models.Guild
	if err := s.DB.WithContext(ctx).Where("id = ?", guildID).First(&guild).Error; err != nil {
		return nil, notFound(err, "guild "+guildID)
	}
	if guild.LeaderID != leaderID {
		return nil, ErrNotAuthorized
	}

	raid := &models.GuildRaid{
		GuildID:   guild.ID,
		Title:     title,
		Status:    models.RaidStatusActive,
		XPReward:  xpReward,
		CreatedBy: leaderID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(raid).Error; err != nil {
		return nil, storageErr(fmt.Errorf("create raid: %w", err))
	}

	s.log.Info("Raid created", "raid_id", raid.ID, "guild_id", guild.ID, "xp_reward", xpReward)
	return raid, nil
}

var errRaidExpired = errors.New("raid expired")

// ParticipateInRaid records the user's participation. The participant that brings
// the count up to the guild's member count completes the raid, and every current
// member is credited the raid reward in the same transaction.
func (s *RaidService) ParticipateInRaid(ctx context.Context, userID, raidID string) (*RaidParticipation, error) {
	out := &RaidParticipation{}
	var rewarded []string

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var raid models.GuildRaid
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", raidID).First(&raid).Error; err != nil {
			return notFound(err, "raid "+raidID)
		}
		out.Raid = &raid

		member, err := membershipOf(tx, userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrNotAuthorized
			}
			return err
		}
		if member.GuildID != raid.GuildID {
			return ErrNotAuthorized
		}

		if raid.Terminal() {
			return ErrRaidClosed
		}
		if s.Expired(raid, s.clock.Now()) {
			return errRaidExpired
		}

		gate, err := s.progression.ledger.TryComplete(tx, userID, models.SourceRaid, raid.ID, models.WindowEver)
		if err != nil {
			return err
		}
		out.Success = true
		if gate.AlreadyDone {
			out.AlreadyJoined = true
		} else {
			p := models.RaidParticipant{RaidID: raid.ID, UserID: userID, JoinedAt: s.clock.Now()}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
				return fmt.Errorf("add raid participant: %w", err)
			}
		}

		if err := tx.Model(&models.RaidParticipant{}).Where("raid_id = ?", raid.ID).Count(&out.Participants).Error; err != nil {
			return err
		}
		members, err := guildMembers(tx, raid.GuildID)
		if err != nil {
			return err
		}
		out.Members = int64(len(members))
		raid.ParticipantCount = out.Participants

		if out.Participants < out.Members {
			return nil
		}

		completed, err := s.completeRaid(tx, &raid, members)
		if err != nil {
			return err
		}
		if completed {
			out.RaidCompleted = true
			for _, m := range members {
				rewarded = append(rewarded, m.UserID)
			}
		}
		return nil
	})

	if errors.Is(err, errRaidExpired) {
		if _, ferr := s.failExpired(ctx, raidID); ferr != nil {
			return nil, ferr
		}
		return nil, ErrRaidClosed
	}
	if err != nil {
		return nil, storageErr(err)
	}

	out.MembersRewarded = len(rewarded)
	if out.RaidCompleted {
		metrics.RaidTransitions.WithLabelValues(string(models.RaidStatusCompleted)).Inc()
		s.log.Info("Raid completed", "raid_id", raidID, "guild_id", out.Raid.GuildID, "members", len(rewarded), "xp_reward", out.Raid.XPReward)
		s.progression.publish(ctx, events.Event{
			Type:    events.RaidCompleted,
			UserID:  userID,
			GuildID: out.Raid.GuildID,
			Payload: map[string]interface{}{"raid_id": raidID, "xp_reward": out.Raid.XPReward, "members": rewarded},
		})
	} else {
		s.log.Info("Raid participation", "raid_id", raidID, "user_id", userID, "participants", out.Participants, "members", out.Members, "already_joined", out.AlreadyJoined)
	}
	return out, nil
}

// completeRaid transitions raid to completed and fans the reward out to every
// member. It is a no-op when another transaction already finished the raid.
func (s *RaidService) completeRaid(tx *gorm.DB, raid *models.GuildRaid, members []models.GuildMember) (bool, error) {
	now := s.clock.Now()
	res := tx.Model(&models.GuildRaid{}).
		Where("id = ? AND status = ?", raid.ID, models.RaidStatusActive).
		Updates(map[string]interface{}{"status": models.RaidStatusCompleted, "completed_at": now})
	if res.Error != nil {
		return false, fmt.Errorf("complete raid %s: %w", raid.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	raid.Status = models.RaidStatusCompleted
	raid.CompletedAt = &now

	if err := tx.Model(&models.Guild{}).Where("id = ?", raid.GuildID).Updates(map[string]interface{}{
		"total_xp":              gorm.Expr("total_xp + ?", raid.XPReward),
		"total_raids_completed": gorm.Expr("total_raids_completed + ?", 1),
	}).Error; err != nil {
		return false, fmt.Errorf("bump guild counters: %w", err)
	}

	for _, m := range members {
		if _, err := s.progression.applyReward(tx, m.UserID, Reward{
			XP:     raid.XPReward,
			Reason: "raid_" + raid.ID,
		}); err != nil {
			return false, fmt.Errorf("reward member %s: %w", m.UserID, err)
		}
	}
	return true, nil
}

// failRaid transitions raid to failed and deducts the HP penalty from every
// current member. Returns false when the raid was no longer active.
func (s *RaidService) failRaid(tx *gorm.DB, raid *models.GuildRaid) (bool, error) {
	now := s.clock.Now()
	res := tx.Model(&models.GuildRaid{}).
		Where("id = ? AND status = ?", raid.ID, models.RaidStatusActive).
		Updates(map[string]interface{}{"status": models.RaidStatusFailed, "failed_at": now})
	if res.Error != nil {
		return false, fmt.Errorf("fail raid %s: %w", raid.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	raid.Status = models.RaidStatusFailed
	raid.FailedAt = &now

	members, err := guildMembers(tx, raid.GuildID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		prog, err := ensureProgress(tx, m.UserID, true)
		if err != nil {
			return false, err
		}
		hp := ApplyHPPenalty(prog.HP, s.hpPenalty)
		if err := tx.Model(&models.UserProgress{}).Where("id = ?", prog.ID).Update("hp", hp).Error; err != nil {
			return false, fmt.Errorf("apply raid penalty to %s: %w", m.UserID, err)
		}
	}
	return true, nil
}

// ApplyHPPenalty subtracts penalty from hp, flooring at zero.
func ApplyHPPenalty(hp, penalty int) int {
	hp -= penalty
	if hp < 0 {
		return 0
	}
	return hp
}

// failExpired fails one raid in its own transaction if it is still active and expired.
func (s *RaidService) failExpired(ctx context.Context, raidID string) (bool, error) {
	var raid models.GuildRaid
	failed := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", raidID).First(&raid).Error; err != nil {
			return notFound(err, "raid "+raidID)
		}
		if !s.Expired(raid, s.clock.Now()) {
			return nil
		}
		ok, err := s.failRaid(tx, &raid)
		failed = ok
		return err
	})
	if err != nil {
		return false, storageErr(err)
	}
	if failed {
		metrics.RaidTransitions.WithLabelValues(string(models.RaidStatusFailed)).Inc()
		s.log.Warn("Raid failed", "raid_id", raid.ID, "guild_id", raid.GuildID, "hp_penalty", s.hpPenalty)
		s.progression.publish(ctx, events.Event{
			Type:    events.RaidFailed,
			GuildID: raid.GuildID,
			Payload: map[string]interface{}{"raid_id": raid.ID, "hp_penalty": s.hpPenalty},
		})
	}
	return failed, nil
}

// sweep fails every expired raid in raids and returns how many transitioned.
func (s *RaidService) sweep(ctx context.Context, raids []models.GuildRaid) (int, error) {
	now := s.clock.Now()
	n := 0
	for _, r := range raids {
		if !s.Expired(r, now) {
			continue
		}
		failed, err := s.failExpired(ctx, r.ID)
		if err != nil {
			return n, err
		}
		if failed {
			n++
		}
	}
	return n, nil
}

// ListRaids returns the guild's raids, newest first, to a member of that guild.
// Expired active raids are failed before the list is read.
func (s *RaidService) ListRaids(ctx context.Context, viewerID, guildID string) ([]models.GuildRaid, error) {
	db := s.DB.WithContext(ctx)

	var guild models.Guild
	if err := db.Where("id = ?", guildID).First(&guild).Error; err != nil {
		return nil, notFound(err, "guild "+guildID)
	}
	member, err := membershipOf(db, viewerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotAuthorized
		}
		return nil, err
	}
	if member.GuildID != guild.ID {
		return nil, ErrNotAuthorized
	}

	var active []models.GuildRaid
	if err := db.Where("guild_id = ? AND status = ?", guildID, models.RaidStatusActive).Find(&active).Error; err != nil {
		return nil, storageErr(err)
	}
	if _, err := s.sweep(ctx, active); err != nil {
		return nil, err
	}

	var raids []models.GuildRaid
	if err := db.Where("guild_id = ?", guildID).Order("created_at DESC").Find(&raids).Error; err != nil {
		return nil, storageErr(err)
	}
	for i := range raids {
		if err := db.Model(&models.RaidParticipant{}).
			Where("raid_id = ?", raids[i].ID).
			Count(&raids[i].ParticipantCount).Error; err != nil {
			return nil, storageErr(err)
		}
	}
	return raids, nil
}

// SweepExpiredRaids fails expired raids across every guild.
func (s *RaidService) SweepExpiredRaids(ctx context.Context) (int, error) {
	var active []models.GuildRaid
	if err := s.DB.WithContext(ctx).Where("status = ?", models.RaidStatusActive).Find(&active).Error; err != nil {
		return 0, storageErr(err)
	}
	n, err := s.sweep(ctx, active)
	if n > 0 {
		s.log.Info("Expired raids swept", "failed", n)
	}
	return n, err
}
