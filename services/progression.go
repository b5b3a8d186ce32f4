package services

import (
	"context"
	"errors"
	"fmt"

	"habit-progression-engine/events"
	"habit-progression-engine/logger"
	"habit-progression-engine/metrics"
	"habit-progression-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reward is a base (pre-multiplier) payout for one action.
type Reward struct {
	XP     int64
	Gold   int64
	Reason string
	// OwnAction marks rewards for something the user did themselves. Only those
	// move the streak and the completion counter; guild fan-out rewards do not.
	OwnAction bool
}

// RewardOutcome describes what a reward actually did to a user.
type RewardOutcome struct {
	Progress        *models.UserProgress
	XPAwarded       int64
	GoldAwarded     int64
	LevelsGained    int
	StreakChanged   bool
	PetLevelsGained int
	BadgesAwarded   []string
}

// CompletionResult is returned by every completion operation. AlreadyDone means
// the ledger window was used before and nothing changed.
type CompletionResult struct {
	AlreadyDone   bool                 `json:"already_completed"`
	Window        string               `json:"window"`
	XPAwarded     int64                `json:"xp_reward"`
	GoldAwarded   int64                `json:"gold_reward"`
	LevelsGained  int                  `json:"levels_gained"`
	BadgesAwarded []string             `json:"badges_awarded,omitempty"`
	Progress      *models.UserProgress `json:"progress,omitempty"`
}

// ProgressSnapshot is a progress read. Degraded means storage could not be read and
// Progress holds the default snapshot; nothing was persisted.
type ProgressSnapshot struct {
	Progress models.UserProgress `json:"progress"`
	Degraded bool                `json:"degraded"`
}

type ProgressionService struct {
	DB          *gorm.DB
	log         *logger.Logger
	clock       *DayClock
	ledger      *CompletionLedger
	multipliers *MultiplierResolver
	badges      *BadgeService
	events      events.Publisher
}

func NewProgressionService(db *gorm.DB, log *logger.Logger, clock *DayClock, pub events.Publisher) *ProgressionService {
	if pub == nil {
		pub = events.Nop()
	}
	return &ProgressionService{
		DB:          db,
		log:         log.With("service", "ProgressionService"),
		clock:       clock,
		ledger:      NewCompletionLedger(clock),
		multipliers: NewMultiplierResolver(clock),
		badges:      NewBadgeService(db, clock),
		events:      pub,
	}
}

func (s *ProgressionService) Clock() *DayClock                { return s.clock }
func (s *ProgressionService) Ledger() *CompletionLedger        { return s.ledger }
func (s *ProgressionService) Multipliers() *MultiplierResolver { return s.multipliers }

// DefaultProgress is the snapshot served when storage cannot be reached.
func DefaultProgress(userID string) models.UserProgress {
	return models.UserProgress{
		UserID:    userID,
		Level:     1,
		XPToNext:  XPNeeded(1),
		HP:        models.MaxHP,
		Gold:      0,
		Streak:    0,
		TotalXP:   0,
		XPInLevel: 0,
	}
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent)
func (s *ProgressionService) EnsureProgressRecord(ctx context.Context, userID string) (*models.UserProgress, error) {
	var prog *models.UserProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := ensureProgress(tx, userID, false)
		prog = p
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return prog, nil
}

// ensureProgress loads the user's row, creating it on first use. With lock set the
// row is read FOR UPDATE so concurrent rewards for one user serialize.
func ensureProgress(tx *gorm.DB, userID string, lock bool) (*models.UserProgress, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id: %w", ErrNotFound)
	}
	q := func() *gorm.DB {
		if lock {
			return tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		return tx
	}

	var prog models.UserProgress
	err := q().Where("user_id = ?", userID).First(&prog).Error
	if err == nil {
		return &prog, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := DefaultProgress(userID)
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("create progress for %s: %w", userID, err)
	}
	if err := q().Where("user_id = ?", userID).First(&prog).Error; err != nil {
		return nil, err
	}
	return &prog, nil
}

// GetProgress returns the user's snapshot, degrading to DefaultProgress when the
// store is unreachable. The degraded path never writes.
func (s *ProgressionService) GetProgress(ctx context.Context, userID string) ProgressSnapshot {
	var prog models.UserProgress
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&prog).Error
	if err == nil {
		return ProgressSnapshot{Progress: prog}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		created, cerr := s.EnsureProgressRecord(ctx, userID)
		if cerr == nil {
			return ProgressSnapshot{Progress: *created}
		}
		err = cerr
	}

	s.log.Warn("Serving default progress snapshot", "user_id", userID, "error", err)
	metrics.DegradedReads.Inc()
	return ProgressSnapshot{Progress: DefaultProgress(userID), Degraded: true}
}

// applyReward credits a reward inside tx: multipliers, leveling, streak, gold,
// companion growth and milestone badges all land in the same transaction.
func (s *ProgressionService) applyReward(tx *gorm.DB, userID string, r Reward) (*RewardOutcome, error) {
	if r.XP < 0 || r.Gold < 0 {
		return nil, ErrNegativeXP
	}

	prog, err := ensureProgress(tx, userID, true)
	if err != nil {
		return nil, err
	}

	mults, err := s.multipliers.ResolveAll(tx, userID)
	if err != nil {
		return nil, err
	}
	xp := mults.XP.Apply(r.XP)
	gold := mults.Gold.Apply(r.Gold)

	out := &RewardOutcome{XPAwarded: xp, GoldAwarded: gold}

	levels, err := ApplyXP(prog, xp)
	if err != nil {
		return nil, err
	}
	out.LevelsGained = levels
	if levels > 0 {
		now := s.clock.Now()
		prog.LastLevelUpAt = &now
	}
	prog.Gold += gold

	if r.OwnAction {
		prog.TotalCompletions++
		if r.XP > 0 {
			out.StreakChanged = ApplyStreak(prog, s.clock)
		}
	}

	if err := tx.Save(prog).Error; err != nil {
		return nil, fmt.Errorf("save progress for %s: %w", userID, err)
	}

	petLevels, err := s.growActivePet(tx, userID, r.XP)
	if err != nil {
		return nil, err
	}
	out.PetLevelsGained = petLevels

	badges, err := s.badges.AutoAwardBadges(tx, prog)
	if err != nil {
		return nil, err
	}
	out.BadgesAwarded = badges
	out.Progress = prog

	s.log.Debug("Reward applied",
		"user_id", userID, "reason", r.Reason,
		"base_xp", r.XP, "xp", xp, "xp_multiplier", mults.XP.String(),
		"base_gold", r.Gold, "gold", gold, "gold_multiplier", mults.Gold.String(),
		"level", prog.Level, "streak", prog.Streak)
	return out, nil
}

// growActivePet feeds the base reward to the user's active companion.
func (s *ProgressionService) growActivePet(tx *gorm.DB, userID string, baseXP int64) (int, error) {
	if baseXP <= 0 {
		return 0, nil
	}
	var pet models.Pet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&pet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load active pet for %s: %w", userID, err)
	}
	levels, err := ApplyPetXP(&pet, baseXP)
	if err != nil {
		return 0, err
	}
	if err := tx.Model(&models.Pet{}).Where("id = ?", pet.ID).
		Updates(map[string]interface{}{"level": pet.Level, "experience": pet.Experience}).Error; err != nil {
		return 0, fmt.Errorf("save pet %s: %w", pet.ID, err)
	}
	return levels, nil
}

// complete runs the ledger gate and the reward in one transaction.
func (s *ProgressionService) complete(ctx context.Context, userID string, source models.SourceType, sourceID, window string, r Reward, after func(tx *gorm.DB, out *RewardOutcome) error) (*CompletionResult, error) {
	result := &CompletionResult{Window: window}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gate, err := s.ledger.TryComplete(tx, userID, source, sourceID, window)
		if err != nil {
			return err
		}
		if gate.AlreadyDone {
			result.AlreadyDone = true
			return nil
		}

		out, err := s.applyReward(tx, userID, r)
		if err != nil {
			return err
		}
		if err := s.ledger.RecordAwards(tx, gate.Record, out.XPAwarded, out.GoldAwarded); err != nil {
			return err
		}
		if after != nil {
			if err := after(tx, out); err != nil {
				return err
			}
		}

		result.XPAwarded = out.XPAwarded
		result.GoldAwarded = out.GoldAwarded
		result.LevelsGained = out.LevelsGained
		result.BadgesAwarded = out.BadgesAwarded
		result.Progress = out.Progress
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}

	if result.AlreadyDone {
		metrics.Completions.WithLabelValues(string(source), "duplicate").Inc()
		s.log.Info("Completion already recorded", "user_id", userID, "source", source, "source_id", sourceID, "window", window)
		return result, nil
	}

	metrics.Completions.WithLabelValues(string(source), "accepted").Inc()
	metrics.XPAwarded.Add(float64(result.XPAwarded))
	metrics.GoldAwarded.Add(float64(result.GoldAwarded))
	if result.LevelsGained > 0 {
		metrics.LevelUps.Add(float64(result.LevelsGained))
	}
	s.log.Info("Completion rewarded",
		"user_id", userID, "source", source, "source_id", sourceID, "window", window,
		"xp", result.XPAwarded, "gold", result.GoldAwarded, "level", result.Progress.Level)

	s.publish(ctx, events.Event{
		Type:   events.ProgressUpdated,
		UserID: userID,
		Payload: map[string]interface{}{
			"source":    source,
			"source_id": sourceID,
			"xp":        result.XPAwarded,
			"gold":      result.GoldAwarded,
			"level":     result.Progress.Level,
			"gold_now":  result.Progress.Gold,
		},
	})
	return result, nil
}

// CompleteTask rewards a user-owned task once per window ("today" for daily tasks,
// "ever" for one-shot tasks).
func (s *ProgressionService) CompleteTask(ctx context.Context, userID, taskID string) (*CompletionResult, error) {
	var task models.Task
	if err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error; err != nil {
		return nil, notFound(err, "task "+taskID)
	}

	window := s.ledger.WindowFor(task.Repeat == models.TaskRepeatDaily)
	return s.complete(ctx, userID, models.SourceTask, task.ID, window, Reward{
		XP:        task.XPReward,
		Gold:      task.GoldReward,
		Reason:    "task_" + task.ID,
		OwnAction: true,
	}, nil)
}

// CompleteDailyChallenge rewards a global daily challenge once per calendar day.
func (s *ProgressionService) CompleteDailyChallenge(ctx context.Context, userID, challengeID string) (*CompletionResult, error) {
	var ch models.DailyChallenge
	if err := s.DB.WithContext(ctx).Where("id = ? AND is_active = ?", challengeID, true).First(&ch).Error; err != nil {
		return nil, notFound(err, "daily challenge "+challengeID)
	}

	return s.complete(ctx, userID, models.SourceDailyChallenge, ch.ID, s.clock.Today(), Reward{
		XP:        ch.XPReward,
		Gold:      ch.GoldReward,
		Reason:    "daily_" + ch.ID,
		OwnAction: true,
	}, nil)
}

// CompletedToday reports which of the given daily challenges the user already
// completed in the current day window.
func (s *ProgressionService) CompletedToday(ctx context.Context, userID string, challengeIDs []string) (map[string]bool, error) {
	db := s.DB.WithContext(ctx)
	today := s.clock.Today()
	done := make(map[string]bool, len(challengeIDs))
	for _, id := range challengeIDs {
		ok, err := s.ledger.Completed(db, userID, id, today)
		if err != nil {
			return nil, storageErr(err)
		}
		done[id] = ok
	}
	return done, nil
}

// GetRecentCompletions returns the user's ledger rows from the last N days.
func (s *ProgressionService) GetRecentCompletions(ctx context.Context, userID string, days int) ([]models.CompletionRecord, error) {
	if days < 1 || days > 90 {
		days = 7
	}
	since := s.clock.Now().AddDate(0, 0, -days)
	var rows []models.CompletionRecord
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND completed_at >= ?", userID, since).
		Order("completed_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return rows, nil
}

func (s *ProgressionService) publish(ctx context.Context, ev events.Event) {
	ev.OccurredAt = s.clock.Now()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("Event publish failed", "type", ev.Type, "error", err)
	}
}
