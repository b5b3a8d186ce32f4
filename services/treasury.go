package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habit-progression-engine/events"
	"habit-progression-engine/logger"
	"habit-progression-engine/metrics"
	"habit-progression-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpgradeSpec describes a purchasable guild upgrade.
type UpgradeSpec struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Kind             RewardKind    `json:"kind"`
	BonusBasisPoints int64         `json:"bonus_basis_points"` // 12000 → ×1.20
	Price            int64         `json:"price"`
	Duration         time.Duration `json:"duration"`
}

// UpgradeCatalog lists every upgrade a guild leader can buy.
var UpgradeCatalog = map[string]UpgradeSpec{
	"xp_banner": {
		ID:               "xp_banner",
		Name:             "Banner of Valor",
		Kind:             KindXP,
		BonusBasisPoints: 12000,
		Price:            500,
		Duration:         72 * time.Hour,
	},
	"gold_chalice": {
		ID:               "gold_chalice",
		Name:             "Golden Chalice",
		Kind:             KindGold,
		BonusBasisPoints: 11500,
		Price:            400,
		Duration:         72 * time.Hour,
	},
}

// DonationResult reports balances after a donation.
type DonationResult struct {
	GuildID      string `json:"guild_id"`
	Amount       int64  `json:"amount"`
	UserGold     int64  `json:"user_gold"`
	TreasuryGold int64  `json:"treasury_gold"`
}

type TreasuryService struct {
	DB     *gorm.DB
	log    *logger.Logger
	clock  *DayClock
	events events.Publisher
}

func NewTreasuryService(db *gorm.DB, log *logger.Logger, clock *DayClock, pub events.Publisher) *TreasuryService {
	if pub == nil {
		pub = events.Nop()
	}
	return &TreasuryService{DB: db, log: log.With("service", "TreasuryService"), clock: clock, events: pub}
}

// Donate moves amount gold from the user to their guild's treasury.
func (s *TreasuryService) Donate(ctx context.Context, userID string, amount int64) (*DonationResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	result := &DonationResult{Amount: amount}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := membershipOf(tx, userID)
		if err != nil {
			return err
		}
		result.GuildID = member.GuildID

		prog, err := ensureProgress(tx, userID, true)
		if err != nil {
			return err
		}
		if prog.Gold < amount {
			return fmt.Errorf("donate %d with %d gold: %w", amount, prog.Gold, ErrInsufficientBalance)
		}

		var guild models.Guild
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", member.GuildID).First(&guild).Error; err != nil {
			return notFound(err, "guild "+member.GuildID)
		}

		res := tx.Model(&models.UserProgress{}).
			Where("id = ? AND gold >= ?", prog.ID, amount).
			Update("gold", gorm.Expr("gold - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientBalance
		}
		if err := tx.Model(&models.Guild{}).Where("id = ?", guild.ID).
			Update("treasury_gold", gorm.Expr("treasury_gold + ?", amount)).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.GuildDonation{
			GuildID:   guild.ID,
			UserID:    userID,
			Amount:    amount,
			CreatedAt: s.clock.Now(),
		}).Error; err != nil {
			return err
		}

		result.UserGold = prog.Gold - amount
		result.TreasuryGold = guild.TreasuryGold + amount
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}

	metrics.TreasuryGold.WithLabelValues("in").Add(float64(amount))
	s.log.Info("Treasury donation", "user_id", userID, "guild_id", result.GuildID, "amount", amount, "treasury_gold", result.TreasuryGold)
	s.publish(ctx, events.Event{
		Type:    events.TreasuryChanged,
		UserID:  userID,
		GuildID: result.GuildID,
		Payload: map[string]interface{}{"donated": amount, "treasury_gold": result.TreasuryGold, "user_gold": result.UserGold},
	})
	return result, nil
}

// BuyUpgrade spends treasury gold on upgradeID. Buying an upgrade that is still
// running stacks the duration on top of the remaining time.
func (s *TreasuryService) BuyUpgrade(ctx context.Context, leaderID, guildID, upgradeID string) (*models.GuildUpgrade, error) {
	item, ok := UpgradeCatalog[upgradeID]
	if !ok {
		return nil, fmt.Errorf("upgrade %s: %w", upgradeID, ErrNotFound)
	}

	var upgrade models.GuildUpgrade
	var treasuryAfter int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var guild models.Guild
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", guildID).First(&guild).Error; err != nil {
			return notFound(err, "guild "+guildID)
		}
		if guild.LeaderID != leaderID {
			return ErrNotAuthorized
		}
		if guild.TreasuryGold < item.Price {
			return fmt.Errorf("upgrade costs %d, treasury holds %d: %w", item.Price, guild.TreasuryGold, ErrInsufficientBalance)
		}

		if err := tx.Model(&models.Guild{}).Where("id = ?", guild.ID).
			Update("treasury_gold", gorm.Expr("treasury_gold - ?", item.Price)).Error; err != nil {
			return err
		}
		treasuryAfter = guild.TreasuryGold - item.Price

		now := s.clock.Now()
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("guild_id = ? AND upgrade_id = ?", guild.ID, item.ID).
			First(&upgrade).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			upgrade = models.GuildUpgrade{
				GuildID:   guild.ID,
				UpgradeID: item.ID,
				ExpiresAt: now.Add(item.Duration),
			}
			return tx.Create(&upgrade).Error
		case err != nil:
			return err
		}

		upgrade.ExpiresAt = StackExpiry(now, upgrade.ExpiresAt, item.Duration)
		return tx.Model(&models.GuildUpgrade{}).Where("id = ?", upgrade.ID).
			Update("expires_at", upgrade.ExpiresAt).Error
	})
	if err != nil {
		return nil, storageErr(err)
	}

	metrics.TreasuryGold.WithLabelValues("out").Add(float64(item.Price))
	s.log.Info("Guild upgrade purchased", "guild_id", guildID, "upgrade_id", item.ID, "expires_at", upgrade.ExpiresAt, "treasury_gold", treasuryAfter)
	s.publish(ctx, events.Event{
		Type:    events.TreasuryChanged,
		UserID:  leaderID,
		GuildID: guildID,
		Payload: map[string]interface{}{"upgrade_id": item.ID, "expires_at": upgrade.ExpiresAt, "treasury_gold": treasuryAfter},
	})
	return &upgrade, nil
}

// StackExpiry extends from whichever is later, now or the current expiry.
func StackExpiry(now, current time.Time, d time.Duration) time.Time {
	base := now
	if current.After(now) {
		base = current
	}
	return base.Add(d)
}

// ActiveUpgrades lists the guild's upgrades that have not expired.
func (s *TreasuryService) ActiveUpgrades(ctx context.Context, guildID string) ([]models.GuildUpgrade, error) {
	var all []models.GuildUpgrade
	if err := s.DB.WithContext(ctx).Where("guild_id = ?", guildID).Order("upgrade_id ASC").Find(&all).Error; err != nil {
		return nil, storageErr(err)
	}
	now := s.clock.Now()
	active := make([]models.GuildUpgrade, 0, len(all))
	for _, u := range all {
		if u.Active(now) {
			active = append(active, u)
		}
	}
	return active, nil
}

// PruneExpiredUpgrades deletes upgrades that expired more than grace ago. An
// expired row and a missing row stack identically, so pruning never changes bonuses.
func (s *TreasuryService) PruneExpiredUpgrades(ctx context.Context, grace time.Duration) (int, error) {
	var all []models.GuildUpgrade
	if err := s.DB.WithContext(ctx).Find(&all).Error; err != nil {
		return 0, storageErr(err)
	}
	cutoff := s.clock.Now().Add(-grace)
	var stale []string
	for _, u := range all {
		if u.ExpiresAt.Before(cutoff) {
			stale = append(stale, u.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := s.DB.WithContext(ctx).Where("id IN ?", stale).Delete(&models.GuildUpgrade{}).Error; err != nil {
		return 0, storageErr(err)
	}
	return len(stale), nil
}

func (s *TreasuryService) publish(ctx context.Context, ev events.Event) {
	ev.OccurredAt = s.clock.Now()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("Event publish failed", "type", ev.Type, "error", err)
	}
}
