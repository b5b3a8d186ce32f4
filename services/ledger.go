package services

import (
	"errors"
	"fmt"

	"habit-progression-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerResult is the outcome of a completion attempt.
type LedgerResult struct {
	Accepted    bool
	AlreadyDone bool
	Record      *models.CompletionRecord
}

// CompletionLedger is the idempotency gate for every rewardable action.
// The insert itself resolves races: the unique index on (user, source, window)
// lets exactly one concurrent attempt through.
type CompletionLedger struct {
	clock *DayClock
}

func NewCompletionLedger(clock *DayClock) *CompletionLedger {
	return &CompletionLedger{clock: clock}
}

// WindowFor returns the ledger window for a source: today's date for daily
// repeating sources, "ever" for one-shot ones.
func (l *CompletionLedger) WindowFor(daily bool) string {
	if daily {
		return l.clock.Today()
	}
	return models.WindowEver
}

// TryComplete inserts the completion or detects that the window is already used.
// It must run inside the transaction that applies the reward.
func (l *CompletionLedger) TryComplete(tx *gorm.DB, userID string, sourceType models.SourceType, sourceID, window string) (LedgerResult, error) {
	rec := models.CompletionRecord{
		UserID:      userID,
		SourceType:  sourceType,
		SourceID:    sourceID,
		WindowKey:   window,
		CompletedAt: l.clock.Now(),
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return LedgerResult{}, fmt.Errorf("ledger insert %s/%s: %w", sourceType, sourceID, res.Error)
	}
	if res.RowsAffected == 0 {
		return LedgerResult{AlreadyDone: true}, nil
	}
	return LedgerResult{Accepted: true, Record: &rec}, nil
}

// RecordAwards stores the credited amounts on an accepted ledger row.
func (l *CompletionLedger) RecordAwards(tx *gorm.DB, rec *models.CompletionRecord, xp, gold int64) error {
	rec.XPAwarded = xp
	rec.GoldAwarded = gold
	return tx.Model(&models.CompletionRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{"xp_awarded": xp, "gold_awarded": gold}).Error
}

// Completed reports whether the window is already used. Read-only; not a gate.
func (l *CompletionLedger) Completed(tx *gorm.DB, userID, sourceID, window string) (bool, error) {
	var rec models.CompletionRecord
	err := tx.Where("user_id = ? AND source_id = ? AND window_key = ?", userID, sourceID, window).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
