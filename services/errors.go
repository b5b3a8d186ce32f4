package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────

var (
	// Ledger
	ErrDuplicateCompletion = errors.New("already completed in this window")

	// Currency
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidInput        = errors.New("invalid input")

	// Access
	ErrNotAuthorized = errors.New("not authorized")

	// Lookup
	ErrNotFound = errors.New("resource not found")

	// State
	ErrRaidClosed      = errors.New("raid is no longer active")
	ErrDungeonInactive = errors.New("dungeon is not active")
	ErrAlreadyMember   = errors.New("user already belongs to a guild")
	ErrNegativeXP      = errors.New("experience gain must not be negative")

	// Storage
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// notFound maps gorm's missing-row error onto ErrNotFound, naming what was missing.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return storageErr(err)
}

// storageErr tags an infrastructure failure so handlers can answer 503.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if isDomainErr(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func isDomainErr(err error) bool {
	for _, target := range []error{
		ErrDuplicateCompletion, ErrInsufficientBalance, ErrInvalidAmount, ErrInvalidInput, ErrNotAuthorized,
		ErrNotFound, ErrRaidClosed, ErrDungeonInactive, ErrAlreadyMember, ErrNegativeXP,
		ErrStorageUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
