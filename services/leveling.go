package services

import (
	"math"

	"habit-progression-engine/models"
)

// BaseXPPerLevel is the experience needed to go from level 1 to level 2.
const BaseXPPerLevel = 100

// LevelGrowth is the per-level growth factor of the threshold curve.
const LevelGrowth = 1.1

// XPNeeded returns the experience required to leave level.
// XPNeeded(L) = floor(100 × 1.1^(L-1))
func XPNeeded(level int) int64 {
	if level < 1 {
		level = 1
	}
	v := math.Floor(BaseXPPerLevel * math.Pow(LevelGrowth, float64(level-1)))
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// advanceLevel adds gain to (level, xpInLevel) and rolls over as many levels as
// the gain covers. It always ends with xpInLevel < XPNeeded(level).
func advanceLevel(level int, xpInLevel, gain int64) (int, int64) {
	if level < 1 {
		level = 1
	}
	xpInLevel += gain
	for xpInLevel >= XPNeeded(level) {
		xpInLevel -= XPNeeded(level)
		level++
	}
	return level, xpInLevel
}

// ApplyXP credits gain to the progress record and returns how many levels were gained.
func ApplyXP(p *models.UserProgress, gain int64) (int, error) {
	if gain < 0 {
		return 0, ErrNegativeXP
	}
	before := p.Level
	p.TotalXP += gain
	p.Level, p.XPInLevel = advanceLevel(p.Level, p.XPInLevel, gain)
	p.XPToNext = XPNeeded(p.Level)
	return p.Level - before, nil
}

// ApplyPetXP grows a companion on the same curve as its owner.
func ApplyPetXP(pet *models.Pet, gain int64) (int, error) {
	if gain < 0 {
		return 0, ErrNegativeXP
	}
	before := pet.Level
	pet.Level, pet.Experience = advanceLevel(pet.Level, pet.Experience, gain)
	return pet.Level - before, nil
}
