package services

import (
	"errors"
	"fmt"
	"sort"

	"habit-progression-engine/models"

	"gorm.io/gorm"
)

// RewardKind selects which resource a multiplier applies to.
type RewardKind string

const (
	KindXP   RewardKind = "xp"
	KindGold RewardKind = "gold"
)

const basisPoints = 10000

// Multiplier is an exact rational factor ≥ 1. Composition multiplies numerators
// and denominators, so rounding only ever happens once, in Apply.
type Multiplier struct {
	num int64
	den int64
}

// One is the identity multiplier.
func One() Multiplier { return Multiplier{num: 1, den: 1} }

// FromBasisPoints builds a multiplier from bp/10000 (10500 → 1.05).
func FromBasisPoints(bp int64) Multiplier {
	return Multiplier{num: bp, den: basisPoints}.reduce()
}

// Times composes two multipliers.
func (m Multiplier) Times(o Multiplier) Multiplier {
	m = m.norm()
	o = o.norm()
	return Multiplier{num: m.num * o.num, den: m.den * o.den}.reduce()
}

// Apply returns floor(base × m).
func (m Multiplier) Apply(base int64) int64 {
	m = m.norm()
	if base <= 0 {
		return base
	}
	return base * m.num / m.den
}

// Float is for display only; never use it to compute rewards.
func (m Multiplier) Float() float64 {
	m = m.norm()
	return float64(m.num) / float64(m.den)
}

func (m Multiplier) String() string {
	return fmt.Sprintf("%.4f", m.Float())
}

func (m Multiplier) norm() Multiplier {
	if m.den == 0 {
		return One()
	}
	return m
}

func (m Multiplier) reduce() Multiplier {
	g := gcd(m.num, m.den)
	if g > 1 {
		return Multiplier{num: m.num / g, den: m.den / g}
	}
	return m
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// companionBonus is the active-pet bonus in basis points per rarity and kind.
var companionBonus = map[models.PetRarity]map[RewardKind]int64{
	models.PetRarityCommon:    {KindXP: 10500, KindGold: 10200},
	models.PetRarityRare:      {KindXP: 11000, KindGold: 10500},
	models.PetRarityEpic:      {KindXP: 11500, KindGold: 10800},
	models.PetRarityLegendary: {KindXP: 12000, KindGold: 11000},
}

// CompanionMultiplier returns the bonus an active pet of rarity gives for kind.
func CompanionMultiplier(rarity models.PetRarity, kind RewardKind) Multiplier {
	if byKind, ok := companionBonus[rarity]; ok {
		if bp, ok := byKind[kind]; ok {
			return FromBasisPoints(bp)
		}
	}
	return One()
}

// RewardMultipliers is the composed factor for both resources at one instant.
type RewardMultipliers struct {
	XP   Multiplier
	Gold Multiplier
}

func (m RewardMultipliers) For(kind RewardKind) Multiplier {
	if kind == KindGold {
		return m.Gold
	}
	return m.XP
}

// MultiplierResolver is the only place companion and guild bonuses are looked up
// and combined. Order is fixed: 1.0 × companion × guild upgrades.
type MultiplierResolver struct {
	clock *DayClock
}

func NewMultiplierResolver(clock *DayClock) *MultiplierResolver {
	return &MultiplierResolver{clock: clock}
}

// Resolve returns the composed multiplier for one kind.
func (r *MultiplierResolver) Resolve(tx *gorm.DB, userID string, kind RewardKind) (Multiplier, error) {
	both, err := r.ResolveAll(tx, userID)
	if err != nil {
		return One(), err
	}
	return both.For(kind), nil
}

// ResolveAll returns XP and gold multipliers with a single set of lookups.
func (r *MultiplierResolver) ResolveAll(tx *gorm.DB, userID string) (RewardMultipliers, error) {
	out := RewardMultipliers{XP: One(), Gold: One()}

	var pet models.Pet
	err := tx.Where("user_id = ? AND is_active = ?", userID, true).First(&pet).Error
	switch {
	case err == nil:
		out.XP = out.XP.Times(CompanionMultiplier(pet.Rarity, KindXP))
		out.Gold = out.Gold.Times(CompanionMultiplier(pet.Rarity, KindGold))
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return out, fmt.Errorf("resolve companion bonus: %w", err)
	}

	var member models.GuildMember
	err = tx.Where("user_id = ?", userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("resolve guild membership: %w", err)
	}

	var upgrades []models.GuildUpgrade
	if err := tx.Where("guild_id = ?", member.GuildID).Find(&upgrades).Error; err != nil {
		return out, fmt.Errorf("resolve guild upgrades: %w", err)
	}
	sort.Slice(upgrades, func(i, j int) bool { return upgrades[i].UpgradeID < upgrades[j].UpgradeID })

	now := r.clock.Now()
	for _, u := range upgrades {
		if !u.Active(now) {
			continue
		}
		spec, ok := UpgradeCatalog[u.UpgradeID]
		if !ok {
			continue
		}
		switch spec.Kind {
		case KindXP:
			out.XP = out.XP.Times(FromBasisPoints(spec.BonusBasisPoints))
		case KindGold:
			out.Gold = out.Gold.Times(FromBasisPoints(spec.BonusBasisPoints))
		}
	}
	return out, nil
}
