package services

import (
	"errors"
	"testing"

	"habit-progression-engine/models"
)

func TestXPNeeded(t *testing.T) {
	cases := []struct {
		level int
		want  int64
	}{
		{0, 100},
		{1, 100},
		{2, 110},
		{3, 121},
		{4, 133},
		{10, 235},
	}
	for _, tc := range cases {
		if got := XPNeeded(tc.level); got != tc.want {
			t.Errorf("XPNeeded(%d) = %d, want %d", tc.level, got, tc.want)
		}
	}
}

func TestXPNeededNeverDecreases(t *testing.T) {
	prev := XPNeeded(1)
	for l := 2; l <= 400; l++ {
		cur := XPNeeded(l)
		if cur < prev {
			t.Fatalf("XPNeeded(%d) = %d < XPNeeded(%d) = %d", l, cur, l-1, prev)
		}
		prev = cur
	}
}

func TestApplyXPRollsOverSeveralLevels(t *testing.T) {
	p := &models.UserProgress{Level: 1}
	levels, err := ApplyXP(p, 331)
	if err != nil {
		t.Fatalf("ApplyXP: %v", err)
	}
	if levels != 3 {
		t.Errorf("levels gained = %d, want 3", levels)
	}
	if p.Level != 4 || p.XPInLevel != 0 {
		t.Errorf("level/xpInLevel = %d/%d, want 4/0", p.Level, p.XPInLevel)
	}
	if p.TotalXP != 331 {
		t.Errorf("TotalXP = %d, want 331", p.TotalXP)
	}
	if p.XPToNext != XPNeeded(4) {
		t.Errorf("XPToNext = %d, want %d", p.XPToNext, XPNeeded(4))
	}
}

func TestApplyXPStaysBelowThreshold(t *testing.T) {
	p := &models.UserProgress{Level: 1}
	for _, gain := range []int64{99, 1, 0, 50, 1_000_000} {
		if _, err := ApplyXP(p, gain); err != nil {
			t.Fatalf("ApplyXP(%d): %v", gain, err)
		}
		if p.XPInLevel >= XPNeeded(p.Level) {
			t.Fatalf("after +%d: xpInLevel %d >= needed %d", gain, p.XPInLevel, XPNeeded(p.Level))
		}
	}
}

func TestApplyXPRejectsNegative(t *testing.T) {
	p := &models.UserProgress{Level: 3, XPInLevel: 5, TotalXP: 215}
	if _, err := ApplyXP(p, -1); !errors.Is(err, ErrNegativeXP) {
		t.Fatalf("err = %v, want ErrNegativeXP", err)
	}
	if p.Level != 3 || p.XPInLevel != 5 || p.TotalXP != 215 {
		t.Errorf("progress mutated on rejected gain: %+v", p)
	}
}

func TestApplyPetXP(t *testing.T) {
	pet := &models.Pet{Level: 1, Experience: 90}
	levels, err := ApplyPetXP(pet, 20)
	if err != nil {
		t.Fatalf("ApplyPetXP: %v", err)
	}
	if levels != 1 || pet.Level != 2 || pet.Experience != 10 {
		t.Errorf("pet = level %d exp %d (+%d), want level 2 exp 10 (+1)", pet.Level, pet.Experience, levels)
	}
}
