package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"habit-progression-engine/models"
)

func TestRaidCompletesAtQuorumAndRewardsEveryMember(t *testing.T) {
	orders := [][]string{
		{"leader", "m1", "m2"},
		{"m2", "leader", "m1"},
		{"m1", "m2", "leader"},
	}
	for _, order := range orders {
		env := newTestEnv(t)
		ctx := context.Background()
		g := env.guildOf(t, "leader", "m1", "m2")

		raid, err := env.raids.CreateRaid(ctx, "leader", g.ID, "Slay the Procrastination Dragon", 50)
		if err != nil {
			t.Fatalf("CreateRaid: %v", err)
		}

		for i, u := range order {
			res, err := env.raids.ParticipateInRaid(ctx, u, raid.ID)
			if err != nil {
				t.Fatalf("order %v: participate %s: %v", order, u, err)
			}
			last := i == len(order)-1
			if res.RaidCompleted != last {
				t.Fatalf("order %v: after %s raid_completed = %v, want %v", order, u, res.RaidCompleted, last)
			}
		}

		for _, u := range []string{"leader", "m1", "m2"} {
			p := env.progress(t, u)
			if p.TotalXP != 50 {
				t.Errorf("order %v: %s xp = %d, want 50", order, u, p.TotalXP)
			}
			if p.Streak != 0 || p.TotalCompletions != 0 {
				t.Errorf("order %v: %s streak/completions = %d/%d, raid rewards must not move them", order, u, p.Streak, p.TotalCompletions)
			}
		}

		var guild models.Guild
		env.db.Where("id = ?", g.ID).First(&guild)
		if guild.TotalRaidsCompleted != 1 || guild.TotalXP != 50 {
			t.Errorf("order %v: guild raids/xp = %d/%d, want 1/50", order, guild.TotalRaidsCompleted, guild.TotalXP)
		}

		if _, err := env.raids.ParticipateInRaid(ctx, "m1", raid.ID); !errors.Is(err, ErrRaidClosed) {
			t.Errorf("order %v: participation after completion err = %v, want ErrRaidClosed", order, err)
		}
	}
}

func TestRaidParticipationIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.guildOf(t, "leader", "m1")

	raid, err := env.raids.CreateRaid(ctx, "leader", g.ID, "Inbox zero", 30)
	if err != nil {
		t.Fatalf("CreateRaid: %v", err)
	}
	if _, err := env.raids.ParticipateInRaid(ctx, "m1", raid.ID); err != nil {
		t.Fatalf("participate: %v", err)
	}
	res, err := env.raids.ParticipateInRaid(ctx, "m1", raid.ID)
	if err != nil {
		t.Fatalf("participate again: %v", err)
	}
	if !res.AlreadyJoined || res.RaidCompleted || res.Participants != 1 {
		t.Errorf("repeat participation = %+v, want already joined with 1 participant", res)
	}
}

func TestRaidRejectsOutsiders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.guildOf(t, "leader", "m1")
	env.guildOf(t, "rival")

	if _, err := env.raids.CreateRaid(ctx, "m1", g.ID, "Coup", 10); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("non-leader CreateRaid err = %v, want ErrNotAuthorized", err)
	}
	raid, err := env.raids.CreateRaid(ctx, "leader", g.ID, "Clean garage", 10)
	if err != nil {
		t.Fatalf("CreateRaid: %v", err)
	}
	for _, u := range []string{"rival", "loner"} {
		if _, err := env.raids.ParticipateInRaid(ctx, u, raid.ID); !errors.Is(err, ErrNotAuthorized) {
			t.Errorf("%s participate err = %v, want ErrNotAuthorized", u, err)
		}
	}
	if _, err := env.raids.ParticipateInRaid(ctx, "m1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown raid err = %v, want ErrNotFound", err)
	}
}

func TestRaidTimeoutPenalizesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.guildOf(t, "leader", "m1")
	env.setGold(t, "m1", 0)
	if err := env.db.Model(&models.UserProgress{}).Where("user_id = ?", "m1").Update("hp", 10).Error; err != nil {
		t.Fatalf("set hp: %v", err)
	}

	raid, err := env.raids.CreateRaid(ctx, "leader", g.ID, "Marathon training", 100)
	if err != nil {
		t.Fatalf("CreateRaid: %v", err)
	}
	if _, err := env.raids.ParticipateInRaid(ctx, "leader", raid.ID); err != nil {
		t.Fatalf("participate: %v", err)
	}

	env.now.advance(7 * 24 * time.Hour)
	raids, err := env.raids.ListRaids(ctx, "leader", g.ID)
	if err != nil {
		t.Fatalf("ListRaids: %v", err)
	}
	if raids[0].Status != models.RaidStatusActive {
		t.Fatalf("raid at exactly the budget = %s, want active", raids[0].Status)
	}

	env.now.advance(time.Minute)
	for i := 0; i < 2; i++ {
		raids, err = env.raids.ListRaids(ctx, "leader", g.ID)
		if err != nil {
			t.Fatalf("ListRaids #%d: %v", i, err)
		}
		if len(raids) != 1 || raids[0].Status != models.RaidStatusFailed {
			t.Fatalf("ListRaids #%d = %+v, want one failed raid", i, raids)
		}
		if raids[0].ParticipantCount != 1 {
			t.Errorf("participant count = %d, want 1", raids[0].ParticipantCount)
		}
		if hp := env.progress(t, "leader").HP; hp != 75 {
			t.Errorf("ListRaids #%d: leader hp = %d, want 75", i, hp)
		}
		if hp := env.progress(t, "m1").HP; hp != 0 {
			t.Errorf("ListRaids #%d: m1 hp = %d, want 0 (floored)", i, hp)
		}
	}

	if _, err := env.raids.ParticipateInRaid(ctx, "m1", raid.ID); !errors.Is(err, ErrRaidClosed) {
		t.Errorf("participation after failure err = %v, want ErrRaidClosed", err)
	}
	if n, err := env.raids.SweepExpiredRaids(ctx); err != nil || n != 0 {
		t.Errorf("sweep after failure = %d, %v; want 0", n, err)
	}
}

func TestParticipationAfterBudgetFailsRaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.guildOf(t, "leader", "m1")

	raid, err := env.raids.CreateRaid(ctx, "leader", g.ID, "Late", 10)
	if err != nil {
		t.Fatalf("CreateRaid: %v", err)
	}
	env.now.advance(8 * 24 * time.Hour)

	if _, err := env.raids.ParticipateInRaid(ctx, "m1", raid.ID); !errors.Is(err, ErrRaidClosed) {
		t.Fatalf("late participation err = %v, want ErrRaidClosed", err)
	}
	var stored models.GuildRaid
	env.db.Where("id = ?", raid.ID).First(&stored)
	if stored.Status != models.RaidStatusFailed || stored.FailedAt == nil {
		t.Errorf("raid = %s (failed_at %v), want failed", stored.Status, stored.FailedAt)
	}
	if hp := env.progress(t, "m1").HP; hp != 75 {
		t.Errorf("m1 hp = %d, want 75", hp)
	}
}

func TestSweepExpiredRaidsAcrossGuilds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.guildOf(t, "a")
	b := env.guildOf(t, "b", "b2")

	if _, err := env.raids.CreateRaid(ctx, "a", a.ID, "Old", 10); err != nil {
		t.Fatalf("CreateRaid: %v", err)
	}
	if _, err := env.raids.CreateRaid(ctx, "b", b.ID, "Old too", 10); err != nil {
		t.Fatalf("CreateRaid: %v", err)
	}
	env.now.advance(8 * 24 * time.Hour)
	if _, err := env.raids.CreateRaid(ctx, "b", b.ID, "Fresh", 10); err != nil {
		t.Fatalf("CreateRaid: %v", err)
	}

	n, err := env.raids.SweepExpiredRaids(ctx)
	if err != nil {
		t.Fatalf("SweepExpiredRaids: %v", err)
	}
	if n != 2 {
		t.Errorf("swept = %d, want 2", n)
	}
	var active int64
	env.db.Model(&models.GuildRaid{}).Where("status = ?", models.RaidStatusActive).Count(&active)
	if active != 1 {
		t.Errorf("active raids = %d, want 1", active)
	}
}

func TestApplyHPPenalty(t *testing.T) {
	cases := []struct{ hp, penalty, want int }{
		{100, 25, 75},
		{25, 25, 0},
		{10, 25, 0},
		{0, 25, 0},
	}
	for _, tc := range cases {
		if got := ApplyHPPenalty(tc.hp, tc.penalty); got != tc.want {
			t.Errorf("ApplyHPPenalty(%d, %d) = %d, want %d", tc.hp, tc.penalty, got, tc.want)
		}
	}
}

func TestRaidRewardsResolveMultipliersPerMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.guildOf(t, "leader", "m1")

	if err := env.db.Model(&models.Guild{}).Where("id = ?", g.ID).Update("treasury_gold", 500).Error; err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	if _, err := env.treasury.BuyUpgrade(ctx, "leader", g.ID, "xp_banner"); err != nil {
		t.Fatalf("BuyUpgrade: %v", err)
	}
	pet, err := env.pets.GrantPet(ctx, "m1", "Ember", models.PetRarityRare)
	if err != nil {
		t.Fatalf("GrantPet: %v", err)
	}
	if _, err := env.pets.ActivatePet(ctx, "m1", pet.ID); err != nil {
		t.Fatalf("ActivatePet: %v", err)
	}

	raid, err := env.raids.CreateRaid(ctx, "leader", g.ID, "Cold showers", 7)
	if err != nil {
		t.Fatalf("CreateRaid: %v", err)
	}
	for _, u := range []string{"leader", "m1"} {
		if _, err := env.raids.ParticipateInRaid(ctx, u, raid.ID); err != nil {
			t.Fatalf("participate %s: %v", u, err)
		}
	}

	// 7 * 1.20 = 8.4 for the leader; 7 * 1.10 * 1.20 = 9.24 for the pet owner.
	if xp := env.progress(t, "leader").TotalXP; xp != 8 {
		t.Errorf("leader xp = %d, want 8", xp)
	}
	if xp := env.progress(t, "m1").TotalXP; xp != 9 {
		t.Errorf("m1 xp = %d, want 9", xp)
	}

	var grown models.Pet
	if err := env.db.Where("id = ?", pet.ID).First(&grown).Error; err != nil {
		t.Fatalf("load pet: %v", err)
	}
	if grown.Level != 1 || grown.Experience != 7 {
		t.Errorf("pet level/exp = %d/%d, want 1/7 (base reward)", grown.Level, grown.Experience)
	}

	var guild models.Guild
	if err := env.db.Where("id = ?", g.ID).First(&guild).Error; err != nil {
		t.Fatalf("load guild: %v", err)
	}
	if guild.TotalXP != 7 || guild.TotalRaidsCompleted != 1 {
		t.Errorf("guild xp/raids = %d/%d, want 7/1", guild.TotalXP, guild.TotalRaidsCompleted)
	}
}

func TestListRaidsRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.guildOf(t, "leader", "m1")
	other := env.guildOf(t, "rival")

	raid, err := env.raids.CreateRaid(ctx, "leader", g.ID, "Read a book a week", 20)
	if err != nil {
		t.Fatalf("CreateRaid: %v", err)
	}
	env.now.advance(8 * 24 * time.Hour)

	for _, viewer := range []string{"stranger", "rival"} {
		if _, err := env.raids.ListRaids(ctx, viewer, g.ID); !errors.Is(err, ErrNotAuthorized) {
			t.Errorf("ListRaids by %s err = %v, want ErrNotAuthorized", viewer, err)
		}
	}

	var stored models.GuildRaid
	if err := env.db.Where("id = ?", raid.ID).First(&stored).Error; err != nil {
		t.Fatalf("load raid: %v", err)
	}
	if stored.Status != models.RaidStatusActive {
		t.Errorf("raid status after outsider list = %s, want active", stored.Status)
	}
	var hurt int64
	if err := env.db.Model(&models.UserProgress{}).Where("hp < ?", models.MaxHP).Count(&hurt).Error; err != nil {
		t.Fatalf("count hurt members: %v", err)
	}
	if hurt != 0 {
		t.Errorf("%d members lost hp after an outsider listed raids", hurt)
	}

	if raids, err := env.raids.ListRaids(ctx, "rival", other.ID); err != nil || len(raids) != 0 {
		t.Errorf("rival's own list = %v, %v; want empty", raids, err)
	}
}
