package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"habit-progression-engine/models"
)

func TestDailyChallengeOncePerDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ch, err := env.catalog.CreateDailyChallenge(ctx, "Drink water", 40, 10)
	if err != nil {
		t.Fatalf("CreateDailyChallenge: %v", err)
	}

	first, err := env.progression.CompleteDailyChallenge(ctx, "u1", ch.ID)
	if err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if first.AlreadyDone || first.XPAwarded != 40 || first.GoldAwarded != 10 {
		t.Fatalf("first completion = %+v", first)
	}
	before := env.progress(t, "u1")

	second, err := env.progression.CompleteDailyChallenge(ctx, "u1", ch.ID)
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if !second.AlreadyDone {
		t.Fatal("second completion on the same day was accepted")
	}
	after := env.progress(t, "u1")
	if after.TotalXP != before.TotalXP || after.Gold != before.Gold || after.Streak != before.Streak {
		t.Errorf("duplicate changed progress: before %+v after %+v", before, after)
	}

	env.now.advance(24 * time.Hour)
	third, err := env.progression.CompleteDailyChallenge(ctx, "u1", ch.ID)
	if err != nil {
		t.Fatalf("next-day completion: %v", err)
	}
	if third.AlreadyDone {
		t.Fatal("next-day completion was rejected")
	}
	p := env.progress(t, "u1")
	if p.TotalXP != 80 || p.Streak != 2 || p.TotalCompletions != 2 {
		t.Errorf("xp/streak/completions = %d/%d/%d, want 80/2/2", p.TotalXP, p.Streak, p.TotalCompletions)
	}
}

func TestCompleteTaskOneShot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task, err := env.catalog.CreateTask(ctx, "u1", "File taxes", 250, 20, models.TaskRepeatOnce)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	res, err := env.progression.CompleteTask(ctx, "u1", task.ID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.Window != models.WindowEver {
		t.Errorf("window = %s, want %s", res.Window, models.WindowEver)
	}
	if res.LevelsGained != 2 || res.Progress.Level != 3 || res.Progress.XPInLevel != 40 {
		t.Errorf("levels/level/xpInLevel = %d/%d/%d, want 2/3/40", res.LevelsGained, res.Progress.Level, res.Progress.XPInLevel)
	}
	if res.Progress.LastLevelUpAt == nil {
		t.Error("LastLevelUpAt not set on level up")
	}

	env.now.advance(48 * time.Hour)
	again, err := env.progression.CompleteTask(ctx, "u1", task.ID)
	if err != nil {
		t.Fatalf("CompleteTask again: %v", err)
	}
	if !again.AlreadyDone {
		t.Error("one-shot task rewarded twice")
	}
}

func TestCompleteTaskUnknownOrForeign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.progression.CompleteTask(ctx, "u1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown task err = %v, want ErrNotFound", err)
	}
	task, err := env.catalog.CreateTask(ctx, "owner", "Run", 10, 0, models.TaskRepeatDaily)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := env.progression.CompleteTask(ctx, "intruder", task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign task err = %v, want ErrNotFound", err)
	}
	var rows int64
	env.db.Model(&models.CompletionRecord{}).Count(&rows)
	if rows != 0 {
		t.Errorf("ledger rows after rejected completions = %d, want 0", rows)
	}
}

func TestInactiveDailyChallengeIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ch, err := env.catalog.CreateDailyChallenge(ctx, "Stretch", 10, 0)
	if err != nil {
		t.Fatalf("CreateDailyChallenge: %v", err)
	}
	env.db.Model(&models.DailyChallenge{}).Where("id = ?", ch.ID).Update("is_active", false)

	if _, err := env.progression.CompleteDailyChallenge(ctx, "u1", ch.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestActivePetGrowsFromBaseReward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pet, err := env.pets.GrantPet(ctx, "u1", "Pip", models.PetRarityLegendary)
	if err != nil {
		t.Fatalf("GrantPet: %v", err)
	}
	if _, err := env.pets.ActivatePet(ctx, "u1", pet.ID); err != nil {
		t.Fatalf("ActivatePet: %v", err)
	}
	task, err := env.catalog.CreateTask(ctx, "u1", "Read", 50, 10, models.TaskRepeatDaily)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	res, err := env.progression.CompleteTask(ctx, "u1", task.ID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.XPAwarded != 60 || res.GoldAwarded != 11 {
		t.Errorf("xp/gold awarded = %d/%d, want 60/11", res.XPAwarded, res.GoldAwarded)
	}

	var grown models.Pet
	env.db.Where("id = ?", pet.ID).First(&grown)
	if grown.Experience != 50 {
		t.Errorf("pet experience = %d, want 50 (base reward)", grown.Experience)
	}
}

func TestActivatePetKeepsOneActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, _ := env.pets.GrantPet(ctx, "u1", "A", models.PetRarityCommon)
	b, _ := env.pets.GrantPet(ctx, "u1", "B", models.PetRarityEpic)
	if _, err := env.pets.ActivatePet(ctx, "u1", a.ID); err != nil {
		t.Fatalf("activate a: %v", err)
	}
	if _, err := env.pets.ActivatePet(ctx, "u1", b.ID); err != nil {
		t.Fatalf("activate b: %v", err)
	}

	var active []models.Pet
	env.db.Where("user_id = ? AND is_active = ?", "u1", true).Find(&active)
	if len(active) != 1 || active[0].ID != b.ID {
		t.Errorf("active pets = %+v, want only %s", active, b.ID)
	}
	if _, err := env.pets.ActivatePet(ctx, "u2", a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("activating another user's pet err = %v, want ErrNotFound", err)
	}
}

func TestBadgesAwardedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task, err := env.catalog.CreateTask(ctx, "u1", "Walk", 10, 0, models.TaskRepeatDaily)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	res, err := env.progression.CompleteTask(ctx, "u1", task.ID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if len(res.BadgesAwarded) != 1 || res.BadgesAwarded[0] != "FIRST_STEP" {
		t.Fatalf("badges = %v, want [FIRST_STEP]", res.BadgesAwarded)
	}

	env.now.advance(24 * time.Hour)
	res, err = env.progression.CompleteTask(ctx, "u1", task.ID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if len(res.BadgesAwarded) != 0 {
		t.Errorf("badges on second completion = %v, want none", res.BadgesAwarded)
	}

	badges, err := NewBadgeService(env.db, env.clock).ListBadges(ctx, "u1")
	if err != nil {
		t.Fatalf("ListBadges: %v", err)
	}
	if len(badges) != 1 {
		t.Errorf("listed badges = %d, want 1", len(badges))
	}
}

func TestGetProgressCreatesDefault(t *testing.T) {
	env := newTestEnv(t)
	snap := env.progression.GetProgress(context.Background(), "fresh")
	if snap.Degraded {
		t.Fatal("healthy read reported degraded")
	}
	if snap.Progress.Level != 1 || snap.Progress.HP != models.MaxHP || snap.Progress.ID == "" {
		t.Errorf("fresh progress = %+v", snap.Progress)
	}
}

func TestGetProgressDegradesWithoutPersisting(t *testing.T) {
	env := newTestEnv(t)
	sqlDB, err := env.db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	_ = sqlDB.Close()

	snap := env.progression.GetProgress(context.Background(), "u1")
	if !snap.Degraded {
		t.Fatal("read with closed storage not degraded")
	}
	want := DefaultProgress("u1")
	if snap.Progress.Level != want.Level || snap.Progress.HP != want.HP || snap.Progress.XPToNext != want.XPToNext {
		t.Errorf("degraded snapshot = %+v, want %+v", snap.Progress, want)
	}
	if snap.Progress.ID != "" {
		t.Errorf("degraded snapshot has id %q; nothing should have been stored", snap.Progress.ID)
	}

	if _, err := env.progression.CompleteTask(context.Background(), "u1", "any"); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("mutation on closed storage err = %v, want ErrStorageUnavailable", err)
	}
}

func TestCompletedTodayFollowsDayWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.catalog.CreateDailyChallenge(ctx, "Meditate", 10, 0)
	if err != nil {
		t.Fatalf("CreateDailyChallenge: %v", err)
	}
	b, err := env.catalog.CreateDailyChallenge(ctx, "Walk", 10, 0)
	if err != nil {
		t.Fatalf("CreateDailyChallenge: %v", err)
	}
	if _, err := env.progression.CompleteDailyChallenge(ctx, "u1", a.ID); err != nil {
		t.Fatalf("CompleteDailyChallenge: %v", err)
	}

	done, err := env.progression.CompletedToday(ctx, "u1", []string{a.ID, b.ID})
	if err != nil {
		t.Fatalf("CompletedToday: %v", err)
	}
	if !done[a.ID] || done[b.ID] {
		t.Errorf("done = %v, want only %s", done, a.ID)
	}

	env.now.advance(24 * time.Hour)
	done, err = env.progression.CompletedToday(ctx, "u1", []string{a.ID})
	if err != nil {
		t.Fatalf("CompletedToday next day: %v", err)
	}
	if done[a.ID] {
		t.Error("yesterday's completion counted for today")
	}
}
