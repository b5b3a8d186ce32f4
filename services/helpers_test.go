package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"habit-progression-engine/events"
	"habit-progression-engine/logger"
	"habit-progression-engine/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testTime is a settable clock source.
type testTime struct{ t time.Time }

func (tt *testTime) now() time.Time          { return tt.t }
func (tt *testTime) advance(d time.Duration) { tt.t = tt.t.Add(d) }

type testEnv struct {
	db          *gorm.DB
	now         *testTime
	clock       *DayClock
	progression *ProgressionService
	guilds      *GuildService
	treasury    *TreasuryService
	raids       *RaidService
	dungeons    *DungeonService
	pets        *PetService
	catalog     *CatalogService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "progression.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	now := &testTime{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	clock := NewDayClock(3 * time.Hour).WithNow(now.now)
	log := logger.Nop()
	progression := NewProgressionService(db, log, clock, events.Nop())

	return &testEnv{
		db:          db,
		now:         now,
		clock:       clock,
		progression: progression,
		guilds:      NewGuildService(db, log, clock),
		treasury:    NewTreasuryService(db, log, clock, events.Nop()),
		raids:       NewRaidService(progression, log, 7*24*time.Hour, 25),
		dungeons:    NewDungeonService(progression, log),
		pets:        NewPetService(db, log, clock),
		catalog:     NewCatalogService(db, log),
	}
}

func (e *testEnv) progress(t *testing.T, userID string) models.UserProgress {
	t.Helper()
	var p models.UserProgress
	if err := e.db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		t.Fatalf("load progress for %s: %v", userID, err)
	}
	return p
}

func (e *testEnv) setGold(t *testing.T, userID string, gold int64) {
	t.Helper()
	if _, err := e.progression.EnsureProgressRecord(context.Background(), userID); err != nil {
		t.Fatalf("ensure progress: %v", err)
	}
	if err := e.db.Model(&models.UserProgress{}).Where("user_id = ?", userID).Update("gold", gold).Error; err != nil {
		t.Fatalf("set gold: %v", err)
	}
}

// guildOf creates a guild led by leader with the given extra members.
func (e *testEnv) guildOf(t *testing.T, leader string, members ...string) *models.Guild {
	t.Helper()
	ctx := context.Background()
	g, err := e.guilds.CreateGuild(ctx, leader, "Guild of "+leader)
	if err != nil {
		t.Fatalf("create guild: %v", err)
	}
	for _, m := range members {
		if _, err := e.guilds.JoinGuild(ctx, m, g.ID); err != nil {
			t.Fatalf("join %s: %v", m, err)
		}
	}
	return g
}
