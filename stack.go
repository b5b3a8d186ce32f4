package main

import (
	"context"
	"fmt"

	"habit-progression-engine/config"
	"habit-progression-engine/events"
	"habit-progression-engine/handlers"
	"habit-progression-engine/logger"
	"habit-progression-engine/models"
	"habit-progression-engine/services"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// stack owns the long-lived handles shared by every command.
type stack struct {
	db        *gorm.DB
	publisher events.Publisher
	services  handlers.Services
}

func newStack(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stack, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(models.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	pub := events.Nop()
	if cfg.RedisAddr != "" {
		p, err := events.NewRedisPublisher(log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			log.Warn("⚠️  Redis unavailable, events disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			pub = p
		}
	}

	clock := services.NewDayClock(cfg.DayBoundaryOffset)
	progression := services.NewProgressionService(db, log, clock, pub)

	return &stack{
		db:        db,
		publisher: pub,
		services: handlers.Services{
			Progression: progression,
			Badges:      services.NewBadgeService(db, clock),
			Catalog:     services.NewCatalogService(db, log),
			Dungeons:    services.NewDungeonService(progression, log),
			Pets:        services.NewPetService(db, log, clock),
			Guilds:      services.NewGuildService(db, log, clock),
			Treasury:    services.NewTreasuryService(db, log, clock, pub),
			Raids:       services.NewRaidService(progression, log, cfg.RaidTimeBudget, cfg.RaidFailHPPenalty),
		},
	}, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		dialector = postgres.Open(cfg.DatabaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBDriver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func (s *stack) Close() {
	_ = s.publisher.Close()
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
