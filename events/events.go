package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"habit-progression-engine/logger"
)

type Type string

const (
	ProgressUpdated Type = "progress.updated"
	RaidCompleted   Type = "raid.completed"
	RaidFailed      Type = "raid.failed"
	ThemeUnlocked   Type = "theme.unlocked"
	TreasuryChanged Type = "treasury.changed"
)

// Event is published after the transaction that produced it commits.
type Event struct {
	Type       Type                   `json:"type"`
	UserID     string                 `json:"user_id,omitempty"`
	GuildID    string                 `json:"guild_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type nopPublisher struct{}

// Nop drops every event.
func Nop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }

type redisPublisher struct {
	log     *logger.Logger
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher connects to addr and publishes JSON events on channel.
func NewRedisPublisher(log *logger.Logger, addr, channel string) (Publisher, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = "progression"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisPublisher{
		log:     log.With("service", "RedisPublisher"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (p *redisPublisher) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

func (p *redisPublisher) Close() error {
	return p.rdb.Close()
}
