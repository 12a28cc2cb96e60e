package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDayStateTTL keeps yesterday's state around for late-night sessions
const DefaultDayStateTTL = 48 * time.Hour

// RedisDayStore keeps day states in Redis so they survive restarts and are
// shared between instances
type RedisDayStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDayStore connects to redisURL (redis://host:port or redis://host:port/db)
func NewRedisDayStore(ctx context.Context, redisURL string) (*RedisDayStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Connected to Redis at %s", opts.Addr)
	return &RedisDayStore{client: client, prefix: "wordsrs:day:", ttl: DefaultDayStateTTL}, nil
}

func (r *RedisDayStore) key(userKey, date string) string {
	return r.prefix + dayKey(userKey, date)
}

func (r *RedisDayStore) Load(ctx context.Context, userKey, date string) (*DayState, error) {
	raw, err := r.client.Get(ctx, r.key(userKey, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewDayState(date), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load day state: %w", err)
	}

	state := NewDayState(date)
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("failed to decode day state: %w", err)
	}
	if state.Touched == nil {
		state.Touched = make(map[string]int)
	}
	return state, nil
}

func (r *RedisDayStore) Save(ctx context.Context, userKey string, state *DayState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode day state: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userKey, state.Date), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save day state: %w", err)
	}
	return nil
}

func (r *RedisDayStore) Clear(ctx context.Context, userKey, date string) error {
	return r.client.Del(ctx, r.key(userKey, date)).Err()
}

// Close closes the Redis connection
func (r *RedisDayStore) Close() error {
	return r.client.Close()
}
