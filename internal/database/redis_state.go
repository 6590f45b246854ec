// Redis-based live status mirror. The bot's latest status snapshot is kept
// in Redis so dashboards can read it without touching the bot itself. Redis
// being down must never interrupt trading: every failure here is logged and
// swallowed.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crypto-trading-controller/internal/logging"
)

const (
	// statusKey holds the latest bot status snapshot.
	statusKey = "tradingbot:status"

	// statusTTL bounds staleness if the bot stops publishing.
	statusTTL = 10 * time.Minute
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// StateStore mirrors live bot state into Redis. A nil StateStore is valid
// and ignores all calls.
type StateStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewStateStore connects to Redis. Returns nil (not an error) when the
// mirror is disabled.
func NewStateStore(cfg RedisConfig) (*StateStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger := logging.Component("redis")
	logger.Info().Str("addr", cfg.Addr).Msg("connected to Redis")
	return &StateStore{client: client, logger: logger}, nil
}

// SaveStatus mirrors a status snapshot. Failures are logged, never returned.
func (s *StateStore) SaveStatus(ctx context.Context, status interface{}) {
	if s == nil {
		return
	}

	data, err := json.Marshal(status)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal bot status")
		return
	}

	if err := s.client.Set(ctx, statusKey, data, statusTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to mirror bot status")
	}
}

// LoadStatus reads the last mirrored status into dest. Returns false when no
// snapshot is available.
func (s *StateStore) LoadStatus(ctx context.Context, dest interface{}) bool {
	if s == nil {
		return false
	}

	data, err := s.client.Get(ctx, statusKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read bot status")
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		s.logger.Warn().Err(err).Msg("failed to decode bot status")
		return false
	}

	return true
}

// Close shuts the Redis connection down.
func (s *StateStore) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}
