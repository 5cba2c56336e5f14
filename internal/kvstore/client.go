// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package kvstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"codeberg.org/oliverandrich/hubauth/internal/config"
)

// NewClient creates a pooled Redis client and verifies connectivity.
// The client is created once at startup and injected into every store;
// per-call connections are deliberately avoided.
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
