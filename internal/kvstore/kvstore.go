// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package kvstore provides namespaced, TTL-bounded storage on Redis. It
// backs two record families: one-time codes and verification tokens keyed
// by destination, and live session records keyed by the issued token.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"codeberg.org/oliverandrich/hubauth/internal/config"
)

// ErrNotFound is returned by Get when no record exists for the key. It is
// distinct from transport errors, which are passed through unchanged so
// callers can fail closed instead of treating an outage as "absent".
var ErrNotFound = errors.New("kvstore: record not found")

// DefaultOTPTTL is the fallback lifetime for one-time codes.
const DefaultOTPTTL = 5 * time.Minute

// DefaultEmailTokenTTL is the fallback lifetime for email tokens.
const DefaultEmailTokenTTL = 24 * time.Hour

// Store reads and writes records in one namespace with one default TTL.
// The namespace is the purpose string of the records it holds.
type Store struct {
	client *redis.Client
	ns     string
	ttl    time.Duration
}

// New creates a store for the given namespace and default TTL.
func New(client *redis.Client, namespace string, ttl time.Duration) *Store {
	return &Store{client: client, ns: namespace, ttl: ttl}
}

// ForSessions creates the session store. Records map an issued token to its
// subject user id and live for the configured number of days.
func ForSessions(client *redis.Client, cfg *config.AuthConfig) *Store {
	return New(client, "Authorization", cfg.SessionTTL())
}

// ForOTP creates a one-time code store for the given purpose.
func ForOTP(client *redis.Client, purpose string, cfg *config.AuthConfig) *Store {
	ttl := cfg.OTPTTLDuration()
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return New(client, purpose, ttl)
}

// ForEmailTokens creates a verification token store for the given purpose.
func ForEmailTokens(client *redis.Client, purpose string, cfg *config.AuthConfig) *Store {
	ttl := cfg.EmailTokenTTL()
	if ttl <= 0 {
		ttl = DefaultEmailTokenTTL
	}
	return New(client, purpose, ttl)
}

// Namespace returns the purpose string records are stored under.
func (s *Store) Namespace() string {
	return s.ns
}

func (s *Store) key(k string) string {
	return fmt.Sprintf("%s_%s", s.ns, k)
}

// Create stores value under the namespaced key with the store's TTL,
// overwriting any existing record.
func (s *Store) Create(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, s.ttl).Err()
}

// CreateWithTTL is Create with an explicit lifetime.
func (s *Store) CreateWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

// Get returns the stored value, or ErrNotFound when absent. An empty stored
// value and an absent record are distinguishable.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Revoke deletes the record. Revoking an absent key is not an error.
func (s *Store) Revoke(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Replace revokes any prior record for the key and stores a fresh one, so
// at most one record per (namespace, key) is ever live.
func (s *Store) Replace(ctx context.Context, key, value string) error {
	if err := s.Revoke(ctx, key); err != nil {
		return err
	}
	return s.Create(ctx, key, value)
}
