// Package redis persists run trails in Redis as append-only lists.
// The engine never depends on a store; callers feed one through the
// instance's transition hooks.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/loom/pkg/domain"
)

// Store implements ports.TrailStore using Redis lists.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithTTL sets the expiration for stored trails.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix for trails.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "loom:trail:",
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(runID string) string {
	return s.prefix + runID
}

// Append adds one entry to the run's trail.
func (s *Store) Append(ctx context.Context, runID string, entry domain.TrailEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trail entry: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.key(runID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(runID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append trail entry: %w", err)
	}
	return nil
}

// Load returns the stored trail in append order.
func (s *Store) Load(ctx context.Context, runID string) (domain.Trail, error) {
	items, err := s.client.LRange(ctx, s.key(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load trail: %w", err)
	}
	trail := make(domain.Trail, 0, len(items))
	for _, item := range items {
		var entry domain.TrailEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trail entry: %w", err)
		}
		trail = append(trail, entry)
	}
	return trail, nil
}

// Delete removes the stored trail.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, s.key(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete trail: %w", err)
	}
	return nil
}

// Hooks wires the store into an instance: every successful transition and
// every recorded failure is appended under the run id.
func (s *Store) Hooks(runID string, logger *slog.Logger) domain.Hooks {
	sink := func(_ string, entry domain.TrailEntry) {
		if err := s.Append(context.Background(), runID, entry); err != nil && logger != nil {
			logger.Warn("trail append failed", "err", err)
		}
	}
	return domain.Hooks{OnTransition: sink, OnFailure: sink}
}
