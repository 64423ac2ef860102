// Package draftstore persists experience wizard drafts in Redis.
package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ryfty/ryfty-payments/internal/wizard"
)

const (
	keyPrefix = "ryfty:draft:"
	// DefaultTTL matches how long the browser kept unfinished forms.
	DefaultTTL = 7 * 24 * time.Hour
)

// Store keeps one JSON-encoded wizard per owner with a sliding expiry.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Store. A non-positive ttl uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func key(owner string) string {
	return keyPrefix + owner
}

// Load returns the saved wizard or wizard.ErrNoDraft.
func (s *Store) Load(ctx context.Context, owner string) (*wizard.Wizard, error) {
	raw, err := s.client.Get(ctx, key(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, wizard.ErrNoDraft
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	var w wizard.Wizard
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &w, nil
}

// Save stores w and restarts its expiry.
func (s *Store) Save(ctx context.Context, owner string, w *wizard.Wizard) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := s.client.Set(ctx, key(owner), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Delete removes the owner's draft. Deleting a missing draft is not an error.
func (s *Store) Delete(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, key(owner)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}
