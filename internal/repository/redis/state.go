// Package redis holds Redis-backed repositories.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
)

const stateKeyPrefix = "authstate:"

// StateStore stores single-use login state tokens in Redis with a TTL.
// GETDEL makes consumption atomic, so a state value can never be accepted
// twice even under concurrent callbacks.
type StateStore struct {
	client *goredis.Client
}

// NewStateStore creates a Redis-backed state store.
func NewStateStore(client *goredis.Client) *StateStore {
	return &StateStore{client: client}
}

// Issue stores the state token with the given time-to-live.
func (s *StateStore) Issue(ctx context.Context, state string, ttl time.Duration) error {
	if state == "" {
		return domain.ErrInvalidState
	}

	if err := s.client.Set(ctx, stateKeyPrefix+state, "1", ttl).Err(); err != nil {
		return fmt.Errorf("store login state: %w", err)
	}

	return nil
}

// Consume atomically removes the state token. It returns
// domain.ErrInvalidState when the token was never issued, already consumed,
// or expired; the caller cannot tell which.
func (s *StateStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return domain.ErrInvalidState
	}

	err := s.client.GetDel(ctx, stateKeyPrefix+state).Err()
	if errors.Is(err, goredis.Nil) {
		return domain.ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("consume login state: %w", err)
	}

	return nil
}
