package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/kart-storefront/internal/session"
)

var _ session.FlashStore = (*FlashStore)(nil)

// FlashStore keeps one-shot values under flash:<session>:<key> and reads
// them with GETDEL.
type FlashStore struct {
	client *goredis.Client
}

// NewFlashStore returns a FlashStore using client.
func NewFlashStore(client *goredis.Client) *FlashStore {
	return &FlashStore{client: client}
}

func flashKey(sessionID, key string) string {
	return fmt.Sprintf("flash:%s:%s", sessionID, key)
}

func (s *FlashStore) Put(ctx context.Context, sessionID, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, flashKey(sessionID, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set flash: %w", err)
	}
	return nil
}

func (s *FlashStore) Take(ctx context.Context, sessionID, key string) ([]byte, error) {
	v, err := s.client.GetDel(ctx, flashKey(sessionID, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, session.ErrNoFlash
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel flash: %w", err)
	}
	return v, nil
}
