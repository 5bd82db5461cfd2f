package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/kart-storefront/internal/session"
)

var _ session.FlashStore = (*FlashStore)(nil)

type flashEntry struct {
	value     []byte
	expiresAt time.Time
}

// FlashStore keeps one-shot values in memory. Expired values are dropped
// lazily on access and by Sweep.
type FlashStore struct {
	mu      sync.Mutex
	entries map[string]flashEntry
	now     func() time.Time
}

// NewFlashStore returns an empty FlashStore.
func NewFlashStore() *FlashStore {
	return &FlashStore{
		entries: make(map[string]flashEntry),
		now:     time.Now,
	}
}

func flashKey(sessionID, key string) string {
	return sessionID + "\x00" + key
}

func (s *FlashStore) Put(_ context.Context, sessionID, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[flashKey(sessionID, key)] = flashEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *FlashStore) Take(_ context.Context, sessionID, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := flashKey(sessionID, key)
	e, ok := s.entries[k]
	if !ok {
		return nil, session.ErrNoFlash
	}
	delete(s.entries, k)
	if !s.now().Before(e.expiresAt) {
		return nil, session.ErrNoFlash
	}
	return e.value, nil
}

// Sweep removes expired entries.
func (s *FlashStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (s *FlashStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}
