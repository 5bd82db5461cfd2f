// Package memory provides process-local cart and flash stores for
// single-instance deployments and development.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

type cartEntry struct {
	cart    *cart.Cart
	touched time.Time
}

// CartStore keeps carts in a map. A cart expires ttl after its last write,
// the same idle lifetime the Redis store applies.
type CartStore struct {
	mu    sync.Mutex
	carts map[string]*cartEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewCartStore returns an empty CartStore. A zero ttl keeps carts until they
// are cleared.
func NewCartStore(ttl time.Duration) *CartStore {
	return &CartStore{
		carts: make(map[string]*cartEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *CartStore) expired(e *cartEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.touched) >= s.ttl
}

// lookup returns the live entry for cartID. s.mu must be held.
func (s *CartStore) lookup(cartID string) (*cartEntry, bool) {
	e, ok := s.carts[cartID]
	if !ok {
		return nil, false
	}
	if s.expired(e, s.now()) {
		delete(s.carts, cartID)
		return nil, false
	}
	return e, true
}

// Get returns a copy of the cart so callers cannot mutate stored state.
func (s *CartStore) Get(_ context.Context, cartID string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(cartID)
	if !ok {
		return &cart.Cart{}, nil
	}
	return &cart.Cart{Items: slices.Clone(e.cart.Items)}, nil
}

func (s *CartStore) Add(_ context.Context, cartID string, item cart.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(cartID)
	if !ok {
		e = &cartEntry{cart: &cart.Cart{}}
	}
	if err := e.cart.Add(item); err != nil {
		return err
	}
	e.touched = s.now()
	s.carts[cartID] = e
	return nil
}

func (s *CartStore) SetQuantity(_ context.Context, cartID string, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(cartID)
	if !ok {
		return (&cart.Cart{}).SetQuantity(productID, quantity)
	}
	if err := e.cart.SetQuantity(productID, quantity); err != nil {
		return err
	}
	e.touched = s.now()
	return nil
}

func (s *CartStore) Remove(_ context.Context, cartID string, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.lookup(cartID); ok {
		e.cart.Remove(productID)
		e.touched = s.now()
		if e.cart.IsEmpty() {
			delete(s.carts, cartID)
		}
	}
	return nil
}

func (s *CartStore) Clear(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, cartID)
	return nil
}

// Sweep removes carts idle for longer than the ttl.
func (s *CartStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.carts {
		if s.expired(e, now) {
			delete(s.carts, id)
		}
	}
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (s *CartStore) StartSweeper(ctx context.Context, interval time.Duration) {
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
