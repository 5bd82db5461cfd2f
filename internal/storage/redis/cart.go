// Package redis provides cart and flash stores backed by Redis, shared by
// every storefront instance.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps each cart as a JSON document under cart:<id>. Every write
// refreshes the TTL, so idle carts expire.
type CartStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewCartStore returns a CartStore whose carts expire after ttl of
// inactivity.
func NewCartStore(client *goredis.Client, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

func cartKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}

func (s *CartStore) Get(ctx context.Context, cartID string) (*cart.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(cartID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return &cart.Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &c, nil
}

func (s *CartStore) Add(ctx context.Context, cartID string, item cart.LineItem) error {
	return s.update(ctx, cartID, func(c *cart.Cart) error {
		return c.Add(item)
	})
}

func (s *CartStore) SetQuantity(ctx context.Context, cartID string, productID int64, quantity int) error {
	return s.update(ctx, cartID, func(c *cart.Cart) error {
		return c.SetQuantity(productID, quantity)
	})
}

func (s *CartStore) Remove(ctx context.Context, cartID string, productID int64) error {
	return s.update(ctx, cartID, func(c *cart.Cart) error {
		c.Remove(productID)
		return nil
	})
}

func (s *CartStore) Clear(ctx context.Context, cartID string) error {
	if err := s.client.Del(ctx, cartKey(cartID)).Err(); err != nil {
		return fmt.Errorf("redis delete cart: %w", err)
	}
	return nil
}

// update is a plain read-modify-write; concurrent writers to one cart are
// last-write-wins.
func (s *CartStore) update(ctx context.Context, cartID string, fn func(*cart.Cart) error) error {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}

	if c.IsEmpty() {
		return s.Clear(ctx, cartID)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(cartID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}
