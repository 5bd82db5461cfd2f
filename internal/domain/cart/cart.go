// Package cart models the session-scoped shopping cart and the store
// capability the storefront uses to read and mutate it.
package cart

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// MaxQuantity is the largest quantity a single line item may hold.
const MaxQuantity = 999

// ErrInvalidQuantity is returned when a line item would be created, merged or
// set with a quantity outside 1..MaxQuantity.
var ErrInvalidQuantity = errors.New("quantity must be between 1 and 999")

func validQuantity(n int) bool {
	return n > 0 && n <= MaxQuantity
}

// LineItem is a product snapshot together with the quantity in the cart.
type LineItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// NewLineItem snapshots p into a line item with the given quantity.
func NewLineItem(p product.Product, quantity int) LineItem {
	return LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  quantity,
	}
}

// LineTotal returns unit price multiplied by quantity.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an ordered snapshot of line items. Items keep insertion order.
type Cart struct {
	Items []LineItem `json:"items"`
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Count returns the sum of all line item quantities.
func (c *Cart) Count() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Total returns the sum of all line totals.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Add appends item, or merges its quantity into an existing line for the
// same product. The stored snapshot is refreshed with the incoming name and
// price. A merge that would exceed MaxQuantity leaves the cart unchanged.
func (c *Cart) Add(item LineItem) error {
	if !validQuantity(item.Quantity) {
		return ErrInvalidQuantity
	}
	if i := c.index(item.ProductID); i >= 0 {
		if item.Quantity > MaxQuantity-c.Items[i].Quantity {
			return ErrInvalidQuantity
		}
		item.Quantity += c.Items[i].Quantity
		c.Items[i] = item
		return nil
	}
	c.Items = append(c.Items, item)
	return nil
}

// SetQuantity sets the quantity of the line for productID. Unknown products
// are ignored.
func (c *Cart) SetQuantity(productID int64, quantity int) error {
	if !validQuantity(quantity) {
		return ErrInvalidQuantity
	}
	if i := c.index(productID); i >= 0 {
		c.Items[i].Quantity = quantity
	}
	return nil
}

// Remove drops the line for productID if present.
func (c *Cart) Remove(productID int64) {
	if i := c.index(productID); i >= 0 {
		c.Items = slices.Delete(c.Items, i, i+1)
	}
}

func (c *Cart) index(productID int64) int {
	return slices.IndexFunc(c.Items, func(it LineItem) bool {
		return it.ProductID == productID
	})
}

// Store persists carts keyed by cart ID (the browser session ID).
//
// Implementations assume a single writer per cart; concurrent mutation of
// the same cart from several requests is last-write-wins.
type Store interface {
	// Get returns the cart for cartID. A cart that was never written is
	// returned empty, not as an error.
	Get(ctx context.Context, cartID string) (*Cart, error)
	Add(ctx context.Context, cartID string, item LineItem) error
	SetQuantity(ctx context.Context, cartID string, productID int64, quantity int) error
	Remove(ctx context.Context, cartID string, productID int64) error
	Clear(ctx context.Context, cartID string) error
}
