package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var (
	// TaxRate is the flat tax applied to the subtotal.
	TaxRate = decimal.RequireFromString("0.10")
	// FreeShippingThreshold is the subtotal from which shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(500_000)
	// FlatShippingFee is charged below FreeShippingThreshold.
	FlatShippingFee = decimal.NewFromInt(30_000)
)

// Totals holds the money fields shown on checkout and in the confirmation
// email.
type Totals struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	ShippingFee decimal.Decimal
	Total       decimal.Decimal
}

// Compute prices a set of line items.
//
// Tax is subtotal*TaxRate rounded to 2 decimal places with banker's rounding
// (half to even). Shipping is free when the subtotal reaches
// FreeShippingThreshold. An empty slice yields a zero subtotal and the flat
// shipping fee.
func Compute(items []cart.LineItem) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	return FromSubtotal(subtotal)
}

// FromSubtotal derives tax, shipping and total from an already summed
// subtotal.
func FromSubtotal(subtotal decimal.Decimal) Totals {
	tax := subtotal.Mul(TaxRate).RoundBank(2)

	shipping := FlatShippingFee
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		ShippingFee: shipping,
		Total:       subtotal.Add(tax).Add(shipping),
	}
}
