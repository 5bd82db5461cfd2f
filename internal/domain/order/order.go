package order

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
)

const (
	// IDLength is the number of characters in an order identifier.
	IDLength = 8
	// DateLayout renders order timestamps as dd/MM/yyyy HH:mm.
	DateLayout = "02/01/2006 15:04"
)

// NewID returns a fresh order identifier: the first IDLength characters of a
// random UUID, upper-cased. Identifiers are not checked for uniqueness.
func NewID() string {
	return strings.ToUpper(uuid.New().String()[:IDLength])
}

// Submission is the checkout form as entered by the customer. The Totals are
// echoed back when the form is redisplayed and are never trusted for
// pricing.
type Submission struct {
	CustomerName    string `form:"customerName" validate:"required,max=100"`
	Email           string `form:"email" validate:"omitempty,email,max=254"`
	ShippingAddress string `form:"shippingAddress" validate:"required,max=200"`
	City            string `form:"city" validate:"required,max=100"`
	State           string `form:"state" validate:"required,max=100"`
	ZipCode         string `form:"zipCode" validate:"required,max=20"`
	Note            string `form:"note" validate:"max=500"`

	Totals pricing.Totals `form:"-" validate:"-"`
}

// Normalize trims surrounding whitespace from every text field.
func (s *Submission) Normalize() {
	for _, f := range []*string{
		&s.CustomerName, &s.Email, &s.ShippingAddress,
		&s.City, &s.State, &s.ZipCode, &s.Note,
	} {
		*f = strings.TrimSpace(*f)
	}
}

// Confirmation is the transient record of a placed order shown once on the
// confirmation page. It is never persisted.
type Confirmation struct {
	OrderID       string    `json:"order_id"`
	PlacedAt      time.Time `json:"placed_at"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	EmailSent     bool      `json:"email_sent"`
}

// Email is a rendered order confirmation ready for dispatch.
type Email struct {
	OrderID  string
	PlacedAt time.Time
	Subject  string
	HTML     string
}

// Renderer builds the confirmation email for a checkout.
type Renderer interface {
	Render(sub Submission, items []cart.LineItem, totals pricing.Totals) (*Email, error)
}
