// Package orderemail renders the HTML order confirmation email.
//
// Rendering is pure: it produces an order identifier and a document, and
// leaves dispatch to the caller. Every customer-supplied field passes through
// html/template contextual escaping.
package orderemail

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/money"
)

//go:embed templates/confirmation.html
var templateFS embed.FS

var _ order.Renderer = (*Renderer)(nil)

// Config holds Renderer settings.
type Config struct {
	// StoreName appears in the header, subject, signature and footer.
	StoreName string
	// Location is used for the order timestamp. Defaults to UTC.
	Location *time.Location
	// Money formats amounts. Defaults to money.Default.
	Money *money.Formatter
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Renderer implements order.Renderer with an embedded HTML template.
type Renderer struct {
	storeName string
	loc       *time.Location
	money     *money.Formatter
	now       func() time.Time
	tmpl      *template.Template
}

// New parses the embedded template and returns a Renderer.
func New(cfg Config) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/confirmation.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse confirmation template")
	}

	r := &Renderer{
		storeName: cfg.StoreName,
		loc:       cfg.Location,
		money:     cfg.Money,
		now:       cfg.Now,
		tmpl:      tmpl,
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.money == nil {
		r.money = money.Default
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Subject returns the confirmation email subject line.
func (r *Renderer) Subject() string {
	return "Xác nhận đơn hàng - " + r.storeName
}

type itemView struct {
	Name      string
	Quantity  int
	UnitPrice string
	LineTotal string
}

type emailView struct {
	StoreName       string
	OrderID         string
	PlacedAt        string
	Year            int
	CustomerName    string
	ShippingAddress string
	City            string
	State           string
	ZipCode         string
	Note            string
	Items           []itemView
	Subtotal        string
	Tax             string
	ShippingFee     string
	Total           string
}

// Render produces a new order identifier and the confirmation document for
// sub. The totals are taken as given.
func (r *Renderer) Render(sub order.Submission, items []cart.LineItem, totals pricing.Totals) (*order.Email, error) {
	placedAt := r.now().In(r.loc)

	view := emailView{
		StoreName:       r.storeName,
		OrderID:         order.NewID(),
		PlacedAt:        placedAt.Format(order.DateLayout),
		Year:            placedAt.Year(),
		CustomerName:    sub.CustomerName,
		ShippingAddress: sub.ShippingAddress,
		City:            sub.City,
		State:           sub.State,
		ZipCode:         sub.ZipCode,
		Note:            sub.Note,
		Items:           make([]itemView, len(items)),
		Subtotal:        r.money.Format(totals.Subtotal),
		Tax:             r.money.Format(totals.Tax),
		ShippingFee:     r.money.Format(totals.ShippingFee),
		Total:           r.money.Format(totals.Total),
	}
	for i, it := range items {
		view.Items[i] = itemView{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: r.money.Format(it.Price),
			LineTotal: r.money.Format(it.LineTotal()),
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, errors.Wrap(err, "execute confirmation template")
	}

	return &order.Email{
		OrderID:  view.OrderID,
		PlacedAt: placedAt,
		Subject:  r.Subject(),
		HTML:     buf.String(),
	}, nil
}
