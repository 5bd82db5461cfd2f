// Package web renders the storefront's HTML pages from embedded templates.
package web

import (
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/category"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/money"
)

// Page names accepted by Views.Render.
const (
	PageCart         = "cart"
	PageCheckout     = "checkout"
	PageConfirmation = "confirmation"
	PageError        = "error"
)

//go:embed templates/*.html
var templateFS embed.FS

// CartPage is the cart index view model.
type CartPage struct {
	Items []cart.LineItem
	Total decimal.Decimal
}

// CheckoutPage is the checkout form view model. Form and Errors carry the
// submitted values and field errors when the form is redisplayed.
type CheckoutPage struct {
	Items      []cart.LineItem
	Categories []category.Category
	Totals     pricing.Totals
	Form       order.Submission
	Errors     map[string]string
}

// ConfirmationPage shows the order taken from the one-shot flash. Order is
// nil when the page is opened without a preceding checkout.
type ConfirmationPage struct {
	Order    *order.Confirmation
	PlacedAt string
}

// ErrorPage is a generic error view.
type ErrorPage struct {
	Title   string
	Message string
}

type layoutData struct {
	Store string
	Year  int
	Page  any
}

// Config holds Views settings.
type Config struct {
	StoreName string
	Money     *money.Formatter
	Now       func() time.Time
}

// Views holds one parsed template set per page.
type Views struct {
	store string
	now   func() time.Time
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New(cfg Config) (*Views, error) {
	if cfg.Money == nil {
		cfg.Money = money.Default
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	base, err := template.New("layout.html").
		Funcs(template.FuncMap{"money": cfg.Money.Format}).
		ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse layout")
	}

	v := &Views{
		store: cfg.StoreName,
		now:   cfg.Now,
		pages: make(map[string]*template.Template),
	}
	for _, name := range []string{PageCart, PageCheckout, PageConfirmation, PageError} {
		t, err := base.Clone()
		if err != nil {
			return nil, errors.Wrapf(err, "clone layout for %s", name)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, errors.Wrapf(err, "parse %s", name)
		}
		v.pages[name] = t
	}
	return v, nil
}

// Render writes the named page with page as its view model.
func (v *Views) Render(w io.Writer, name string, page any) error {
	t, ok := v.pages[name]
	if !ok {
		return errors.Errorf("unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout", layoutData{
		Store: v.store,
		Year:  v.now().Year(),
		Page:  page,
	})
}
