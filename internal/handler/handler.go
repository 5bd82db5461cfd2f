// Package handler implements the storefront's cart and checkout endpoints.
package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/category"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/identity"
	"github.com/xenking/kart-storefront/internal/session"
	"github.com/xenking/kart-storefront/internal/web"
)

// Views renders named HTML pages.
type Views interface {
	Render(w io.Writer, name string, page any) error
}

// Orders places orders for checked-out carts.
type Orders interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Confirmation, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// FlashTTL bounds how long an unread order confirmation is kept.
	FlashTTL time.Duration
	// Location is used to display order timestamps. Defaults to UTC.
	Location *time.Location
}

// Handler serves the cart workflow. Every endpoint works on the cart of the
// session established by session.Middleware.
type Handler struct {
	products   product.Repository
	categories category.Repository
	carts      cart.Store
	identity   identity.Provider
	orders     Orders
	flash      session.FlashStore
	views      Views

	flashTTL time.Duration
	loc      *time.Location
}

// NewHandler constructs a Handler with the required collaborators.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	categories category.Repository,
	carts cart.Store,
	ident identity.Provider,
	orders Orders,
	flash session.FlashStore,
	views Views,
) *Handler {
	h := &Handler{
		products:   products,
		categories: categories,
		carts:      carts,
		identity:   ident,
		orders:     orders,
		flash:      flash,
		views:      views,
		flashTTL:   cfg.FlashTTL,
		loc:        cfg.Location,
	}
	if h.flashTTL <= 0 {
		h.flashTTL = 10 * time.Minute
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	return h
}

// Routes registers the cart endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.Index)
		r.Get("/summary", h.Summary)
		r.Get("/add", h.AddToCart)
		r.Post("/add", h.AddToCart)
		r.Post("/update", h.UpdateQuantity)
		r.Post("/remove", h.RemoveFromCart)
		r.Post("/clear", h.ClearCart)
		r.Get("/checkout", h.Checkout)
		r.Post("/checkout/process", h.ProcessCheckout)
		r.Get("/checkout/confirmation", h.OrderConfirmation)
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, page any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.views.Render(w, name, page); err != nil {
		zctx.From(r.Context()).Error("Render page", zap.String("page", name), zap.Error(err))
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	h.render(w, r, status, web.PageError, web.ErrorPage{Title: title, Message: message})
}

// unavailable reports a collaborator failure as a transient error page.
func (h *Handler) unavailable(w http.ResponseWriter, r *http.Request, op string, err error) {
	zctx.From(r.Context()).Error(op, zap.Error(err))
	h.renderError(w, r, http.StatusServiceUnavailable,
		"Dịch vụ tạm thời không khả dụng",
		"Đã có lỗi xảy ra. Vui lòng thử lại sau ít phút.",
	)
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	h.renderError(w, r, http.StatusBadRequest, "Yêu cầu không hợp lệ", message)
}

func redirectToCart(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}
