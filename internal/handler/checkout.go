package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/session"
	"github.com/xenking/kart-storefront/internal/web"
)

const confirmationFlashKey = "order_confirmation"

// Checkout shows the checkout form for a non-empty cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	page, err := h.checkoutPage(r, order.Submission{}, nil)
	if err != nil {
		h.unavailable(w, r, "Load checkout", err)
		return
	}
	if len(page.Items) == 0 {
		redirectToCart(w, r)
		return
	}
	h.render(w, r, http.StatusOK, web.PageCheckout, page)
}

// ProcessCheckout places the order and redirects to the confirmation page.
// An invalid form is redisplayed with the submitted values and the current
// cart.
func (h *Handler) ProcessCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := session.IDFromContext(ctx)

	account, err := h.identity.Current(ctx)
	if err != nil {
		h.unavailable(w, r, "Resolve identity", err)
		return
	}

	sub := submissionFromForm(r)
	req := order.PlaceOrderRequest{CartID: sid, Submission: sub}
	if account != nil {
		req.AccountEmail = account.Email
	}

	conf, err := h.orders.PlaceOrder(ctx, req)
	var verr *order.ValidationError
	switch {
	case errors.As(err, &verr):
		sub.Normalize()
		page, perr := h.checkoutPage(r, sub, verr.Fields)
		if perr != nil {
			h.unavailable(w, r, "Load checkout", perr)
			return
		}
		if len(page.Items) == 0 {
			redirectToCart(w, r)
			return
		}
		h.render(w, r, http.StatusUnprocessableEntity, web.PageCheckout, page)
		return
	case errors.Is(err, order.ErrEmptyCart):
		redirectToCart(w, r)
		return
	case err != nil:
		h.unavailable(w, r, "Place order", err)
		return
	}

	payload, err := json.Marshal(conf)
	if err != nil {
		h.unavailable(w, r, "Encode confirmation", err)
		return
	}
	if err := h.flash.Put(ctx, sid, confirmationFlashKey, payload, h.flashTTL); err != nil {
		// The order is already placed, so the confirmation page degrades to
		// its empty state.
		zctx.From(ctx).Warn("Store confirmation", zap.String("order_id", conf.OrderID), zap.Error(err))
	}
	http.Redirect(w, r, "/cart/checkout/confirmation", http.StatusSeeOther)
}

// OrderConfirmation shows the most recent order once.
func (h *Handler) OrderConfirmation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var page web.ConfirmationPage
	payload, err := h.flash.Take(ctx, session.IDFromContext(ctx), confirmationFlashKey)
	switch {
	case errors.Is(err, session.ErrNoFlash):
	case err != nil:
		h.unavailable(w, r, "Take confirmation", err)
		return
	default:
		var conf order.Confirmation
		if err := json.Unmarshal(payload, &conf); err != nil {
			zctx.From(ctx).Error("Decode confirmation", zap.Error(err))
			break
		}
		page.Order = &conf
		page.PlacedAt = conf.PlacedAt.In(h.loc).Format(order.DateLayout)
	}
	h.render(w, r, http.StatusOK, web.PageConfirmation, page)
}

// checkoutPage assembles the checkout view from the current cart and the
// category list. Totals are always recomputed from the cart.
func (h *Handler) checkoutPage(r *http.Request, form order.Submission, fieldErrors map[string]string) (web.CheckoutPage, error) {
	ctx := r.Context()

	c, err := h.carts.Get(ctx, session.IDFromContext(ctx))
	if err != nil {
		return web.CheckoutPage{}, errors.Wrap(err, "get cart")
	}
	if c.IsEmpty() {
		return web.CheckoutPage{}, nil
	}
	categories, err := h.categories.List(ctx)
	if err != nil {
		return web.CheckoutPage{}, errors.Wrap(err, "list categories")
	}

	totals := pricing.Compute(c.Items)
	form.Totals = totals
	return web.CheckoutPage{
		Items:      c.Items,
		Categories: categories,
		Totals:     totals,
		Form:       form,
		Errors:     fieldErrors,
	}, nil
}

func submissionFromForm(r *http.Request) order.Submission {
	return order.Submission{
		CustomerName:    r.PostFormValue("customerName"),
		Email:           r.PostFormValue("email"),
		ShippingAddress: r.PostFormValue("shippingAddress"),
		City:            r.PostFormValue("city"),
		State:           r.PostFormValue("state"),
		ZipCode:         r.PostFormValue("zipCode"),
		Note:            r.PostFormValue("note"),
	}
}
