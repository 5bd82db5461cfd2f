package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/session"
	"github.com/xenking/kart-storefront/internal/web"
)

const quantityMessage = "Số lượng phải từ 1 đến 999."

// Index renders the cart with its items and total.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), session.IDFromContext(r.Context()))
	if err != nil {
		h.unavailable(w, r, "Get cart", err)
		return
	}
	h.render(w, r, http.StatusOK, web.PageCart, web.CartPage{
		Items: c.Items,
		Total: c.Total(),
	})
}

// Summary reports the item count and total of the cart as JSON.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), session.IDFromContext(r.Context()))
	if err != nil {
		zctx.From(r.Context()).Error("Get cart", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("count")
	e.Int(c.Count())
	e.FieldStart("total")
	e.Str(c.Total().StringFixed(2))
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(e.Bytes())
}

// AddToCart adds quantity units of productId to the cart. The quantity
// defaults to 1 when omitted.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r.FormValue("productId"))
	if err != nil {
		h.badRequest(w, r, "Mã sản phẩm không hợp lệ.")
		return
	}
	qty, err := parseQuantity(r.FormValue("quantity"), 1)
	if err != nil || qty <= 0 || qty > cart.MaxQuantity {
		h.badRequest(w, r, quantityMessage)
		return
	}

	p, err := h.products.GetByID(ctx, id)
	switch {
	case errors.Is(err, product.ErrNotFound):
		h.renderError(w, r, http.StatusNotFound,
			"Không tìm thấy sản phẩm",
			"Sản phẩm bạn chọn không tồn tại hoặc đã ngừng kinh doanh.",
		)
		return
	case err != nil:
		h.unavailable(w, r, "Get product", err)
		return
	}

	if err := h.carts.Add(ctx, session.IDFromContext(ctx), cart.NewLineItem(*p, qty)); err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) {
			h.badRequest(w, r, quantityMessage)
			return
		}
		h.unavailable(w, r, "Add to cart", err)
		return
	}
	zctx.From(ctx).Debug("Added to cart", zap.Int64("product_id", id), zap.Int("quantity", qty))
	redirectToCart(w, r)
}

// UpdateQuantity sets the quantity of a line item. A quantity of zero or less
// removes the item.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r.PostFormValue("id"))
	if err != nil {
		h.badRequest(w, r, "Mã sản phẩm không hợp lệ.")
		return
	}
	qty, err := parseQuantity(r.PostFormValue("quantity"), 0)
	if err != nil {
		h.badRequest(w, r, "Số lượng không hợp lệ.")
		return
	}

	sid := session.IDFromContext(ctx)
	if qty <= 0 {
		err = h.carts.Remove(ctx, sid, id)
	} else {
		err = h.carts.SetQuantity(ctx, sid, id, qty)
	}
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		h.badRequest(w, r, quantityMessage)
		return
	case err != nil:
		h.unavailable(w, r, "Update cart", err)
		return
	}
	redirectToCart(w, r)
}

// RemoveFromCart deletes a line item. Unknown items are ignored.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PostFormValue("id"))
	if err != nil {
		h.badRequest(w, r, "Mã sản phẩm không hợp lệ.")
		return
	}
	if err := h.carts.Remove(r.Context(), session.IDFromContext(r.Context()), id); err != nil {
		h.unavailable(w, r, "Remove from cart", err)
		return
	}
	redirectToCart(w, r)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), session.IDFromContext(r.Context())); err != nil {
		h.unavailable(w, r, "Clear cart", err)
		return
	}
	redirectToCart(w, r)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse id")
	}
	if id <= 0 {
		return 0, errors.Errorf("invalid id %d", id)
	}
	return id, nil
}

func parseQuantity(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrap(err, "parse quantity")
	}
	return n, nil
}
