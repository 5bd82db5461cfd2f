package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/mail"
)

// --- Mock implementations ---

type mockCartStore struct {
	carts    map[string]*cart.Cart
	getErr   error
	clearErr error
	cleared  []string
}

func newCartStore(cartID string, items ...cart.LineItem) *mockCartStore {
	return &mockCartStore{carts: map[string]*cart.Cart{cartID: {Items: items}}}
}

func (m *mockCartStore) Get(_ context.Context, cartID string) (*cart.Cart, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.carts[cartID]
	if !ok {
		return &cart.Cart{}, nil
	}
	return c, nil
}

func (m *mockCartStore) Add(context.Context, string, cart.LineItem) error { return nil }

func (m *mockCartStore) SetQuantity(context.Context, string, int64, int) error { return nil }

func (m *mockCartStore) Remove(context.Context, string, int64) error { return nil }

func (m *mockCartStore) Clear(_ context.Context, cartID string) error {
	m.cleared = append(m.cleared, cartID)
	if m.clearErr != nil {
		return m.clearErr
	}
	delete(m.carts, cartID)
	return nil
}

type mockRenderer struct {
	gotSub    Submission
	gotTotals pricing.Totals
	err       error
}

func (m *mockRenderer) Render(sub Submission, _ []cart.LineItem, totals pricing.Totals) (*Email, error) {
	m.gotSub = sub
	m.gotTotals = totals
	if m.err != nil {
		return nil, m.err
	}
	return &Email{
		OrderID:  "ABCDEF12",
		PlacedAt: time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC),
		Subject:  "Xác nhận đơn hàng - Test",
		HTML:     "<html></html>",
	}, nil
}

type mockMailer struct {
	sent []mail.Message
	err  error
}

func (m *mockMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

// --- Helpers ---

func validSubmission() Submission {
	return Submission{
		CustomerName:    "Nguyen Van A",
		Email:           "form@example.com",
		ShippingAddress: "12 Le Loi",
		City:            "Ho Chi Minh",
		State:           "HCM",
		ZipCode:         "700000",
	}
}

func lineItem(id int64, price string, qty int) cart.LineItem {
	return cart.LineItem{ProductID: id, Name: "Item", Price: decimal.RequireFromString(price), Quantity: qty}
}

func newTestService(t *testing.T, carts cart.Store, r Renderer, m mail.Sender) *Service {
	t.Helper()
	svc, err := NewService(carts, r, m, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	return svc
}

// --- Tests ---

func TestPlaceOrder_AccountEmailTakesPrecedence(t *testing.T) {
	carts := newCartStore("s1", lineItem(1, "200000", 2))
	mailer := &mockMailer{}
	svc := newTestService(t, carts, &mockRenderer{}, mailer)

	conf, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CartID:       "s1",
		AccountEmail: "account@example.com",
		Submission:   validSubmission(),
	})
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "account@example.com", mailer.sent[0].To)
	assert.Equal(t, "Xác nhận đơn hàng - Test", mailer.sent[0].Subject)
	assert.Equal(t, "account@example.com", conf.CustomerEmail)
	assert.True(t, conf.EmailSent)
	assert.Equal(t, "ABCDEF12", conf.OrderID)
	assert.Equal(t, "Nguyen Van A", conf.CustomerName)
	assert.Equal(t, []string{"s1"}, carts.cleared)
}

func TestPlaceOrder_FallsBackToSubmittedEmail(t *testing.T) {
	carts := newCartStore("s1", lineItem(1, "10", 1))
	mailer := &mockMailer{}
	svc := newTestService(t, carts, &mockRenderer{}, mailer)

	conf, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CartID:     "s1",
		Submission: validSubmission(),
	})
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "form@example.com", mailer.sent[0].To)
	assert.Equal(t, "form@example.com", conf.CustomerEmail)
}

func TestPlaceOrder_NoEmailSkipsDispatch(t *testing.T) {
	carts := newCartStore("s1", lineItem(1, "10", 1))
	mailer := &mockMailer{}
	svc := newTestService(t, carts, &mockRenderer{}, mailer)

	sub := validSubmission()
	sub.Email = ""
	conf, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{CartID: "s1", Submission: sub})
	require.NoError(t, err)

	assert.Empty(t, mailer.sent)
	assert.False(t, conf.EmailSent)
	assert.Empty(t, conf.CustomerEmail)
	assert.Equal(t, []string{"s1"}, carts.cleared)
}

func TestPlaceOrder_ComputesTotals(t *testing.T) {
	carts := newCartStore("s1", lineItem(1, "300000", 2))
	renderer := &mockRenderer{}
	svc := newTestService(t, carts, renderer, &mockMailer{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{CartID: "s1", Submission: validSubmission()})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(600000).Equal(renderer.gotTotals.Subtotal))
	assert.True(t, decimal.NewFromInt(60000).Equal(renderer.gotTotals.Tax))
	assert.True(t, decimal.Zero.Equal(renderer.gotTotals.ShippingFee))
	assert.True(t, decimal.NewFromInt(660000).Equal(renderer.gotTotals.Total))
	assert.True(t, renderer.gotTotals.Total.Equal(renderer.gotSub.Totals.Total))
}

func TestPlaceOrder_MailFailureStillCompletes(t *testing.T) {
	carts := newCartStore("s1", lineItem(1, "10", 1))
	mailer := &mockMailer{err: errors.New("smtp down")}
	svc := newTestService(t, carts, &mockRenderer{}, mailer)

	conf, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{CartID: "s1", Submission: validSubmission()})
	require.NoError(t, err)

	assert.False(t, conf.EmailSent)
	assert.Equal(t, "form@example.com", conf.CustomerEmail)
	assert.Equal(t, []string{"s1"}, carts.cleared)
}

func TestPlaceOrder_ClearFailureIsNotFatal(t *testing.T) {
	carts := newCartStore("s1", lineItem(1, "10", 1))
	carts.clearErr = errors.New("redis timeout")
	svc := newTestService(t, carts, &mockRenderer{}, &mockMailer{})

	conf, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{CartID: "s1", Submission: validSubmission()})
	require.NoError(t, err)
	assert.True(t, conf.EmailSent)
}

func TestPlaceOrder_InvalidSubmission(t *testing.T) {
	carts := newCartStore("s1", lineItem(1, "10", 1))
	mailer := &mockMailer{}
	svc := newTestService(t, carts, &mockRenderer{}, mailer)

	sub := validSubmission()
	sub.CustomerName = "   "
	sub.Email = "not-an-email"

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{CartID: "s1", Submission: sub})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "customerName")
	assert.Contains(t, verr.Fields, "email")
	assert.Empty(t, mailer.sent)
	assert.Empty(t, carts.cleared)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	carts := newCartStore("s1")
	mailer := &mockMailer{}
	svc := newTestService(t, carts, &mockRenderer{}, mailer)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{CartID: "s1", Submission: validSubmission()})
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, mailer.sent)
	assert.Empty(t, carts.cleared)
}

func TestPlaceOrder_CartStoreError(t *testing.T) {
	carts := newCartStore("s1")
	carts.getErr = errors.New("connection refused")
	svc := newTestService(t, carts, &mockRenderer{}, &mockMailer{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{CartID: "s1", Submission: validSubmission()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get cart")
}

func TestPlaceOrder_RenderError(t *testing.T) {
	carts := newCartStore("s1", lineItem(1, "10", 1))
	mailer := &mockMailer{}
	svc := newTestService(t, carts, &mockRenderer{err: errors.New("template")}, mailer)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{CartID: "s1", Submission: validSubmission()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render confirmation")
	assert.Empty(t, mailer.sent)
	assert.Empty(t, carts.cleared)
}
