package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/mail"
)

// ErrEmptyCart is returned when checkout is attempted on an empty cart.
var ErrEmptyCart = errors.New("cart is empty")

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	// CartID identifies the session cart to check out.
	CartID string
	// AccountEmail is the signed-in customer's address. When set it takes
	// precedence over Submission.Email.
	AccountEmail string
	Submission   Submission
}

// Service runs the checkout sequence: price the cart, render and send the
// confirmation email, then clear the cart.
type Service struct {
	carts    cart.Store
	renderer Renderer
	mailer   mail.Sender

	tracer        trace.Tracer
	placed        metric.Int64Counter
	emailFailures metric.Int64Counter
}

// NewService creates an order Service with the required collaborators.
func NewService(
	carts cart.Store,
	renderer Renderer,
	mailer mail.Sender,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter("kart/order")

	placed, err := meter.Int64Counter("kart.orders.placed",
		metric.WithDescription("Orders checked out"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create placed counter")
	}
	emailFailures, err := meter.Int64Counter("kart.orders.email_failures",
		metric.WithDescription("Order confirmation emails that could not be sent"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create email failures counter")
	}

	return &Service{
		carts:         carts,
		renderer:      renderer,
		mailer:        mailer,
		tracer:        tp.Tracer("kart/order"),
		placed:        placed,
		emailFailures: emailFailures,
	}, nil
}

// PlaceOrder validates the submission, prices the cart, sends the
// confirmation email and clears the cart.
//
// A failed email does not fail the order: the returned Confirmation has
// EmailSent set to false. An invalid submission yields *ValidationError and
// an empty cart ErrEmptyCart; in both cases nothing is sent or cleared.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Confirmation, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	sub := req.Submission
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	c, err := s.carts.Get(ctx, req.CartID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	email := req.AccountEmail
	if email == "" {
		email = sub.Email
	}

	totals := pricing.Compute(c.Items)
	sub.Totals = totals

	rendered, err := s.renderer.Render(sub, c.Items, totals)
	if err != nil {
		return nil, errors.Wrap(err, "render confirmation")
	}
	span.SetAttributes(
		attribute.String("order.id", rendered.OrderID),
		attribute.Int("order.items", len(c.Items)),
	)

	lg := zctx.From(ctx).With(zap.String("order_id", rendered.OrderID))

	sent := false
	if email != "" {
		err := s.mailer.Send(ctx, mail.Message{
			To:      email,
			Subject: rendered.Subject,
			HTML:    rendered.HTML,
		})
		if err != nil {
			s.emailFailures.Add(ctx, 1)
			lg.Error("Send order confirmation", zap.Error(err))
		} else {
			sent = true
		}
	}

	// The confirmation may already be delivered, so clearing is best effort.
	if err := s.carts.Clear(ctx, req.CartID); err != nil {
		lg.Warn("Clear cart after checkout", zap.Error(err))
	}

	s.placed.Add(ctx, 1)
	lg.Info("Order placed",
		zap.Int("items", len(c.Items)),
		zap.String("total", totals.Total.String()),
		zap.Bool("email_sent", sent),
	)

	return &Confirmation{
		OrderID:       rendered.OrderID,
		PlacedAt:      rendered.PlacedAt,
		CustomerName:  sub.CustomerName,
		CustomerEmail: email,
		EmailSent:     sent,
	}, nil
}
