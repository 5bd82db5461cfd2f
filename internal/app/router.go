package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/category"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/handler"
	"github.com/xenking/kart-storefront/internal/identity"
	"github.com/xenking/kart-storefront/internal/mail"
	"github.com/xenking/kart-storefront/internal/orderemail"
	"github.com/xenking/kart-storefront/internal/session"
	"github.com/xenking/kart-storefront/internal/web"
	"github.com/xenking/kart-storefront/pkg/health"
	"github.com/xenking/kart-storefront/pkg/httpmiddleware"
)

// Backends are the storage and delivery dependencies of the router.
type Backends struct {
	Products   product.Repository
	Categories category.Repository
	Accounts   identity.Repository
	Carts      cart.Store
	Flash      session.FlashStore
	Mailer     mail.Sender
	Health     *health.Health
}

// NewRouter assembles the storefront HTTP handler. Background workers it
// starts stop with ctx.
func NewRouter(
	ctx context.Context,
	cfg *Config,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	b Backends,
) (http.Handler, error) {
	loc, err := cfg.location()
	if err != nil {
		lg.Warn("Falling back to UTC", zap.Error(err))
	}

	renderer, err := orderemail.New(orderemail.Config{
		StoreName: cfg.StoreName,
		Location:  loc,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create email renderer")
	}
	views, err := web.New(web.Config{StoreName: cfg.StoreName})
	if err != nil {
		return nil, errors.Wrap(err, "create views")
	}
	orders, err := order.NewService(b.Carts, renderer, b.Mailer, tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}

	h := handler.NewHandler(
		handler.HandlerConfig{FlashTTL: cfg.Session.FlashTTL, Location: loc},
		b.Products,
		b.Categories,
		b.Carts,
		identity.ContextProvider{},
		orders,
		b.Flash,
		views,
	)
	auth := identity.NewAuthenticator(b.Accounts, []byte(cfg.APIKeyPepper))

	shop := []httpmiddleware.Middleware{
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins:          cfg.CORS.Origins,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           int((24 * time.Hour).Seconds()),
		}),
	}
	if cfg.RateLimit.Max > 0 {
		key := httpmiddleware.ClientIP
		if cfg.RateLimit.TrustProxy {
			key = httpmiddleware.ForwardedIP
		}
		limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: key,
			Methods: []string{http.MethodPost},
		})
		go limiter.Run(ctx)
		shop = append(shop, httpmiddleware.RateLimit(limiter))
	}
	shop = append(shop,
		session.Middleware(session.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.Secure,
			MaxAge: cfg.Session.CartTTL,
		}),
		auth.Middleware(),
	)

	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests(), httpmiddleware.Labeler())
	if b.Health != nil {
		b.Health.Routes(r)
	}
	r.Group(func(r chi.Router) {
		r.Use(shop...)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/cart", http.StatusFound)
		})
		h.Routes(r)
	})

	return httpmiddleware.Wrap(r,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.Instrument("storefront", tp, mp),
	), nil
}
