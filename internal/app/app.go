// Package app wires the storefront together and runs its HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/mail"
	"github.com/xenking/kart-storefront/internal/storage/memory"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
	"github.com/xenking/kart-storefront/internal/storage/redis"
	"github.com/xenking/kart-storefront/pkg/health"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.StoreName),
	)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.Goroutines(10000))
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.Ping("postgres", pool))

	b := Backends{
		Products:   postgres.NewProductRepository(pool),
		Categories: postgres.NewCategoryRepository(pool),
		Accounts:   postgres.NewAccountRepository(pool),
		Health:     healthSvc,
	}

	closeStores, err := openSessionStores(ctx, lg, cfg, &b)
	if err != nil {
		return err
	}
	defer closeStores()

	b.Mailer, err = newMailer(lg, cfg.Mail)
	if err != nil {
		return err
	}

	handler, err := NewRouter(ctx, cfg, lg, m.TracerProvider(), m.MeterProvider(), b)
	if err != nil {
		return errors.Wrap(err, "create router")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// openSessionStores fills the cart and flash stores: Redis when configured,
// process memory otherwise.
func openSessionStores(ctx context.Context, lg *zap.Logger, cfg *Config, b *Backends) (func(), error) {
	if cfg.Redis.Addr == "" {
		lg.Warn("Redis not configured, carts are kept in memory")
		flash := memory.NewFlashStore()
		flash.StartSweeper(ctx, time.Minute)
		carts := memory.NewCartStore(cfg.Session.CartTTL)
		carts.StartSweeper(ctx, time.Minute)
		b.Carts = carts
		b.Flash = flash
		return func() {}, nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	b.Health.Add(health.Readiness, "redis", 2*time.Second, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	b.Carts = redis.NewCartStore(client, cfg.Session.CartTTL)
	b.Flash = redis.NewFlashStore(client)

	return func() {
		if err := client.Close(); err != nil {
			lg.Warn("Close redis", zap.Error(err))
		}
	}, nil
}

func newMailer(lg *zap.Logger, cfg MailConfig) (mail.Sender, error) {
	if cfg.SendGridAPIKey == "" {
		lg.Warn("SendGrid API key not set, confirmation emails are only logged")
		return mail.LogSender{}, nil
	}
	s, err := mail.NewSendGridSender(mail.SendGridConfig{
		APIKey:   cfg.SendGridAPIKey,
		From:     cfg.From,
		FromName: cfg.FromName,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create sendgrid sender")
	}
	return s, nil
}
