//go:build integration

package app

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/category"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/identity"
	"github.com/xenking/kart-storefront/internal/mail"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
	"github.com/xenking/kart-storefront/pkg/health"
)

type capturingMailer struct {
	sent chan mail.Message
}

func (m *capturingMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent <- msg
	return nil
}

// startStorefront runs the full router against PostgreSQL in a container and
// Redis-backed session stores.
func startStorefront(t *testing.T) (*httptest.Server, *capturingMailer) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("kart"),
		tcpostgres.WithUsername("kart"),
		tcpostgres.WithPassword("kart"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.RunMigrations(ctx, pool))

	categories := postgres.NewCategoryRepository(pool)
	products := postgres.NewProductRepository(pool)
	accounts := postgres.NewAccountRepository(pool)
	require.NoError(t, categories.Upsert(ctx, category.Category{ID: 1, Name: "Phụ kiện", Slug: "phu-kien"}))
	require.NoError(t, products.Upsert(ctx, product.Product{
		ID: 1, Name: "Mũ", Price: decimal.NewFromInt(200000), CategoryID: 1,
	}))
	require.NoError(t, accounts.Upsert(ctx, identity.Account{
		ID: "acc-1", Name: "Lan", Email: "member@example.com",
		KeyHash: identity.HashKey("member-key", []byte(testPepper)),
	}))

	cfg := testConfig()
	cfg.Redis.Addr = miniredis.RunT(t).Addr()

	hs := health.New()
	hs.Add(health.Readiness, "postgres", time.Second, health.Ping("postgres", pool))
	hs.SetReady(true)

	mailer := &capturingMailer{sent: make(chan mail.Message, 4)}
	b := Backends{
		Products:   products,
		Categories: categories,
		Accounts:   accounts,
		Mailer:     mailer,
		Health:     hs,
	}
	closeStores, err := openSessionStores(t.Context(), zap.NewNop(), cfg, &b)
	require.NoError(t, err)
	t.Cleanup(closeStores)

	h, err := NewRouter(t.Context(), cfg, zap.NewNop(),
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(), b)
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, mailer
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestIntegration_Checkout(t *testing.T) {
	srv, mailer := startStorefront(t)
	client := newClient(t)

	resp, err := client.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.PostForm(srv.URL+"/cart/add", url.Values{"productId": {"1"}, "quantity": {"2"}})
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Mũ")
	assert.Contains(t, body, "400.000 đ")

	resp, err = client.Get(srv.URL + "/cart/add?productId=42")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.PostForm(srv.URL+"/cart/checkout/process", url.Values{
		"customerName":    {"Lan"},
		"email":           {"lan@example.com"},
		"shippingAddress": {"1 Lê Lợi"},
		"city":            {"Huế"},
		"state":           {"TT Huế"},
		"zipCode":         {"530000"},
	})
	require.NoError(t, err)
	body = readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `id="order-id"`)

	select {
	case msg := <-mailer.sent:
		assert.Equal(t, "lan@example.com", msg.To)
		assert.Contains(t, msg.HTML, "470.000 đ")
	default:
		t.Fatal("no confirmation email sent")
	}

	resp, err = client.Get(srv.URL + "/cart/summary")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":0,"total":"0.00"}`, readBody(t, resp))
}

func TestIntegration_AccountEmail(t *testing.T) {
	srv, mailer := startStorefront(t)
	client := newClient(t)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	client.Jar.SetCookies(u, []*http.Cookie{{Name: identity.KeyCookie, Value: "member-key"}})

	resp, err := client.PostForm(srv.URL+"/cart/add", url.Values{"productId": {"1"}})
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = client.PostForm(srv.URL+"/cart/checkout/process", url.Values{
		"customerName":    {"Lan"},
		"email":           {"typed@example.com"},
		"shippingAddress": {"1 Lê Lợi"},
		"city":            {"Huế"},
		"state":           {"TT Huế"},
		"zipCode":         {"530000"},
	})
	require.NoError(t, err)
	_ = resp.Body.Close()

	select {
	case msg := <-mailer.sent:
		assert.Equal(t, "member@example.com", msg.To)
	default:
		t.Fatal("no confirmation email sent")
	}
}
