package app

import (
	"os"
	"time"
	_ "time/tzdata" // Timezone must resolve in minimal images.

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete storefront configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	StoreName    string `default:"WebSiteBanHang" usage:"Store name shown in pages and emails" flag:"store-name"`
	Timezone     string `default:"Asia/Ho_Chi_Minh" usage:"IANA zone for order timestamps"`
	APIKeyPepper string `usage:"HMAC pepper for customer API key hashing (KART_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Redis        RedisConfig
	Mail         MailConfig
	Session      SessionConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// RedisConfig selects the cart and flash backend. An empty Addr keeps both
// in process memory.
type RedisConfig struct {
	Addr     string `default:"" usage:"Redis address (host:port); empty uses in-memory stores"`
	Password string `default:"" usage:"Redis password"`
	DB       int    `default:"0" usage:"Redis database number"`
}

// MailConfig configures confirmation email delivery. Without an API key
// messages are only logged.
type MailConfig struct {
	From           string `default:"no-reply@websitebanhang.vn" usage:"Sender address"`
	FromName       string `default:"WebSiteBanHang" usage:"Sender display name" flag:"mail-from-name"`
	SendGridAPIKey string `default:"" usage:"SendGrid API key" flag:"sendgrid-api-key"`
}

// SessionConfig controls the session cookie and session-scoped storage.
type SessionConfig struct {
	CookieName string        `default:"kart_session" usage:"Session cookie name" flag:"session-cookie"`
	Secure     bool          `default:"false" usage:"Mark the session cookie Secure"`
	CartTTL    time.Duration `default:"168h" usage:"Idle lifetime of a cart and its cookie" flag:"cart-ttl"`
	FlashTTL   time.Duration `default:"10m" usage:"Lifetime of an unread order confirmation" flag:"flash-ttl"`
}

// RateLimitConfig controls the per-client limiter on state-changing
// requests.
type RateLimitConfig struct {
	Max        int           `default:"60" usage:"Max POST requests per window"`
	Window     time.Duration `default:"1m" usage:"Rate limit window duration"`
	TrustProxy bool          `default:"false" usage:"Key clients by the proxy-appended X-Forwarded-For hop" flag:"rate-limit-trust-proxy"`
}

// CORSConfig controls cross-origin access to the cart summary.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow the session cookie cross-origin" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and flags, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	if c.Session.FlashTTL <= 0 {
		return errors.New("session flash TTL must be positive")
	}
	if c.RateLimit.Max > 0 && c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	return nil
}

// location resolves Timezone, falling back to UTC.
func (c *Config) location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, errors.Wrapf(err, "load timezone %q", c.Timezone)
	}
	return loc, nil
}

// applyPlatformDefaults maps platform-provided variables with standard names
// (DATABASE_URL, REDIS_ADDR, PORT) to the KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = os.Getenv("REDIS_ADDR")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
