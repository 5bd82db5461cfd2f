// Package session assigns browser sessions and provides one-shot flash
// storage that survives exactly one redirect.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrNoFlash is returned by FlashStore.Take when no live value exists.
var ErrNoFlash = errors.New("no flash value")

// FlashStore holds short-lived values that are deleted by their first read.
type FlashStore interface {
	// Put stores value under key for the session, replacing any previous
	// value. The value expires after ttl even if never read.
	Put(ctx context.Context, sessionID, key string, value []byte, ttl time.Duration) error
	// Take returns and deletes the value. It returns ErrNoFlash when the
	// value is absent or expired.
	Take(ctx context.Context, sessionID, key string) ([]byte, error)
}

type sessionIDKey struct{}

// IDFromContext returns the session ID stored by Middleware.
func IDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithID returns a context carrying the session ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// CookieConfig configures the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// Middleware ensures every request carries a session ID. A valid UUID in the
// session cookie is reused; otherwise a new one is issued.
func Middleware(cfg CookieConfig) func(http.Handler) http.Handler {
	if cfg.Name == "" {
		cfg.Name = "kart_session"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cfg.Name); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.New().String()
			}

			// Refresh on every response so active sessions slide forward.
			http.SetCookie(w, &http.Cookie{
				Name:     cfg.Name,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cfg.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
		})
	}
}
