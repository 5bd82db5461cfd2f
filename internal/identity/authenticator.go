package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// KeyCookie is the cookie that may carry an account API key.
const KeyCookie = "kart_key"

// Authenticator resolves accounts from API keys hashed with HMAC-SHA256.
type Authenticator struct {
	accounts Repository
	pepper   []byte
}

// NewAuthenticator creates an Authenticator with the given account
// repository and HMAC pepper.
func NewAuthenticator(accounts Repository, pepper []byte) *Authenticator {
	return &Authenticator{
		accounts: accounts,
		pepper:   pepper,
	}
}

// HashKey returns the hex HMAC-SHA256 of key under pepper.
func HashKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate looks up the account for key. It returns ErrUnauthorized for
// unknown keys.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (*Account, error) {
	hash := HashKey(key, a.pepper)

	acc, err := a.accounts.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "find account")
	}

	if subtle.ConstantTimeCompare([]byte(hash), []byte(acc.KeyHash)) != 1 {
		return nil, ErrUnauthorized
	}
	return acc, nil
}

// Middleware attaches the account for the request's API key to the context.
// Requests without a key pass through anonymously; unknown keys get 401.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestKey(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			acc, err := a.Authenticate(r.Context(), key)
			switch {
			case errors.Is(err, ErrUnauthorized):
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			case err != nil:
				zctx.From(r.Context()).Error("Authenticate", zap.Error(err))
				http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
				return
			}

			ctx := WithAccount(r.Context(), acc)
			ctx = zctx.With(ctx, zap.String("account_id", acc.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(KeyCookie); err == nil {
		return c.Value
	}
	return ""
}
