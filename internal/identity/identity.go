// Package identity resolves the signed-in customer, if any, from API-key
// credentials.
package identity

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for credentials that do not match an account.
var ErrUnauthorized = errors.New("unauthorized")

// Account is a registered customer.
type Account struct {
	ID      string
	Name    string
	Email   string
	KeyHash string
}

// Repository provides lookup of accounts by the HMAC hash of their key.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Account, error)
}

// Provider reports the customer behind the current request. It returns
// (nil, nil) for anonymous requests.
type Provider interface {
	Current(ctx context.Context) (*Account, error)
}

type accountKey struct{}

// WithAccount returns a context carrying the signed-in account.
func WithAccount(ctx context.Context, a *Account) context.Context {
	return context.WithValue(ctx, accountKey{}, a)
}

// FromContext returns the account stored by the authenticator, or nil.
func FromContext(ctx context.Context) *Account {
	a, _ := ctx.Value(accountKey{}).(*Account)
	return a
}

// ContextProvider implements Provider by reading the request context
// populated by Authenticator.
type ContextProvider struct{}

var _ Provider = ContextProvider{}

// Current returns the account in ctx, or nil.
func (ContextProvider) Current(ctx context.Context) (*Account, error) {
	return FromContext(ctx), nil
}
