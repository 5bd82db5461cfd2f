package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/identity"
)

const (
	getAccountByHashSQL = `SELECT id, name, email, key_hash
		FROM accounts WHERE key_hash = $1 AND active`

	upsertAccountSQL = `INSERT INTO accounts (id, name, email, key_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			key_hash = EXCLUDED.key_hash`
)

var _ identity.Repository = (*AccountRepository)(nil)

// AccountRepository provides customer account lookups backed by PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns an AccountRepository that uses the given pool.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// FindByHash looks up an active account by its HMAC-SHA256 key hash.
// It returns identity.ErrUnauthorized when no matching account exists.
func (r *AccountRepository) FindByHash(ctx context.Context, hash string) (*identity.Account, error) {
	var a identity.Account
	err := r.pool.QueryRow(ctx, getAccountByHashSQL, hash).Scan(&a.ID, &a.Name, &a.Email, &a.KeyHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUnauthorized
		}
		return nil, fmt.Errorf("finding account by hash: %w", err)
	}
	return &a, nil
}

// Upsert inserts or replaces an account.
func (r *AccountRepository) Upsert(ctx context.Context, a identity.Account) error {
	if _, err := r.pool.Exec(ctx, upsertAccountSQL, a.ID, a.Name, a.Email, a.KeyHash); err != nil {
		return fmt.Errorf("upserting account %q: %w", a.ID, err)
	}
	return nil
}
