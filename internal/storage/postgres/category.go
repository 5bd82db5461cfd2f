package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/category"
)

const (
	listCategoriesSQL = `SELECT id, name, slug FROM categories ORDER BY name, id`

	upsertCategorySQL = `INSERT INTO categories (id, name, slug)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug`
)

var _ category.Repository = (*CategoryRepository)(nil)

// CategoryRepository implements category.Repository backed by PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]category.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (category.Category, error) {
		var c category.Category
		err := row.Scan(&c.ID, &c.Name, &c.Slug)
		return c, err
	})
}

// Upsert inserts or replaces a category.
func (r *CategoryRepository) Upsert(ctx context.Context, c category.Category) error {
	if _, err := r.pool.Exec(ctx, upsertCategorySQL, c.ID, c.Name, c.Slug); err != nil {
		return fmt.Errorf("upserting category %d: %w", c.ID, err)
	}
	return nil
}
