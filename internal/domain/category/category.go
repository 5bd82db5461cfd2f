package category

import "context"

// Category groups products for storefront navigation.
type Category struct {
	ID   int64
	Name string
	Slug string
}

// Repository lists catalog categories.
type Repository interface {
	List(ctx context.Context) ([]Category, error)
}
