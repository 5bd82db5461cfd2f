package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/category"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

type categoryJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type productJSON struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	CategoryID int64           `json:"categoryId"`
	ImageURL   string          `json:"imageUrl"`
}

// openSeed opens path for reading, transparently decompressing .gz files.
func openSeed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if filepath.Ext(path) != ".gz" {
		return f, nil
	}
	gz, err := pgzip.NewReader(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "gzip reader for %s", path)
	}
	return &gzipFile{Reader: gz, file: f}, nil
}

type gzipFile struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	return errors.Join(g.Reader.Close(), g.file.Close())
}

func decodeSeed[T any](ctx context.Context, path string) ([]T, error) {
	slog.Info("reading seed file", slog.String("path", path))

	r, err := openSeed(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var out []T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func readCategories(ctx context.Context, path string) ([]category.Category, error) {
	raw, err := decodeSeed[categoryJSON](ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]category.Category, len(raw))
	for i, c := range raw {
		out[i] = category.Category{ID: c.ID, Name: c.Name, Slug: c.Slug}
	}
	return out, nil
}

func readProducts(ctx context.Context, path string) ([]product.Product, error) {
	raw, err := decodeSeed[productJSON](ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]product.Product, len(raw))
	for i, p := range raw {
		out[i] = product.Product{
			ID:         p.ID,
			Name:       p.Name,
			Price:      p.Price,
			CategoryID: p.CategoryID,
			ImageURL:   p.ImageURL,
		}
	}
	return out, nil
}
