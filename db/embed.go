// Package db embeds the storefront catalogue schema.
package db

import _ "embed"

// Schema creates the categories, products and accounts tables. Every
// statement is idempotent so it can run on each start.
//
//go:embed migrations/001_schema.sql
var Schema string
