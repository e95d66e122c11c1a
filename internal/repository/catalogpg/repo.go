// Package catalogpg reads products from a PostgreSQL catalog.
//
// Expected schema:
//
//	CREATE TABLE products (
//	    id          text PRIMARY KEY,
//	    name        text NOT NULL,
//	    brand       text,
//	    sku         text,
//	    description text,
//	    category    text,
//	    price       double precision NOT NULL DEFAULT 0,
//	    variants    jsonb
//	);
package catalogpg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/storefront/internal/domain"
	domprod "github.com/kailas-cloud/storefront/internal/domain/product"
)

const selectColumns = `SELECT id, name, COALESCE(brand, ''), COALESCE(sku, ''),
	COALESCE(description, ''), COALESCE(category, ''), price, variants
FROM products`

// querier is the subset of *pgxpool.Pool the repo uses (ISP).
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo is a read-only product source.
type Repo struct {
	db    querier
	limit int
}

// New creates a repo. maxRows caps List; zero means no cap.
func New(db querier, maxRows int) *Repo {
	return &Repo{db: db, limit: maxRows}
}

// List returns products ordered by ID.
func (r *Repo) List(ctx context.Context) ([]domprod.Product, error) {
	sql := selectColumns + " ORDER BY id"
	var args []any
	if r.limit > 0 {
		sql += " LIMIT $1"
		args = append(args, r.limit)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domprod.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// Get returns a product by ID.
func (r *Repo) Get(ctx context.Context, id string) (domprod.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, selectColumns+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domprod.Product{}, domain.ErrProductNotFound
	}
	return p, err
}

// Upsert is not supported; the PostgreSQL catalog is owned elsewhere.
func (r *Repo) Upsert(context.Context, *domprod.Product) (bool, error) {
	return false, fmt.Errorf("postgres catalog is read-only: %w", domain.ErrNotImplemented)
}

// Delete is not supported; the PostgreSQL catalog is owned elsewhere.
func (r *Repo) Delete(context.Context, string) error {
	return fmt.Errorf("postgres catalog is read-only: %w", domain.ErrNotImplemented)
}

func scanProduct(row pgx.Row) (domprod.Product, error) {
	var (
		p        domprod.Product
		variants []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.SKU, &p.Description, &p.Category, &p.Price, &variants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domprod.Product{}, err
		}
		return domprod.Product{}, fmt.Errorf("scan product: %w", err)
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &p.Variants); err != nil {
			return domprod.Product{}, fmt.Errorf("product %s variants: %w", p.ID, err)
		}
	}
	return p, nil
}
