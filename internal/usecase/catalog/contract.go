package catalog

import (
	"context"

	domprod "github.com/kailas-cloud/storefront/internal/domain/product"
)

// Repository defines the storage contract for products.
type Repository interface {
	Upsert(ctx context.Context, p *domprod.Product) (bool, error)
	Get(ctx context.Context, id string) (domprod.Product, error)
	List(ctx context.Context) ([]domprod.Product, error)
	Delete(ctx context.Context, id string) error
}

// BulkWriter is implemented by repositories that store many products in one round-trip.
type BulkWriter interface {
	UpsertMany(ctx context.Context, products []domprod.Product) error
}
