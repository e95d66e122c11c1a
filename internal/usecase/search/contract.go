package search

import (
	"context"

	domprod "github.com/kailas-cloud/storefront/internal/domain/product"
	"github.com/kailas-cloud/storefront/internal/domain/vision"
)

// ProductSource lists the catalog products that make up the candidate set.
type ProductSource interface {
	List(ctx context.Context) ([]domprod.Product, error)
}

// Analyzer extracts keywords from an uploaded image.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, contentType string) (vision.Analysis, error)
}
