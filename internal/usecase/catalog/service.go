// Package catalog manages the products that search ranks.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/storefront/internal/domain"
	domprod "github.com/kailas-cloud/storefront/internal/domain/product"
	"github.com/kailas-cloud/storefront/internal/domain/product/filter"
)

// Service handles product CRUD operations.
type Service struct {
	repo  Repository
	newID func() string
}

// New creates a catalog service.
func New(repo Repository) *Service {
	return &Service{repo: repo, newID: uuid.NewString}
}

// Create assigns a fresh ID and stores the product.
func (s *Service) Create(ctx context.Context, p domprod.Product) (domprod.Product, error) {
	p.ID = s.newID()
	if _, err := s.save(ctx, &p); err != nil {
		return domprod.Product{}, err
	}
	return p, nil
}

// Upsert stores the product under its own ID. Returns true if created.
func (s *Service) Upsert(ctx context.Context, p domprod.Product) (domprod.Product, bool, error) {
	created, err := s.save(ctx, &p)
	if err != nil {
		return domprod.Product{}, false, err
	}
	return p, created, nil
}

func (s *Service) save(ctx context.Context, p *domprod.Product) (bool, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return false, fmt.Errorf("validate product: %w: %w", domain.ErrInvalidProduct, err)
	}
	created, err := s.repo.Upsert(ctx, p)
	if err != nil {
		return false, fmt.Errorf("upsert product: %w", err)
	}
	return created, nil
}

// Get retrieves a product by ID.
func (s *Service) Get(ctx context.Context, id string) (domprod.Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return domprod.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns the products matching expr. An empty expression returns all.
func (s *Service) List(ctx context.Context, expr filter.Expression) ([]domprod.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return expr.Apply(products), nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// MaxImportSize caps the products accepted by one Import call.
const MaxImportSize = 500

// Import validates every product and stores them in one round-trip.
// Products without an ID get a generated one. Nothing is written if any
// product is invalid.
func (s *Service) Import(ctx context.Context, products []domprod.Product) ([]domprod.Product, error) {
	if len(products) > MaxImportSize {
		return nil, fmt.Errorf("%w: too many products (max %d)", domain.ErrInvalidProduct, MaxImportSize)
	}
	bw, ok := s.repo.(BulkWriter)
	if !ok {
		return nil, fmt.Errorf("bulk import: %w", domain.ErrNotImplemented)
	}

	out := make([]domprod.Product, len(products))
	seen := make(map[string]int, len(products))
	for i, p := range products {
		if p.ID == "" {
			p.ID = s.newID()
		}
		p.Name = strings.TrimSpace(p.Name)
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("product %d: %w: %w", i, domain.ErrInvalidProduct, err)
		}
		if j, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("product %d: %w: duplicate ID %q (also at %d)", i, domain.ErrInvalidProduct, p.ID, j)
		}
		seen[p.ID] = i
		out[i] = p
	}
	if len(out) == 0 {
		return out, nil
	}

	if err := bw.UpsertMany(ctx, out); err != nil {
		return nil, fmt.Errorf("import products: %w", err)
	}
	return out, nil
}
