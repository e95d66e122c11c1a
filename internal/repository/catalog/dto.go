package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"

	domprod "github.com/kailas-cloud/storefront/internal/domain/product"
)

// Hash field names.
const (
	fieldID          = "id"
	fieldName        = "name"
	fieldBrand       = "brand"
	fieldSKU         = "sku"
	fieldDescription = "description"
	fieldCategory    = "category"
	fieldPrice       = "price"
	fieldVariants    = "variants_json"
)

// productToHash converts a product to a map for HSET.
func productToHash(p *domprod.Product) (map[string]string, error) {
	variants := p.Variants
	if variants == nil {
		variants = []domprod.Variant{}
	}
	variantsJSON, err := json.Marshal(variants)
	if err != nil {
		return nil, fmt.Errorf("marshal variants: %w", err)
	}
	return map[string]string{
		fieldID:          p.ID,
		fieldName:        p.Name,
		fieldBrand:       p.Brand,
		fieldSKU:         p.SKU,
		fieldDescription: p.Description,
		fieldCategory:    p.Category,
		fieldPrice:       strconv.FormatFloat(p.Price, 'f', -1, 64),
		fieldVariants:    string(variantsJSON),
	}, nil
}

// productFromHash hydrates a product from an HGETALL result.
func productFromHash(m map[string]string) (domprod.Product, error) {
	p := domprod.Product{
		ID:          m[fieldID],
		Name:        m[fieldName],
		Brand:       m[fieldBrand],
		SKU:         m[fieldSKU],
		Description: m[fieldDescription],
		Category:    m[fieldCategory],
	}

	if s := m[fieldPrice]; s != "" {
		price, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domprod.Product{}, fmt.Errorf("invalid price %q: %w", s, err)
		}
		p.Price = price
	}

	if s := m[fieldVariants]; s != "" {
		if err := json.Unmarshal([]byte(s), &p.Variants); err != nil {
			return domprod.Product{}, fmt.Errorf("unmarshal variants: %w", err)
		}
		if len(p.Variants) == 0 {
			p.Variants = nil
		}
	}
	return p, nil
}
