package product

import (
	"fmt"
	"regexp"
	"strings"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Field limits.
const (
	MaxIDLength          = 128
	MaxNameLength        = 256
	MaxDescriptionLength = 8192
	MaxVariants          = 100
)

// Variant is a purchasable option of a product (size, color, revision).
type Variant struct {
	Name       string            `json:"name"`
	SKU        string            `json:"sku,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Product is a catalog entry. The catalog owns it; search only reads it.
type Product struct {
	ID          string
	Name        string
	Brand       string
	SKU         string
	Description string
	Category    string
	Price       float64
	Variants    []Variant
}

// Validate checks identifiers and field sizes.
func (p *Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("product ID is required")
	}
	if len(p.ID) > MaxIDLength {
		return fmt.Errorf("product ID too long (max %d)", MaxIDLength)
	}
	if !idRegex.MatchString(p.ID) {
		return fmt.Errorf("product ID must be alphanumeric with underscores and hyphens")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product name is required")
	}
	if len(p.Name) > MaxNameLength {
		return fmt.Errorf("product name too long (max %d)", MaxNameLength)
	}
	if len(p.Description) > MaxDescriptionLength {
		return fmt.Errorf("description too long (max %d)", MaxDescriptionLength)
	}
	if p.Price < 0 {
		return fmt.Errorf("price must not be negative")
	}
	if len(p.Variants) > MaxVariants {
		return fmt.Errorf("too many variants (max %d)", MaxVariants)
	}
	return nil
}

// SearchText is the composite candidate text: the product's own fields followed
// by every variant's name, SKU and attribute values.
func (p *Product) SearchText() string {
	parts := make([]string, 0, 5+len(p.Variants)*3)
	parts = appendNonEmpty(parts, p.Name, p.Brand, p.SKU, p.Description, p.Category)
	for _, v := range p.Variants {
		parts = appendNonEmpty(parts, v.Name, v.SKU)
		for _, k := range sortedKeys(v.Attributes) {
			parts = appendNonEmpty(parts, v.Attributes[k])
		}
	}
	return strings.Join(parts, " ")
}

func appendNonEmpty(dst []string, vals ...string) []string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			dst = append(dst, v)
		}
	}
	return dst
}
