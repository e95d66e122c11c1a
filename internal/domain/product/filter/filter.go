// Package filter narrows product listings by exact field matches and price ranges.
package filter

import (
	"fmt"
	"strings"

	domprod "github.com/kailas-cloud/storefront/internal/domain/product"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 16

// Filterable product fields.
const (
	KeyCategory = "category"
	KeyBrand    = "brand"
	KeySKU      = "sku"
	KeyPrice    = "price"
)

// Expression is a structured filter with must/should/must_not boolean semantics.
// An empty should group places no constraint.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Matches reports whether p satisfies every must condition, at least one
// should condition (when any exist) and no must-not condition.
func (e Expression) Matches(p *domprod.Product) bool {
	for _, c := range e.must {
		if !c.Matches(p) {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.Matches(p) {
			return false
		}
	}
	if len(e.should) == 0 {
		return true
	}
	for _, c := range e.should {
		if c.Matches(p) {
			return true
		}
	}
	return false
}

// Apply returns the products that match, preserving order.
func (e Expression) Apply(products []domprod.Product) []domprod.Product {
	if e.IsEmpty() {
		return products
	}
	out := make([]domprod.Product, 0, len(products))
	for i := range products {
		if e.Matches(&products[i]) {
			out = append(out, products[i])
		}
	}
	return out
}

// Condition is a single filter clause: either a field match or a price range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates a case-insensitive exact match on category, brand or sku.
func NewMatch(key, match string) (Condition, error) {
	switch key {
	case KeyCategory, KeyBrand, KeySKU:
	case "":
		return Condition{}, fmt.Errorf("filter key is required")
	default:
		return Condition{}, fmt.Errorf("unsupported match key %q", key)
	}
	match = strings.TrimSpace(match)
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewPriceRange creates a price range condition.
func NewPriceRange(r Range) Condition {
	return Condition{key: KeyPrice, rangeExpr: &r}
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Matches evaluates the condition against one product.
func (c Condition) Matches(p *domprod.Product) bool {
	if c.rangeExpr != nil {
		return c.rangeExpr.Contains(p.Price)
	}
	var v string
	switch c.key {
	case KeyCategory:
		v = p.Category
	case KeyBrand:
		v = p.Brand
	case KeySKU:
		v = p.SKU
	}
	return strings.EqualFold(strings.TrimSpace(v), c.match)
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	lo, hi := gt, lt
	if lo == nil {
		lo = gte
	}
	if hi == nil {
		hi = lte
	}
	if lo != nil && hi != nil && *lo > *hi {
		return Range{}, fmt.Errorf("lower bound %g exceeds upper bound %g", *lo, *hi)
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v lies within every set boundary.
func (r Range) Contains(v float64) bool {
	switch {
	case r.gt != nil && v <= *r.gt:
		return false
	case r.gte != nil && v < *r.gte:
		return false
	case r.lt != nil && v >= *r.lt:
		return false
	case r.lte != nil && v > *r.lte:
		return false
	}
	return true
}
