package result

import (
	"github.com/kailas-cloud/storefront/internal/domain/product"
	"github.com/kailas-cloud/storefront/internal/domain/search/mode"
)

// Result is a single ranked product.
type Result struct {
	product product.Product
	score   int
	keyword string
}

// New creates a search result. keyword is the query term that produced the
// hit; it is empty for plain text searches.
func New(p product.Product, score int, keyword string) Result {
	return Result{product: p, score: score, keyword: keyword}
}

// ID returns the product identifier.
func (r *Result) ID() string { return r.product.ID }

// Product returns the matched product.
func (r *Result) Product() product.Product { return r.product }

// Score returns the relevance score.
func (r *Result) Score() int { return r.score }

// Keyword returns the query term that matched.
func (r *Result) Keyword() string { return r.keyword }

// Response is the outcome of a text or image search.
type Response struct {
	Results    []Result
	Keywords   []string
	Mode       mode.Mode
	Confidence float64
}

// TotalCount returns the number of results.
func (r *Response) TotalCount() int { return len(r.Results) }
