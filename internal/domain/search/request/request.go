package request

import (
	"fmt"
	"strings"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 512
	DefaultLimit   = 20
	MaxLimit       = 100
)

// Request is a validated text search.
type Request struct {
	query  string
	limit  int
	expand bool
}

// New validates and normalizes search parameters.
// An empty query is accepted and yields no results.
func New(query string, limit int, expand bool) (Request, error) {
	query = strings.TrimSpace(query)
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if limit < 0 {
		return Request{}, fmt.Errorf("limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Request{query: query, limit: limit, expand: expand}, nil
}

// Query returns the raw search text.
func (r *Request) Query() string { return r.query }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// Expand reports whether synonym expansion is used when the plain query finds nothing.
func (r *Request) Expand() bool { return r.expand }
