package chi

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	domotp "github.com/kailas-cloud/storefront/internal/domain/otp"
	domprod "github.com/kailas-cloud/storefront/internal/domain/product"
	"github.com/kailas-cloud/storefront/internal/domain/search/mode"
	"github.com/kailas-cloud/storefront/internal/domain/search/result"
)

// newValidator reports JSON field names in validation errors.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	RetryAfter *int      `json:"retry_after,omitempty"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}

// --- Search ---

type searchProduct struct {
	productResponse
	Score          int    `json:"score"`
	MatchedKeyword string `json:"matchedKeyword,omitempty"`
}

type searchResponse struct {
	Success    bool            `json:"success"`
	Products   []searchProduct `json:"products"`
	Keywords   []string        `json:"keywords"`
	SearchType string          `json:"searchType"`
	TotalCount int             `json:"totalCount"`
	Confidence *float64        `json:"confidence,omitempty"`
}

type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

func searchResponseFromDomain(r *result.Response) searchResponse {
	products := make([]searchProduct, len(r.Results))
	for i := range r.Results {
		hit := &r.Results[i]
		p := hit.Product()
		products[i] = searchProduct{
			productResponse: productFromDomain(&p),
			Score:           hit.Score(),
			MatchedKeyword:  hit.Keyword(),
		}
	}
	keywords := r.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	resp := searchResponse{
		Success:    true,
		Products:   products,
		Keywords:   keywords,
		SearchType: string(r.Mode),
		TotalCount: r.TotalCount(),
	}
	if r.Mode == mode.Image {
		c := r.Confidence
		resp.Confidence = &c
	}
	return resp
}

// --- OTP ---

// otpIssueRequest accepts userId as an alias for subject. The code options
// can only tighten the purpose policy.
type otpIssueRequest struct {
	Subject string `json:"subject" validate:"required_without=UserID,max=320"`
	UserID  string `json:"userId" validate:"max=320"`
	Purpose string `json:"purpose" validate:"required,max=64"`
	Type    string `json:"type" validate:"omitempty,oneof=numeric alphanumeric"`
	Length  int    `json:"length" validate:"omitempty,min=4,max=16"`
	// ExpiresIn is in minutes.
	ExpiresIn   int `json:"expires_in" validate:"omitempty,min=1,max=1440"`
	MaxAttempts int `json:"max_attempts" validate:"omitempty,min=1,max=20"`
}

func (r *otpIssueRequest) subject() string {
	if r.Subject != "" {
		return r.Subject
	}
	return r.UserID
}

func (r *otpIssueRequest) overrides() domotp.Overrides {
	return domotp.Overrides{
		Type:        domotp.CodeType(r.Type),
		Length:      r.Length,
		ExpiresIn:   time.Duration(r.ExpiresIn) * time.Minute,
		MaxAttempts: r.MaxAttempts,
	}
}

type otpValidateRequest struct {
	Subject string `json:"subject" validate:"required_without=UserID,max=320"`
	UserID  string `json:"userId" validate:"max=320"`
	Purpose string `json:"purpose" validate:"required,max=64"`
	Code    string `json:"code" validate:"required,max=64"`
}

func (r *otpValidateRequest) subject() string {
	if r.Subject != "" {
		return r.Subject
	}
	return r.UserID
}

type otpIssuedData struct {
	Purpose     string    `json:"purpose"`
	ExpiresAt   time.Time `json:"expiresAt"`
	MaxAttempts int       `json:"maxAttempts"`
	OTP         string    `json:"otp,omitempty"`
}

type otpIssuedResponse struct {
	Success bool          `json:"success"`
	Data    otpIssuedData `json:"data"`
}

func otpIssuedFromDomain(i *domotp.Issued, exposeCode bool) otpIssuedResponse {
	data := otpIssuedData{
		Purpose:     i.Purpose,
		ExpiresAt:   i.ExpiresAt.UTC(),
		MaxAttempts: i.MaxAttempts,
	}
	if exposeCode {
		data.OTP = i.Code
	}
	return otpIssuedResponse{Success: true, Data: data}
}

type otpValidateResponse struct {
	Valid             bool   `json:"valid"`
	Message           string `json:"message"`
	Reason            string `json:"reason"`
	RemainingAttempts *int   `json:"remainingAttempts,omitempty"`
}

type otpStatusResponse struct {
	State             string     `json:"state"`
	ExpiresAt         *time.Time `json:"expiresAt"`
	MaxAttempts       int        `json:"maxAttempts"`
	AttemptsRemaining int        `json:"attemptsRemaining"`
}

func otpStatusFromDomain(s *domotp.Status) otpStatusResponse {
	resp := otpStatusResponse{
		State:             string(s.State),
		MaxAttempts:       s.MaxAttempts,
		AttemptsRemaining: s.AttemptsRemaining,
	}
	if !s.ExpiresAt.IsZero() {
		t := s.ExpiresAt.UTC()
		resp.ExpiresAt = &t
	}
	return resp
}

// --- Products ---

type variantDTO struct {
	Name       string            `json:"name" validate:"required,max=256"`
	SKU        string            `json:"sku,omitempty" validate:"max=128"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type productRequest struct {
	Name        string       `json:"name" validate:"required,max=256"`
	Brand       string       `json:"brand" validate:"max=128"`
	SKU         string       `json:"sku" validate:"max=128"`
	Description string       `json:"description" validate:"max=8192"`
	Category    string       `json:"category" validate:"max=128"`
	Price       float64      `json:"price" validate:"gte=0"`
	Variants    []variantDTO `json:"variants" validate:"max=100,dive"`
}

func (r *productRequest) toDomain(id string) domprod.Product {
	p := domprod.Product{
		ID:          id,
		Name:        r.Name,
		Brand:       r.Brand,
		SKU:         r.SKU,
		Description: r.Description,
		Category:    r.Category,
		Price:       r.Price,
	}
	if len(r.Variants) > 0 {
		p.Variants = make([]domprod.Variant, len(r.Variants))
		for i, v := range r.Variants {
			p.Variants[i] = domprod.Variant(v)
		}
	}
	return p
}

type productImportItem struct {
	ID string `json:"id" validate:"max=128"`
	productRequest
}

type productImportRequest struct {
	Items []productImportItem `json:"items" validate:"required,min=1,max=500,dive"`
}

type productImportResponse struct {
	Imported int      `json:"imported"`
	IDs      []string `json:"ids"`
}

type productResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Brand       string            `json:"brand,omitempty"`
	SKU         string            `json:"sku,omitempty"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category,omitempty"`
	Price       float64           `json:"price"`
	Variants    []domprod.Variant `json:"variants,omitempty"`
}

type productListResponse struct {
	Items []productResponse `json:"items"`
	Total int               `json:"total"`
}

func productFromDomain(p *domprod.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		SKU:         p.SKU,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Variants:    p.Variants,
	}
}
