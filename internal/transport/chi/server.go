package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storefront/internal/domain"
	domprod "github.com/kailas-cloud/storefront/internal/domain/product"
	"github.com/kailas-cloud/storefront/internal/domain/product/filter"
	"github.com/kailas-cloud/storefront/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/storefront/internal/logger"
	cataloguc "github.com/kailas-cloud/storefront/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/storefront/internal/usecase/health"
	otpuc "github.com/kailas-cloud/storefront/internal/usecase/otp"
	searchuc "github.com/kailas-cloud/storefront/internal/usecase/search"
	"github.com/kailas-cloud/storefront/internal/version"
)

// ErrorCode is a machine-readable error identifier returned to clients.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeMissingParameter    ErrorCode = "missing_parameter"
	CodeInvalidRequest      ErrorCode = "invalid_request"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeNotFound            ErrorCode = "not_found"
	CodeProductNotFound     ErrorCode = "product_not_found"
	CodeResendCooldown      ErrorCode = "resend_cooldown"
	CodeVisionProviderError ErrorCode = "vision_provider_error"
	CodeNotImplemented      ErrorCode = "not_implemented"
	CodeInternalError       ErrorCode = "internal_error"
)

// uploadOverhead leaves room for multipart boundaries and form fields.
const uploadOverhead = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Options tunes handler behavior per environment.
type Options struct {
	// ExposeOTPCode echoes issued codes in responses. Never set in production.
	ExposeOTPCode bool
	// ExpandByDefault enables the expanded-term fallback when a search omits "expand".
	ExpandByDefault bool
	// AdminAPIKeys guard the product admin routes. Empty disables auth.
	AdminAPIKeys []string
}

// Server holds the HTTP handlers for search, OTP, product admin and health.
type Server struct {
	search        *searchuc.Service
	otp           *otpuc.Manager
	catalog       *cataloguc.Service
	health        *healthuc.Service
	opts          Options
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	otp *otpuc.Manager,
	catalog *cataloguc.Service,
	health *healthuc.Service,
	opts Options,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search:   search,
		otp:      otp,
		catalog:  catalog,
		health:   health,
		opts:     opts,
		validate: newValidator(),
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		cooldownHandler,
		sentinelHandler(domain.ErrMissingParameter, http.StatusBadRequest, CodeMissingParameter),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeInvalidRequest),
		sentinelHandler(domain.ErrInvalidProduct, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrProductNotFound, http.StatusNotFound, CodeProductNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrVisionProviderError, http.StatusBadGateway, CodeVisionProviderError),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
	}
	return s
}

// Register mounts every route on r. Product admin routes require a bearer key.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/search", func(r chi.Router) {
		r.Get("/", s.Search)
		r.Get("/suggestions", s.Suggestions)
		r.Post("/image", s.SearchByImage)
	})

	r.Route("/otp", func(r chi.Router) {
		r.Post("/generate", s.GenerateOTP)
		r.Post("/resend", s.ResendOTP)
		r.Post("/validate", s.ValidateOTP)
		r.Get("/status", s.OTPStatus)
	})

	r.Route("/products", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(s.opts.AdminAPIKeys))
		r.Get("/", s.ListProducts)
		r.Post("/", s.CreateProduct)
		r.Post("/import", s.ImportProducts)
		r.Get("/{id}", s.GetProduct)
		r.Put("/{id}", s.UpsertProduct)
		r.Delete("/{id}", s.DeleteProduct)
	})
}

// Search handles GET /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be an integer")
		return
	}
	expand := s.opts.ExpandByDefault
	if v := q.Get("expand"); v != "" {
		if expand, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "expand must be a boolean")
			return
		}
	}

	req, err := request.New(q.Get("q"), limit, expand)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponseFromDomain(&resp))
}

// Suggestions handles GET /search/suggestions.
func (s *Server) Suggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a non-negative integer")
		return
	}

	suggestions, err := s.search.Suggest(r.Context(), q.Get("q"), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{Suggestions: suggestions})
}

// SearchByImage handles POST /search/image (multipart field "image").
func (s *Server) SearchByImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, request.MaxImageSize+uploadOverhead)
	if err := r.ParseMultipartForm(request.MaxImageSize); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingParameter, "image file is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "read image: "+err.Error())
		return
	}

	img, err := request.NewImage(data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	resp, err := s.search.SearchByImage(r.Context(), &img)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponseFromDomain(&resp))
}

// GenerateOTP handles POST /otp/generate.
func (s *Server) GenerateOTP(w http.ResponseWriter, r *http.Request) {
	s.issueOTP(w, r, false)
}

// ResendOTP handles POST /otp/resend.
func (s *Server) ResendOTP(w http.ResponseWriter, r *http.Request) {
	s.issueOTP(w, r, true)
}

func (s *Server) issueOTP(w http.ResponseWriter, r *http.Request, resend bool) {
	var req otpIssueRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	subject := req.subject()
	// Public callers may only make a purpose's policy stricter.
	cfg := req.overrides().Tighten(s.otp.Config(req.Purpose))

	issue := s.otp.Generate
	if resend {
		issue = s.otp.Resend
	}
	issued, err := issue(r.Context(), subject, req.Purpose, &cfg)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, otpIssuedFromDomain(&issued, s.opts.ExposeOTPCode))
}

// ValidateOTP handles POST /otp/validate. A failed validation is a 400 with
// the outcome in the body.
func (s *Server) ValidateOTP(w http.ResponseWriter, r *http.Request) {
	var req otpValidateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := s.otp.Validate(r.Context(), req.subject(), req.Purpose, req.Code)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if !res.Valid {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, otpValidateResponse{
		Valid:             res.Valid,
		Message:           res.Message,
		Reason:            string(res.Reason),
		RemainingAttempts: res.RemainingAttempts,
	})
}

// OTPStatus handles GET /otp/status. A missing record yields zeroed fields.
func (s *Server) OTPStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st, err := s.otp.Status(r.Context(), q.Get("subject"), q.Get("purpose"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, otpStatusFromDomain(&st))
}

// ListProducts handles GET /products with optional category, brand,
// min_price and max_price filters.
func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	expr, err := listFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	products, err := s.catalog.List(r.Context(), expr)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]productResponse, len(products))
	for i := range products {
		items[i] = productFromDomain(&products[i])
	}
	writeJSON(w, http.StatusOK, productListResponse{Items: items, Total: len(items)})
}

// CreateProduct handles POST /products with a server-assigned ID.
func (s *Server) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	p, err := s.catalog.Create(r.Context(), req.toDomain(""))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, productFromDomain(&p))
}

// ImportProducts handles POST /products/import. All products are stored or none.
func (s *Server) ImportProducts(w http.ResponseWriter, r *http.Request) {
	var req productImportRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	products := make([]domprod.Product, len(req.Items))
	for i := range req.Items {
		products[i] = req.Items[i].toDomain(req.Items[i].ID)
	}

	stored, err := s.catalog.Import(r.Context(), products)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	ids := make([]string, len(stored))
	for i := range stored {
		ids[i] = stored[i].ID
	}
	writeJSON(w, http.StatusOK, productImportResponse{Imported: len(ids), IDs: ids})
}

// GetProduct handles GET /products/{id}.
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productFromDomain(&p))
}

// UpsertProduct handles PUT /products/{id}.
func (s *Server) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	p, created, err := s.catalog.Upsert(r.Context(), req.toDomain(chi.URLParam(r, "id")))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, productFromDomain(&p))
}

// DeleteProduct handles DELETE /products/{id}.
func (s *Server) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// On failure it writes the error response and returns false.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		code, msg := validationMessage(err)
		writeError(w, http.StatusBadRequest, code, msg)
		return false
	}
	return true
}

func listFilter(q url.Values) (filter.Expression, error) {
	var must []filter.Condition
	for _, key := range []string{filter.KeyCategory, filter.KeyBrand} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		c, err := filter.NewMatch(key, v)
		if err != nil {
			return filter.Expression{}, err //nolint:wrapcheck // caller maps to a 400
		}
		must = append(must, c)
	}

	minPrice, err := floatParam(q.Get("min_price"))
	if err != nil {
		return filter.Expression{}, fmt.Errorf("min_price must be a number")
	}
	maxPrice, err := floatParam(q.Get("max_price"))
	if err != nil {
		return filter.Expression{}, fmt.Errorf("max_price must be a number")
	}
	if minPrice != nil || maxPrice != nil {
		rng, err := filter.NewRangeFilter(nil, minPrice, nil, maxPrice)
		if err != nil {
			return filter.Expression{}, err //nolint:wrapcheck // caller maps to a 400
		}
		must = append(must, filter.NewPriceRange(rng))
	}
	return filter.NewExpression(must, nil, nil) //nolint:wrapcheck // caller maps to a 400
}

func floatParam(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err //nolint:wrapcheck // caller maps to a 400
	}
	return &f, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v) //nolint:wrapcheck // caller maps to a 400
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrResendCooldown,
		domain.ErrMissingParameter,
		domain.ErrInvalidRequest,
		domain.ErrInvalidProduct,
		domain.ErrProductNotFound,
		domain.ErrNotFound,
		domain.ErrVisionProviderError,
		domain.ErrNotImplemented,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// cooldownHandler handles resend cooldowns with a Retry-After header.
func cooldownHandler(w http.ResponseWriter, err error, msg string) bool {
	var ce *domain.CooldownError
	if !errors.As(err, &ce) {
		return false
	}
	secs := int(math.Ceil(ce.RetryAfter.Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Code:       CodeResendCooldown,
		Message:    msg,
		RetryAfter: &secs,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// validationMessage turns validator errors into a client message naming the JSON field.
func validationMessage(err error) (ErrorCode, string) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return CodeValidationFailed, "validation failed"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_without":
		return CodeMissingParameter, field + " is required"
	case "oneof":
		return CodeValidationFailed, field + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		return CodeValidationFailed, field + " must be at least " + fe.Param()
	case "max", "lte":
		return CodeValidationFailed, field + " must be at most " + fe.Param()
	default:
		return CodeValidationFailed, field + " is invalid"
	}
}
