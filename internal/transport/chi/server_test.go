package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storefront/internal/domain"
	domotp "github.com/kailas-cloud/storefront/internal/domain/otp"
	domprod "github.com/kailas-cloud/storefront/internal/domain/product"
	"github.com/kailas-cloud/storefront/internal/repository/otpstore"
	cataloguc "github.com/kailas-cloud/storefront/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/storefront/internal/usecase/health"
	otpuc "github.com/kailas-cloud/storefront/internal/usecase/otp"
	searchuc "github.com/kailas-cloud/storefront/internal/usecase/search"
)

const adminKey = "admin-secret"

type testEnv struct {
	handler  http.Handler
	products *memCatalog
	db       *stubPinger
	vision   *stubPinger
	// lastCode records the length and type of the most recent generated code.
	lastCode struct {
		length int
		typ    domotp.CodeType
	}
}

func newTestEnv(t *testing.T, opts Options, policy domotp.Policy) *testEnv {
	t.Helper()
	env := &testEnv{
		products: newMemCatalog(
			domprod.Product{ID: "p-servo", Name: "Servo Motor", Brand: "TowerPro", Category: "motors", Price: 4.5},
			domprod.Product{ID: "p-uno", Name: "Arduino Uno R3", Brand: "Arduino", Category: "boards", Price: 23},
			domprod.Product{ID: "p-pi", Name: "Raspberry Pi 4", Brand: "Raspberry Pi", Category: "boards", Price: 55},
			domprod.Product{ID: "p-cable", Name: "USB Cable", Category: "cables", Price: 2},
		),
		db:     &stubPinger{},
		vision: &stubPinger{},
	}

	logger := zap.NewNop()
	manager := otpuc.New(otpstore.NewMemory(), policy, logger).
		WithCodeGenerator(func(n int, ct domotp.CodeType) (string, error) {
			env.lastCode.length, env.lastCode.typ = n, ct
			return "123456", nil
		})
	search := searchuc.New(env.products, nil, nil, searchuc.DefaultConfig(), logger)
	catalog := cataloguc.New(env.products)
	health := healthuc.New(env.db).With("vision", env.vision)

	if opts.AdminAPIKeys == nil {
		opts.AdminAPIKeys = []string{adminKey}
	}
	srv := NewServer(search, manager, catalog, health, opts, logger)
	r := chi.NewRouter()
	srv.Register(r)
	env.handler = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestSearch_RanksProducts(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	rr := env.do(t, "GET", "/search?q=servo", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[searchResponse](t, rr)
	if !resp.Success || resp.SearchType != "text" {
		t.Errorf("unexpected envelope: %+v", resp)
	}
	if resp.TotalCount == 0 || resp.Products[0].ID != "p-servo" {
		t.Fatalf("expected servo first, got %+v", resp.Products)
	}
	if resp.Products[0].Score <= 0 {
		t.Errorf("expected positive score, got %d", resp.Products[0].Score)
	}
	if resp.Confidence != nil {
		t.Error("text search should not report confidence")
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	rr := env.do(t, "GET", "/search", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decode[searchResponse](t, rr)
	if resp.TotalCount != 0 || resp.Products == nil || resp.Keywords == nil {
		t.Errorf("expected empty arrays, got %+v", resp)
	}
}

func TestSearch_BadParams(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	for _, path := range []string{
		"/search?q=servo&limit=abc",
		"/search?q=servo&limit=-1",
		"/search?q=servo&expand=maybe",
		"/search?q=" + strings.Repeat("a", 600),
	} {
		if rr := env.do(t, "GET", path, nil); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", path[:min(len(path), 40)], rr.Code)
		}
	}
}

func TestSearch_CatalogFailure(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)
	env.products.listErr = errors.New("connection refused")

	rr := env.do(t, "GET", "/search?q=servo", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decode[errorResponse](t, rr)
	if resp.Code != CodeInternalError || strings.Contains(resp.Message, "refused") {
		t.Errorf("internal details leaked: %+v", resp)
	}
}

func TestSuggestions_Misspelling(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	rr := env.do(t, "GET", "/search/suggestions?q=ardino&limit=8", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	// No match credit for a misspelling: dictionary bonuses order the list and
	// the 45-point tie keeps catalog (ID) order.
	resp := decode[suggestionsResponse](t, rr)
	want := []string{"Servo Motor", "Raspberry Pi 4", "Arduino Uno R3", "USB Cable"}
	if !slices.Equal(resp.Suggestions, want) {
		t.Errorf("suggestions: got %v, want %v", resp.Suggestions, want)
	}
}

func TestSuggestions_ShortQuery(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	resp := decode[suggestionsResponse](t, env.do(t, "GET", "/search/suggestions?q=a", nil))
	if len(resp.Suggestions) != 0 {
		t.Errorf("expected no suggestions, got %v", resp.Suggestions)
	}
}

func multipartImage(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestSearchByImage_FilenameFallback(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	body, ct := multipartImage(t, "servo-motor.png", []byte("\x89PNG\r\n\x1a\nfake"))
	req := httptest.NewRequest("POST", "/search/image", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[searchResponse](t, rr)
	if resp.SearchType != "image" {
		t.Errorf("searchType: got %q", resp.SearchType)
	}
	if resp.Confidence == nil || *resp.Confidence != 0.3 {
		t.Errorf("expected filename confidence 0.3, got %v", resp.Confidence)
	}
	if resp.TotalCount == 0 || resp.Products[0].ID != "p-servo" {
		t.Errorf("expected servo first, got %+v", resp.Products)
	}
	if resp.Products[0].MatchedKeyword == "" {
		t.Error("expected matched keyword on image hits")
	}
}

func TestSearchByImage_MissingFile(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "no image")
	_ = mw.Close()
	req := httptest.NewRequest("POST", "/search/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decode[errorResponse](t, rr); resp.Code != CodeMissingParameter {
		t.Errorf("code: got %s", resp.Code)
	}
}

func TestOTP_GenerateValidateFlow(t *testing.T) {
	env := newTestEnv(t, Options{ExposeOTPCode: true}, nil)
	key := map[string]any{"subject": "user@example.com", "purpose": domotp.PurposeEmailVerification}

	rr := env.do(t, "POST", "/otp/generate", key)
	if rr.Code != http.StatusOK {
		t.Fatalf("generate: got %d, body %s", rr.Code, rr.Body.String())
	}
	issued := decode[otpIssuedResponse](t, rr)
	if !issued.Success || issued.Data.OTP != "123456" || issued.Data.MaxAttempts != 3 {
		t.Fatalf("unexpected issue response: %+v", issued)
	}
	if issued.Data.Purpose != domotp.PurposeEmailVerification {
		t.Errorf("purpose: got %q", issued.Data.Purpose)
	}

	wrong := map[string]any{"subject": "user@example.com", "purpose": domotp.PurposeEmailVerification, "code": "000000"}
	rr = env.do(t, "POST", "/otp/validate", wrong)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("wrong code: got %d", rr.Code)
	}
	res := decode[otpValidateResponse](t, rr)
	if res.Valid || res.RemainingAttempts == nil || *res.RemainingAttempts != 2 {
		t.Errorf("unexpected mismatch response: %+v", res)
	}
	if res.Message != "Invalid OTP. 2 attempts remaining" {
		t.Errorf("message: got %q", res.Message)
	}

	right := map[string]any{"subject": "user@example.com", "purpose": domotp.PurposeEmailVerification, "code": "123456"}
	rr = env.do(t, "POST", "/otp/validate", right)
	if rr.Code != http.StatusOK {
		t.Fatalf("right code: got %d", rr.Code)
	}
	if res := decode[otpValidateResponse](t, rr); !res.Valid || res.Message != domotp.MessageVerified {
		t.Errorf("unexpected verify response: %+v", res)
	}

	rr = env.do(t, "POST", "/otp/validate", right)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("reuse: got %d", rr.Code)
	}
	if res := decode[otpValidateResponse](t, rr); res.Reason != string(domotp.ReasonNotFound) {
		t.Errorf("reuse reason: got %q", res.Reason)
	}
}

func TestOTP_CodeHiddenByDefault(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	rr := env.do(t, "POST", "/otp/generate", map[string]any{"userId": "u1", "purpose": "password-reset"})
	if rr.Code != http.StatusOK {
		t.Fatalf("generate: got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "123456") || strings.Contains(rr.Body.String(), `"otp"`) {
		t.Errorf("code leaked: %s", rr.Body.String())
	}
	if resp := decode[otpIssuedResponse](t, rr); resp.Data.MaxAttempts != 5 {
		t.Errorf("maxAttempts: got %d, want 5", resp.Data.MaxAttempts)
	}
}

func TestOTP_GenerateOverrides(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	before := time.Now()
	rr := env.do(t, "POST", "/otp/generate", map[string]any{
		"subject": "u1", "purpose": "custom-flow", "expires_in": 2, "max_attempts": 2,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("generate: got %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[otpIssuedResponse](t, rr)
	if resp.Data.MaxAttempts != 2 {
		t.Errorf("maxAttempts: got %d, want 2", resp.Data.MaxAttempts)
	}
	if d := resp.Data.ExpiresAt.Sub(before); d < 2*time.Minute-time.Second || d > 2*time.Minute+5*time.Second {
		t.Errorf("expiry: got %s from now", d)
	}
}

func TestOTP_OverridesCannotLoosenPolicy(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	before := time.Now()
	rr := env.do(t, "POST", "/otp/generate", map[string]any{
		"subject": "admin-1", "purpose": "admin-access",
		"type": "numeric", "length": 4, "max_attempts": 20, "expires_in": 1440,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("generate: got %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[otpIssuedResponse](t, rr)
	if resp.Data.MaxAttempts != 1 {
		t.Errorf("maxAttempts: got %d, want policy 1", resp.Data.MaxAttempts)
	}
	if d := resp.Data.ExpiresAt.Sub(before); d > 5*time.Minute+5*time.Second {
		t.Errorf("expiry stretched to %s", d)
	}
	if env.lastCode.length != 8 || env.lastCode.typ != domotp.Alphanumeric {
		t.Errorf("code shape: got %d/%s, want policy 8/alphanumeric", env.lastCode.length, env.lastCode.typ)
	}

	st := decode[otpStatusResponse](t, env.do(t, "GET", "/otp/status?subject=admin-1&purpose=admin-access", nil))
	if st.MaxAttempts != 1 || st.AttemptsRemaining != 1 {
		t.Errorf("status: %+v", st)
	}
}

func TestOTP_RequestValidation(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	tests := []struct {
		name     string
		path     string
		body     map[string]any
		wantCode ErrorCode
	}{
		{"missing subject", "/otp/generate", map[string]any{"purpose": "p"}, CodeMissingParameter},
		{"missing purpose", "/otp/generate", map[string]any{"subject": "s"}, CodeMissingParameter},
		{"bad type", "/otp/generate", map[string]any{"subject": "s", "purpose": "p", "type": "hex"}, CodeValidationFailed},
		{"short length", "/otp/generate", map[string]any{"subject": "s", "purpose": "p", "length": 2}, CodeValidationFailed},
		{"missing code", "/otp/validate", map[string]any{"subject": "s", "purpose": "p"}, CodeMissingParameter},
		{"blank subject", "/otp/validate", map[string]any{"subject": "  ", "purpose": "p", "code": "1"}, CodeMissingParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", tt.path, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d", rr.Code)
			}
			if resp := decode[errorResponse](t, rr); resp.Code != tt.wantCode {
				t.Errorf("code: got %s, want %s (%s)", resp.Code, tt.wantCode, resp.Message)
			}
		})
	}
}

func TestOTP_MalformedBody(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	req := httptest.NewRequest("POST", "/otp/generate", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decode[errorResponse](t, rr); resp.Code != CodeBadRequest {
		t.Errorf("code: got %s", resp.Code)
	}
}

func TestOTP_ResendCooldown(t *testing.T) {
	policy := domotp.DefaultPolicy()
	cfg := policy[domotp.PurposePhoneVerification]
	cfg.ResendCooldown = time.Minute
	policy[domotp.PurposePhoneVerification] = cfg
	env := newTestEnv(t, Options{}, policy)

	key := map[string]any{"subject": "+15550100", "purpose": domotp.PurposePhoneVerification}
	if rr := env.do(t, "POST", "/otp/generate", key); rr.Code != http.StatusOK {
		t.Fatalf("generate: got %d", rr.Code)
	}

	rr := env.do(t, "POST", "/otp/resend", key)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("resend: got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After: got %q, want 60", got)
	}
	resp := decode[errorResponse](t, rr)
	if resp.Code != CodeResendCooldown || resp.RetryAfter == nil || *resp.RetryAfter != 60 {
		t.Errorf("unexpected cooldown response: %+v", resp)
	}

	if rr := env.do(t, "POST", "/otp/generate", key); rr.Code != http.StatusOK {
		t.Errorf("generate ignores cooldown: got %d", rr.Code)
	}
}

func TestOTP_Status(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	rr := env.do(t, "GET", "/otp/status?subject=u1&purpose=email-verification", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	none := decode[otpStatusResponse](t, rr)
	if none.State != "none" || none.ExpiresAt != nil || none.MaxAttempts != 0 || none.AttemptsRemaining != 0 {
		t.Errorf("expected zeroed status, got %+v", none)
	}

	env.do(t, "POST", "/otp/generate", map[string]any{"subject": "u1", "purpose": "email-verification"})
	active := decode[otpStatusResponse](t, env.do(t, "GET", "/otp/status?subject=u1&purpose=email-verification", nil))
	if active.State != "active" || active.ExpiresAt == nil || active.AttemptsRemaining != 3 {
		t.Errorf("unexpected active status: %+v", active)
	}

	if rr := env.do(t, "GET", "/otp/status?subject=u1", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("missing purpose: got %d", rr.Code)
	}
}

func TestProducts_RequireAuth(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	if rr := env.do(t, "GET", "/products", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("no key: got %d", rr.Code)
	}
	if rr := env.do(t, "GET", "/search?q=servo", nil); rr.Code != http.StatusOK {
		t.Errorf("search stays public: got %d", rr.Code)
	}
	if rr := env.do(t, "GET", "/health", nil); rr.Code != http.StatusOK {
		t.Errorf("health stays public: got %d", rr.Code)
	}
}

func TestProducts_CRUD(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)
	auth := []string{"Authorization", "Bearer " + adminKey}
	body := map[string]any{
		"name": "  Relay Board  ", "brand": "Songle", "price": 3.2,
		"variants": []map[string]any{{"name": "2 channel", "attributes": map[string]string{"voltage": "5V"}}},
	}

	rr := env.do(t, "PUT", "/products/p-relay", body, auth...)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body %s", rr.Code, rr.Body.String())
	}
	created := decode[productResponse](t, rr)
	if created.Name != "Relay Board" || len(created.Variants) != 1 {
		t.Errorf("unexpected product: %+v", created)
	}

	if rr := env.do(t, "PUT", "/products/p-relay", body, auth...); rr.Code != http.StatusOK {
		t.Errorf("replace: got %d", rr.Code)
	}

	rr = env.do(t, "GET", "/products/p-relay", nil, auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: got %d", rr.Code)
	}
	if got := decode[productResponse](t, rr); got.Variants[0].Attributes["voltage"] != "5V" {
		t.Errorf("variant attributes lost: %+v", got)
	}

	list := decode[productListResponse](t, env.do(t, "GET", "/products", nil, auth...))
	if list.Total != 5 {
		t.Errorf("list total: got %d, want 5", list.Total)
	}

	if rr := env.do(t, "DELETE", "/products/p-relay", nil, auth...); rr.Code != http.StatusNoContent {
		t.Errorf("delete: got %d", rr.Code)
	}
	rr = env.do(t, "GET", "/products/p-relay", nil, auth...)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get deleted: got %d", rr.Code)
	}
	if resp := decode[errorResponse](t, rr); resp.Code != CodeProductNotFound {
		t.Errorf("code: got %s", resp.Code)
	}
}

func TestProducts_ListFilters(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)
	auth := []string{"Authorization", "Bearer " + adminKey}

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantTotal int
	}{
		{"no filter", "", http.StatusOK, 4},
		{"category", "?category=Boards", http.StatusOK, 2},
		{"brand", "?brand=arduino", http.StatusOK, 1},
		{"price window", "?min_price=2&max_price=23", http.StatusOK, 3},
		{"category and max price", "?category=boards&max_price=30", http.StatusOK, 1},
		{"nothing matches", "?category=tools", http.StatusOK, 0},
		{"bad min price", "?min_price=cheap", http.StatusBadRequest, 0},
		{"inverted range", "?min_price=10&max_price=1", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "GET", "/products"+tt.query, nil, auth...)
			if rr.Code != tt.wantCode {
				t.Fatalf("got %d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if list := decode[productListResponse](t, rr); list.Total != tt.wantTotal {
				t.Errorf("total: got %d, want %d", list.Total, tt.wantTotal)
			}
		})
	}
}

func TestProducts_Create(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	rr := env.do(t, "POST", "/products", map[string]any{"name": "Jumper Wires"}, "Authorization", "Bearer "+adminKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d", rr.Code)
	}
	if p := decode[productResponse](t, rr); p.ID == "" {
		t.Error("expected generated id")
	}
}

func TestProducts_Import(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)
	auth := []string{"Authorization", "Bearer " + adminKey}

	rr := env.do(t, "POST", "/products/import", map[string]any{"items": []map[string]any{
		{"id": "p-relay", "name": "Relay Board"},
		{"name": "Jumper Wires", "price": 1.5},
	}}, auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("import: got %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[productImportResponse](t, rr)
	if resp.Imported != 2 || resp.IDs[0] != "p-relay" || resp.IDs[1] == "" {
		t.Errorf("unexpected import response: %+v", resp)
	}
	if env.products.bulkCalls != 1 {
		t.Errorf("expected one bulk write, got %d", env.products.bulkCalls)
	}

	rr = env.do(t, "POST", "/products/import", map[string]any{"items": []map[string]any{}}, auth...)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty import: got %d", rr.Code)
	}
	rr = env.do(t, "POST", "/products/import", map[string]any{"items": []map[string]any{
		{"id": "a", "name": "A"}, {"id": "a", "name": "B"},
	}}, auth...)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("duplicate ids: got %d", rr.Code)
	}
}

func TestProducts_Validation(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)
	auth := []string{"Authorization", "Bearer " + adminKey}

	tests := []struct {
		name     string
		path     string
		body     map[string]any
		wantCode ErrorCode
	}{
		{"missing name", "/products/p1", map[string]any{"brand": "x"}, CodeMissingParameter},
		{"negative price", "/products/p1", map[string]any{"name": "x", "price": -1}, CodeValidationFailed},
		{"unnamed variant", "/products/p1", map[string]any{"name": "x", "variants": []map[string]any{{"sku": "a"}}}, CodeMissingParameter},
		{"bad id", "/products/bad%20id", map[string]any{"name": "x"}, CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "PUT", tt.path, tt.body, auth...)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
			}
			if resp := decode[errorResponse](t, rr); resp.Code != tt.wantCode {
				t.Errorf("code: got %s, want %s", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		visionErr  error
		wantCode   int
		wantStatus string
	}{
		{"healthy", nil, nil, http.StatusOK, "ok"},
		{"vision down", nil, errors.New("timeout"), http.StatusOK, "degraded"},
		{"db down", errors.New("refused"), nil, http.StatusServiceUnavailable, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{}, nil)
			env.db.err = tt.dbErr
			env.vision.err = tt.visionErr

			rr := env.do(t, "GET", "/health", nil)
			if rr.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
			resp := decode[healthResponse](t, rr)
			if resp.Status != tt.wantStatus {
				t.Errorf("status: got %q, want %q", resp.Status, tt.wantStatus)
			}
			if _, ok := resp.Checks["vision"]; !ok {
				t.Errorf("missing vision check: %v", resp.Checks)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	rr := env.do(t, "GET", "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("expected default Go collector output")
	}
}

// --- Mocks ---

type memCatalog struct {
	mu        sync.Mutex
	items     map[string]domprod.Product
	listErr   error
	bulkCalls int
}

func newMemCatalog(products ...domprod.Product) *memCatalog {
	m := &memCatalog{items: make(map[string]domprod.Product)}
	for _, p := range products {
		m.items[p.ID] = p
	}
	return m
}

func (m *memCatalog) Upsert(_ context.Context, p *domprod.Product) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.items[p.ID]
	m.items[p.ID] = *p
	return !exists, nil
}

func (m *memCatalog) UpsertMany(_ context.Context, products []domprod.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulkCalls++
	for _, p := range products {
		m.items[p.ID] = p
	}
	return nil
}

func (m *memCatalog) Get(_ context.Context, id string) (domprod.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return domprod.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (m *memCatalog) List(_ context.Context) ([]domprod.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domprod.Product, 0, len(m.items))
	for _, p := range m.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memCatalog) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(m.items, id)
	return nil
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(_ context.Context) error        { return s.err }
func (s *stubPinger) HealthCheck(_ context.Context) error { return s.err }
