package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/iwvelando/loan-support/internal/calculator"
	"github.com/iwvelando/loan-support/internal/ingest"
	"github.com/iwvelando/loan-support/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type failingIngester struct{}

func (failingIngester) Ingest(context.Context, string) (ingest.Result, error) {
	return ingest.Result{}, errors.New("disk unavailable")
}

func newTestHandler(t *testing.T, opts Options) http.Handler {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return NewHandler(opts)
}

func performJSON(t *testing.T, handler http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHandleHealth(t *testing.T) {
	handler := newTestHandler(t, Options{})

	rr := performJSON(t, handler, http.MethodGet, "/api/v1/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	decodeBody(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", resp)
	}
	if rr.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a request ID header")
	}
}

func TestHandleVersion(t *testing.T) {
	handler := newTestHandler(t, Options{Version: " 1.2.3 "})

	rr := performJSON(t, handler, http.MethodGet, "/api/v1/version", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	decodeBody(t, rr, &resp)
	if resp["version"] != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", resp["version"])
	}
}

func TestHandleVersionDefault(t *testing.T) {
	handler := newTestHandler(t, Options{})

	rr := performJSON(t, handler, http.MethodGet, "/api/v1/version", nil)

	var resp map[string]string
	decodeBody(t, rr, &resp)
	if resp["version"] != "dev" {
		t.Fatalf("expected default version dev, got %q", resp["version"])
	}
}

func TestHandleEligibility(t *testing.T) {
	handler := newTestHandler(t, Options{})

	tests := []struct {
		name     string
		payload  map[string]interface{}
		emi      int64
		foir     float64
		eligible int64
	}{
		{
			name: "amortized loan",
			payload: map[string]interface{}{
				"monthly_income": 8500, "monthly_obligations": 1200, "roi": 7.25,
				"tenure_months": 360, "loan_amount": 450000,
			},
			emi: 3070, foir: 50.2, eligible: 359878,
		},
		{
			name: "zero rate",
			payload: map[string]interface{}{
				"monthly_income": 8500, "monthly_obligations": 1200, "roi": 0,
				"tenure_months": 120, "loan_amount": 120000,
			},
			emi: 1000, foir: 25.9, eligible: 294600,
		},
		{
			name: "derived emi goes negative",
			payload: map[string]interface{}{
				"monthly_income": 5000, "monthly_obligations": 4000, "roi": 6, "tenure_months": 240,
			},
			emi: -2000, foir: 40.0,
		},
		{
			name: "numeric strings from a form",
			payload: map[string]interface{}{
				"monthly_income": "8500", "monthly_obligations": "1200", "roi": "0",
				"tenure_months": "120", "loan_amount": "",
			},
			emi: 2200, foir: 40.0, eligible: 294600,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := performJSON(t, handler, http.MethodPost, "/api/v1/eligibility/calculate", tt.payload)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
			}

			var resp struct {
				EMI      int64   `json:"emi"`
				FOIR     float64 `json:"foir"`
				Eligible int64   `json:"eligible_loan_amount"`
			}
			decodeBody(t, rr, &resp)

			if resp.EMI != tt.emi {
				t.Errorf("emi = %d, expected %d", resp.EMI, tt.emi)
			}
			if resp.FOIR != tt.foir {
				t.Errorf("foir = %v, expected %v", resp.FOIR, tt.foir)
			}
			if tt.eligible != 0 && resp.Eligible != tt.eligible {
				t.Errorf("eligible = %d, expected %d", resp.Eligible, tt.eligible)
			}
		})
	}
}

func TestHandleEligibilityRejectsBadInput(t *testing.T) {
	handler := newTestHandler(t, Options{})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			name:    "missing tenure",
			body:    `{"monthly_income": 8500, "monthly_obligations": 1200, "roi": 7.25}`,
			message: "missing required fields: tenure_months",
		},
		{
			name:    "empty body",
			body:    ``,
			message: "missing required fields: monthly_income, monthly_obligations, roi, tenure_months",
		},
		{
			name:    "null fields",
			body:    `{"monthly_income": null, "monthly_obligations": 0, "roi": null, "tenure_months": 12}`,
			message: "missing required fields: monthly_income, roi",
		},
		{
			name:    "non numeric",
			body:    `{"monthly_income": "lots", "monthly_obligations": 0, "roi": 5, "tenure_months": 12}`,
			message: "monthly_income",
		},
		{
			name:    "zero income",
			body:    `{"monthly_income": 0, "monthly_obligations": 0, "roi": 5, "tenure_months": 12}`,
			message: "monthly_income must be greater than 0",
		},
		{
			name:    "fractional tenure",
			body:    `{"monthly_income": 100, "monthly_obligations": 0, "roi": 5, "tenure_months": 12.5}`,
			message: "tenure_months must be a whole number of months",
		},
		{
			name:    "malformed json",
			body:    `{"monthly_income": `,
			message: "invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/eligibility/calculate", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}

			var resp errorResponse
			decodeBody(t, rr, &resp)
			if !strings.Contains(resp.Message, tt.message) {
				t.Fatalf("expected message containing %q, got %q", tt.message, resp.Message)
			}
		})
	}
}

func TestHandleEligibilityOverflowIsServerError(t *testing.T) {
	handler := newTestHandler(t, Options{})

	payload := map[string]interface{}{
		"monthly_income": 1e300, "monthly_obligations": 0, "roi": 12, "tenure_months": 600,
	}
	rr := performJSON(t, handler, http.MethodPost, "/api/v1/eligibility/calculate", payload)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp errorResponse
	decodeBody(t, rr, &resp)
	if resp.Message != "Failed to calculate eligibility" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if resp.Error == "" {
		t.Fatal("expected error detail in response")
	}
}

func TestHandleEligibilityVanishingIncomeIsServerError(t *testing.T) {
	handler := newTestHandler(t, Options{})

	payload := map[string]interface{}{
		"monthly_income": "1e-320", "monthly_obligations": 0, "roi": 5, "tenure_months": 12, "loan_amount": 12000,
	}
	rr := performJSON(t, handler, http.MethodPost, "/api/v1/eligibility/calculate", payload)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp errorResponse
	decodeBody(t, rr, &resp)
	if resp.Message != "Failed to calculate eligibility" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestHandleEligibilityRequestTooLarge(t *testing.T) {
	handler := newTestHandler(t, Options{MaxRequestSize: 32})

	body := `{"monthly_income": 8500, "monthly_obligations": 1200, "roi": 7.25, "tenure_months": 360}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/eligibility/calculate", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleHistory(t *testing.T) {
	audit := storage.NewMemoryRepository(10)
	service := calculator.NewService(zap.NewNop(), calculator.Options{Audit: audit})
	handler := newTestHandler(t, Options{Calculator: service})

	for _, income := range []float64{1000, 2000, 3000} {
		payload := map[string]interface{}{
			"monthly_income": income, "monthly_obligations": 0, "roi": 0, "tenure_months": 12,
		}
		if rr := performJSON(t, handler, http.MethodPost, "/api/v1/eligibility/calculate", payload); rr.Code != http.StatusOK {
			t.Fatalf("calculation failed with %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr := performJSON(t, handler, http.MethodGet, "/api/v1/eligibility/history?limit=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp historyResponse
	decodeBody(t, rr, &resp)
	if len(resp.Calculations) != 2 {
		t.Fatalf("expected 2 calculations, got %d", len(resp.Calculations))
	}
	if resp.Calculations[0].MonthlyIncome != 3000 {
		t.Fatalf("expected newest calculation first, got income %v", resp.Calculations[0].MonthlyIncome)
	}
	if resp.Calculations[0].RequestID == "" {
		t.Fatal("expected audited request ID")
	}

	for _, bad := range []string{"0", "-1", "abc"} {
		rr := performJSON(t, handler, http.MethodGet, "/api/v1/eligibility/history?limit="+bad, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected status 400, got %d", bad, rr.Code)
		}
	}
}

func TestHandleHistoryEmpty(t *testing.T) {
	handler := newTestHandler(t, Options{})

	rr := performJSON(t, handler, http.MethodGet, "/api/v1/eligibility/history", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"calculations":[]`) {
		t.Fatalf("expected empty calculations array, got %s", rr.Body.String())
	}
}

func TestHandleIngest(t *testing.T) {
	handler := newTestHandler(t, Options{})

	for _, body := range []string{``, `{}`, `{"path": "custom/docs"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("body %q: expected status 200, got %d: %s", body, rr.Code, rr.Body.String())
		}

		var resp ingest.Result
		decodeBody(t, rr, &resp)
		if resp.Status != ingest.StatusOK {
			t.Fatalf("expected status ok, got %q", resp.Status)
		}
		if resp.Ingested.Pages < 50 || resp.Ingested.Pages >= 250 {
			t.Fatalf("pages out of range: %d", resp.Ingested.Pages)
		}
		if resp.Ingested.Chunks < 500 || resp.Ingested.Chunks >= 2500 {
			t.Fatalf("chunks out of range: %d", resp.Ingested.Chunks)
		}
	}
}

func TestHandleIngestFailure(t *testing.T) {
	handler := newTestHandler(t, Options{Ingester: failingIngester{}})

	rr := performJSON(t, handler, http.MethodPost, "/api/v1/ingest", map[string]string{})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}

	var resp errorResponse
	decodeBody(t, rr, &resp)
	if resp.Message != "Failed to ingest documents" || resp.Error != "disk unavailable" {
		t.Fatalf("unexpected error body %+v", resp)
	}
}

func TestHandleAsk(t *testing.T) {
	handler := newTestHandler(t, Options{})

	rr := performJSON(t, handler, http.MethodPost, "/api/v1/chat/ask", map[string]interface{}{
		"query": "What is the maximum tenure?",
		"top_k": 3,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	decodeBody(t, rr, &resp)
	if strings.TrimSpace(resp["answer"]) == "" {
		t.Fatal("expected a non-empty answer")
	}
}

func TestHandleAskEmptyQuery(t *testing.T) {
	handler := newTestHandler(t, Options{})

	for _, payload := range []interface{}{
		map[string]string{},
		map[string]string{"query": ""},
		map[string]string{"query": "   "},
	} {
		rr := performJSON(t, handler, http.MethodPost, "/api/v1/chat/ask", payload)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}

		var resp errorResponse
		decodeBody(t, rr, &resp)
		if resp.Message != "Query is required" {
			t.Fatalf("unexpected message %q", resp.Message)
		}
	}
}

func TestHandleDocsRedirect(t *testing.T) {
	handler := newTestHandler(t, Options{})

	rr := performJSON(t, handler, http.MethodGet, "/api/v1/docs", nil)
	if rr.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "https://swagger.io/specification/" {
		t.Fatalf("unexpected redirect location %q", loc)
	}
}

func TestHandleOpenAPI(t *testing.T) {
	handler := newTestHandler(t, Options{Version: "2.0.0"})

	rr := performJSON(t, handler, http.MethodGet, "/api/v1/openapi.json", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var doc struct {
		OpenAPI string `json:"openapi"`
		Info    struct {
			Version string `json:"version"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	decodeBody(t, rr, &doc)

	if doc.OpenAPI != "3.0.0" {
		t.Fatalf("unexpected openapi version %q", doc.OpenAPI)
	}
	if doc.Info.Version != "2.0.0" {
		t.Fatalf("unexpected info version %q", doc.Info.Version)
	}
	for _, path := range []string{"/health", "/ingest", "/chat/ask", "/eligibility/calculate"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Fatalf("expected path %s in document", path)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, Options{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/eligibility/calculate"},
		{http.MethodPost, "/api/v1/health"},
		{http.MethodGet, "/api/v1/chat/ask"},
		{http.MethodDelete, "/api/v1/ingest"},
	}

	for _, tt := range tests {
		rr := performJSON(t, handler, tt.method, tt.path, nil)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected status 405, got %d", tt.method, tt.path, rr.Code)
		}
	}
}

func TestNotFound(t *testing.T) {
	handler := newTestHandler(t, Options{})

	rr := performJSON(t, handler, http.MethodGet, "/api/v2/health", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON 404 body, got content type %q", ct)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	handler := newTestHandler(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected request ID to be echoed, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestHandler(t, Options{AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/eligibility/calculate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Authorization")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}

func TestBearerSubjectLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := newTestHandler(t, Options{Logger: zap.New(core), JWTSecret: "s3cret"})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "analyst-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	for _, header := range []string{"Bearer " + signed, "Bearer not-a-jwt", ""} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("bearer tokens must never reject requests, got %d", rr.Code)
		}
	}

	served := logs.FilterMessage("request served").All()
	if len(served) != 3 {
		t.Fatalf("expected 3 request logs, got %d", len(served))
	}
	if got := served[0].ContextMap()["subject"]; got != "analyst-7" {
		t.Fatalf("expected subject analyst-7, got %v", got)
	}
	if _, ok := served[1].ContextMap()["subject"]; ok {
		t.Fatal("expected no subject for an invalid token")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestHandler(t, Options{})

	performJSON(t, handler, http.MethodPost, "/api/v1/eligibility/calculate", map[string]interface{}{
		"monthly_income": 5000, "monthly_obligations": 4000, "roi": 6, "tenure_months": 240,
	})

	rr := performJSON(t, handler, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, `loan_support_http_requests_total{method="POST",route="/api/v1/eligibility/calculate",status="200"} 1`) {
		t.Fatalf("expected request counter in metrics output:\n%s", body)
	}
	if !strings.Contains(body, `loan_support_eligibility_calculations_total{outcome="non_affordable"} 1`) {
		t.Fatalf("expected eligibility counter in metrics output:\n%s", body)
	}
}

func TestRateLimitedPostRoutes(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour)
	t.Cleanup(limiter.Stop)
	handler := newTestHandler(t, Options{RateLimiter: limiter})

	payload := map[string]string{"query": "hello"}
	if rr := performJSON(t, handler, http.MethodPost, "/api/v1/chat/ask", payload); rr.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}
	if rr := performJSON(t, handler, http.MethodPost, "/api/v1/chat/ask", payload); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
	if rr := performJSON(t, handler, http.MethodGet, "/api/v1/health", nil); rr.Code != http.StatusOK {
		t.Fatalf("GET routes must not be limited, got %d", rr.Code)
	}
}
