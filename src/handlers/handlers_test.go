package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/parsers"
	"github.com/username/notefolio/backend/src/pricing"
	"github.com/username/notefolio/backend/src/services"
	"golang.org/x/time/rate"
)

type stubUploads struct {
	services.UploadService
	err       error
	lastUser  *int64
	lastText  string
	pdfCalls  int
	pdfPasswd string
}

func (s *stubUploads) ProcessText(text string, userID *int64) (*services.UploadResult, error) {
	s.lastText, s.lastUser = text, userID
	if s.err != nil {
		return nil, s.err
	}
	return &services.UploadResult{Layout: "aggregated", Parsed: 2, Inserted: 2}, nil
}

func (s *stubUploads) ProcessPDF(r io.ReaderAt, size int64, password string, userID *int64) (*services.UploadResult, error) {
	s.pdfCalls++
	s.pdfPasswd, s.lastUser = password, userID
	if s.err != nil {
		return nil, s.err
	}
	return &services.UploadResult{Layout: "tabular", Parsed: 1, Inserted: 1}, nil
}

type stubGains struct {
	services.GainsService
	years       []int
	lastYear    int
	lastUser    *int64
	deletedUser *int64
}

func (s *stubGains) GetCapitalGains(year int, userID *int64) (*models.CapitalGainsReport, error) {
	s.lastYear, s.lastUser = year, userID
	return &models.CapitalGainsReport{
		FinancialYear:       fmt.Sprintf("FY %d-%d", year, year+1),
		Year:                year,
		UserID:              userID,
		TotalShortTermGains: decimal.RequireFromString("237.5"),
		TotalLongTermGains:  decimal.Zero,
		TotalGains:          decimal.RequireFromString("237.5"),
	}, nil
}

func (s *stubGains) GetAvailableYears(userID *int64) ([]int, error) {
	return s.years, nil
}

func (s *stubGains) GetTransactions(userID *int64) ([]models.Transaction, error) {
	s.lastUser = userID
	return nil, nil
}

func (s *stubGains) DeleteTransactions(userID *int64) (int64, error) {
	s.deletedUser = userID
	return 4, nil
}

func (s *stubGains) GetHoldings(_ context.Context, userID *int64) ([]models.Holding, error) {
	return []models.Holding{
		{
			OpenLot:      models.OpenLot{RemainingQuantity: decimal.NewFromInt(5), CostBasis: decimal.RequireFromString("2262.5")},
			CurrentPrice: 480,
			MarketValue:  2400,
			PriceMethod:  "YAHOO_FINANCE_TICKER",
		},
		{
			OpenLot:     models.OpenLot{RemainingQuantity: decimal.NewFromInt(2), CostBasis: decimal.RequireFromString("600")},
			PriceMethod: models.MethodUnavailable,
		},
	}, nil
}

type stubPrices struct {
	services.PriceService
	quoteErr   error
	lastReq    pricing.Request
	resetAll   int
	lastUpdate services.ProviderUpdate
}

func (s *stubPrices) GetQuote(_ context.Context, req pricing.Request) (models.PriceQuote, error) {
	s.lastReq = req
	if s.quoteErr != nil {
		return models.PriceQuote{Method: models.MethodUnavailable}, s.quoteErr
	}
	return models.PriceQuote{Identifier: req.Identifier(), Price: 2450.5, Method: "STATIC_TICKER"}, nil
}

func (s *stubPrices) Search(_ context.Context, query string) []models.Listing {
	if query == "none" {
		return nil
	}
	return []models.Listing{{Symbol: "TCS", Name: "Tata Consultancy Services Limited"}}
}

func (s *stubPrices) ProviderStatus() []models.ProviderInfo {
	return []models.ProviderInfo{{Name: "static", Status: models.ProviderAvailable, Enabled: true, Priority: 1}}
}

func (s *stubPrices) ResetProvider(name string) error {
	if name != "static" {
		return fmt.Errorf("%w: %s", pricing.ErrUnknownProvider, name)
	}
	return nil
}

func (s *stubPrices) ResetAll() { s.resetAll++ }

func (s *stubPrices) TestProvider(_ context.Context, name, symbol string) (pricing.TestResult, error) {
	return pricing.TestResult{Provider: name, Symbol: symbol, Success: true, Price: 1}, nil
}

func (s *stubPrices) UpdateProvider(name string, update services.ProviderUpdate) error {
	s.lastUpdate = update
	if name != "static" {
		return fmt.Errorf("%w: %s", config.ErrUnknownProvider, name)
	}
	return nil
}

func (s *stubPrices) ReloadConfig() error { return nil }

func (s *stubPrices) ExportConfig() config.PriceConfig { return config.DefaultPriceConfig() }

type fixture struct {
	uploads *stubUploads
	gains   *stubGains
	prices  *stubPrices
	router  http.Handler
}

func newFixture(opts RouterOptions) *fixture {
	f := &fixture{uploads: &stubUploads{}, gains: &stubGains{}, prices: &stubPrices{}}
	f.router = NewRouter(f.uploads, f.gains, f.prices, opts)
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestCapitalGainsRoute(t *testing.T) {
	f := newFixture(RouterOptions{})

	rec := f.do(t, http.MethodGet, "/api/capital-gains?financial_year=2023-24&user_id=7", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2023, f.gains.lastYear)
	require.NotNil(t, f.gains.lastUser)
	assert.Equal(t, int64(7), *f.gains.lastUser)

	var report models.CapitalGainsReport
	decode(t, rec, &report)
	assert.Equal(t, "FY 2023-2024", report.FinancialYear)
	assert.NotNil(t, report.SecurityWiseGains)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	again := f.do(t, http.MethodGet, "/api/capital-gains?financial_year=2023&user_id=7", nil, http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, again.Code)

	bad := f.do(t, http.MethodGet, "/api/capital-gains?financial_year=23", nil, nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	badUser := f.do(t, http.MethodGet, "/api/capital-gains?user_id=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, badUser.Code)
}

func TestCapitalGainsDefaultsToCurrentYear(t *testing.T) {
	gains := &stubGains{}
	h := NewGainsHandler(gains)
	h.now = func() time.Time { return time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC) }

	rec := httptest.NewRecorder()
	h.HandleGetCapitalGains(rec, httptest.NewRequest(http.MethodGet, "/api/capital-gains", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2024, gains.lastYear)
	assert.Nil(t, gains.lastUser)
}

func TestAvailableYearsRoute(t *testing.T) {
	f := newFixture(RouterOptions{})
	f.gains.years = []int{2024, 2022}

	rec := f.do(t, http.MethodGet, "/api/capital-gains/years", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		FinancialYears []struct {
			Year  int    `json:"year"`
			Label string `json:"label"`
		} `json:"financial_years"`
	}
	decode(t, rec, &body)
	require.Len(t, body.FinancialYears, 2)
	assert.Equal(t, "FY 2024-2025", body.FinancialYears[0].Label)
	assert.Equal(t, 2022, body.FinancialYears[1].Year)
}

func TestTransactionRoutes(t *testing.T) {
	f := newFixture(RouterOptions{})

	rec := f.do(t, http.MethodGet, "/api/transactions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, http.MethodDelete, "/api/transactions", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, f.gains.deletedUser)

	rec = f.do(t, http.MethodDelete, "/api/transactions?user_id=3", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.gains.deletedUser)
	assert.Equal(t, int64(3), *f.gains.deletedUser)
	assert.JSONEq(t, `{"deleted":4}`, rec.Body.String())
}

func TestHoldingsRoute(t *testing.T) {
	f := newFixture(RouterOptions{})
	rec := f.do(t, http.MethodGet, "/api/holdings?user_id=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body holdingsResponse
	decode(t, rec, &body)
	assert.Len(t, body.Holdings, 2)
	assert.Equal(t, 2400.0, body.TotalMarketValue)
	assert.True(t, decimal.RequireFromString("2862.5").Equal(body.TotalCostBasis))
	assert.Equal(t, 1, body.UnpricedLots)
	assert.Contains(t, body.TotalMarketValueINR, "2,400.00")
}

func TestPriceRoutes(t *testing.T) {
	f := newFixture(RouterOptions{})

	rec := f.do(t, http.MethodGet, "/api/prices", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/prices?isin=INE467B01029&name=Tata", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "INE467B01029", f.prices.lastReq.ISIN)
	assert.Equal(t, "Tata", f.prices.lastReq.Name)
	var quote models.PriceQuote
	decode(t, rec, &quote)
	assert.Equal(t, 2450.5, quote.Price)

	f.prices.quoteErr = fmt.Errorf("%w: XYZ", pricing.ErrAllProvidersExhausted)
	rec = f.do(t, http.MethodGet, "/api/prices?ticker=XYZ", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/stocks/search?q=tata", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "TCS")

	rec = f.do(t, http.MethodGet, "/api/stocks/search?q=none", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"query":"none","results":[]}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/stocks/search", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(RouterOptions{})

	rec := f.do(t, http.MethodGet, "/api/admin/providers", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"static"`)

	rec = f.do(t, http.MethodPost, "/api/admin/providers/reset", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.prices.resetAll)

	rec = f.do(t, http.MethodPost, "/api/admin/providers/static/reset", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/admin/providers/nope/reset", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/providers/static/test?symbol=TCS", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result pricing.TestResult
	decode(t, rec, &result)
	assert.Equal(t, "TCS", result.Symbol)
	assert.True(t, result.Success)

	rec = f.do(t, http.MethodPatch, "/api/admin/providers/static", strings.NewReader(`{"enabled":false,"priority":2}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.prices.lastUpdate.Enabled)
	assert.False(t, *f.prices.lastUpdate.Enabled)
	assert.Equal(t, 2, *f.prices.lastUpdate.Priority)
	assert.Nil(t, f.prices.lastUpdate.APIKey)

	rec = f.do(t, http.MethodPatch, "/api/admin/providers/nope", strings.NewReader(`{"enabled":true}`), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodPatch, "/api/admin/providers/static", strings.NewReader(`{`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/price-config/reload", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "waterfall")
}

func TestTextUpload(t *testing.T) {
	f := newFixture(RouterOptions{})

	rec := f.do(t, http.MethodPost, "/api/contract-notes/text", strings.NewReader(`{"text":"Scrip wise summary ...","user_id":9}`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, f.uploads.lastUser)
	assert.Equal(t, int64(9), *f.uploads.lastUser)

	rec = f.do(t, http.MethodPost, "/api/contract-notes/text", strings.NewReader(`{"text":"  "}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.uploads.err = fmt.Errorf("%w: %w", services.ErrParsingFailed, &parsers.SectionNotFoundError{Excerpt: "x"})
	rec = f.do(t, http.MethodPost, "/api/contract-notes/text", strings.NewReader(`{"text":"no summary"}`), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	f.uploads.err = fmt.Errorf("database is locked")
	rec = f.do(t, http.MethodPost, "/api/contract-notes/text", strings.NewReader(`{"text":"no summary"}`), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestContractNoteUpload(t *testing.T) {
	f := newFixture(RouterOptions{})
	body, contentType := multipartBody(t,
		map[string]string{"password": "ABCDE1234F", "user_id": "12"},
		map[string][]byte{
			"note.pdf":  []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF\n"),
			"fake.pdf":  []byte("just some text pretending to be a pdf"),
			"notes.txt": []byte("Scrip wise summary"),
		})

	rec := f.do(t, http.MethodPost, "/api/contract-notes", body, http.Header{"Content-Type": {contentType}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.UploadedTransactions)
	require.Len(t, resp.Results, 3)

	byName := map[string]FileOutcome{}
	for _, r := range resp.Results {
		byName[r.FileName] = r
	}
	require.NotNil(t, byName["note.pdf"].Result)
	assert.Equal(t, "note.pdf", byName["note.pdf"].Result.FileName)
	assert.NotEmpty(t, byName["fake.pdf"].Error)
	assert.NotEmpty(t, byName["notes.txt"].Error)

	assert.Equal(t, 1, f.uploads.pdfCalls)
	assert.Equal(t, "ABCDE1234F", f.uploads.pdfPasswd)
	require.NotNil(t, f.uploads.lastUser)
	assert.Equal(t, int64(12), *f.uploads.lastUser)
}

func TestContractNoteUploadWithoutFiles(t *testing.T) {
	f := newFixture(RouterOptions{})
	body, contentType := multipartBody(t, map[string]string{"password": "x"}, nil)
	rec := f.do(t, http.MethodPost, "/api/contract-notes", body, http.Header{"Content-Type": {contentType}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestIDAndRateLimit(t *testing.T) {
	f := newFixture(RouterOptions{Limiter: rate.NewLimiter(0, 1)})

	rec := f.do(t, http.MethodGet, "/health", nil, http.Header{RequestIDHeader: {"abc-123"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(RouterOptions{AllowedOrigins: []string{"http://localhost:3000"}})
	rec := f.do(t, http.MethodOptions, "/api/transactions", nil, http.Header{
		"Origin":                        {"http://localhost:3000"},
		"Access-Control-Request-Method": {"DELETE"},
	})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
