package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/registry"
	"golang.org/x/net/publicsuffix"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// Structs for Yahoo Finance API responses
type yahooSearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		Exchange  string `json:"exchange"`
		Shortname string `json:"shortname"`
		Longname  string `json:"longname"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooProvider reads NSE prices from Yahoo Finance's chart API. ISINs unknown to
// the registry are resolved through Yahoo search and remembered.
type YahooProvider struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
	registry   *registry.Registry
	health     *Health
}

func NewYahooProvider(reg *registry.Registry, settings config.ProviderSettings) *YahooProvider {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	p := &YahooProvider{
		httpClient: &http.Client{Jar: jar},
		registry:   reg,
		health:     NewHealth(DefaultMaxErrors),
	}
	p.Configure(settings)
	return p
}

func (p *YahooProvider) Name() string    { return config.ProviderYahooFinance }
func (p *YahooProvider) Health() *Health { return p.health }

func (p *YahooProvider) Configure(settings config.ProviderSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseURL = strings.TrimRight(settings.Config.BaseURL, "/")
	if p.baseURL == "" {
		p.baseURL = defaultYahooBaseURL
	}
}

func (p *YahooProvider) base() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.baseURL
}

func (p *YahooProvider) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	// A valid User-Agent is crucial.
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: yahoo returned status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("yahoo returned non-OK status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// GetPrice quotes the NSE listing of symbol.
func (p *YahooProvider) GetPrice(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	ticker := registry.NormalizeTicker(symbol)
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrNotSupported)
	}
	yahooSymbol := ticker + ".NS"

	resp, err := p.get(ctx, fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", p.base(), url.PathEscape(yahooSymbol)))
	if err != nil {
		return nil, fmt.Errorf("failed to call Yahoo chart API for %s: %w", yahooSymbol, err)
	}
	defer resp.Body.Close()

	var chart yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("failed to decode Yahoo chart response for %s: %w", yahooSymbol, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart API error for %s: %s", yahooSymbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || chart.Chart.Result[0].Meta.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoPrice, yahooSymbol)
	}

	meta := chart.Chart.Result[0].Meta
	currency := meta.Currency
	if currency == "" {
		currency = "INR"
	}
	return &models.PriceQuote{
		Identifier: symbol,
		Symbol:     ticker,
		Price:      meta.RegularMarketPrice,
		Currency:   currency,
		Provider:   p.Name(),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// GetPriceByISIN resolves isin to a ticker, asking Yahoo search when the
// registry does not know it.
func (p *YahooProvider) GetPriceByISIN(ctx context.Context, isin string) (*models.PriceQuote, error) {
	ticker, ok := p.registry.TickerForISIN(isin)
	if !ok {
		var err error
		ticker, err = p.tickerForISIN(ctx, isin)
		if err != nil {
			return nil, err
		}
		if err := p.registry.Learn(isin, ticker); err != nil {
			logger.L.Warn("Could not remember ISIN mapping", "isin", isin, "ticker", ticker, "error", err)
		}
	}
	quote, err := p.GetPrice(ctx, ticker)
	if err != nil {
		return nil, err
	}
	quote.Identifier = isin
	return quote, nil
}

// tickerForISIN uses Yahoo's search to find an Indian listing for an ISIN.
func (p *YahooProvider) tickerForISIN(ctx context.Context, isin string) (string, error) {
	resp, err := p.get(ctx, fmt.Sprintf("%s/v1/finance/search?q=%s", p.base(), url.QueryEscape(isin)))
	if err != nil {
		return "", fmt.Errorf("failed to call Yahoo search API for ISIN %s: %w", isin, err)
	}
	defer resp.Body.Close()

	var searchData yahooSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchData); err != nil {
		return "", fmt.Errorf("failed to decode Yahoo search response for ISIN %s: %w", isin, err)
	}
	for _, q := range searchData.Quotes {
		s := strings.ToUpper(q.Symbol)
		if strings.HasSuffix(s, ".NS") || strings.HasSuffix(s, ".BO") {
			return registry.NormalizeTicker(s), nil
		}
	}
	return "", fmt.Errorf("%w: no Indian listing for ISIN %s on Yahoo Finance", ErrNotSupported, isin)
}

// Search looks in the local registry only.
func (p *YahooProvider) Search(_ context.Context, query string) ([]models.Listing, error) {
	return p.registry.Search(query, registry.DefaultSearchLimit), nil
}
