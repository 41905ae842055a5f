package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/registry"
	"golang.org/x/time/rate"
)

const defaultAlphaVantageURL = "https://www.alphavantage.co/query"

// The free tier allows five requests a minute.
const (
	alphaVantageInterval = 12 * time.Second
	alphaVantageBurst    = 5
)

// AlphaVantageProvider queries GLOBAL_QUOTE for BSE listings. Calls beyond the
// local request budget fail with ErrRateLimited without touching the network.
type AlphaVantageProvider struct {
	mu         sync.RWMutex
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	registry   *registry.Registry
	health     *Health
}

func NewAlphaVantageProvider(reg *registry.Registry, settings config.ProviderSettings) *AlphaVantageProvider {
	p := &AlphaVantageProvider{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Every(alphaVantageInterval), alphaVantageBurst),
		registry:   reg,
		health:     NewHealth(DefaultMaxErrors),
	}
	p.Configure(settings)
	return p
}

func (p *AlphaVantageProvider) Name() string    { return config.ProviderAlphaVantage }
func (p *AlphaVantageProvider) Health() *Health { return p.health }

func (p *AlphaVantageProvider) Configure(settings config.ProviderSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apiKey = settings.Config.APIKey
	p.baseURL = settings.Config.BaseURL
	if p.baseURL == "" {
		p.baseURL = defaultAlphaVantageURL
	}
}

// SetLimiter replaces the request budget.
func (p *AlphaVantageProvider) SetLimiter(l *rate.Limiter) {
	p.mu.Lock()
	p.limiter = l
	p.mu.Unlock()
}

func (p *AlphaVantageProvider) settings() (apiKey, baseURL string, limiter *rate.Limiter) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.apiKey, p.baseURL, p.limiter
}

func bseSymbol(symbol string) string {
	return registry.NormalizeTicker(symbol) + ".BSE"
}

// query performs one API call and decodes the JSON object, translating the
// error envelopes Alpha Vantage returns with status 200.
func (p *AlphaVantageProvider) query(ctx context.Context, params url.Values) (map[string]json.RawMessage, error) {
	apiKey, baseURL, limiter := p.settings()
	if apiKey == "" {
		return nil, fmt.Errorf("%w: alpha vantage API key not configured", ErrNotSupported)
	}
	if !limiter.Allow() {
		return nil, fmt.Errorf("%w: local alpha vantage request budget spent", ErrRateLimited)
	}
	params.Set("apikey", apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpha vantage request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: alpha vantage returned status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpha vantage returned non-OK status %d", resp.StatusCode)
	}

	var data map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode alpha vantage response: %w", err)
	}
	if msg, ok := data["Error Message"]; ok {
		return nil, fmt.Errorf("alpha vantage API error: %s", string(msg))
	}
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := data[key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, string(msg))
		}
	}
	return data, nil
}

func (p *AlphaVantageProvider) GetPrice(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	sym := bseSymbol(symbol)
	data, err := p.query(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {sym}})
	if err != nil {
		return nil, err
	}

	var quote map[string]string
	if raw, ok := data["Global Quote"]; ok {
		if err := json.Unmarshal(raw, &quote); err != nil {
			return nil, fmt.Errorf("failed to decode global quote for %s: %w", sym, err)
		}
	}
	priceText, ok := quote["05. price"]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoPrice, sym)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(priceText), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q for %s: %w", priceText, sym, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoPrice, sym)
	}

	return &models.PriceQuote{
		Identifier: symbol,
		Symbol:     registry.NormalizeTicker(symbol),
		Price:      price,
		Currency:   "INR",
		Provider:   p.Name(),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// GetPriceByISIN only serves ISINs the registry can map.
func (p *AlphaVantageProvider) GetPriceByISIN(ctx context.Context, isin string) (*models.PriceQuote, error) {
	ticker, ok := p.registry.TickerForISIN(isin)
	if !ok {
		return nil, fmt.Errorf("%w: ISIN %s not mapped", ErrNotSupported, isin)
	}
	quote, err := p.GetPrice(ctx, ticker)
	if err != nil {
		return nil, err
	}
	quote.Identifier = isin
	return quote, nil
}

// Search prefers the local registry and falls back to SYMBOL_SEARCH.
func (p *AlphaVantageProvider) Search(ctx context.Context, query string) ([]models.Listing, error) {
	if local := p.registry.Search(query, registry.DefaultSearchLimit); len(local) > 0 {
		return local, nil
	}
	if apiKey, _, _ := p.settings(); apiKey == "" {
		return nil, nil
	}

	data, err := p.query(ctx, url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {query}})
	if err != nil {
		return nil, err
	}
	var matches []map[string]string
	if raw, ok := data["bestMatches"]; ok {
		if err := json.Unmarshal(raw, &matches); err != nil {
			return nil, fmt.Errorf("failed to decode symbol search: %w", err)
		}
	}

	var out []models.Listing
	for _, m := range matches {
		region := m["4. region"]
		if region != "" && !strings.Contains(strings.ToUpper(region), "INDIA") {
			continue
		}
		out = append(out, models.Listing{
			Symbol:   registry.NormalizeTicker(m["1. symbol"]),
			Name:     m["2. name"],
			Exchange: "BSE",
		})
		if len(out) == registry.DefaultSearchLimit {
			break
		}
	}
	return out, nil
}
