package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/registry"
)

// Reference prices used by the static provider for offline runs.
var defaultStaticPrices = map[string]float64{
	"RELIANCE":   2450.50,
	"TCS":        3850.75,
	"INFY":       1650.25,
	"HDFCBANK":   1750.00,
	"ICICIBANK":  950.50,
	"ITC":        425.75,
	"WIPRO":      580.25,
	"BAJFINANCE": 7850.00,
	"MARUTI":     10500.25,
	"ADANIPORTS": 850.75,
	"CMS":        452.00,
}

// StaticProvider answers from a fixed price table. It is disabled by default and
// meant for development and demos without network access.
type StaticProvider struct {
	mu       sync.RWMutex
	prices   map[string]float64
	registry *registry.Registry
	health   *Health
}

func NewStaticProvider(reg *registry.Registry, prices map[string]float64) *StaticProvider {
	if prices == nil {
		prices = defaultStaticPrices
	}
	table := make(map[string]float64, len(prices))
	for k, v := range prices {
		table[registry.NormalizeTicker(k)] = v
	}
	return &StaticProvider{prices: table, registry: reg, health: NewHealth(DefaultMaxErrors)}
}

func (p *StaticProvider) Name() string    { return config.ProviderStatic }
func (p *StaticProvider) Health() *Health { return p.health }

// SetPrice updates or adds a table entry.
func (p *StaticProvider) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	p.prices[registry.NormalizeTicker(symbol)] = price
	p.mu.Unlock()
}

func (p *StaticProvider) GetPrice(_ context.Context, symbol string) (*models.PriceQuote, error) {
	ticker := registry.NormalizeTicker(symbol)
	p.mu.RLock()
	price, ok := p.prices[ticker]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoPrice, ticker)
	}
	return &models.PriceQuote{
		Identifier: symbol,
		Symbol:     ticker,
		Price:      price,
		Currency:   "INR",
		Provider:   p.Name(),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func (p *StaticProvider) GetPriceByISIN(ctx context.Context, isin string) (*models.PriceQuote, error) {
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

func (p *StaticProvider) Search(_ context.Context, query string) ([]models.Listing, error) {
	return p.registry.Search(query, registry.DefaultSearchLimit), nil
}
