package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/registry"
	"golang.org/x/time/rate"
)

func TestYahooProviderQuotesNSEListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/v8/finance/chart/CMS.NS":
			w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"CMS.NS","currency":"INR","regularMarketPrice":452.5}}],"error":null}}`))
		case "/v8/finance/chart/NEWCO.NS":
			w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"NEWCO.NS","currency":"INR","regularMarketPrice":101.25}}],"error":null}}`))
		case "/v1/finance/search":
			assert.Equal(t, "INE000N01011", r.URL.Query().Get("q"))
			w.Write([]byte(`{"quotes":[{"symbol":"NEWCO.L","exchange":"LSE"},{"symbol":"NEWCO.NS","exchange":"NSI"}]}`))
		case "/v8/finance/chart/BUSY.NS":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Write([]byte(`{"chart":{"result":[],"error":{"code":"Not Found","description":"No data found"}}}`))
		}
	}))
	defer srv.Close()

	reg := registry.New()
	p := NewYahooProvider(reg, config.ProviderSettings{Config: config.ProviderOptions{BaseURL: srv.URL}})
	ctx := context.Background()

	quote, err := p.GetPrice(ctx, "cms.ns")
	require.NoError(t, err)
	assert.Equal(t, 452.5, quote.Price)
	assert.Equal(t, "CMS", quote.Symbol)
	assert.Equal(t, "INR", quote.Currency)

	quote, err = p.GetPriceByISIN(ctx, "INE925R01014")
	require.NoError(t, err)
	assert.Equal(t, 452.5, quote.Price)
	assert.Equal(t, "INE925R01014", quote.Identifier)

	quote, err = p.GetPriceByISIN(ctx, "INE000N01011")
	require.NoError(t, err)
	assert.Equal(t, 101.25, quote.Price)
	ticker, ok := reg.TickerForISIN("INE000N01011")
	assert.True(t, ok)
	assert.Equal(t, "NEWCO", ticker)

	_, err = p.GetPrice(ctx, "BUSY")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = p.GetPrice(ctx, "GHOST")
	assert.Error(t, err)

	listings, err := p.Search(ctx, "wonderla")
	require.NoError(t, err)
	require.NotEmpty(t, listings)
	assert.Equal(t, "WONDERLA", listings[0].Symbol)
}

func TestAlphaVantageProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "secret-key", q.Get("apikey"))
		switch q.Get("symbol") {
		case "RELIANCE.BSE":
			w.Write([]byte(`{"Global Quote":{"01. symbol":"RELIANCE.BSE","05. price":"2450.5000"}}`))
		case "TCS.BSE":
			w.Write([]byte(`{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
		case "BAD.BSE":
			w.Write([]byte(`{"Error Message":"Invalid API call."}`))
		default:
			w.Write([]byte(`{"Global Quote":{}}`))
		}
	}))
	defer srv.Close()

	reg := registry.New()
	p := NewAlphaVantageProvider(reg, config.ProviderSettings{
		Config: config.ProviderOptions{APIKey: "secret-key", BaseURL: srv.URL},
	})
	p.SetLimiter(rate.NewLimiter(rate.Inf, 1))
	ctx := context.Background()

	quote, err := p.GetPrice(ctx, "RELIANCE.NS")
	require.NoError(t, err)
	assert.Equal(t, 2450.5, quote.Price)
	assert.Equal(t, "RELIANCE", quote.Symbol)

	quote, err = p.GetPriceByISIN(ctx, "INE002A01018")
	require.NoError(t, err)
	assert.Equal(t, 2450.5, quote.Price)

	_, err = p.GetPrice(ctx, "TCS")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = p.GetPrice(ctx, "BAD")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)

	_, err = p.GetPrice(ctx, "EMPTY")
	assert.ErrorIs(t, err, ErrNoPrice)

	_, err = p.GetPriceByISIN(ctx, "INE999Z99999")
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestAlphaVantageLocalBudgetAndMissingKey(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"Global Quote":{"05. price":"100.00"}}`))
	}))
	defer srv.Close()

	reg := registry.New()
	p := NewAlphaVantageProvider(reg, config.ProviderSettings{
		Config: config.ProviderOptions{APIKey: "k", BaseURL: srv.URL},
	})
	p.SetLimiter(rate.NewLimiter(0, 1))

	_, err := p.GetPrice(context.Background(), "ITC")
	require.NoError(t, err)
	_, err = p.GetPrice(context.Background(), "ITC")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, calls)

	p.Configure(config.ProviderSettings{Config: config.ProviderOptions{BaseURL: srv.URL}})
	_, err = p.GetPrice(context.Background(), "ITC")
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.Equal(t, 1, calls)
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(registry.New(), nil)
	ctx := context.Background()

	quote, err := p.GetPriceByISIN(ctx, "INE925R01014")
	require.NoError(t, err)
	assert.Equal(t, 452.0, quote.Price)

	_, err = p.GetPrice(ctx, "GREENPANEL")
	assert.ErrorIs(t, err, ErrNoPrice)

	p.SetPrice("GREENPANEL.NS", 300)
	quote, err = p.GetPrice(ctx, "greenpanel")
	require.NoError(t, err)
	assert.Equal(t, 300.0, quote.Price)
}

func TestManagerWithStaticProviderResolvesByName(t *testing.T) {
	cfg := config.DefaultPriceConfig()
	static := cfg.Providers[config.ProviderStatic]
	static.Enabled = true
	cfg.Providers[config.ProviderStatic] = static
	cfg.Providers[config.ProviderAlphaVantage] = config.ProviderSettings{Enabled: false, Priority: config.PriorityDisabled}
	cfg.Providers[config.ProviderYahooFinance] = config.ProviderSettings{Enabled: false, Priority: config.PriorityDisabled}

	m := NewManager(config.NewPriceConfigStore(cfg), NewStaticProvider(registry.New(), nil))
	quote, err := m.Resolve(context.Background(), Request{Name: "CMS Info Systems Limited"})
	require.NoError(t, err)
	assert.Equal(t, 452.0, quote.Price)
	assert.Equal(t, "STATIC_TICKER_SEARCH", quote.Method)
}
