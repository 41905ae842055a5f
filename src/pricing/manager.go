package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/models"
)

// nameSearchPrefix is how much of a security name is sent to provider search.
const nameSearchPrefix = 10

const DefaultTestSymbol = "RELIANCE"

// Request carries every identifier known for a security. Resolution tries the
// ticker, then the ISIN, then a name search.
type Request struct {
	Ticker string `json:"ticker,omitempty"`
	ISIN   string `json:"isin,omitempty"`
	Name   string `json:"name,omitempty"`
}

func (r Request) normalized() Request {
	return Request{
		Ticker: strings.TrimSpace(r.Ticker),
		ISIN:   strings.ToUpper(strings.TrimSpace(r.ISIN)),
		Name:   strings.TrimSpace(r.Name),
	}
}

func (r Request) Identifier() string {
	switch {
	case r.Ticker != "":
		return r.Ticker
	case r.ISIN != "":
		return r.ISIN
	default:
		return r.Name
	}
}

// Manager runs the provider waterfall. It is the only component that records
// provider health, so one call outcome is counted exactly once.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
	config    *config.PriceConfigStore
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewManager(store *config.PriceConfigStore, providers ...Provider) *Manager {
	m := &Manager{
		providers: make(map[string]Provider, len(providers)),
		config:    store,
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, p := range providers {
		m.providers[p.Name()] = p
	}
	m.ApplyConfig()
	return m
}

// SetClock replaces the time source used for cooldowns.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// SetSleeper replaces the wait used between retries.
func (m *Manager) SetSleeper(sleep func(ctx context.Context, d time.Duration) error) {
	m.mu.Lock()
	m.sleep = sleep
	m.mu.Unlock()
}

func (m *Manager) clock() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now()
}

func (m *Manager) wait(ctx context.Context, d time.Duration) error {
	m.mu.RLock()
	sleep := m.sleep
	m.mu.RUnlock()
	return sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	m.providers[p.Name()] = p
	m.mu.Unlock()
	applySettings(p, m.config.Snapshot())
}

func (m *Manager) Config() *config.PriceConfigStore { return m.config }

func applySettings(p Provider, cfg config.PriceConfig) {
	if c, ok := p.(Configurable); ok {
		if settings, found := cfg.Providers[p.Name()]; found {
			c.Configure(settings)
		}
	}
	p.Health().SetMaxErrors(cfg.Waterfall.MaxErrors)
}

// ApplyConfig pushes the current configuration into every registered provider.
// Provider health survives.
func (m *Manager) ApplyConfig() {
	cfg := m.config.Snapshot()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.providers {
		applySettings(p, cfg)
	}
}

// ReloadConfig re-reads the configuration file and applies it.
func (m *Manager) ReloadConfig() error {
	if err := m.config.Reload(); err != nil {
		return err
	}
	m.ApplyConfig()
	logger.L.Info("Price provider configuration reloaded")
	return nil
}

// eligible lists enabled providers by priority that are available now, giving
// disabled ones another chance once their cooldown has passed.
func (m *Manager) eligible(cfg config.PriceConfig) []Provider {
	now := m.clock()
	cooldown := cfg.Waterfall.Cooldown()

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Provider
	for _, name := range cfg.EnabledProviders() {
		p, ok := m.providers[name]
		if !ok {
			continue
		}
		before := p.Health().Status()
		if !p.Health().TryRetry(now, cooldown) {
			continue
		}
		if before != models.ProviderAvailable {
			logger.L.Info("Retrying previously disabled provider", "provider", name, "previousStatus", before)
		}
		out = append(out, p)
	}
	if !cfg.Waterfall.Enabled && len(out) > 1 {
		out = out[:1]
	}
	return out
}

func callProvider(ctx context.Context, p Provider, kind models.IdentifierKind, id string) (*models.PriceQuote, error) {
	if kind == models.IdentifierISIN {
		return p.GetPriceByISIN(ctx, id)
	}
	return p.GetPrice(ctx, id)
}

// attempt calls one provider up to the configured number of times. Rate limiting
// or the provider dropping out of AVAILABLE ends the attempts early.
func (m *Manager) attempt(ctx context.Context, p Provider, cfg config.PriceConfig, kind models.IdentifierKind, id string) (models.PriceQuote, error) {
	log := logger.FromContext(ctx)
	timeout := cfg.Providers[p.Name()].Timeout()
	retries := cfg.Waterfall.MaxRetriesPerProvider
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		if i > 0 {
			if err := m.wait(ctx, cfg.Waterfall.Backoff()<<(i-1)); err != nil {
				break
			}
		}
		if p.Health().Status() != models.ProviderAvailable {
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		quote, err := callProvider(callCtx, p, kind, id)
		cancel()

		if err == nil && quote != nil && quote.Price > 0 {
			p.Health().RecordSuccess()
			quote.Identifier = id
			quote.Kind = kind
			quote.Provider = p.Name()
			quote.Method = MethodTag(p.Name(), kind)
			if quote.FetchedAt.IsZero() {
				quote.FetchedAt = m.clock()
			}
			log.Info("Price resolved", "provider", p.Name(), "kind", kind, "identifier", id, "price", quote.Price, "attempt", i+1)
			return *quote, nil
		}
		if err == nil {
			err = ErrNoPrice
		}
		lastErr = &ProviderError{Provider: p.Name(), Kind: kind, Identifier: id, Err: err}

		if errors.Is(err, ErrNotSupported) {
			log.Debug("Provider cannot serve identifier", "provider", p.Name(), "kind", kind, "identifier", id, "error", err)
			return models.PriceQuote{}, lastErr
		}
		p.Health().RecordError(err, m.clock())
		log.Warn("Price provider call failed", "provider", p.Name(), "kind", kind, "identifier", id, "attempt", i+1, "error", err)

		if errors.Is(err, ErrRateLimited) || ctx.Err() != nil {
			break
		}
	}
	return models.PriceQuote{}, lastErr
}

func (m *Manager) resolveTier(ctx context.Context, eligible []Provider, cfg config.PriceConfig, kind models.IdentifierKind, id string) (models.PriceQuote, bool) {
	for _, p := range eligible {
		if ctx.Err() != nil {
			return models.PriceQuote{}, false
		}
		if p.Health().Status() != models.ProviderAvailable {
			continue
		}
		if quote, err := m.attempt(ctx, p, cfg, kind, id); err == nil {
			return quote, true
		}
	}
	return models.PriceQuote{}, false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// search returns the first non-empty result list in provider order.
func (m *Manager) search(ctx context.Context, eligible []Provider, cfg config.PriceConfig, query string) []models.Listing {
	log := logger.FromContext(ctx)
	for _, p := range eligible {
		if p.Health().Status() != models.ProviderAvailable {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, cfg.Providers[p.Name()].Timeout())
		results, err := p.Search(callCtx, query)
		cancel()
		if err != nil {
			if !errors.Is(err, ErrNotSupported) {
				p.Health().RecordError(err, m.clock())
				log.Warn("Provider search failed", "provider", p.Name(), "query", query, "error", err)
			}
			continue
		}
		if len(results) > 0 {
			log.Debug("Search results found", "provider", p.Name(), "query", query, "count", len(results))
			return results
		}
	}
	return nil
}

// resolveName searches by the start of the name and prices the first candidate
// whose name equals or contains the full name.
func (m *Manager) resolveName(ctx context.Context, eligible []Provider, cfg config.PriceConfig, name string) (models.PriceQuote, bool) {
	want := strings.ToUpper(name)
	for _, c := range m.search(ctx, eligible, cfg, truncateRunes(name, nameSearchPrefix)) {
		candidate := strings.ToUpper(c.Name)
		if candidate != want && !strings.Contains(candidate, want) {
			continue
		}
		quote, ok := m.resolveTier(ctx, eligible, cfg, models.IdentifierTicker, c.Symbol)
		if !ok {
			continue
		}
		quote.Identifier = name
		quote.Kind = models.IdentifierName
		quote.Method += "_SEARCH"
		return quote, true
	}
	return models.PriceQuote{}, false
}

// Resolve prices a security through the waterfall. When nothing resolves it
// returns a zero UNAVAILABLE quote, with ErrAllProvidersExhausted unless the
// configuration asks for a silent zero.
func (m *Manager) Resolve(ctx context.Context, req Request) (models.PriceQuote, error) {
	req = req.normalized()
	unavailable := models.PriceQuote{Identifier: req.Identifier(), Method: models.MethodUnavailable}
	if req.Identifier() == "" {
		return unavailable, ErrEmptyRequest
	}

	cfg := m.config.Snapshot()
	eligible := m.eligible(cfg)
	log := logger.FromContext(ctx)
	log.Debug("Resolving price", "ticker", req.Ticker, "isin", req.ISIN, "name", req.Name, "providers", len(eligible))

	if req.Ticker != "" {
		if q, ok := m.resolveTier(ctx, eligible, cfg, models.IdentifierTicker, req.Ticker); ok {
			return q, nil
		}
	}
	if req.ISIN != "" {
		if q, ok := m.resolveTier(ctx, eligible, cfg, models.IdentifierISIN, req.ISIN); ok {
			return q, nil
		}
	}
	if req.Name != "" {
		if q, ok := m.resolveName(ctx, eligible, cfg, req.Name); ok {
			return q, nil
		}
	}

	unavailable.FetchedAt = m.clock()
	if err := ctx.Err(); err != nil {
		return unavailable, err
	}
	log.Warn("All price providers failed", "identifier", req.Identifier())
	if cfg.Fallback.ReturnZeroOnFailure {
		return unavailable, nil
	}
	return unavailable, fmt.Errorf("%w: %s", ErrAllProvidersExhausted, req.Identifier())
}

func (m *Manager) GetPrice(ctx context.Context, symbol string) (models.PriceQuote, error) {
	return m.Resolve(ctx, Request{Ticker: symbol})
}

func (m *Manager) GetPriceByISIN(ctx context.Context, isin string) (models.PriceQuote, error) {
	return m.Resolve(ctx, Request{ISIN: isin})
}

// Search returns listings from the first eligible provider that has any.
func (m *Manager) Search(ctx context.Context, query string) []models.Listing {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	cfg := m.config.Snapshot()
	return m.search(ctx, m.eligible(cfg), cfg, query)
}

func (m *Manager) provider(name string) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	return p, ok
}

// ProviderStatus reports every configured or registered provider by priority.
func (m *Manager) ProviderStatus() []models.ProviderInfo {
	cfg := m.config.Snapshot()

	m.mu.RLock()
	names := make(map[string]struct{}, len(cfg.Providers)+len(m.providers))
	for name := range cfg.Providers {
		names[name] = struct{}{}
	}
	for name := range m.providers {
		names[name] = struct{}{}
	}
	m.mu.RUnlock()

	out := make([]models.ProviderInfo, 0, len(names))
	for name := range names {
		info := models.ProviderInfo{Name: name, Priority: config.PriorityDisabled, Status: models.ProviderUnavailable}
		if s, ok := cfg.Providers[name]; ok {
			info.Enabled = s.Enabled
			info.Priority = s.Priority
			info.HasAPIKey = s.Config.APIKey != ""
		}
		if p, ok := m.provider(name); ok {
			snap := p.Health().Snapshot()
			info.Registered = true
			info.Status = snap.Status
			info.ErrorCount = snap.ErrorCount
			info.MaxErrors = snap.MaxErrors
			if !snap.LastRetry.IsZero() {
				t := snap.LastRetry
				info.LastRetry = &t
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (m *Manager) ResetProvider(name string) error {
	p, ok := m.provider(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	p.Health().Reset()
	logger.L.Info("Price provider reset", "provider", name)
	return nil
}

func (m *Manager) ResetAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.providers {
		p.Health().Reset()
	}
	logger.L.Info("All price providers reset", "count", len(m.providers))
}

type TestResult struct {
	Provider       string  `json:"provider"`
	Symbol         string  `json:"symbol"`
	Success        bool    `json:"success"`
	Price          float64 `json:"price,omitempty"`
	ResponseMillis int64   `json:"response_time_ms"`
	Error          string  `json:"error,omitempty"`
}

// TestProvider calls one provider directly, bypassing priority and cooldown.
// The outcome still counts towards its health.
func (m *Manager) TestProvider(ctx context.Context, name, symbol string) (TestResult, error) {
	p, ok := m.provider(name)
	if !ok {
		return TestResult{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	if strings.TrimSpace(symbol) == "" {
		symbol = DefaultTestSymbol
	}
	cfg := m.config.Snapshot()
	result := TestResult{Provider: name, Symbol: symbol}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Providers[name].Timeout())
	defer cancel()
	start := time.Now()
	quote, err := p.GetPrice(callCtx, symbol)
	result.ResponseMillis = time.Since(start).Milliseconds()

	switch {
	case err == nil && quote != nil && quote.Price > 0:
		p.Health().RecordSuccess()
		result.Success = true
		result.Price = quote.Price
	default:
		if err == nil {
			err = ErrNoPrice
		}
		if !errors.Is(err, ErrNotSupported) {
			p.Health().RecordError(err, m.clock())
		}
		result.Error = err.Error()
	}
	return result, nil
}
