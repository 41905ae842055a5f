// backend/src/services/price_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/models"
	"github.com/username/notefolio/backend/src/pricing"
)

// maxConcurrentQuotes bounds parallel waterfall runs for one batch.
const maxConcurrentQuotes = 4

type priceServiceImpl struct {
	manager    *pricing.Manager
	quoteCache *cache.Cache
}

// NewPriceService wraps the waterfall manager with a quote cache whose lifetime
// follows fallback.cache_duration_minutes.
func NewPriceService(manager *pricing.Manager) PriceService {
	return &priceServiceImpl{
		manager:    manager,
		quoteCache: cache.New(cache.NoExpiration, CacheCleanupInterval),
	}
}

// QuoteKey identifies a request in caches and GetQuotes results.
func QuoteKey(req pricing.Request) string {
	return fmt.Sprintf(ckQuote,
		strings.ToUpper(strings.TrimSpace(req.Ticker)),
		strings.ToUpper(strings.TrimSpace(req.ISIN)),
		strings.ToUpper(strings.TrimSpace(req.Name)))
}

// GetQuote serves cached quotes while they are fresh. Unavailable results are
// never cached so the next call tries the providers again.
func (s *priceServiceImpl) GetQuote(ctx context.Context, req pricing.Request) (models.PriceQuote, error) {
	key := QuoteKey(req)
	if cached, found := s.quoteCache.Get(key); found {
		logger.FromContext(ctx).Debug("Cache hit for quote", "identifier", req.Identifier())
		return cached.(models.PriceQuote), nil
	}

	quote, err := s.manager.Resolve(ctx, req)
	if err != nil {
		return quote, err
	}
	if ttl := s.manager.Config().Snapshot().Fallback.CacheDuration(); ttl > 0 && quote.Available() {
		s.quoteCache.Set(key, quote, ttl)
	}
	return quote, nil
}

// GetQuotes resolves every request, keyed by quoteKey order of the input. A
// request that fails is reported as an unavailable quote.
func (s *priceServiceImpl) GetQuotes(ctx context.Context, reqs []pricing.Request) map[string]models.PriceQuote {
	out := make(map[string]models.PriceQuote, len(reqs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentQuotes)

	for _, req := range reqs {
		key := QuoteKey(req)
		mu.Lock()
		_, dup := out[key]
		if !dup {
			out[key] = models.PriceQuote{Identifier: req.Identifier(), Method: models.MethodUnavailable}
		}
		mu.Unlock()
		if dup {
			continue
		}

		wg.Add(1)
		go func(req pricing.Request, key string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			quote, err := s.GetQuote(ctx, req)
			if err != nil {
				logger.FromContext(ctx).Warn("Quote unavailable", "identifier", req.Identifier(), "error", err)
				return
			}
			mu.Lock()
			out[key] = quote
			mu.Unlock()
		}(req, key)
	}
	wg.Wait()
	return out
}

// WarmUp refreshes the cache for reqs and returns how many were priced.
func (s *priceServiceImpl) WarmUp(ctx context.Context, reqs []pricing.Request) int {
	for _, req := range reqs {
		s.quoteCache.Delete(QuoteKey(req))
	}
	priced := 0
	for _, q := range s.GetQuotes(ctx, reqs) {
		if q.Available() {
			priced++
		}
	}
	logger.L.Info("Quote warm-up finished", "requested", len(reqs), "priced", priced)
	return priced
}

func (s *priceServiceImpl) Search(ctx context.Context, query string) []models.Listing {
	return s.manager.Search(ctx, query)
}

func (s *priceServiceImpl) ProviderStatus() []models.ProviderInfo {
	return s.manager.ProviderStatus()
}

func (s *priceServiceImpl) ResetProvider(name string) error {
	return s.manager.ResetProvider(name)
}

func (s *priceServiceImpl) ResetAll() {
	s.manager.ResetAll()
}

func (s *priceServiceImpl) TestProvider(ctx context.Context, name, symbol string) (pricing.TestResult, error) {
	return s.manager.TestProvider(ctx, name, symbol)
}

// UpdateProvider persists the changed settings and applies them to the running
// providers. Cached quotes are dropped since the waterfall order may differ.
func (s *priceServiceImpl) UpdateProvider(name string, update ProviderUpdate) error {
	if update.Enabled == nil && update.Priority == nil && update.APIKey == nil {
		return fmt.Errorf("%w: no provider fields to update", ErrInvalidRequest)
	}
	if update.Priority != nil && *update.Priority < config.PriorityPrimary {
		return fmt.Errorf("%w: priority must be at least %d", ErrInvalidRequest, config.PriorityPrimary)
	}

	store := s.manager.Config()
	if update.Enabled != nil {
		if err := store.SetProviderEnabled(name, *update.Enabled); err != nil {
			return err
		}
	}
	if update.Priority != nil {
		if err := store.SetProviderPriority(name, *update.Priority); err != nil {
			return err
		}
	}
	if update.APIKey != nil {
		if err := store.SetAPIKey(name, strings.TrimSpace(*update.APIKey)); err != nil {
			return err
		}
	}
	s.manager.ApplyConfig()
	s.quoteCache.Flush()
	logger.L.Info("Price provider updated", "provider", name)
	return nil
}

func (s *priceServiceImpl) ReloadConfig() error {
	if err := s.manager.ReloadConfig(); err != nil {
		return err
	}
	s.quoteCache.Flush()
	return nil
}

// ReloadConfigIfChanged re-reads the config file only when it was modified.
func (s *priceServiceImpl) ReloadConfigIfChanged() (bool, error) {
	changed, err := s.manager.Config().ReloadIfChanged()
	if err != nil || !changed {
		return changed, err
	}
	s.manager.ApplyConfig()
	s.quoteCache.Flush()
	return true, nil
}

func (s *priceServiceImpl) ExportConfig() config.PriceConfig {
	return s.manager.Config().Export()
}
