package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/pricing"
)

type configReloader interface {
	ReloadConfigIfChanged() (bool, error)
}

type heldSecuritiesSource interface {
	HeldSecurities() ([]pricing.Request, error)
}

type quoteWarmer interface {
	WarmUp(ctx context.Context, reqs []pricing.Request) int
}

// ConfigReloadJob picks up edits to the price provider config file.
type ConfigReloadJob struct {
	reloader configReloader
	log      *slog.Logger
}

func NewConfigReloadJob(reloader configReloader) *ConfigReloadJob {
	return &ConfigReloadJob{reloader: reloader, log: logger.L.With("job", "price_config_reload")}
}

func (j *ConfigReloadJob) Name() string { return "price_config_reload" }

func (j *ConfigReloadJob) Run() error {
	changed, err := j.reloader.ReloadConfigIfChanged()
	if err != nil {
		return fmt.Errorf("reloading price config: %w", err)
	}
	if changed {
		j.log.Info("Price provider config changed on disk and was reloaded")
	}
	return nil
}

// DefaultWarmUpTimeout bounds one refresh of every held security.
const DefaultWarmUpTimeout = 2 * time.Minute

// QuoteWarmUpJob refreshes cached quotes for every security with open lots so
// holdings requests are served from cache during market hours.
type QuoteWarmUpJob struct {
	holdings heldSecuritiesSource
	prices   quoteWarmer
	timeout  time.Duration
	log      *slog.Logger
}

func NewQuoteWarmUpJob(holdings heldSecuritiesSource, prices quoteWarmer, timeout time.Duration) *QuoteWarmUpJob {
	if timeout <= 0 {
		timeout = DefaultWarmUpTimeout
	}
	return &QuoteWarmUpJob{
		holdings: holdings,
		prices:   prices,
		timeout:  timeout,
		log:      logger.L.With("job", "quote_warm_up"),
	}
}

func (j *QuoteWarmUpJob) Name() string { return "quote_warm_up" }

func (j *QuoteWarmUpJob) Run() error {
	reqs, err := j.holdings.HeldSecurities()
	if err != nil {
		return fmt.Errorf("listing held securities: %w", err)
	}
	if len(reqs) == 0 {
		j.log.Debug("No open positions to price")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	priced := j.prices.WarmUp(ctx, reqs)
	j.log.Info("Quote cache refreshed", "securities", len(reqs), "priced", priced)
	return nil
}
