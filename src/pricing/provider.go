// Package pricing resolves current security prices through a ranked list of
// providers, tracking the health of each.
package pricing

import (
	"context"
	"strings"

	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/models"
)

// Provider is a price source. Implementations report failures as errors and
// leave health accounting to the Manager.
type Provider interface {
	Name() string
	GetPrice(ctx context.Context, symbol string) (*models.PriceQuote, error)
	GetPriceByISIN(ctx context.Context, isin string) (*models.PriceQuote, error)
	Search(ctx context.Context, query string) ([]models.Listing, error)
	Health() *Health
}

// Configurable providers accept new settings without being rebuilt, which keeps
// their health state across configuration reloads.
type Configurable interface {
	Configure(settings config.ProviderSettings)
}

// MethodTag builds the resolution method label, e.g. ALPHA_VANTAGE_TICKER.
func MethodTag(provider string, kind models.IdentifierKind) string {
	return strings.ToUpper(provider) + "_" + string(kind)
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"
