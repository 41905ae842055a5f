package models

import "time"

type ProviderStatus string

const (
	ProviderAvailable   ProviderStatus = "available"
	ProviderUnavailable ProviderStatus = "unavailable"
	ProviderRateLimited ProviderStatus = "rate_limited"
)

type IdentifierKind string

const (
	IdentifierTicker IdentifierKind = "TICKER"
	IdentifierISIN   IdentifierKind = "ISIN"
	IdentifierName   IdentifierKind = "NAME"
)

// MethodUnavailable tags a quote that no provider could resolve.
const MethodUnavailable = "UNAVAILABLE"

type PriceQuote struct {
	Identifier string         `json:"identifier"`
	Kind       IdentifierKind `json:"kind,omitempty"`
	Symbol     string         `json:"symbol,omitempty"`
	Price      float64        `json:"price"`
	Currency   string         `json:"currency,omitempty"`
	Method     string         `json:"method"`
	Provider   string         `json:"provider,omitempty"`
	FetchedAt  time.Time      `json:"fetched_at"`
}

func (q PriceQuote) Available() bool {
	return q.Method != MethodUnavailable && q.Price > 0
}

// ProviderInfo is an admin view of a provider's health and configuration.
type ProviderInfo struct {
	Name       string         `json:"name"`
	Status     ProviderStatus `json:"status"`
	ErrorCount int            `json:"error_count"`
	MaxErrors  int            `json:"max_errors"`
	LastRetry  *time.Time     `json:"last_retry,omitempty"`
	Enabled    bool           `json:"enabled"`
	Priority   int            `json:"priority"`
	HasAPIKey  bool           `json:"has_api_key"`
	Registered bool           `json:"registered"`
}

// Listing is a searchable security known to the identifier registry or a provider.
type Listing struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	ISIN     string `json:"isin,omitempty"`
	Exchange string `json:"exchange,omitempty"`
}
