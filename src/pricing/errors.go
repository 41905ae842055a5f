package pricing

import (
	"errors"
	"fmt"

	"github.com/username/notefolio/backend/src/models"
)

var (
	// ErrRateLimited marks the provider RATE_LIMITED and ends its attempts for the call.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrNoPrice means the provider answered without a usable positive price.
	ErrNoPrice = errors.New("no price data")
	// ErrNotSupported means the provider cannot serve the identifier at all, for
	// example an unmapped ISIN or a missing API key. It does not count as a failure.
	ErrNotSupported = errors.New("identifier not supported by provider")

	ErrAllProvidersExhausted = errors.New("all price providers exhausted")
	ErrUnknownProvider       = errors.New("unknown price provider")
	ErrEmptyRequest          = errors.New("price request has no identifier")
)

// ProviderError is one failed provider call.
type ProviderError struct {
	Provider   string
	Kind       models.IdentifierKind
	Identifier string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Provider, e.Kind, e.Identifier, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
