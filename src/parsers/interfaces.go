package parsers

import (
	"github.com/username/notefolio/backend/src/models"
)

// LayoutStrategy extracts transactions from the summary section of one statement
// layout. Implementations are pure: they hold no state between calls.
type LayoutStrategy interface {
	Name() string
	Applies(summary string) bool
	Extract(summary string) ([]models.Transaction, []BlockParseWarning)
}

// IdentifierLookup fills in tickers and ISINs the statement does not carry.
type IdentifierLookup interface {
	TickerForISIN(isin string) (string, bool)
	ISINForTicker(ticker string) (string, bool)
	Search(query string, limit int) []models.Listing
}
