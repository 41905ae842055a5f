// backend/src/parsers/factory.go
package parsers

import (
	"fmt"
	"strings"
)

// DefaultStrategies is the layout chain used for contract notes: the per-trade
// table first, then the aggregated per-security summary.
func DefaultStrategies() []LayoutStrategy {
	return []LayoutStrategy{TabularStrategy{}, AggregatedStrategy{}}
}

func GetParser(source string, lookup IdentifierLookup) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "", "hdfc", "contract_note":
		return NewContractNoteParser(WithLookup(lookup)), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
