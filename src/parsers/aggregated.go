package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/notefolio/backend/src/models"
)

const cashMarker = "-Cash-"

var (
	newlinesRe = regexp.MustCompile(`[\r\n]+`)
	spacesRe   = regexp.MustCompile(`\s+`)
	subTotalRe = regexp.MustCompile(`Sub Total`)

	// bought, sold, gross, average rate, then the company name ahead of LIMITED.
	blockWithPrefixRe = regexp.MustCompile(`(?i)Equity(\d+)\s+(\d+)\s+([\d,.]+)\s+([\d,.]+).*?([A-Z\s&.\-]+?)\s+(?:LIMIT[ED]*|LI\s*MITED).*?-Cash-`)
	blockRe           = regexp.MustCompile(`(?i)(\d+)\s+(\d+)\s+([\d,.]+)\s+([\d,.]+).*?([A-Z\s&.\-]+?)\s+(?:LIMIT[ED]*|LI\s*MITED).*?-Cash-`)

	companyRe = regexp.MustCompile(`(?i)Equity([A-Z\s&.\-]+?)(?:-Cash-|$)`)
)

// AggregatedStrategy reads the per-security summary where each security is
// closed by a "Sub Total" row. It runs a block pass and a company pass and keeps
// the records of both.
type AggregatedStrategy struct{}

func (AggregatedStrategy) Name() string { return "aggregated" }

func (AggregatedStrategy) Applies(summary string) bool { return strings.TrimSpace(summary) != "" }

func (AggregatedStrategy) Extract(summary string) ([]models.Transaction, []BlockParseWarning) {
	clean := newlinesRe.ReplaceAllString(summary, " ")
	records, warnings := extractBlocks(clean)
	records = append(records, extractCompanies(clean)...)
	return records, warnings
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}

// sideFromQuantities applies the one-nonzero rule: a bought quantity makes a BUY,
// a sold quantity a SELL, anything else is rejected.
func sideFromQuantities(bought, sold decimal.Decimal) (models.TransactionType, decimal.Decimal, error) {
	switch {
	case bought.IsPositive() && sold.IsZero():
		return models.TransactionBuy, bought, nil
	case sold.IsPositive() && bought.IsZero():
		return models.TransactionSell, sold, nil
	case bought.IsZero() && sold.IsZero():
		return "", decimal.Zero, fmt.Errorf("no quantity bought or sold")
	default:
		return "", decimal.Zero, fmt.Errorf("both bought (%s) and sold (%s) quantities are set", bought, sold)
	}
}

type summaryFields struct {
	bought, sold, gross, rate string
}

func (f summaryFields) transaction(name string) (models.Transaction, error) {
	bought, err := parseAmount(f.bought)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("bought quantity %q: %w", f.bought, err)
	}
	sold, err := parseAmount(f.sold)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("sold quantity %q: %w", f.sold, err)
	}
	gross, err := parseAmount(f.gross)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("gross total %q: %w", f.gross, err)
	}
	rate, err := parseAmount(f.rate)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("average rate %q: %w", f.rate, err)
	}
	side, qty, err := sideFromQuantities(bought, sold)
	if err != nil {
		return models.Transaction{}, err
	}
	if !rate.IsPositive() {
		return models.Transaction{}, fmt.Errorf("average rate %s is not positive", rate)
	}
	return models.Transaction{
		SecurityName:    name,
		TransactionType: side,
		Quantity:        qty,
		PricePerUnit:    rate,
		TotalAmount:     gross,
	}, nil
}

// blockName tidies a name captured ahead of LIMITED and restores the suffix.
func blockName(raw string) string {
	name := collapseSpaces(raw)
	upper := strings.ToUpper(name)
	if !strings.HasSuffix(upper, "LIMITED") && !strings.HasSuffix(upper, "LTD") {
		name += " LIMITED"
	}
	return name
}

// extractBlocks splits the summary on "Sub Total" and reads every block that
// carries a cash settlement marker.
func extractBlocks(clean string) ([]models.Transaction, []BlockParseWarning) {
	var records []models.Transaction
	var warnings []BlockParseWarning

	for i, block := range subTotalRe.Split(clean, -1) {
		if !strings.Contains(block, cashMarker) {
			continue
		}
		m := blockWithPrefixRe.FindStringSubmatch(block)
		if m == nil {
			m = blockRe.FindStringSubmatch(block)
		}
		if m == nil {
			warnings = append(warnings, BlockParseWarning{
				Strategy: "aggregated_block",
				Index:    i,
				Reason:   "no summary figures found",
				Excerpt:  excerpt(strings.TrimSpace(block)),
			})
			continue
		}

		fields := summaryFields{bought: m[1], sold: m[2], gross: m[3], rate: m[4]}
		tx, err := fields.transaction(blockName(m[5]))
		if err != nil {
			warnings = append(warnings, BlockParseWarning{
				Strategy: "aggregated_block",
				Index:    i,
				Reason:   err.Error(),
				Excerpt:  excerpt(strings.TrimSpace(block)),
			})
			continue
		}
		records = append(records, tx)
	}
	return records, warnings
}

// extractCompanies walks every "Equity<NAME>" heading and looks for its figures
// either after the name (totals on the Sub Total row) or before it.
func extractCompanies(clean string) []models.Transaction {
	var records []models.Transaction

	for _, m := range companyRe.FindAllStringSubmatch(clean, -1) {
		raw := m[1]
		name := collapseSpaces(raw)
		if name == "" {
			continue
		}

		var fields summaryFields
		buyStyle := regexp.MustCompile(`(?i)` + regexp.QuoteMeta("Equity"+raw) + `.*?Sub Total\s+(\d+)\s+(\d+)([\d,.]+)\s+([\d,.]+)`)
		sellStyle := regexp.MustCompile(`(?i)Equity(\d+)\s+(\d+)\s+([\d,.]+)\s+([\d,.]+).*?` + regexp.QuoteMeta(raw))

		if bm := buyStyle.FindStringSubmatch(clean); bm != nil {
			// The sold quantity and gross total run together on this row; the
			// first digit is the sold quantity and the rest the gross total.
			joined := bm[2] + bm[3]
			fields = summaryFields{bought: bm[1], rate: bm[4]}
			if len(joined) > 1 {
				fields.sold, fields.gross = joined[:1], joined[1:]
			} else {
				fields.sold, fields.gross = joined, "0"
			}
		} else if sm := sellStyle.FindStringSubmatch(clean); sm != nil {
			fields = summaryFields{bought: sm[1], sold: sm[2], gross: sm[3], rate: sm[4]}
		} else {
			continue
		}

		tx, err := fields.transaction(name)
		if err != nil {
			continue
		}
		records = append(records, tx)
	}
	return records
}
