package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/notefolio/backend/src/models"
)

var (
	// order no, order time, trade no, trade time, side, start of the name
	tradeHeaderRe = regexp.MustCompile(`^(?:\S+\s+)?(\d{1,2}:\d{2}:\d{2})\s+(?:\S+\s+)?(\d{1,2}:\d{2}:\d{2})\s+([BS])\b\s*(.*)$`)
	tradeFigureRe = regexp.MustCompile(`^(\d+)\s+([\d,]*\.?\d+)`)
)

// TabularStrategy reads the per-trade table some brokers print instead of the
// aggregated summary. Each trade starts on a line with the order and trade
// times and a B/S side code, the name may wrap until the cash marker, and the
// figures follow on the next numeric line.
type TabularStrategy struct{}

func (TabularStrategy) Name() string { return "tabular" }

func (TabularStrategy) Applies(summary string) bool {
	upper := strings.ToUpper(summary)
	return strings.Contains(upper, "TRADE TIME") && strings.Contains(upper, "ORDER NO")
}

type tabularState int

const (
	awaitingTrade tabularState = iota
	readingName
	awaitingFigures
)

type pendingTrade struct {
	line int
	side models.TransactionType
	name []string
}

func (p *pendingTrade) securityName() string {
	return collapseSpaces(strings.Join(p.name, " "))
}

// quantityFromComposite keeps the last two digits of the leading number, which
// in this layout carries the trade number followed by the quantity.
func quantityFromComposite(composite string) string {
	if len(composite) > 2 {
		return composite[len(composite)-2:]
	}
	return composite
}

func (s TabularStrategy) Extract(summary string) ([]models.Transaction, []BlockParseWarning) {
	var records []models.Transaction
	var warnings []BlockParseWarning
	seen := make(map[string]struct{})

	state := awaitingTrade
	var cur *pendingTrade

	drop := func(reason string) {
		warnings = append(warnings, BlockParseWarning{
			Strategy: s.Name(),
			Index:    cur.line,
			Reason:   reason,
			Excerpt:  excerpt(cur.securityName()),
		})
		cur, state = nil, awaitingTrade
	}

	for i, raw := range strings.Split(summary, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := tradeHeaderRe.FindStringSubmatch(line); m != nil {
			if cur != nil {
				drop("trade row interrupted by the next trade")
			}
			side, _ := models.ParseTransactionType(m[3])
			cur = &pendingTrade{line: i, side: side}
			rest := m[4]
			if idx := strings.Index(rest, cashMarker); idx >= 0 {
				cur.name = append(cur.name, rest[:idx])
				state = awaitingFigures
			} else {
				cur.name = append(cur.name, rest)
				state = readingName
			}
			continue
		}

		switch state {
		case readingName:
			if idx := strings.Index(line, cashMarker); idx >= 0 {
				cur.name = append(cur.name, line[:idx])
				state = awaitingFigures
			} else {
				cur.name = append(cur.name, line)
			}
		case awaitingFigures:
			m := tradeFigureRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			tx, err := cur.transaction(m[1], m[2])
			if err != nil {
				drop(err.Error())
				continue
			}
			key := fmt.Sprintf("%s|%s|%s|%s", strings.ToUpper(tx.SecurityName), tx.TransactionType, tx.Quantity, tx.PricePerUnit)
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				records = append(records, tx)
			}
			cur, state = nil, awaitingTrade
		}
	}
	if cur != nil {
		drop("trade row without figures")
	}
	return records, warnings
}

func (p *pendingTrade) transaction(composite, priceText string) (models.Transaction, error) {
	name := p.securityName()
	if name == "" {
		return models.Transaction{}, fmt.Errorf("trade row without a security name")
	}
	qty, err := decimal.NewFromString(quantityFromComposite(composite))
	if err != nil || !qty.IsPositive() {
		return models.Transaction{}, fmt.Errorf("no quantity in %q", composite)
	}
	price, err := parseAmount(priceText)
	if err != nil || !price.IsPositive() {
		return models.Transaction{}, fmt.Errorf("no price in %q", priceText)
	}
	return models.Transaction{
		SecurityName:    name,
		TransactionType: p.side,
		Quantity:        qty,
		PricePerUnit:    price,
		TotalAmount:     qty.Mul(price).Round(2),
	}, nil
}
