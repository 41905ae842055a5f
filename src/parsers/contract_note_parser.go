package parsers

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/models"
)

// Header phrases that open the scrip wise summary, in priority order. Some
// brokers misspell "scrip".
var summaryHeaders = []string{
	"The scrip wise summary is enclosed below",
	"The srcip wise summary is enclosed below",
	"scrip wise summary",
	"srcip wise summary",
	"Script wise summary",
	"Scripwise Summary",
	"Security wise summary",
}

var summaryHeaderRes = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(summaryHeaders))
	for i, h := range summaryHeaders {
		out[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(h))
	}
	return out
}()

type datePattern struct {
	re     *regexp.Regexp
	layout string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`(?i)Trade Date[:\s]+(\d{2}[-/]\d{2}[-/]\d{4})`), "02/01/2006"},
	{regexp.MustCompile(`(?i)Order Date[:\s]+(\d{2}[-/]\d{2}[-/]\d{4})`), "02/01/2006"},
	{regexp.MustCompile(`(?i)Date[:\s]+(\d{2}[-/]\d{2}[-/]\d{4})`), "02/01/2006"},
	{regexp.MustCompile(`(?i)(\d{2}[-/][a-z]{3}[-/]\d{4})`), "02-Jan-2006"},
}

type ContractNoteParser struct {
	strategies []LayoutStrategy
	lookup     IdentifierLookup
	now        func() time.Time
}

type Option func(*ContractNoteParser)

// WithLookup enables ticker and ISIN enrichment.
func WithLookup(l IdentifierLookup) Option {
	return func(p *ContractNoteParser) { p.lookup = l }
}

// WithClock sets the time used when the document carries no date.
func WithClock(now func() time.Time) Option {
	return func(p *ContractNoteParser) { p.now = now }
}

func WithStrategies(s ...LayoutStrategy) Option {
	return func(p *ContractNoteParser) { p.strategies = s }
}

func NewContractNoteParser(opts ...Option) *ContractNoteParser {
	p := &ContractNoteParser{
		strategies: DefaultStrategies(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// locateSummary returns the text following the first summary header found.
func locateSummary(text string) (string, bool) {
	for _, re := range summaryHeaderRes {
		if loc := re.FindStringIndex(text); loc != nil {
			return text[loc[1]:], true
		}
	}
	return "", false
}

// extractOrderDate tries each date pattern in turn; a match that fails to parse
// falls through to the next pattern.
func extractOrderDate(text string) (time.Time, bool) {
	for _, dp := range datePatterns {
		m := dp.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := m[1]
		if dp.layout == "02/01/2006" {
			value = strings.ReplaceAll(value, "-", "/")
		} else {
			value = strings.ReplaceAll(value, "/", "-")
		}
		t, err := time.Parse(dp.layout, value)
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

// Parse extracts every recognizable trade from text. Only a missing summary
// section is an error; unreadable blocks become warnings.
func (p *ContractNoteParser) Parse(text string) (*ParseResult, error) {
	summary, ok := locateSummary(text)
	if !ok {
		return nil, &SectionNotFoundError{Excerpt: excerpt(strings.TrimSpace(text))}
	}

	result := &ParseResult{Transactions: []models.Transaction{}, Warnings: []BlockParseWarning{}}
	result.OrderDate, result.DateFound = extractOrderDate(text)
	if !result.DateFound {
		result.OrderDate = p.now()
		logger.L.Warn("No order date found in contract note, using processing time", "date", result.OrderDate.Format(time.RFC3339))
	}

	for _, s := range p.strategies {
		if !s.Applies(summary) {
			continue
		}
		records, warnings := s.Extract(summary)
		result.Warnings = append(result.Warnings, warnings...)
		if len(records) == 0 {
			logger.L.Debug("Layout strategy found no trades", "strategy", s.Name())
			continue
		}
		result.Transactions = records
		result.Layout = s.Name()
		break
	}

	upperText := strings.ToUpper(text)
	hits := findISINs(upperText)
	for i := range result.Transactions {
		p.complete(&result.Transactions[i], result.OrderDate, upperText, hits)
	}

	logger.L.Info("Contract note parsed",
		"layout", result.Layout,
		"transactions", len(result.Transactions),
		"warnings", len(result.Warnings),
		"orderDate", result.OrderDate.Format("2006-01-02"))
	return result, nil
}

// complete applies defaults and fills symbol and ISIN.
func (p *ContractNoteParser) complete(tx *models.Transaction, orderDate time.Time, upperText string, hits []isinHit) {
	tx.TransactionDate = orderDate
	tx.OrderDate = orderDate
	tx.Exchange = models.DefaultExchange
	tx.BrokerFees = decimal.Zero
	tx.Taxes = decimal.Zero

	symbol, exact := InferSymbol(tx.SecurityName)
	tx.SecuritySymbol = symbol
	tx.ISIN = associateISIN(upperText, tx.SecurityName, hits)

	if p.lookup == nil {
		return
	}
	if tx.ISIN != "" {
		if ticker, ok := p.lookup.TickerForISIN(tx.ISIN); ok && (!exact || tx.SecuritySymbol == "") {
			tx.SecuritySymbol = ticker
		}
		return
	}
	if exact {
		if isin, ok := p.lookup.ISINForTicker(tx.SecuritySymbol); ok {
			tx.ISIN = isin
			return
		}
	}
	if found := p.lookup.Search(tx.SecurityName, 1); len(found) > 0 {
		tx.ISIN = found[0].ISIN
		if !exact {
			tx.SecuritySymbol = found[0].Symbol
		}
	}
}
