package processors

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/models"
)

// LongTermHoldingDays is the holding period a match must exceed to count as long term.
const LongTermHoldingDays = 365

var hundred = decimal.NewFromInt(100)

// lot is the unconsumed part of one BUY.
type lot struct {
	buy       models.Transaction
	remaining decimal.Decimal
}

type CapitalGainsProcessor struct{}

func NewCapitalGainsProcessor() *CapitalGainsProcessor {
	return &CapitalGainsProcessor{}
}

// holdingDays counts whole days between buy and sell, flooring partial days.
func holdingDays(buy, sell time.Time) int {
	d := sell.Sub(buy)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}

func splitByType(txs []models.Transaction) (buys, sells []models.Transaction) {
	for _, tx := range txs {
		switch {
		case tx.IsBuy():
			buys = append(buys, tx)
		case tx.IsSell():
			sells = append(sells, tx)
		}
	}
	sortByDate(buys)
	sortByDate(sells)
	return buys, sells
}

// sortByDate orders by transaction date, keeping input order for equal dates.
func sortByDate(txs []models.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].TransactionDate.Before(txs[j].TransactionDate)
	})
}

// securityFor describes the security a group of transactions belongs to.
func securityFor(txs []models.Transaction) models.Security {
	var sec models.Security
	for _, tx := range txs {
		if sec.Name == "" {
			sec.Name = tx.SecurityName
		}
		if sec.ID == 0 {
			sec.ID = tx.SecurityID
		}
		if sec.ISIN == "" {
			sec.ISIN = tx.ISIN
		}
		if sec.Ticker == "" {
			sec.Ticker = tx.SecuritySymbol
		}
	}
	return sec
}

// match runs FIFO over the whole history of one security and returns every match,
// unmatched sell remainders and the open lots left afterwards.
func (p *CapitalGainsProcessor) match(txs []models.Transaction) ([]models.GainDetail, []models.UnmatchedSell, []lot) {
	sec := securityFor(txs)
	buys, sells := splitByType(txs)

	queue := make([]*lot, 0, len(buys))
	for _, b := range buys {
		queue = append(queue, &lot{buy: b, remaining: b.Quantity})
	}

	var details []models.GainDetail
	var unmatched []models.UnmatchedSell
	for _, sell := range sells {
		remainingSell := sell.Quantity
		for remainingSell.IsPositive() && len(queue) > 0 {
			current := queue[0]
			matched := decimal.Min(remainingSell, current.remaining)

			buyPrice := current.buy.PricePerUnit
			sellPrice := sell.PricePerUnit
			diff := sellPrice.Sub(buyPrice)

			percent := decimal.Zero
			if !buyPrice.IsZero() {
				percent = diff.Div(buyPrice).Mul(hundred).Round(2)
			}
			days := holdingDays(current.buy.TransactionDate, sell.TransactionDate)

			details = append(details, models.GainDetail{
				Security:          sec,
				BuyTransaction:    current.buy,
				SellTransaction:   sell,
				QuantitySold:      matched,
				BuyPrice:          buyPrice,
				SellPrice:         sellPrice,
				GainLoss:          diff.Mul(matched).Round(2),
				GainLossPercent:   percent,
				HoldingPeriodDays: days,
				IsLongTerm:        days > LongTermHoldingDays,
			})

			remainingSell = remainingSell.Sub(matched)
			current.remaining = current.remaining.Sub(matched)
			if !current.remaining.IsPositive() {
				queue = queue[1:]
			}
		}

		if remainingSell.IsPositive() {
			logger.L.Warn("Unmatched sell quantity",
				"security", sec.Name,
				"quantity", remainingSell.String(),
				"sellDate", sell.TransactionDate.Format("2006-01-02"))
			unmatched = append(unmatched, models.UnmatchedSell{
				SecurityKey:       sell.SecurityKey(),
				SellTransaction:   sell,
				UnmatchedQuantity: remainingSell,
			})
		}
	}

	open := make([]lot, 0, len(queue))
	for _, l := range queue {
		open = append(open, *l)
	}
	return details, unmatched, open
}

func summarize(sec models.Security, details []models.GainDetail) *models.SecurityCapitalGains {
	out := &models.SecurityCapitalGains{
		Security:          sec,
		TotalGainLoss:     decimal.Zero,
		ShortTermGainLoss: decimal.Zero,
		LongTermGainLoss:  decimal.Zero,
		Details:           details,
	}
	for _, d := range details {
		if d.IsLongTerm {
			out.LongTermGainLoss = out.LongTermGainLoss.Add(d.GainLoss)
		} else {
			out.ShortTermGainLoss = out.ShortTermGainLoss.Add(d.GainLoss)
		}
	}
	out.TotalGainLoss = out.ShortTermGainLoss.Add(out.LongTermGainLoss)
	return out
}

// CalculateForSecurity matches the full history of a single security.
func (p *CapitalGainsProcessor) CalculateForSecurity(txs []models.Transaction) (*models.SecurityCapitalGains, []models.UnmatchedSell) {
	details, unmatched, _ := p.match(txs)
	return summarize(securityFor(txs), details), unmatched
}

// GroupBySecurity groups transactions by security key, preserving first-seen order.
func GroupBySecurity(txs []models.Transaction) ([]string, map[string][]models.Transaction) {
	var order []string
	groups := make(map[string][]models.Transaction)
	for _, tx := range txs {
		key := tx.SecurityKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], tx)
	}
	return order, groups
}

// CalculateFinancialYear computes gains realised by sells inside the financial year.
// Matching always runs over the complete history so that lots bought in earlier
// years are consumed in the right order.
func (p *CapitalGainsProcessor) CalculateFinancialYear(year int, userID *int64, txs []models.Transaction) *models.CapitalGainsReport {
	report := &models.CapitalGainsReport{
		FinancialYear:       FinancialYearLabel(year),
		Year:                year,
		UserID:              userID,
		TotalShortTermGains: decimal.Zero,
		TotalLongTermGains:  decimal.Zero,
		TotalGains:          decimal.Zero,
		SecurityWiseGains:   []models.SecurityCapitalGains{},
		Warnings:            []models.UnmatchedSell{},
	}

	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	sortByDate(sorted)
	order, groups := GroupBySecurity(sorted)

	for _, key := range order {
		group := groups[key]
		hasSellInYear := false
		for _, tx := range group {
			if tx.IsSell() && inFinancialYear(tx.TransactionDate, year) {
				hasSellInYear = true
				break
			}
		}
		if !hasSellInYear {
			continue
		}

		details, unmatched, _ := p.match(group)
		for _, u := range unmatched {
			if inFinancialYear(u.SellTransaction.TransactionDate, year) {
				report.Warnings = append(report.Warnings, u)
			}
		}

		var filtered []models.GainDetail
		for _, d := range details {
			if inFinancialYear(d.SellTransaction.TransactionDate, year) {
				filtered = append(filtered, d)
			}
		}
		if len(filtered) == 0 {
			continue
		}

		gains := summarize(securityFor(group), filtered)
		report.SecurityWiseGains = append(report.SecurityWiseGains, *gains)
		report.TotalShortTermGains = report.TotalShortTermGains.Add(gains.ShortTermGainLoss)
		report.TotalLongTermGains = report.TotalLongTermGains.Add(gains.LongTermGainLoss)
	}
	report.TotalGains = report.TotalShortTermGains.Add(report.TotalLongTermGains)

	logger.L.Info("Capital gains calculated",
		"financialYear", report.FinancialYear,
		"securities", len(report.SecurityWiseGains),
		"warnings", len(report.Warnings))
	return report
}

// OpenLots returns the lots still held after matching every sell, oldest first
// within each security.
func (p *CapitalGainsProcessor) OpenLots(txs []models.Transaction) []models.OpenLot {
	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	sortByDate(sorted)
	order, groups := GroupBySecurity(sorted)

	var out []models.OpenLot
	for _, key := range order {
		group := groups[key]
		sec := securityFor(group)
		_, _, open := p.match(group)
		for _, l := range open {
			out = append(out, models.OpenLot{
				Security:          sec,
				BuyTransaction:    l.buy,
				RemainingQuantity: l.remaining,
				BuyPrice:          l.buy.PricePerUnit,
				CostBasis:         l.remaining.Mul(l.buy.PricePerUnit).Round(2),
			})
		}
	}
	return out
}
