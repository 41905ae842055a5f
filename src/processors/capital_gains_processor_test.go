package processors

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/notefolio/backend/src/models"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func trade(typ models.TransactionType, day, qty, price string) models.Transaction {
	q, p := dec(qty), dec(price)
	return models.Transaction{
		SecurityName:    "CMS INFO SYSTEMS LIMITED",
		ISIN:            "INE925R01014",
		SecuritySymbol:  "CMS",
		TransactionType: typ,
		Quantity:        q,
		PricePerUnit:    p,
		TotalAmount:     q.Mul(p),
		TransactionDate: date(day),
		OrderDate:       date(day),
		Exchange:        models.DefaultExchange,
	}
}

func buy(day, qty, price string) models.Transaction {
	return trade(models.TransactionBuy, day, qty, price)
}

func sell(day, qty, price string) models.Transaction {
	return trade(models.TransactionSell, day, qty, price)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestFIFOConsumesOldestLotFirst(t *testing.T) {
	p := NewCapitalGainsProcessor()
	// out of order on purpose
	txs := []models.Transaction{
		sell("2023-01-10", "15", "300"),
		buy("2022-06-01", "10", "200"),
		buy("2022-01-01", "10", "100"),
	}

	gains, unmatched := p.CalculateForSecurity(txs)
	require.Empty(t, unmatched)
	require.Len(t, gains.Details, 2)

	first, second := gains.Details[0], gains.Details[1]
	assertDec(t, "10", first.QuantitySold)
	assertDec(t, "100", first.BuyPrice)
	assertDec(t, "2000", first.GainLoss)
	assertDec(t, "200", first.GainLossPercent)
	assert.Equal(t, 374, first.HoldingPeriodDays)
	assert.True(t, first.IsLongTerm)

	assertDec(t, "5", second.QuantitySold)
	assertDec(t, "200", second.BuyPrice)
	assertDec(t, "500", second.GainLoss)
	assert.Equal(t, 223, second.HoldingPeriodDays)
	assert.False(t, second.IsLongTerm)

	assertDec(t, "2000", gains.LongTermGainLoss)
	assertDec(t, "500", gains.ShortTermGainLoss)
	assertDec(t, "2500", gains.TotalGainLoss)
	assert.Equal(t, "INE925R01014", gains.Security.ISIN)
}

func TestPartialLotIsReusedAcrossSells(t *testing.T) {
	p := NewCapitalGainsProcessor()
	txs := []models.Transaction{
		buy("2023-04-10", "10", "50"),
		sell("2023-05-01", "4", "60"),
		sell("2023-06-01", "3", "40"),
	}

	gains, unmatched := p.CalculateForSecurity(txs)
	require.Empty(t, unmatched)
	require.Len(t, gains.Details, 2)
	assertDec(t, "4", gains.Details[0].QuantitySold)
	assertDec(t, "40", gains.Details[0].GainLoss)
	assertDec(t, "3", gains.Details[1].QuantitySold)
	assertDec(t, "-30", gains.Details[1].GainLoss)
	assertDec(t, "-20", gains.Details[1].GainLossPercent)
	assertDec(t, "10", gains.TotalGainLoss)

	open := p.OpenLots(txs)
	require.Len(t, open, 1)
	assertDec(t, "3", open[0].RemainingQuantity)
	assertDec(t, "150", open[0].CostBasis)
}

func TestLongTermBoundary(t *testing.T) {
	p := NewCapitalGainsProcessor()

	gains, _ := p.CalculateForSecurity([]models.Transaction{
		buy("2022-01-01", "1", "100"),
		sell("2023-01-01", "1", "110"),
	})
	require.Len(t, gains.Details, 1)
	assert.Equal(t, 365, gains.Details[0].HoldingPeriodDays)
	assert.False(t, gains.Details[0].IsLongTerm, "365 days is still short term")

	gains, _ = p.CalculateForSecurity([]models.Transaction{
		buy("2022-01-01", "1", "100"),
		sell("2023-01-02", "1", "110"),
	})
	require.Len(t, gains.Details, 1)
	assert.Equal(t, 366, gains.Details[0].HoldingPeriodDays)
	assert.True(t, gains.Details[0].IsLongTerm)
}

func TestGainIsRoundedHalfUp(t *testing.T) {
	p := NewCapitalGainsProcessor()

	gains, _ := p.CalculateForSecurity([]models.Transaction{
		buy("2023-04-01", "1", "100"),
		sell("2023-05-01", "1", "110.005"),
	})
	require.Len(t, gains.Details, 1)
	assertDec(t, "10.01", gains.Details[0].GainLoss)
	assertDec(t, "10.01", gains.Details[0].GainLossPercent)

	gains, _ = p.CalculateForSecurity([]models.Transaction{
		buy("2023-04-01", "1", "110.005"),
		sell("2023-05-01", "1", "100"),
	})
	require.Len(t, gains.Details, 1)
	assertDec(t, "-10.01", gains.Details[0].GainLoss)
}

func TestFinancialYearFilteringKeepsEarlierLots(t *testing.T) {
	p := NewCapitalGainsProcessor()
	txs := []models.Transaction{
		buy("2021-05-01", "10", "100"),
		sell("2022-02-01", "5", "150"),
		sell("2022-05-01", "5", "200"),
	}

	fy2022 := p.CalculateFinancialYear(2022, nil, txs)
	assert.Equal(t, "FY 2022-2023", fy2022.FinancialYear)
	require.Len(t, fy2022.SecurityWiseGains, 1)
	details := fy2022.SecurityWiseGains[0].Details
	require.Len(t, details, 1)
	assertDec(t, "5", details[0].QuantitySold)
	assertDec(t, "100", details[0].BuyPrice)
	assertDec(t, "500", details[0].GainLoss)
	assert.Equal(t, 365, details[0].HoldingPeriodDays)
	assert.False(t, details[0].IsLongTerm)
	assertDec(t, "500", fy2022.TotalShortTermGains)
	assertDec(t, "0", fy2022.TotalLongTermGains)
	assertDec(t, "500", fy2022.TotalGains)

	fy2021 := p.CalculateFinancialYear(2021, nil, txs)
	require.Len(t, fy2021.SecurityWiseGains, 1)
	assertDec(t, "250", fy2021.TotalGains)

	fy2023 := p.CalculateFinancialYear(2023, nil, txs)
	assert.Empty(t, fy2023.SecurityWiseGains)
	assertDec(t, "0", fy2023.TotalGains)
}

func TestFinancialYearIncludesLastSecondOfMarch(t *testing.T) {
	p := NewCapitalGainsProcessor()
	late := sell("2024-03-31", "1", "120")
	late.TransactionDate = late.TransactionDate.Add(23*time.Hour + 59*time.Minute + 59*time.Second)

	report := p.CalculateFinancialYear(2023, nil, []models.Transaction{buy("2023-04-01", "1", "100"), late})
	require.Len(t, report.SecurityWiseGains, 1)
	assertDec(t, "20", report.TotalGains)
}

func TestUnmatchedSellIsAWarning(t *testing.T) {
	p := NewCapitalGainsProcessor()

	gains, unmatched := p.CalculateForSecurity([]models.Transaction{sell("2023-06-01", "5", "100")})
	assert.Empty(t, gains.Details)
	require.Len(t, unmatched, 1)
	assertDec(t, "5", unmatched[0].UnmatchedQuantity)

	gains, unmatched = p.CalculateForSecurity([]models.Transaction{
		buy("2023-05-01", "3", "90"),
		sell("2023-06-01", "5", "100"),
	})
	require.Len(t, gains.Details, 1)
	assertDec(t, "3", gains.Details[0].QuantitySold)
	require.Len(t, unmatched, 1)
	assertDec(t, "2", unmatched[0].UnmatchedQuantity)

	report := p.CalculateFinancialYear(2023, nil, []models.Transaction{sell("2023-06-01", "5", "100")})
	assert.Empty(t, report.SecurityWiseGains)
	require.Len(t, report.Warnings, 1)
}

func TestSameDayBuysKeepInputOrder(t *testing.T) {
	p := NewCapitalGainsProcessor()
	gains, _ := p.CalculateForSecurity([]models.Transaction{
		buy("2023-05-01", "1", "10"),
		buy("2023-05-01", "1", "20"),
		sell("2023-06-01", "1", "30"),
	})
	require.Len(t, gains.Details, 1)
	assertDec(t, "10", gains.Details[0].BuyPrice)
}

func TestSecuritiesAreMatchedIndependently(t *testing.T) {
	p := NewCapitalGainsProcessor()
	other := buy("2023-04-05", "10", "1000")
	other.ISIN = "INE002A01018"
	other.SecurityName = "RELIANCE INDUSTRIES LIMITED"

	report := p.CalculateFinancialYear(2023, nil, []models.Transaction{
		other,
		buy("2023-04-10", "10", "100"),
		sell("2023-05-01", "10", "90"),
	})
	require.Len(t, report.SecurityWiseGains, 1)
	assert.Equal(t, "INE925R01014", report.SecurityWiseGains[0].Security.ISIN)
	assertDec(t, "-100", report.TotalGains)
}

func TestFinancialYearHelpers(t *testing.T) {
	start, end := FinancialYearDates(2023)
	assert.Equal(t, date("2023-04-01"), start)
	assert.Equal(t, time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC), end)

	assert.Equal(t, 2023, FinancialYearOf(date("2024-03-31")))
	assert.Equal(t, 2024, FinancialYearOf(date("2024-04-01")))
	assert.Equal(t, 2024, CurrentFinancialYear(date("2024-10-19")))
	assert.Equal(t, "FY 2023-2024", FinancialYearLabel(2023))

	years := AvailableFinancialYears([]models.Transaction{
		buy("2020-01-01", "1", "1"),
		sell("2022-02-01", "1", "1"),
		sell("2023-06-01", "1", "1"),
		sell("2023-07-01", "1", "1"),
	})
	assert.Equal(t, []int{2023, 2021}, years)
}
