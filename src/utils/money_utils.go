package utils

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatINR renders an amount in rupees with the currency symbol and two
// decimals, e.g. "₹1,234.50".
func FormatINR(amount decimal.Decimal) string {
	cur := money.GetCurrency(money.INR)
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, money.INR).Display()
}

func FormatINRFloat(amount float64) string {
	return FormatINR(decimal.NewFromFloat(amount))
}
