package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// ParseTransactionType accepts BUY/SELL in any case as well as the B/S side codes.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "B":
		return TransactionBuy, true
	case "SELL", "S":
		return TransactionSell, true
	}
	return "", false
}

const DefaultExchange = "NSE"

// Transaction is one BUY or SELL of a security, as extracted from a contract note
// or entered manually.
type Transaction struct {
	ID              int64           `json:"id,omitempty"`
	UserID          *int64          `json:"user_id,omitempty"`
	SecurityID      int64           `json:"security_id,omitempty"`
	SecurityName    string          `json:"security_name"`
	SecuritySymbol  string          `json:"security_symbol,omitempty"`
	ISIN            string          `json:"isin,omitempty"`
	TransactionType TransactionType `json:"transaction_type"`
	Quantity        decimal.Decimal `json:"quantity"`
	PricePerUnit    decimal.Decimal `json:"price_per_unit"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TransactionDate time.Time       `json:"transaction_date"`
	OrderDate       time.Time       `json:"order_date"`
	Exchange        string          `json:"exchange"`
	BrokerFees      decimal.Decimal `json:"broker_fees"`
	Taxes           decimal.Decimal `json:"taxes"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty"`
}

// SecurityKey identifies the security the transaction belongs to: the ISIN when
// known, otherwise the upper-cased name.
func (t Transaction) SecurityKey() string {
	return SecurityKeyFor(t.ISIN, t.SecurityName)
}

func SecurityKeyFor(isin, name string) string {
	if isin = strings.TrimSpace(isin); isin != "" {
		return strings.ToUpper(isin)
	}
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}

func (t Transaction) IsBuy() bool  { return t.TransactionType == TransactionBuy }
func (t Transaction) IsSell() bool { return t.TransactionType == TransactionSell }
