package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Security is a listed instrument. Name is always present; ISIN and ticker may be
// filled in later by enrichment.
type Security struct {
	ID        int64     `json:"id,omitempty"`
	Name      string    `json:"security_name"`
	ISIN      string    `json:"security_isin,omitempty"`
	Ticker    string    `json:"security_ticker,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (s Security) Key() string {
	return SecurityKeyFor(s.ISIN, s.Name)
}

// GainDetail is one FIFO match between a BUY lot and a SELL.
type GainDetail struct {
	Security          Security        `json:"security"`
	BuyTransaction    Transaction     `json:"buy_transaction"`
	SellTransaction   Transaction     `json:"sell_transaction"`
	QuantitySold      decimal.Decimal `json:"quantity_sold"`
	BuyPrice          decimal.Decimal `json:"buy_price"`
	SellPrice         decimal.Decimal `json:"sell_price"`
	GainLoss          decimal.Decimal `json:"gain_loss"`
	GainLossPercent   decimal.Decimal `json:"gain_loss_percentage"`
	HoldingPeriodDays int             `json:"holding_period_days"`
	IsLongTerm        bool            `json:"is_long_term"`
}

type SecurityCapitalGains struct {
	Security          Security        `json:"security"`
	TotalGainLoss     decimal.Decimal `json:"total_gain_loss"`
	ShortTermGainLoss decimal.Decimal `json:"short_term_gain_loss"`
	LongTermGainLoss  decimal.Decimal `json:"long_term_gain_loss"`
	Details           []GainDetail    `json:"details"`
}

// UnmatchedSell reports sell quantity that had no remaining BUY lot to match.
type UnmatchedSell struct {
	SecurityKey       string          `json:"security_key"`
	SellTransaction   Transaction     `json:"sell_transaction"`
	UnmatchedQuantity decimal.Decimal `json:"unmatched_quantity"`
}

type CapitalGainsReport struct {
	FinancialYear         string                 `json:"financial_year"`
	Year                  int                    `json:"year"`
	UserID                *int64                 `json:"user_id,omitempty"`
	TotalShortTermGains   decimal.Decimal        `json:"total_short_term_gains"`
	TotalLongTermGains    decimal.Decimal        `json:"total_long_term_gains"`
	TotalGains            decimal.Decimal        `json:"total_gains"`
	SecurityWiseGains     []SecurityCapitalGains `json:"security_wise_gains"`
	Warnings              []UnmatchedSell        `json:"warnings"`
	TotalGainsDisplay     string                 `json:"total_gains_display,omitempty"`
	TotalShortTermDisplay string                 `json:"total_short_term_display,omitempty"`
	TotalLongTermDisplay  string                 `json:"total_long_term_display,omitempty"`
}

// OpenLot is the unsold remainder of a BUY after FIFO matching.
type OpenLot struct {
	Security          Security        `json:"security"`
	BuyTransaction    Transaction     `json:"buy_transaction"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	BuyPrice          decimal.Decimal `json:"buy_price"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
}

// Holding is an open lot valued at the latest resolved price.
type Holding struct {
	OpenLot
	CurrentPrice   float64 `json:"current_price"`
	MarketValue    float64 `json:"market_value"`
	MarketValueINR string  `json:"market_value_display"`
	PriceMethod    string  `json:"price_method"`
}
