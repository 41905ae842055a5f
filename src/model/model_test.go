package model

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/notefolio/backend/src/database"
	"github.com/username/notefolio/backend/src/models"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func trade(name, isin string, side models.TransactionType, qty, price string, date time.Time) models.Transaction {
	q := decimal.RequireFromString(qty)
	p := decimal.RequireFromString(price)
	return models.Transaction{
		SecurityName:    name,
		ISIN:            isin,
		TransactionType: side,
		Quantity:        q,
		PricePerUnit:    p,
		TotalAmount:     q.Mul(p),
		TransactionDate: date,
		BrokerFees:      decimal.Zero,
		Taxes:           decimal.Zero,
	}
}

var (
	julyTrade = time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	janTrade  = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
)

func TestInsertTransactionsSkipsDuplicatesPerUser(t *testing.T) {
	db := openDB(t)
	alice, bob := int64(1), int64(2)
	txs := []models.Transaction{
		trade("CMS INFO SYSTEMS LIMITED", "INE925R01014", models.TransactionBuy, "10", "452.50", julyTrade),
		trade("WONDERLA HOLIDAYS LIMITED", "", models.TransactionBuy, "3", "810", julyTrade),
	}

	stored, skipped, err := InsertTransactions(db, &alice, txs)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Zero(t, skipped)
	assert.NotZero(t, stored[0].ID)
	assert.NotZero(t, stored[0].SecurityID)
	assert.Equal(t, models.DefaultExchange, stored[0].Exchange)

	stored, skipped, err = InsertTransactions(db, &alice, txs)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 2, skipped)

	stored, skipped, err = InsertTransactions(db, &bob, txs[:1])
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Zero(t, skipped)

	all, err := GetTransactions(db, TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := GetTransactions(db, TransactionFilter{UserID: &alice})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.True(t, decimal.RequireFromString("452.5").Equal(mine[0].PricePerUnit))
	assert.True(t, decimal.RequireFromString("4525").Equal(mine[0].TotalAmount))
	assert.True(t, julyTrade.Equal(mine[0].TransactionDate))
	require.NotNil(t, mine[0].UserID)
	assert.Equal(t, alice, *mine[0].UserID)
}

func TestInsertTransactionsWithoutUser(t *testing.T) {
	db := openDB(t)
	_, _, err := InsertTransactions(db, nil, []models.Transaction{
		trade("GREENPANEL INDUSTRIES LIMITED", "INE08ZM01014", models.TransactionSell, "4", "300", janTrade),
	})
	require.NoError(t, err)

	txs, err := GetTransactions(db, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Nil(t, txs[0].UserID)
	assert.True(t, janTrade.Equal(txs[0].OrderDate))

	deleted, err := DeleteTransactionsForUser(db, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestGetTransactionsFilters(t *testing.T) {
	db := openDB(t)
	_, _, err := InsertTransactions(db, nil, []models.Transaction{
		trade("CMS INFO SYSTEMS LIMITED", "INE925R01014", models.TransactionBuy, "10", "452.50", julyTrade),
		trade("CMS INFO SYSTEMS LIMITED", "INE925R01014", models.TransactionSell, "5", "500", janTrade),
		trade("Wonderla Holidays Limited", "", models.TransactionBuy, "3", "810", janTrade),
	})
	require.NoError(t, err)

	byISIN, err := GetTransactions(db, TransactionFilter{SecurityKeys: []string{"ine925r01014"}})
	require.NoError(t, err)
	assert.Len(t, byISIN, 2)

	byName, err := GetTransactions(db, TransactionFilter{SecurityKeys: []string{"WONDERLA HOLIDAYS LIMITED"}})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Wonderla Holidays Limited", byName[0].SecurityName)

	sells, err := GetTransactions(db, TransactionFilter{Type: models.TransactionSell})
	require.NoError(t, err)
	require.Len(t, sells, 1)
	assert.True(t, decimal.NewFromInt(5).Equal(sells[0].Quantity))

	since, err := GetTransactions(db, TransactionFilter{From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

func TestTransactionsReportTheirSecurityIdentifiers(t *testing.T) {
	db := openDB(t)
	buy := trade("ACME WIDGETS LIMITED", "", models.TransactionBuy, "10", "100", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC))
	sell := trade("ACME WIDGETS LIMITED", "INE000A01010", models.TransactionSell, "10", "150", time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC))
	sell.SecuritySymbol = "ACME"

	_, _, err := InsertTransactions(db, nil, []models.Transaction{buy})
	require.NoError(t, err)
	_, _, err = InsertTransactions(db, nil, []models.Transaction{sell})
	require.NoError(t, err)

	txs, err := GetTransactions(db, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, txs[0].SecurityID, txs[1].SecurityID)
	assert.Equal(t, "INE000A01010", txs[0].ISIN)
	assert.Equal(t, "ACME", txs[0].SecuritySymbol)
	assert.Equal(t, txs[0].SecurityKey(), txs[1].SecurityKey())

	byISIN, err := GetTransactions(db, TransactionFilter{SecurityKeys: []string{"INE000A01010"}})
	require.NoError(t, err)
	assert.Len(t, byISIN, 2)

	byName, err := GetTransactions(db, TransactionFilter{SecurityKeys: []string{"ACME WIDGETS LIMITED"}})
	require.NoError(t, err)
	assert.Empty(t, byName)
}

func TestFindOrCreateSecurityFillsMissingIdentifiers(t *testing.T) {
	db := openDB(t)

	first, err := FindOrCreateSecurity(db, "Muthoot  Finance Limited", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Muthoot Finance Limited", first.Name)

	second, err := FindOrCreateSecurity(db, "MUTHOOT FINANCE LIMITED", "ine414g01012", "muthootfin")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "INE414G01012", second.ISIN)
	assert.Equal(t, "MUTHOOTFIN", second.Ticker)

	byISIN, err := FindOrCreateSecurity(db, "Muthoot Fin", "INE414G01012", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byISIN.ID)

	_, err = FindOrCreateSecurity(db, "  ", "", "")
	assert.Error(t, err)

	all, err := GetSecurities(db)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMappings(t *testing.T) {
	db := openDB(t)
	require.NoError(t, UpsertMapping(db, ISINTickerMap{ISIN: "INE925R01014", TickerSymbol: "CMS", Currency: "INR"}))
	require.NoError(t, UpsertMapping(db, ISINTickerMap{ISIN: "INE066O01014", TickerSymbol: "WONDERLA", Currency: "INR"}))
	require.NoError(t, UpsertMapping(db, ISINTickerMap{ISIN: "INE925R01014", TickerSymbol: "CMSINFO", Currency: "INR"}))

	all, err := GetAllMappings(db)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := GetMappingsByISINs(db, []string{"INE925R01014", "INE000000000"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CMSINFO", got["INE925R01014"].TickerSymbol)
	assert.True(t, got["INE925R01014"].LastCheckedAt.Valid)

	empty, err := GetMappingsByISINs(db, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
