package model

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/models"
)

// TransactionFilter narrows GetTransactions. Zero values mean "no restriction".
type TransactionFilter struct {
	UserID       *int64
	SecurityKeys []string
	From, To     time.Time
	Type         models.TransactionType
}

// Transactions are read joined to their security so rows stored before the
// security learned its ISIN or ticker report the security's identifiers.
const transactionColumns = `t.id, t.user_id, t.security_id, t.security_name, t.security_symbol, t.isin, t.transaction_type,
	t.quantity, t.price_per_unit, t.total_amount, t.transaction_date, t.order_date, t.exchange, t.broker_fees, t.taxes,
	t.created_at, t.updated_at, s.security_isin, s.security_ticker`

const transactionsFrom = ` FROM transactions t LEFT JOIN securities s ON s.id = t.security_id`

// effectiveISIN is the SQL for the ISIN a row is grouped under.
const effectiveISIN = `COALESCE(NULLIF(s.security_isin, ''), t.isin)`

func userScope(userID *int64) int64 {
	if userID == nil {
		return 0
	}
	return *userID
}

// TransactionHash identifies a transaction for duplicate detection across uploads.
func TransactionHash(tx models.Transaction) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		tx.TransactionDate.UTC().Format(time.RFC3339),
		models.SecurityKeyFor(tx.ISIN, tx.SecurityName),
		tx.TransactionType,
		tx.Quantity.String(),
		tx.PricePerUnit.String(),
		tx.TotalAmount.String(),
		tx.Exchange,
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// InsertTransactions stores txs in one database transaction. Rows already present
// for the same user are skipped and counted. Each stored transaction is returned
// with its ID and security populated.
func InsertTransactions(db *sql.DB, userID *int64, txs []models.Transaction) ([]models.Transaction, int, error) {
	dbTx, err := db.Begin()
	if err != nil {
		return nil, 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO transactions (user_id, security_id, security_name, security_symbol, isin,
		transaction_type, quantity, price_per_unit, total_amount, transaction_date, order_date, exchange,
		broker_fees, taxes, hash_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	var stored []models.Transaction
	skipped := 0
	for _, tx := range txs {
		sec, err := FindOrCreateSecurity(dbTx, tx.SecurityName, tx.ISIN, tx.SecuritySymbol)
		if err != nil {
			return nil, 0, err
		}
		tx.SecurityID = sec.ID
		tx.UserID = userID
		if tx.Exchange == "" {
			tx.Exchange = models.DefaultExchange
		}
		if tx.OrderDate.IsZero() {
			tx.OrderDate = tx.TransactionDate
		}
		now := time.Now().UTC()
		tx.CreatedAt, tx.UpdatedAt = now, now
		hashID := TransactionHash(tx)

		res, err := stmt.Exec(userScope(userID), sec.ID, tx.SecurityName, nullString(tx.SecuritySymbol), nullString(tx.ISIN),
			string(tx.TransactionType), tx.Quantity, tx.PricePerUnit, tx.TotalAmount,
			tx.TransactionDate.UTC(), tx.OrderDate.UTC(), tx.Exchange, tx.BrokerFees, tx.Taxes,
			hashID, now, now)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate transaction on upload", "userID", userScope(userID), "hash_id", hashID)
				skipped++
				continue
			}
			return nil, 0, fmt.Errorf("error inserting transaction for %s: %w", tx.SecurityName, err)
		}
		if tx.ID, err = res.LastInsertId(); err != nil {
			return nil, 0, err
		}
		stored = append(stored, tx)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("error committing transactions: %w", err)
	}
	return stored, skipped, nil
}

func scanTransaction(rows *sql.Rows) (models.Transaction, error) {
	var (
		tx                     models.Transaction
		userID                 int64
		securityID             sql.NullInt64
		symbol, isin, exchange sql.NullString
		txType                 string
		quantity, price, total string
		fees, taxes            sql.NullString
		orderDate              sql.NullTime
		secISIN, secTicker     sql.NullString
	)
	err := rows.Scan(&tx.ID, &userID, &securityID, &tx.SecurityName, &symbol, &isin, &txType,
		&quantity, &price, &total, &tx.TransactionDate, &orderDate, &exchange, &fees, &taxes,
		&tx.CreatedAt, &tx.UpdatedAt, &secISIN, &secTicker)
	if err != nil {
		return tx, err
	}
	if userID != 0 {
		tx.UserID = &userID
	}
	tx.SecurityID = securityID.Int64
	tx.SecuritySymbol = symbol.String
	tx.ISIN = isin.String
	if secISIN.String != "" {
		tx.ISIN = secISIN.String
	}
	if tx.SecuritySymbol == "" {
		tx.SecuritySymbol = secTicker.String
	}
	tx.TransactionType = models.TransactionType(txType)
	tx.Exchange = exchange.String
	if orderDate.Valid {
		tx.OrderDate = orderDate.Time
	} else {
		tx.OrderDate = tx.TransactionDate
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&tx.Quantity, quantity},
		{&tx.PricePerUnit, price},
		{&tx.TotalAmount, total},
		{&tx.BrokerFees, fees.String},
		{&tx.Taxes, taxes.String},
	} {
		if f.src == "" {
			*f.dst = decimal.Zero
			continue
		}
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return tx, fmt.Errorf("transaction %d: invalid decimal %q: %w", tx.ID, f.src, err)
		}
	}
	return tx, nil
}

// GetTransactions returns matching transactions ordered by transaction date then
// insertion order.
func GetTransactions(db *sql.DB, filter TransactionFilter) ([]models.Transaction, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != nil {
		where = append(where, "t.user_id = ?")
		args = append(args, *filter.UserID)
	}
	if len(filter.SecurityKeys) > 0 {
		placeholders := "?" + strings.Repeat(",?", len(filter.SecurityKeys)-1)
		where = append(where, "(UPPER("+effectiveISIN+") IN ("+placeholders+") OR (COALESCE("+effectiveISIN+", '') = '' AND UPPER(t.security_name) IN ("+placeholders+")))")
		for i := 0; i < 2; i++ {
			for _, k := range filter.SecurityKeys {
				args = append(args, strings.ToUpper(k))
			}
		}
	}
	if !filter.From.IsZero() {
		where = append(where, "t.transaction_date >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "t.transaction_date <= ?")
		args = append(args, filter.To.UTC())
	}
	if filter.Type != "" {
		where = append(where, "t.transaction_type = ?")
		args = append(args, string(filter.Type))
	}

	query := `SELECT ` + transactionColumns + transactionsFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.transaction_date ASC, t.id ASC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction row: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transaction rows: %w", err)
	}
	return out, nil
}

// DeleteTransactionsForUser removes every transaction in the user's scope.
func DeleteTransactionsForUser(db *sql.DB, userID *int64) (int64, error) {
	res, err := db.Exec(`DELETE FROM transactions WHERE user_id = ?`, userScope(userID))
	if err != nil {
		return 0, fmt.Errorf("error deleting transactions: %w", err)
	}
	return res.RowsAffected()
}
