package model

import (
	"database/sql"
	"strings"
	"time"
)

// ISINTickerMap represents a row in the isin_ticker_map table.
// It records a learned mapping from an ISIN to an exchange ticker.
type ISINTickerMap struct {
	ISIN          string
	TickerSymbol  string
	Exchange      sql.NullString
	Currency      string
	CreatedAt     time.Time
	LastCheckedAt sql.NullTime
}

const mappingColumns = `isin, ticker_symbol, exchange, currency, created_at, last_checked_at`

func scanMappings(rows *sql.Rows) ([]ISINTickerMap, error) {
	defer rows.Close()
	var out []ISINTickerMap
	for rows.Next() {
		var mapping ISINTickerMap
		if err := rows.Scan(
			&mapping.ISIN,
			&mapping.TickerSymbol,
			&mapping.Exchange,
			&mapping.Currency,
			&mapping.CreatedAt,
			&mapping.LastCheckedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, mapping)
	}
	return out, rows.Err()
}

// GetMappingsByISINs retrieves multiple ISIN-to-ticker mappings in a single query,
// keyed by ISIN.
func GetMappingsByISINs(db *sql.DB, isins []string) (map[string]ISINTickerMap, error) {
	mappings := make(map[string]ISINTickerMap)
	if len(isins) == 0 {
		return mappings, nil
	}

	query := `SELECT ` + mappingColumns + ` FROM isin_ticker_map WHERE isin IN (?` + strings.Repeat(",?", len(isins)-1) + `)`
	args := make([]interface{}, len(isins))
	for i, isin := range isins {
		args[i] = isin
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	list, err := scanMappings(rows)
	if err != nil {
		return nil, err
	}
	for _, m := range list {
		mappings[m.ISIN] = m
	}
	return mappings, nil
}

// GetAllMappings returns every stored mapping, oldest first.
func GetAllMappings(db *sql.DB) ([]ISINTickerMap, error) {
	rows, err := db.Query(`SELECT ` + mappingColumns + ` FROM isin_ticker_map ORDER BY created_at ASC, isin ASC`)
	if err != nil {
		return nil, err
	}
	return scanMappings(rows)
}

// UpsertMapping inserts a mapping or refreshes the ticker of an existing ISIN.
func UpsertMapping(db *sql.DB, mapping ISINTickerMap) error {
	query := `
		INSERT INTO isin_ticker_map (isin, ticker_symbol, exchange, currency, last_checked_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(isin) DO UPDATE SET
			ticker_symbol = excluded.ticker_symbol,
			exchange = excluded.exchange,
			currency = excluded.currency,
			last_checked_at = excluded.last_checked_at`

	_, err := db.Exec(query, mapping.ISIN, mapping.TickerSymbol, mapping.Exchange, mapping.Currency, time.Now().UTC())
	return err
}
