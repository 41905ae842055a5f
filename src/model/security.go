package model

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/username/notefolio/backend/src/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

const securityColumns = `id, security_name, security_isin, security_ticker, created_at, updated_at`

func scanSecurity(row interface{ Scan(...interface{}) error }) (models.Security, error) {
	var s models.Security
	var isin, ticker sql.NullString
	if err := row.Scan(&s.ID, &s.Name, &isin, &ticker, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return s, err
	}
	s.ISIN = isin.String
	s.Ticker = ticker.String
	return s, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// FindOrCreateSecurity looks a security up by ISIN, falling back to a
// case-insensitive name match, and creates it when neither is found. Missing
// ISIN or ticker values on an existing row are filled in.
func FindOrCreateSecurity(q querier, name, isin, ticker string) (models.Security, error) {
	name = strings.Join(strings.Fields(name), " ")
	isin = strings.ToUpper(strings.TrimSpace(isin))
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if name == "" {
		return models.Security{}, errors.New("security name is required")
	}

	var (
		sec models.Security
		err error
	)
	if isin != "" {
		sec, err = scanSecurity(q.QueryRow(`SELECT `+securityColumns+` FROM securities WHERE security_isin = ?`, isin))
	} else {
		err = sql.ErrNoRows
	}
	if errors.Is(err, sql.ErrNoRows) {
		sec, err = scanSecurity(q.QueryRow(`SELECT `+securityColumns+` FROM securities WHERE UPPER(security_name) = UPPER(?) AND (security_isin IS NULL OR security_isin = ? OR ? = '') ORDER BY id LIMIT 1`, name, isin, isin))
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC()
		res, err := q.Exec(`INSERT INTO securities (security_name, security_isin, security_ticker, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			name, nullString(isin), nullString(ticker), now, now)
		if err != nil {
			return models.Security{}, fmt.Errorf("error inserting security %q: %w", name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return models.Security{}, err
		}
		return models.Security{ID: id, Name: name, ISIN: isin, Ticker: ticker, CreatedAt: now, UpdatedAt: now}, nil
	case err != nil:
		return models.Security{}, fmt.Errorf("error looking up security %q: %w", name, err)
	}

	if (sec.ISIN == "" && isin != "") || (sec.Ticker == "" && ticker != "") {
		if sec.ISIN == "" {
			sec.ISIN = isin
		}
		if sec.Ticker == "" {
			sec.Ticker = ticker
		}
		sec.UpdatedAt = time.Now().UTC()
		if _, err := q.Exec(`UPDATE securities SET security_isin = ?, security_ticker = ?, updated_at = ? WHERE id = ?`,
			nullString(sec.ISIN), nullString(sec.Ticker), sec.UpdatedAt, sec.ID); err != nil {
			return models.Security{}, fmt.Errorf("error updating security %d: %w", sec.ID, err)
		}
	}
	return sec, nil
}

// GetSecurities lists all known securities ordered by name.
func GetSecurities(db *sql.DB) ([]models.Security, error) {
	rows, err := db.Query(`SELECT ` + securityColumns + ` FROM securities ORDER BY security_name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Security
	for rows.Next() {
		s, err := scanSecurity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
