package database

import (
	"database/sql"
	"fmt"
	stdlog "log"

	"github.com/username/notefolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

const schema = `
	CREATE TABLE IF NOT EXISTS securities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		security_name TEXT NOT NULL,
		security_isin TEXT UNIQUE,
		security_ticker TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL DEFAULT 0,
		security_id INTEGER,
		security_name TEXT NOT NULL,
		security_symbol TEXT,
		isin TEXT,
		transaction_type TEXT NOT NULL,
		quantity TEXT NOT NULL,
		price_per_unit TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		transaction_date TIMESTAMP NOT NULL,
		order_date TIMESTAMP,
		exchange TEXT DEFAULT 'NSE',
		broker_fees TEXT DEFAULT '0',
		taxes TEXT DEFAULT '0',
		hash_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(security_id) REFERENCES securities(id),
		UNIQUE(user_id, hash_id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, transaction_date);

	CREATE TABLE IF NOT EXISTS isin_ticker_map (
		isin TEXT PRIMARY KEY,
		ticker_symbol TEXT NOT NULL,
		exchange TEXT,
		currency TEXT NOT NULL DEFAULT 'INR',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_checked_at TIMESTAMP
	);
	`

// InitDB opens the application database into DB, exiting the process on failure.
func InitDB(databasePath string) {
	db, err := Open(databasePath)
	if err != nil {
		stdlog.Fatalf("failed to initialise database at %s: %v", databasePath, err)
	}
	DB = db
}

// Open opens a sqlite database and brings its schema up to date.
func Open(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}
	if databasePath == ":memory:" {
		// each pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	logger.L.Info("Checking database migrations", "databasePath", databasePath)
	migrateTransactionsTable(db)

	if _, err := db.Exec(schema); err != nil {
		logger.L.Error("failed to create tables", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	logger.L.Info("Database tables ensured/created.")
	return db, nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&tableName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk, notnullVal int
		var name, dataType string
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columnExists[name] = true
	}
	return columnExists, rows.Err()
}

// migrateTransactionsTable adds columns introduced after the first schema to an
// existing transactions table.
func migrateTransactionsTable(db *sql.DB) {
	columnExists, err := tableColumns(db, "transactions")
	if err != nil {
		logger.L.Error("Error reading schema for transactions", "error", err)
		return
	}
	if columnExists == nil {
		logger.L.Info("transactions table does not exist, no migration needed as table will be created.")
		return
	}

	additions := []struct{ column, ddl string }{
		{"isin", "ALTER TABLE transactions ADD COLUMN isin TEXT"},
		{"security_symbol", "ALTER TABLE transactions ADD COLUMN security_symbol TEXT"},
		{"order_date", "ALTER TABLE transactions ADD COLUMN order_date TIMESTAMP"},
		{"hash_id", "ALTER TABLE transactions ADD COLUMN hash_id TEXT"},
	}
	for _, a := range additions {
		if columnExists[a.column] {
			continue
		}
		if _, err := db.Exec(a.ddl); err != nil {
			logger.L.Error("Error adding column to transactions table", "column", a.column, "error", err)
			continue
		}
		logger.L.Info("Added column to transactions table", "column", a.column)
	}

	if !columnExists["order_date"] {
		if _, err := db.Exec("UPDATE transactions SET order_date = transaction_date WHERE order_date IS NULL"); err != nil {
			logger.L.Error("Error backfilling order_date for existing rows", "error", err)
		}
	}
}
