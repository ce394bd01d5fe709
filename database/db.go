package database

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/billsync/billsync/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	if dir := filepath.Dir(dns); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", dns)
	if err != nil {
		return nil, err
	}
	// The store is single-writer; a second connection would only race the
	// balance read-modify-write.
	db.SetMaxOpenConns(1)
	err = db.Ping()
	if err != nil {
		log.Printf("database connection error ❌: %v", err)
		return nil, err
	}
	err = createAccountTable(db)
	if err != nil {
		return nil, err
	}
	err = createTransactionTable(db)
	if err != nil {
		return nil, err
	}
	err = createProcessingLogTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createAccountTable creates the accounts table, keyed by the business
// account id (card tail digits). Balances are stored as decimal strings.
func createAccountTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id TEXT NOT NULL UNIQUE,
			display_name TEXT,
			account_type TEXT,
			institution TEXT,
			currency TEXT NOT NULL DEFAULT 'CNY',
			current_balance TEXT,
			last_sync_time DATETIME,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// createTransactionTable creates the transactions table, keyed by the
// content fingerprint for dedup.
func createTransactionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fingerprint TEXT NOT NULL UNIQUE,
			source_type TEXT NOT NULL,
			source_account TEXT NOT NULL,
			raw_id TEXT,
			transaction_time DATETIME NOT NULL,
			account_id TEXT NOT NULL REFERENCES accounts(account_id),
			transaction_type TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'CNY',
			balance_after TEXT,
			counterparty_name TEXT,
			counterparty_type TEXT,
			counterparty_category TEXT,
			channel_name TEXT,
			channel_provider TEXT,
			channel_method TEXT,
			meta_data TEXT,
			raw_snapshot TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_transactions_account_time ON transactions(account_id, transaction_time)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_transactions_time ON transactions(transaction_time)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(transaction_type)`)
	return err
}

// createProcessingLogTable creates the per-source-message audit log,
// keyed by (source_type, source_id). This is operational bookkeeping,
// separate from the fingerprint-based transaction dedup.
func createProcessingLogTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS processing_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT,
			processed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(source_type, source_id)
		)
	`)
	return err
}
