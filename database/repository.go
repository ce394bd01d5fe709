package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/billsync/billsync/model"
)

// SaveOutcome is the result class of a SaveTransaction call. Duplicate is
// a first-class successful outcome, not an error: repeated polling over
// overlapping windows produces duplicates in steady state.
type SaveOutcome string

const (
	OutcomeSaved     SaveOutcome = "saved"
	OutcomeDuplicate SaveOutcome = "duplicate"
	OutcomeError     SaveOutcome = "error"
)

// TransactionFilter bounds a ListTransactions read.
type TransactionFilter struct {
	AccountID string
	Type      model.TransactionType
	From      *time.Time
	To        *time.Time
	Limit     int
}

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	transaction
	account
	processingLog
}

// transaction defines methods for handling transaction records.
type transaction interface {
	SaveTransaction(ctx context.Context, txn *model.Transaction) (SaveOutcome, error)              // Saves a record atomically with account/balance effects
	TransactionExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error)          // Checks dedup state without side effects
	GetTransactionByFingerprint(ctx context.Context, fingerprint string) (*model.Transaction, error) // Retrieves a record by fingerprint
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)   // Read-only projection, time descending
	CountTransactionsBySource(ctx context.Context, sourceType string) (int64, error)               // Stored record count for a source
}

// account defines methods for handling accounts.
type account interface {
	CreateAccount(ctx context.Context, acc model.Account) (model.Account, error)                              // Explicit administrative create
	GetAccountByID(ctx context.Context, accountID string) (*model.Account, error)                             // Retrieves an account by business key
	GetAllAccounts(ctx context.Context, activeOnly bool) ([]model.Account, error)                             // Lists accounts
	GetAccountBalance(ctx context.Context, accountID string) (decimal.NullDecimal, error)                    // Reconciled balance, invalid when unknown
	GetTotalBalance(ctx context.Context) (decimal.Decimal, error)                                             // Sum over active accounts, unknown balances as zero
	GetLastSyncTime(ctx context.Context, accountID string) (*time.Time, error)                                // Resumption point for the next fetch window
	AdvanceAccountSync(ctx context.Context, accountID string, syncTime time.Time, hint model.Account) error   // Moves last_sync_time forward, never backward
	DeactivateAccount(ctx context.Context, accountID string) error                                            // Accounts are never deleted
}

// processingLog defines methods for the per-source-message audit log.
type processingLog interface {
	RecordProcessingOutcome(ctx context.Context, sourceType, sourceID, status, message string) error
	CountProcessingOutcomes(ctx context.Context, sourceType string) (map[string]int64, error)
}
