package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/billsync/billsync/internal/apperror"
	"github.com/billsync/billsync/model"
)

// isUniqueViolation reports whether err is a sqlite unique-constraint
// failure. A racing duplicate insert surfaces this way and is treated
// identically to the fingerprint pre-check.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// SaveTransaction persists one record with at-most-once semantics per
// content fingerprint and reconciles the owning account's balance. The
// fingerprint check, lazy account creation, insert, last-sync advance
// and balance update all commit atomically: a partial failure leaves no
// trace. Duplicate is returned without side effects.
func (d Datasource) SaveTransaction(ctx context.Context, txn *model.Transaction) (SaveOutcome, error) {
	txn.Normalize()
	fingerprint := txn.Fingerprint()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return OutcomeError, apperror.New(apperror.ErrInternal, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE fingerprint = ?)
	`, fingerprint).Scan(&exists)
	if err != nil {
		return OutcomeError, apperror.New(apperror.ErrInternal, "Failed to check for duplicate transaction", err)
	}
	if exists {
		return OutcomeDuplicate, nil
	}

	account, err := getOrCreateAccountTx(ctx, tx, txn)
	if err != nil {
		return OutcomeError, err
	}

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	metaDataJSON, err := json.Marshal(txn.MetaData)
	if err != nil {
		return OutcomeError, apperror.New(apperror.ErrInternal, "Failed to marshal metadata", err)
	}

	var counterpartyName, counterpartyType, counterpartyCategory sql.NullString
	if txn.Counterparty != nil {
		counterpartyName = nullString(txn.Counterparty.Name)
		counterpartyType = nullString(string(txn.Counterparty.Type))
		counterpartyCategory = nullString(txn.Counterparty.Category)
	}
	var channelName, channelProvider, channelMethod sql.NullString
	if txn.Channel != nil {
		channelName = nullString(txn.Channel.Name)
		channelProvider = nullString(txn.Channel.Provider)
		channelMethod = nullString(txn.Channel.Method)
	}
	var balanceAfter sql.NullString
	if txn.BalanceAfter.Valid {
		balanceAfter = nullString(txn.BalanceAfter.Decimal.String())
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions(fingerprint, source_type, source_account, raw_id, transaction_time, account_id, transaction_type, amount, currency, balance_after, counterparty_name, counterparty_type, counterparty_category, channel_name, channel_provider, channel_method, meta_data, raw_snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, fingerprint, txn.SourceType, txn.SourceAccount, nullString(txn.RawID), txn.TransactionTime, txn.AccountID,
		string(txn.Type), txn.Amount.String(), txn.Currency, balanceAfter,
		counterpartyName, counterpartyType, counterpartyCategory,
		channelName, channelProvider, channelMethod,
		metaDataJSON, txn.RawSnapshot, txn.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return OutcomeDuplicate, nil
		}
		return OutcomeError, apperror.New(apperror.ErrInternal, "Failed to record transaction", err)
	}

	// Reconcile the balance. An explicit balance from the source replaces
	// the stored value outright; otherwise the signed delta is applied to
	// the current balance, unknown treated as zero.
	var newBalance decimal.Decimal
	if txn.BalanceAfter.Valid {
		newBalance = txn.BalanceAfter.Decimal
	} else {
		prior := decimal.Zero
		if account.CurrentBalance.Valid {
			prior = account.CurrentBalance.Decimal
		}
		newBalance = prior.Add(txn.SignedAmount())
	}

	// last_sync_time only moves forward so re-running a wider window is
	// idempotent with respect to the resumption point.
	lastSync := txn.TransactionTime
	if account.LastSyncTime != nil && account.LastSyncTime.After(lastSync) {
		lastSync = *account.LastSyncTime
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET display_name = ?, account_type = ?, institution = ?, current_balance = ?, last_sync_time = ?
		WHERE account_id = ?
	`, nullString(account.DisplayName), nullString(string(account.AccountType)), nullString(account.Institution),
		newBalance.String(), lastSync, account.AccountID)
	if err != nil {
		return OutcomeError, apperror.New(apperror.ErrInternal, "Failed to reconcile account balance", err)
	}

	if err := tx.Commit(); err != nil {
		return OutcomeError, apperror.New(apperror.ErrInternal, "Failed to commit transaction", err)
	}
	return OutcomeSaved, nil
}

// getOrCreateAccountTx loads the owning account inside the save
// transaction, creating it lazily from the hints the record carries.
// Descriptive fields are coalesce-only: an existing non-empty name or
// type is never overwritten by a later hint.
func getOrCreateAccountTx(ctx context.Context, tx *sql.Tx, txn *model.Transaction) (*model.Account, error) {
	account, err := scanAccountRow(tx.QueryRowContext(ctx, `
		SELECT id, account_id, display_name, account_type, institution, currency, current_balance, last_sync_time, is_active, created_at
		FROM accounts
		WHERE account_id = ?
	`, txn.AccountID))
	if err == nil {
		account.ApplyHints(model.Account{DisplayName: txn.AccountName, AccountType: txn.AccountType})
		return account, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.ErrInternal, "Failed to load account", err)
	}

	created := model.Account{
		AccountID:   txn.AccountID,
		DisplayName: txn.AccountName,
		AccountType: txn.AccountType,
		Currency:    txn.Currency,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	if created.Currency == "" {
		created.Currency = "CNY"
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts(account_id, display_name, account_type, institution, currency, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, created.AccountID, nullString(created.DisplayName), nullString(string(created.AccountType)),
		nullString(created.Institution), created.Currency, created.IsActive, created.CreatedAt)
	if err != nil {
		return nil, apperror.New(apperror.ErrInternal, "Failed to create account", err)
	}
	return &created, nil
}

func (d Datasource) TransactionExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE fingerprint = ?)
	`, fingerprint).Scan(&exists)
	if err != nil {
		return false, apperror.New(apperror.ErrInternal, "Failed to check if transaction exists", err)
	}
	return exists, nil
}

func (d Datasource) GetTransactionByFingerprint(ctx context.Context, fingerprint string) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, fingerprint, source_type, source_account, raw_id, transaction_time, account_id, transaction_type, amount, currency, balance_after, counterparty_name, counterparty_type, counterparty_category, channel_name, channel_provider, channel_method, meta_data, raw_snapshot, created_at
		FROM transactions
		WHERE fingerprint = ?
	`, fingerprint)

	txn, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.New(apperror.ErrNotFound, fmt.Sprintf("Transaction with fingerprint '%s' not found", fingerprint), err)
		}
		return nil, apperror.New(apperror.ErrInternal, "Failed to retrieve transaction", err)
	}
	return txn, nil
}

// ListTransactions is a read-only projection ordered by transaction time
// descending. The limit always bounds the result size.
func (d Datasource) ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error) {
	query := `
		SELECT id, fingerprint, source_type, source_account, raw_id, transaction_time, account_id, transaction_type, amount, currency, balance_after, counterparty_name, counterparty_type, counterparty_category, channel_name, channel_provider, channel_method, meta_data, raw_snapshot, created_at
		FROM transactions
		WHERE 1=1
	`
	var args []interface{}
	var whereClauses []string

	if filter.AccountID != "" {
		whereClauses = append(whereClauses, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.Type != "" {
		whereClauses = append(whereClauses, "transaction_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.From != nil {
		whereClauses = append(whereClauses, "transaction_time >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		whereClauses = append(whereClauses, "transaction_time <= ?")
		args = append(args, *filter.To)
	}
	if len(whereClauses) > 0 {
		query += " AND " + strings.Join(whereClauses, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY transaction_time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.New(apperror.ErrInternal, "Failed to retrieve transactions", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransactionRow(rows)
		if err != nil {
			return nil, apperror.New(apperror.ErrInternal, "Failed to scan transaction data", err)
		}
		transactions = append(transactions, *txn)
	}
	if err = rows.Err(); err != nil {
		return nil, apperror.New(apperror.ErrInternal, "Error occurred while iterating over transactions", err)
	}
	return transactions, nil
}

func (d Datasource) CountTransactionsBySource(ctx context.Context, sourceType string) (int64, error) {
	var count int64
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE source_type = ?
	`, sourceType).Scan(&count)
	if err != nil {
		return 0, apperror.New(apperror.ErrInternal, "Failed to count transactions", err)
	}
	return count, nil
}

// rowScanner lets scanTransactionRow work for both QueryRow and Query results.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransactionRow(row rowScanner) (*model.Transaction, error) {
	txn := &model.Transaction{}
	var (
		fingerprint          string
		rawID                sql.NullString
		txnType              string
		amount               string
		balanceAfter         sql.NullString
		counterpartyName     sql.NullString
		counterpartyType     sql.NullString
		counterpartyCategory sql.NullString
		channelName          sql.NullString
		channelProvider      sql.NullString
		channelMethod        sql.NullString
		metaDataJSON         []byte
		rawSnapshot          sql.NullString
	)
	err := row.Scan(
		&txn.ID,
		&fingerprint,
		&txn.SourceType,
		&txn.SourceAccount,
		&rawID,
		&txn.TransactionTime,
		&txn.AccountID,
		&txnType,
		&amount,
		&txn.Currency,
		&balanceAfter,
		&counterpartyName,
		&counterpartyType,
		&counterpartyCategory,
		&channelName,
		&channelProvider,
		&channelMethod,
		&metaDataJSON,
		&rawSnapshot,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.RawID = rawID.String
	txn.Type = model.TransactionType(txnType)
	txn.RawSnapshot = rawSnapshot.String

	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	if balanceAfter.Valid {
		balance, err := decimal.NewFromString(balanceAfter.String)
		if err != nil {
			return nil, err
		}
		txn.BalanceAfter = decimal.NullDecimal{Decimal: balance, Valid: true}
	}
	if counterpartyName.Valid {
		txn.Counterparty = &model.Counterparty{
			Name:     counterpartyName.String,
			Type:     model.CounterpartyType(counterpartyType.String),
			Category: counterpartyCategory.String,
		}
	}
	if channelName.Valid || channelProvider.Valid || channelMethod.Valid {
		txn.Channel = &model.PaymentChannel{
			Name:     channelName.String,
			Provider: channelProvider.String,
			Method:   channelMethod.String,
		}
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &txn.MetaData); err != nil {
			return nil, err
		}
	}
	return txn, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
