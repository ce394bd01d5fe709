package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/billsync/billsync/internal/apperror"
	"github.com/billsync/billsync/model"
)

// CreateAccount registers an account explicitly, ahead of any transaction
// touching it. Most accounts are instead created lazily by SaveTransaction.
func (d Datasource) CreateAccount(ctx context.Context, account model.Account) (model.Account, error) {
	if account.AccountID == "" {
		return model.Account{}, apperror.New(apperror.ErrInvalidInput, "Account id is required", nil)
	}
	if account.Currency == "" {
		account.Currency = "CNY"
	}
	account.IsActive = true
	account.CreatedAt = time.Now()

	var balance sql.NullString
	if account.CurrentBalance.Valid {
		balance = nullString(account.CurrentBalance.Decimal.String())
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO accounts(account_id, display_name, account_type, institution, currency, current_balance, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, account.AccountID, nullString(account.DisplayName), nullString(string(account.AccountType)),
		nullString(account.Institution), account.Currency, balance, account.IsActive, account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Account{}, apperror.New(apperror.ErrConflict, fmt.Sprintf("Account with id '%s' already exists", account.AccountID), err)
		}
		return model.Account{}, apperror.New(apperror.ErrInternal, "Failed to create account", err)
	}
	return account, nil
}

func (d Datasource) GetAccountByID(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := scanAccountRow(d.Conn.QueryRowContext(ctx, `
		SELECT id, account_id, display_name, account_type, institution, currency, current_balance, last_sync_time, is_active, created_at
		FROM accounts
		WHERE account_id = ?
	`, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.New(apperror.ErrNotFound, fmt.Sprintf("Account with id '%s' not found", accountID), err)
		}
		return nil, apperror.New(apperror.ErrInternal, "Failed to retrieve account", err)
	}
	return account, nil
}

func (d Datasource) GetAllAccounts(ctx context.Context, activeOnly bool) ([]model.Account, error) {
	query := `
		SELECT id, account_id, display_name, account_type, institution, currency, current_balance, last_sync_time, is_active, created_at
		FROM accounts
	`
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY account_id"

	rows, err := d.Conn.QueryContext(ctx, query)
	if err != nil {
		return nil, apperror.New(apperror.ErrInternal, "Failed to retrieve accounts", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, apperror.New(apperror.ErrInternal, "Failed to scan account data", err)
		}
		accounts = append(accounts, *account)
	}
	if err = rows.Err(); err != nil {
		return nil, apperror.New(apperror.ErrInternal, "Error occurred while iterating over accounts", err)
	}
	return accounts, nil
}

// GetTotalBalance sums current balances over active accounts. Balances are
// stored as decimal strings, so the sum happens here rather than in SQL to
// avoid float coercion. Accounts with unknown balance contribute zero.
func (d Datasource) GetTotalBalance(ctx context.Context) (decimal.Decimal, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT current_balance FROM accounts WHERE is_active = 1
	`)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.ErrInternal, "Failed to retrieve account balances", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var balance sql.NullString
		if err := rows.Scan(&balance); err != nil {
			return decimal.Zero, apperror.New(apperror.ErrInternal, "Failed to scan account balance", err)
		}
		if !balance.Valid {
			continue
		}
		value, err := decimal.NewFromString(balance.String)
		if err != nil {
			return decimal.Zero, apperror.New(apperror.ErrInternal, "Failed to parse stored balance", err)
		}
		total = total.Add(value)
	}
	if err = rows.Err(); err != nil {
		return decimal.Zero, apperror.New(apperror.ErrInternal, "Error occurred while iterating over balances", err)
	}
	return total, nil
}

// GetAccountBalance returns the reconciled balance for one account. The
// result is invalid when the account is unknown or no record has
// established a balance yet.
func (d Datasource) GetAccountBalance(ctx context.Context, accountID string) (decimal.NullDecimal, error) {
	var balance sql.NullString
	err := d.Conn.QueryRowContext(ctx, `
		SELECT current_balance FROM accounts WHERE account_id = ?
	`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.NullDecimal{}, nil
		}
		return decimal.NullDecimal{}, apperror.New(apperror.ErrInternal, "Failed to retrieve account balance", err)
	}
	if !balance.Valid {
		return decimal.NullDecimal{}, nil
	}
	value, err := decimal.NewFromString(balance.String)
	if err != nil {
		return decimal.NullDecimal{}, apperror.New(apperror.ErrInternal, "Failed to parse stored balance", err)
	}
	return decimal.NullDecimal{Decimal: value, Valid: true}, nil
}

// GetLastSyncTime returns the resumption point for the account, or nil
// when the account is unknown or has never synced.
func (d Datasource) GetLastSyncTime(ctx context.Context, accountID string) (*time.Time, error) {
	var lastSync sql.NullTime
	err := d.Conn.QueryRowContext(ctx, `
		SELECT last_sync_time FROM accounts WHERE account_id = ?
	`, accountID).Scan(&lastSync)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.New(apperror.ErrInternal, "Failed to retrieve last sync time", err)
	}
	if !lastSync.Valid {
		return nil, nil
	}
	return &lastSync.Time, nil
}

// AdvanceAccountSync moves last_sync_time forward to syncTime, creating the
// account from the hint if needed. Called when a fetched record turns out
// to be a duplicate: the record itself is dropped but it still proves the
// window up to its timestamp has been covered. Never moves the time backward.
func (d Datasource) AdvanceAccountSync(ctx context.Context, accountID string, syncTime time.Time, hint model.Account) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.New(apperror.ErrInternal, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	account, err := scanAccountRow(tx.QueryRowContext(ctx, `
		SELECT id, account_id, display_name, account_type, institution, currency, current_balance, last_sync_time, is_active, created_at
		FROM accounts
		WHERE account_id = ?
	`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		created := model.Account{
			AccountID:    accountID,
			DisplayName:  hint.DisplayName,
			AccountType:  hint.AccountType,
			Institution:  hint.Institution,
			Currency:     hint.Currency,
			LastSyncTime: &syncTime,
			IsActive:     true,
			CreatedAt:    time.Now(),
		}
		if created.Currency == "" {
			created.Currency = "CNY"
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO accounts(account_id, display_name, account_type, institution, currency, last_sync_time, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, created.AccountID, nullString(created.DisplayName), nullString(string(created.AccountType)),
			nullString(created.Institution), created.Currency, syncTime, created.IsActive, created.CreatedAt)
		if err != nil {
			return apperror.New(apperror.ErrInternal, "Failed to create account", err)
		}
		return commit(tx)
	}
	if err != nil {
		return apperror.New(apperror.ErrInternal, "Failed to load account", err)
	}

	account.ApplyHints(hint)
	lastSync := syncTime
	if account.LastSyncTime != nil && account.LastSyncTime.After(lastSync) {
		lastSync = *account.LastSyncTime
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET display_name = ?, account_type = ?, institution = ?, last_sync_time = ?
		WHERE account_id = ?
	`, nullString(account.DisplayName), nullString(string(account.AccountType)), nullString(account.Institution),
		lastSync, account.AccountID)
	if err != nil {
		return apperror.New(apperror.ErrInternal, "Failed to advance sync time", err)
	}
	return commit(tx)
}

// DeactivateAccount excludes the account from syncs and balance totals.
// Accounts are never deleted; their transaction history stays queryable.
func (d Datasource) DeactivateAccount(ctx context.Context, accountID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE accounts SET is_active = 0 WHERE account_id = ?
	`, accountID)
	if err != nil {
		return apperror.New(apperror.ErrInternal, "Failed to deactivate account", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperror.New(apperror.ErrInternal, "Failed to check deactivation result", err)
	}
	if affected == 0 {
		return apperror.New(apperror.ErrNotFound, fmt.Sprintf("Account with id '%s' not found", accountID), nil)
	}
	return nil
}

func commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return apperror.New(apperror.ErrInternal, "Failed to commit transaction", err)
	}
	return nil
}

func scanAccountRow(row rowScanner) (*model.Account, error) {
	account := &model.Account{}
	var (
		displayName sql.NullString
		accountType sql.NullString
		institution sql.NullString
		balance     sql.NullString
		lastSync    sql.NullTime
	)
	err := row.Scan(
		&account.ID,
		&account.AccountID,
		&displayName,
		&accountType,
		&institution,
		&account.Currency,
		&balance,
		&lastSync,
		&account.IsActive,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.DisplayName = displayName.String
	account.AccountType = model.AccountType(accountType.String)
	account.Institution = institution.String
	if balance.Valid {
		value, err := decimal.NewFromString(balance.String)
		if err != nil {
			return nil, err
		}
		account.CurrentBalance = decimal.NullDecimal{Decimal: value, Valid: true}
	}
	if lastSync.Valid {
		t := lastSync.Time
		account.LastSyncTime = &t
	}
	return account, nil
}
