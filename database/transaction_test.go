package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/billsync/billsync/internal/apperror"
	"github.com/billsync/billsync/model"
)

func newTestTransaction() *model.Transaction {
	return &model.Transaction{
		SourceType:      "cmb_email",
		SourceAccount:   "user@example.com",
		TransactionTime: time.Date(2025, 2, 21, 19, 25, 0, 0, time.Local),
		AccountID:       "8551",
		AccountType:     model.AccountDebit,
		Type:            model.TypeConsumption,
		Amount:          decimal.NewFromInt(3),
		Currency:        "CNY",
		BalanceAfter:    decimal.NullDecimal{Decimal: decimal.RequireFromString("100638.62"), Valid: true},
		Counterparty:    &model.Counterparty{Name: "山月荟装扮", Type: model.CounterpartyMerchant, Category: "购物"},
		Channel:         &model.PaymentChannel{Name: "微信支付", Provider: "财付通", Method: "quick_pay"},
	}
}

func TestSaveTransaction_NewAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	txn := newTestTransaction()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(txn.Fingerprint()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT id, account_id, display_name").
		WithArgs("8551").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("8551", sqlmock.AnyArg(), "debit", sqlmock.AnyArg(), "CNY", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE accounts").
		WithArgs(sqlmock.AnyArg(), "debit", sqlmock.AnyArg(), "100638.62", txn.TransactionTime, "8551").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := ds.SaveTransaction(context.Background(), txn)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeSaved, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTransaction_DeltaReconciliation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	txn := newTestTransaction()
	// No explicit balance: the stored balance is adjusted by the signed delta.
	txn.BalanceAfter = decimal.NullDecimal{}

	prior := decimal.RequireFromString("100.00")
	expected := prior.Add(txn.SignedAmount()).String()

	lastSync := txn.TransactionTime.Add(-24 * time.Hour)
	accountRow := sqlmock.NewRows([]string{"id", "account_id", "display_name", "account_type", "institution", "currency", "current_balance", "last_sync_time", "is_active", "created_at"}).
		AddRow(1, "8551", "招商银行储蓄卡", "debit", "招商银行", "CNY", prior.String(), lastSync, true, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(txn.Fingerprint()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT id, account_id, display_name").
		WithArgs("8551").
		WillReturnRows(accountRow)
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE accounts").
		WithArgs(sqlmock.AnyArg(), "debit", sqlmock.AnyArg(), expected, txn.TransactionTime, "8551").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := ds.SaveTransaction(context.Background(), txn)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeSaved, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTransaction_DeltaFromUnknownBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	txn := newTestTransaction()
	txn.BalanceAfter = decimal.NullDecimal{}

	// The account row exists but its balance was never reconciled: the
	// delta applies against zero, so a consumption of 3 lands at -3.
	accountRow := sqlmock.NewRows(accountColumns()).
		AddRow(1, "8551", "招商银行储蓄卡", "debit", "", "CNY", nil, nil, true, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(txn.Fingerprint()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT id, account_id, display_name").
		WithArgs("8551").
		WillReturnRows(accountRow)
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE accounts").
		WithArgs(sqlmock.AnyArg(), "debit", sqlmock.AnyArg(), "-3", txn.TransactionTime, "8551").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := ds.SaveTransaction(context.Background(), txn)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeSaved, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTransaction_DuplicatePrecheck(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	txn := newTestTransaction()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(txn.Fingerprint()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	outcome, err := ds.SaveTransaction(context.Background(), txn)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTransaction_UniqueRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	txn := newTestTransaction()

	accountRow := sqlmock.NewRows([]string{"id", "account_id", "display_name", "account_type", "institution", "currency", "current_balance", "last_sync_time", "is_active", "created_at"}).
		AddRow(1, "8551", "", "debit", "", "CNY", nil, nil, true, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(txn.Fingerprint()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT id, account_id, display_name").
		WithArgs("8551").
		WillReturnRows(accountRow)
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})
	mock.ExpectRollback()

	outcome, err := ds.SaveTransaction(context.Background(), txn)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionExistsByFingerprint(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := ds.TransactionExistsByFingerprint(context.Background(), "abc123")
	assert.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactionByFingerprint_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT id, fingerprint").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	txn, err := ds.GetTransactionByFingerprint(context.Background(), "missing")
	assert.Nil(t, txn)
	appErr, ok := err.(apperror.AppError)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrNotFound, appErr.Code)
}

func TestListTransactions_Filtered(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "fingerprint", "source_type", "source_account", "raw_id", "transaction_time", "account_id", "transaction_type", "amount", "currency", "balance_after", "counterparty_name", "counterparty_type", "counterparty_category", "channel_name", "channel_provider", "channel_method", "meta_data", "raw_snapshot", "created_at"}).
		AddRow(1, "fp1", "cmb_email", "user@example.com", "raw1", now, "8551", "consumption", "3", "CNY", "100638.62", "山月荟装扮", "merchant", "购物", "微信支付", "财付通", "quick_pay", []byte(`{"pattern_matched":"quick_pay"}`), "snapshot", now)

	mock.ExpectQuery("SELECT id, fingerprint").
		WithArgs("8551", "consumption", 10).
		WillReturnRows(rows)

	result, err := ds.ListTransactions(context.Background(), TransactionFilter{
		AccountID: "8551",
		Type:      model.TypeConsumption,
		Limit:     10,
	})
	assert.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Equal(t, "8551", result[0].AccountID)
	assert.Equal(t, "山月荟装扮", result[0].Counterparty.Name)
	assert.Equal(t, "财付通", result[0].Channel.Provider)
	assert.True(t, result[0].BalanceAfter.Valid)
	assert.Equal(t, "quick_pay", result[0].MetaData["pattern_matched"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountTransactionsBySource(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("cmb_email").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := ds.CountTransactionsBySource(context.Background(), "cmb_email")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), count)
}
