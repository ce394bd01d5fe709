package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the closed set of tracked account kinds.
type AccountType string

const (
	AccountDebit      AccountType = "debit"
	AccountCredit     AccountType = "credit"
	AccountWallet     AccountType = "wallet"
	AccountInvestment AccountType = "investment"
	AccountLoan       AccountType = "loan"
	AccountOther      AccountType = "other"
)

// Account represents one tracked financial account, keyed by a stable
// business identifier such as the card tail digits. Accounts are created
// lazily on the first transaction that references them and are never
// deleted, only deactivated.
type Account struct {
	ID             int64               `json:"-"`
	AccountID      string              `json:"account_id"`
	DisplayName    string              `json:"display_name,omitempty"`
	AccountType    AccountType         `json:"account_type,omitempty"`
	Institution    string              `json:"institution,omitempty"`
	Currency       string              `json:"currency"`
	CurrentBalance decimal.NullDecimal `json:"current_balance,omitempty"`
	LastSyncTime   *time.Time          `json:"last_sync_time,omitempty"`
	IsActive       bool                `json:"is_active"`
	CreatedAt      time.Time           `json:"created_at"`
}

// ApplyHints fills empty descriptive fields from another account value.
// Updates are coalesce-only: an existing non-empty name or type is never
// overwritten by a later hint.
func (a *Account) ApplyHints(hint Account) bool {
	changed := false
	if a.DisplayName == "" && hint.DisplayName != "" {
		a.DisplayName = hint.DisplayName
		changed = true
	}
	if a.AccountType == "" && hint.AccountType != "" {
		a.AccountType = hint.AccountType
		changed = true
	}
	if a.Institution == "" && hint.Institution != "" {
		a.Institution = hint.Institution
		changed = true
	}
	return changed
}
