package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the closed set of transaction direction tags.
// Direction (debit vs credit) is always derived from the type, never
// from the sign of the amount.
type TransactionType string

const (
	TypeConsumption TransactionType = "consumption"
	TypeIncome      TransactionType = "income"
	TypeTransferOut TransactionType = "transfer_out"
	TypeTransferIn  TransactionType = "transfer_in"
	TypeRefund      TransactionType = "refund"
	TypeFee         TransactionType = "fee"
	TypeInterest    TransactionType = "interest"
	TypeDividend    TransactionType = "dividend"
	TypeOther       TransactionType = "other"
)

// IsDebit reports whether the type reduces the account balance.
func (t TransactionType) IsDebit() bool {
	switch t {
	case TypeConsumption, TypeTransferOut, TypeFee:
		return true
	}
	return false
}

// CounterpartyType classifies the other side of a transaction.
type CounterpartyType string

const (
	CounterpartyMerchant   CounterpartyType = "merchant"
	CounterpartyPerson     CounterpartyType = "person"
	CounterpartyPlatform   CounterpartyType = "platform"
	CounterpartyBank       CounterpartyType = "bank"
	CounterpartyGovernment CounterpartyType = "government"
	CounterpartyOther      CounterpartyType = "other"
)

// Counterparty holds the merchant/payer side of a transaction.
type Counterparty struct {
	Name     string           `json:"name"`
	Type     CounterpartyType `json:"type,omitempty"`
	Category string           `json:"category,omitempty"`
}

// PaymentChannel describes how the money moved, e.g. 微信支付 via 财付通.
type PaymentChannel struct {
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"`
	Method   string `json:"method,omitempty"`
}

// Transaction is the canonical, source-independent representation of one
// financial event extracted from a notification.
type Transaction struct {
	ID              int64                  `json:"-"`
	SourceType      string                 `json:"source_type"`
	SourceAccount   string                 `json:"source_account"`
	RawID           string                 `json:"raw_id,omitempty"`
	TransactionTime time.Time              `json:"transaction_time"`
	AccountID       string                 `json:"account_id"`
	AccountName     string                 `json:"account_name,omitempty"`
	AccountType     AccountType            `json:"account_type,omitempty"`
	Type            TransactionType        `json:"transaction_type"`
	Amount          decimal.Decimal        `json:"amount"`
	Currency        string                 `json:"currency"`
	BalanceAfter    decimal.NullDecimal    `json:"balance_after,omitempty"`
	Counterparty    *Counterparty          `json:"counterparty,omitempty"`
	Channel         *PaymentChannel        `json:"channel,omitempty"`
	MetaData        map[string]interface{} `json:"meta_data,omitempty"`
	RawSnapshot     string                 `json:"raw_snapshot,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

const rawSnapshotLimit = 1000

// Normalize enforces the model invariants before persistence: the amount
// is a non-negative magnitude, the currency defaults to CNY and the raw
// snapshot is truncated to a bounded audit copy. The cut counts runes,
// not bytes, so a Chinese notification body is never split mid-character.
func (txn *Transaction) Normalize() {
	txn.Amount = txn.Amount.Abs()
	if txn.Currency == "" {
		txn.Currency = "CNY"
	}
	if runes := []rune(txn.RawSnapshot); len(runes) > rawSnapshotLimit {
		txn.RawSnapshot = string(runes[:rawSnapshotLimit])
	}
}

// CounterpartyName returns the counterparty name or "unknown" when the
// transaction carries none. The fallback participates in the fingerprint,
// so it must stay stable.
func (txn *Transaction) CounterpartyName() string {
	if txn.Counterparty != nil && txn.Counterparty.Name != "" {
		return txn.Counterparty.Name
	}
	return "unknown"
}

// Fingerprint derives the content-addressed identity of the transaction.
// Two notifications describing the same event collapse to the same
// fingerprint even when their raw ids differ (re-sent mail). Only the
// identity fields listed here participate; metadata, notes and snapshots
// must not change the fingerprint.
func (txn *Transaction) Fingerprint() string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		txn.SourceType,
		txn.SourceAccount,
		txn.TransactionTime.Format(time.RFC3339),
		txn.AccountID,
		txn.Amount.String(),
		txn.CounterpartyName(),
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:16]
}

// SignedAmount maps the non-negative magnitude to a signed delta using
// the transaction type. Used by balance reconciliation when no explicit
// balance is carried by the source.
func (txn *Transaction) SignedAmount() decimal.Decimal {
	if txn.Type.IsDebit() {
		return txn.Amount.Neg()
	}
	return txn.Amount
}

func (txn *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(txn)
}
