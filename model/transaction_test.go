package model

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func sampleTransaction() Transaction {
	return Transaction{
		SourceType:      "cmb_email",
		SourceAccount:   "user@example.com",
		TransactionTime: time.Date(2025, 2, 21, 19, 25, 0, 0, time.Local),
		AccountID:       "8551",
		Type:            TypeConsumption,
		Amount:          decimal.RequireFromString("3.00"),
		Currency:        "CNY",
		Counterparty:    &Counterparty{Name: "山月荟装扮", Type: CounterpartyMerchant},
	}
}

func TestFingerprintStability(t *testing.T) {
	txn := sampleTransaction()
	fp := txn.Fingerprint()
	assert.Len(t, fp, 16)

	// Non-identity fields must not move the fingerprint.
	txn.MetaData = map[string]interface{}{"pattern_matched": "quick_pay"}
	txn.RawSnapshot = "您账户8551于02月21日19:25..."
	txn.RawID = "another-raw-id"
	txn.Channel = &PaymentChannel{Name: "微信支付"}
	assert.Equal(t, fp, txn.Fingerprint())

	// Identity fields must.
	changed := sampleTransaction()
	changed.Amount = decimal.RequireFromString("3.01")
	assert.NotEqual(t, fp, changed.Fingerprint())

	changed = sampleTransaction()
	changed.AccountID = "8552"
	assert.NotEqual(t, fp, changed.Fingerprint())
}

func TestFingerprintUnknownCounterparty(t *testing.T) {
	txn := sampleTransaction()
	txn.Counterparty = nil
	withEmptyName := sampleTransaction()
	withEmptyName.Counterparty = &Counterparty{Name: ""}
	assert.Equal(t, txn.Fingerprint(), withEmptyName.Fingerprint())
	assert.Equal(t, "unknown", txn.CounterpartyName())
}

func TestSignedAmount(t *testing.T) {
	cases := []struct {
		txnType TransactionType
		want    string
	}{
		{TypeConsumption, "-3"},
		{TypeTransferOut, "-3"},
		{TypeFee, "-3"},
		{TypeIncome, "3"},
		{TypeTransferIn, "3"},
		{TypeRefund, "3"},
		{TypeInterest, "3"},
		{TypeDividend, "3"},
		{TypeOther, "3"},
	}
	for _, c := range cases {
		txn := sampleTransaction()
		txn.Type = c.txnType
		assert.Equal(t, c.want, txn.SignedAmount().String(), "type %s", c.txnType)
	}
}

func TestNormalize(t *testing.T) {
	txn := sampleTransaction()
	txn.Amount = decimal.RequireFromString("-12.50")
	txn.Currency = ""
	long := make([]byte, 4000)
	for i := range long {
		long[i] = 'x'
	}
	txn.RawSnapshot = string(long)

	txn.Normalize()
	assert.Equal(t, "12.5", txn.Amount.String())
	assert.Equal(t, "CNY", txn.Currency)
	assert.Len(t, txn.RawSnapshot, 1000)
}

func TestNormalizeSnapshotKeepsRunesIntact(t *testing.T) {
	txn := sampleTransaction()
	long := strings.Repeat("您账户8551动账通知，余额100638.62。", 100)
	txn.RawSnapshot = long

	txn.Normalize()
	// The cut lands on a rune boundary: the snapshot stays valid UTF-8
	// and is a clean prefix of the original body.
	assert.True(t, utf8.ValidString(txn.RawSnapshot))
	assert.Len(t, []rune(txn.RawSnapshot), 1000)
	assert.True(t, strings.HasPrefix(long, txn.RawSnapshot))
}

func TestApplyHintsCoalesceOnly(t *testing.T) {
	acc := Account{AccountID: "8551", DisplayName: "招行借记卡", AccountType: AccountDebit}
	changed := acc.ApplyHints(Account{DisplayName: "other name", Institution: "招商银行"})
	assert.True(t, changed)
	assert.Equal(t, "招行借记卡", acc.DisplayName)
	assert.Equal(t, "招商银行", acc.Institution)

	changed = acc.ApplyHints(Account{})
	assert.False(t, changed)
}
