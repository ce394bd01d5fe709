package parser

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billsync/billsync/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestParseQuickPay(t *testing.T) {
	p := NewCMBEmailParser()
	p.now = fixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local))

	body := "您账户8551于02月21日19:25在财付通-微信支付-山月荟装扮快捷支付3.00元，余额100638.62"
	txn := p.Parse(body, "招商银行动账通知", "noreply@cmbchina.com", "Fri, 21 Feb 2025 19:25:00 +0800")
	require.NotNil(t, txn)

	assert.Equal(t, "8551", txn.AccountID)
	assert.Equal(t, model.TypeConsumption, txn.Type)
	assert.Equal(t, "3", txn.Amount.String())
	assert.Equal(t, "CNY", txn.Currency)
	require.NotNil(t, txn.Counterparty)
	assert.Equal(t, "山月荟装扮", txn.Counterparty.Name)
	assert.Equal(t, model.CounterpartyMerchant, txn.Counterparty.Type)
	require.NotNil(t, txn.Channel)
	assert.Equal(t, "微信支付", txn.Channel.Name)
	assert.Equal(t, "财付通", txn.Channel.Provider)
	assert.Equal(t, "quick_pay", txn.Channel.Method)
	require.True(t, txn.BalanceAfter.Valid)
	assert.Equal(t, "100638.62", txn.BalanceAfter.Decimal.String())
	assert.Equal(t, time.Date(2025, 2, 21, 19, 25, 0, 0, time.Local), txn.TransactionTime)
	assert.Equal(t, "quick_pay", txn.MetaData["pattern_matched"])
	assert.Equal(t, "noreply@cmbchina.com", txn.SourceAccount)
	assert.Equal(t, SourceType, txn.SourceType)
}

// The quick_pay text also matches the generic consumption shape; the
// higher-priority pattern must win and keep the richer structured data.
func TestParsePrecedence(t *testing.T) {
	p := NewCMBEmailParser()
	body := "您账户8551于02月21日19:25在财付通-微信支付-山月荟装扮快捷支付3.00元，余额100638.62"
	txn := p.Parse(body, "", "", "")
	require.NotNil(t, txn)
	assert.Equal(t, "quick_pay", txn.MetaData["pattern_matched"])
	assert.NotNil(t, txn.Counterparty)
}

func TestParseConsumption(t *testing.T) {
	p := NewCMBEmailParser()
	txn := p.Parse("您账户*1234于02月21日19:25消费CNY 128.50", "", "", "")
	require.NotNil(t, txn)
	assert.Equal(t, "1234", txn.AccountID)
	assert.Equal(t, model.TypeConsumption, txn.Type)
	assert.Equal(t, "128.5", txn.Amount.String())
	assert.Nil(t, txn.Counterparty)
	assert.False(t, txn.BalanceAfter.Valid)
}

func TestParseIncome(t *testing.T) {
	p := NewCMBEmailParser()
	txn := p.Parse("您账户*1234于02月21日19:25入账CNY 1000.00", "", "", "")
	require.NotNil(t, txn)
	assert.Equal(t, model.TypeIncome, txn.Type)
	assert.Equal(t, "1000", txn.Amount.String())
}

func TestParseIncomeWithBalance(t *testing.T) {
	p := NewCMBEmailParser()
	body := "您账户8551于03月02日09:10收款200.00元，余额100838.62，备注：财付通-张子鸣-微信零钱提现"
	txn := p.Parse(body, "", "", "")
	require.NotNil(t, txn)
	assert.Equal(t, "income_with_balance", txn.MetaData["pattern_matched"])
	assert.Equal(t, model.TypeIncome, txn.Type)
	assert.Equal(t, "200", txn.Amount.String())
	require.True(t, txn.BalanceAfter.Valid)
	assert.Equal(t, "100838.62", txn.BalanceAfter.Decimal.String())
	require.NotNil(t, txn.Counterparty)
	assert.Equal(t, "张子鸣", txn.Counterparty.Name)
	assert.Equal(t, model.CounterpartyPerson, txn.Counterparty.Type)
	require.NotNil(t, txn.Channel)
	assert.Equal(t, "微信零钱提现", txn.Channel.Name)
	assert.Equal(t, "财付通", txn.Channel.Provider)
	assert.Equal(t, "transfer", txn.Channel.Method)
}

func TestParseTransferOut(t *testing.T) {
	p := NewCMBEmailParser()
	txn := p.Parse("您向李雷转账500.00元", "", "", "")
	require.NotNil(t, txn)
	assert.Equal(t, model.TypeTransferOut, txn.Type)
	assert.Equal(t, "500", txn.Amount.String())
	require.NotNil(t, txn.Counterparty)
	assert.Equal(t, "李雷", txn.Counterparty.Name)
	assert.Equal(t, model.CounterpartyPerson, txn.Counterparty.Type)
	assert.Equal(t, "unknown", txn.AccountID)
}

func TestParseNonMatchSafety(t *testing.T) {
	p := NewCMBEmailParser()
	assert.Nil(t, p.Parse("", "", "", ""))
	assert.Nil(t, p.Parse("您好，这是一封普通邮件。", "", "", ""))
	assert.Nil(t, p.Parse("account statement attached", "statement", "bank@example.com", ""))
}

func TestParseMultilineBody(t *testing.T) {
	p := NewCMBEmailParser()
	body := "尊敬的客户：\r\n  您账户8551于02月21日19:25在财付通-微信支付-山月荟装扮\r\n快捷支付3.00元，余额100638.62\r\n【招商银行】\r\n"
	txn := p.Parse(body, "", "", "")
	require.NotNil(t, txn)
	assert.Equal(t, "3", txn.Amount.String())
}

// Composite description with fewer parts than provider-channel-merchant:
// the whole string becomes the merchant name, channel name stays unset.
func TestParseCompositeFallback(t *testing.T) {
	p := NewCMBEmailParser()
	body := "您账户8551于02月21日19:25在财付通-微信支付快捷支付3.00元，余额100638.62"
	txn := p.Parse(body, "", "", "")
	require.NotNil(t, txn)
	require.NotNil(t, txn.Counterparty)
	assert.Equal(t, "财付通-微信支付", txn.Counterparty.Name)
	require.NotNil(t, txn.Channel)
	assert.Equal(t, "财付通", txn.Channel.Provider)
	assert.Equal(t, "微信支付", txn.Channel.Name)
}

func TestYearInference(t *testing.T) {
	p := NewCMBEmailParser()
	// Processing a December message in January: the extracted month is
	// greater than the current month, so the previous year is assumed.
	p.now = fixedClock(time.Date(2025, 1, 5, 8, 0, 0, 0, time.Local))
	txn := p.Parse("您账户*1234于12月30日10:00消费CNY 20.00", "", "", "")
	require.NotNil(t, txn)
	assert.Equal(t, 2024, txn.TransactionTime.Year())

	// Same-month message keeps the current year.
	txn = p.Parse("您账户*1234于01月03日10:00消费CNY 20.00", "", "", "")
	require.NotNil(t, txn)
	assert.Equal(t, 2025, txn.TransactionTime.Year())
}

func TestBalanceFallbackScan(t *testing.T) {
	p := NewCMBEmailParser()
	// The consumption pattern has no balance group; the generic 余额 scan
	// still picks it up from the surrounding text.
	txn := p.Parse("您账户*1234于02月21日19:25消费CNY 128.50，余额：871.50", "", "", "")
	require.NotNil(t, txn)
	require.True(t, txn.BalanceAfter.Valid)
	assert.Equal(t, "871.5", txn.BalanceAfter.Decimal.String())
}

func TestInferCategory(t *testing.T) {
	assert.Equal(t, "餐饮", inferCategory("星巴克咖啡"))
	assert.Equal(t, "购物", inferCategory("京东商城"))
	assert.Equal(t, "交通", inferCategory("滴滴出行"))
	assert.Equal(t, "娱乐", inferCategory("万达影院"))
	assert.Equal(t, "娱乐", inferCategory("纯K KTV"))
	assert.Equal(t, "", inferCategory("山月荟装扮"))
	assert.Equal(t, "", inferCategory(""))
}

func TestInDomain(t *testing.T) {
	p := NewCMBEmailParser()
	assert.True(t, p.InDomain("招商银行动账通知", ""))
	assert.True(t, p.InDomain("消费提醒", "someone@qq.com"))
	assert.True(t, p.InDomain("hello", "service@message.cmbchina.com"))
	assert.False(t, p.InDomain("weekly newsletter", "news@example.com"))
}

func TestFingerprintOfParsedRecordIsStable(t *testing.T) {
	p := NewCMBEmailParser()
	p.now = fixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local))
	body := "您账户8551于02月21日19:25在财付通-微信支付-山月荟装扮快捷支付3.00元，余额100638.62"

	first := p.Parse(body, "动账通知", "a@cmbchina.com", "")
	second := p.Parse(body, "动账通知(再次投递)", "a@cmbchina.com", "")
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("3.00")))
}

func TestParseArbitraryProseNeverMatches(t *testing.T) {
	p := NewCMBEmailParser()
	gofakeit.Seed(11)
	for i := 0; i < 200; i++ {
		body := gofakeit.Paragraph(2, 4, 12, "\n")
		assert.Nil(t, p.Parse(body, gofakeit.Sentence(5), gofakeit.Email(), ""))
	}
}
