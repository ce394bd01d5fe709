// Package parser turns bank-notification text into canonical transaction
// records. Extraction is driven by an ordered list of named patterns;
// the first pattern that matches wins, so richer patterns must be listed
// before generic ones.
package parser

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/billsync/billsync/model"
)

const SourceType = "cmb_email"

// Parser is one notification-format handler. InDomain is the cheap
// routing check; Parse does the actual extraction and returns nil for
// messages the parser cannot understand.
type Parser interface {
	SourceName() string
	InDomain(subject, sender string) bool
	Parse(body, subject, sender, dateHeader string) *model.Transaction
}

// extractionPattern is one declarative matcher over the normalized text.
type extractionPattern struct {
	name    string
	txnType model.TransactionType
	re      *regexp.Regexp
}

// CMBEmailParser parses 招商银行 (China Merchants Bank) notification
// emails. Supported formats include:
//
//	快捷支付: 您账户8551于02月21日19:25在财付通-微信支付-山月荟装扮快捷支付3.00元，余额100638.62
//	消费:     您账户*1234于02月21日19:25消费CNY 128.50
//	入账:     您账户*1234于02月21日19:25入账CNY 1000.00
type CMBEmailParser struct {
	patterns  []extractionPattern
	balanceRe *regexp.Regexp
	now       func() time.Time
}

func NewCMBEmailParser() *CMBEmailParser {
	return &CMBEmailParser{
		// Priority order matters: quick_pay carries merchant and balance
		// and must win over the generic consumption pattern on the same
		// text. income_with_balance likewise precedes plain income.
		patterns: []extractionPattern{
			{
				name:    "quick_pay",
				txnType: model.TypeConsumption,
				re:      regexp.MustCompile(`您账户\*?(\d{4})于(\d{2})月(\d{2})日(\d{2}):(\d{2})在(.+?)快捷支付(\d+\.?\d*)元，余额(\d+\.?\d*)`),
			},
			{
				name:    "merchant_consumption",
				txnType: model.TypeConsumption,
				re:      regexp.MustCompile(`您账户\*?(\d{4})于(\d{2})月(\d{2})日(\d{2}):(\d{2})在(.+?)消费([A-Z]{3})?\s*(\d+\.?\d*)元?`),
			},
			{
				name:    "consumption",
				txnType: model.TypeConsumption,
				re:      regexp.MustCompile(`您账户\*?(\d{4})于(\d{2})月(\d{2})日(\d{2}):(\d{2})消费([A-Z]{3})?\s*(\d+\.?\d*)元?`),
			},
			{
				name:    "income_with_balance",
				txnType: model.TypeIncome,
				re:      regexp.MustCompile(`您账户\*?(\d{4})于(\d{2})月(\d{2})日(\d{2}):(\d{2})收款(\d+\.?\d*)元，余额(\d+\.?\d*)，备注：(.+?)(?:\n|$)`),
			},
			{
				name:    "income",
				txnType: model.TypeIncome,
				re:      regexp.MustCompile(`您账户\*?(\d{4})于(\d{2})月(\d{2})日(\d{2}):(\d{2})入?账([A-Z]{3})?\s*(\d+\.?\d*)元?`),
			},
			{
				name:    "transfer_out",
				txnType: model.TypeTransferOut,
				re:      regexp.MustCompile(`您向(.+?)转账([A-Z]{3})?\s*(\d+\.?\d*)元?`),
			},
		},
		balanceRe: regexp.MustCompile(`余额[:：]?\s*(\d+\.?\d*)`),
		now:       time.Now,
	}
}

// SourceName tags every record this parser emits.
func (p *CMBEmailParser) SourceName() string {
	return SourceType
}

var domainKeywords = []string{
	"招商银行", "招行", "CMB",
	"动账通知", "消费提醒", "入账通知",
	"账户变动", "支付提醒",
}

var domainSenders = []string{"cmbchina.com", "cmb.com"}

// InDomain is the cheap pre-check run before any pattern work: only
// messages that look like CMB account notifications are parsed at all.
func (p *CMBEmailParser) InDomain(subject, sender string) bool {
	for _, kw := range domainKeywords {
		if strings.Contains(subject, kw) {
			return true
		}
	}
	if sender != "" {
		for _, domain := range domainSenders {
			if strings.Contains(sender, domain) {
				return true
			}
		}
	}
	return false
}

// Parse converts one notification into a transaction record. It returns
// nil when no pattern matches; malformed input is a non-match, never an
// error. A per-pattern extraction failure is logged and the next pattern
// is tried.
func (p *CMBEmailParser) Parse(body, subject, sender, dateHeader string) *model.Transaction {
	text := cleanText(body)
	if text == "" {
		return nil
	}

	for _, pattern := range p.patterns {
		m := pattern.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		txn, err := p.buildTransaction(pattern, m, text, subject, sender, dateHeader)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"pattern": pattern.name,
				"error":   err,
			}).Debug("pattern matched but extraction failed, trying next")
			continue
		}
		return txn
	}
	return nil
}

// cleanText collapses the message into a single line: line endings are
// unified, every line is trimmed and empty lines are dropped before
// joining with single spaces. Patterns are written against this form.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " ")
}

func (p *CMBEmailParser) buildTransaction(pattern extractionPattern, m []string, fullText, subject, sender, dateHeader string) (*model.Transaction, error) {
	txn := &model.Transaction{
		SourceType:    SourceType,
		SourceAccount: sender,
		AccountID:     p.extractCardTail(pattern.name, m),
		AccountType:   model.AccountDebit,
		Type:          pattern.txnType,
		Currency:      "CNY",
		MetaData: map[string]interface{}{
			"pattern_matched": pattern.name,
			"email_subject":   subject,
			"email_date":      dateHeader,
		},
		RawSnapshot: fullText,
	}
	txn.RawID = rawID(pattern.name, m[0])
	txn.TransactionTime = p.extractTime(pattern.name, m)

	amount, err := p.extractAmount(pattern.name, m)
	if err != nil {
		return nil, err
	}
	txn.Amount = amount

	txn.BalanceAfter = p.extractBalance(pattern.name, m, fullText)
	txn.Counterparty = extractCounterparty(pattern.name, m)
	txn.Channel = extractChannel(pattern.name, m, fullText)

	txn.Normalize()
	return txn, nil
}

func (p *CMBEmailParser) extractCardTail(patternName string, m []string) string {
	switch patternName {
	case "quick_pay", "merchant_consumption", "consumption", "income", "income_with_balance":
		if m[1] != "" {
			return m[1]
		}
	}
	return "unknown"
}

// extractTime rebuilds the transaction instant from the two-digit month,
// day, hour and minute groups. The year is inferred as the current year,
// minus one when the extracted month is numerically greater than the
// current month. The heuristic misfires for messages delayed across a
// year boundary by more than the immediate turnover; the header date is
// kept in metadata should an explicit year source be wanted later.
func (p *CMBEmailParser) extractTime(patternName string, m []string) time.Time {
	now := p.now()
	switch patternName {
	case "quick_pay", "merchant_consumption", "consumption", "income", "income_with_balance":
		month, err1 := strconv.Atoi(m[2])
		day, err2 := strconv.Atoi(m[3])
		hour, err3 := strconv.Atoi(m[4])
		minute, err4 := strconv.Atoi(m[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return now
		}
		if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
			return now
		}
		year := now.Year()
		if month > int(now.Month()) {
			year--
		}
		return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local)
	}
	return now
}

func (p *CMBEmailParser) extractAmount(patternName string, m []string) (decimal.Decimal, error) {
	var raw string
	switch patternName {
	case "quick_pay":
		raw = m[7]
	case "merchant_consumption":
		raw = m[8]
	case "consumption", "income":
		raw = m[7]
	case "income_with_balance":
		raw = m[6]
	case "transfer_out":
		raw = m[3]
	default:
		return decimal.Zero, fmt.Errorf("unknown pattern %q", patternName)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "bad amount %q", raw)
	}
	return amount, nil
}

// extractBalance returns the balance group carried by the pattern, or
// falls back to a generic 余额 scan over the full text as a last resort.
func (p *CMBEmailParser) extractBalance(patternName string, m []string, fullText string) decimal.NullDecimal {
	var raw string
	switch patternName {
	case "quick_pay":
		raw = m[8]
	case "income_with_balance":
		raw = m[7]
	}
	if raw == "" {
		if bm := p.balanceRe.FindStringSubmatch(fullText); bm != nil {
			raw = bm[1]
		}
	}
	if raw == "" {
		return decimal.NullDecimal{}
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: balance, Valid: true}
}

// extractCounterparty maps pattern-specific groups to the counterparty.
// Composite "provider-channel-merchant" descriptions are split on "-";
// when fewer parts than expected are present the last part is never
// dropped and missing fields stay unset.
func extractCounterparty(patternName string, m []string) *model.Counterparty {
	switch patternName {
	case "quick_pay":
		parts := strings.Split(m[6], "-")
		name := m[6]
		if len(parts) > 2 {
			name = parts[2]
		}
		name = strings.TrimSpace(name)
		return &model.Counterparty{
			Name:     name,
			Type:     model.CounterpartyMerchant,
			Category: inferCategory(name),
		}
	case "merchant_consumption":
		name := strings.TrimSpace(m[6])
		return &model.Counterparty{
			Name:     name,
			Type:     model.CounterpartyMerchant,
			Category: inferCategory(name),
		}
	case "transfer_out":
		return &model.Counterparty{
			Name: strings.TrimSpace(m[1]),
			Type: model.CounterpartyPerson,
		}
	case "income_with_balance":
		// Remark of the form 财付通-张子鸣-微信零钱提现: the middle part is
		// the payer. A remark without the separator is kept whole.
		remark := m[8]
		parts := strings.Split(remark, "-")
		if len(parts) >= 2 {
			return &model.Counterparty{
				Name: strings.TrimSpace(parts[1]),
				Type: model.CounterpartyPerson,
			}
		}
		return &model.Counterparty{
			Name: strings.TrimSpace(remark),
			Type: model.CounterpartyMerchant,
		}
	}
	return nil
}

func extractChannel(patternName string, m []string, fullText string) *model.PaymentChannel {
	switch patternName {
	case "quick_pay":
		parts := strings.Split(m[6], "-")
		channel := &model.PaymentChannel{Method: "quick_pay"}
		if len(parts) > 0 {
			channel.Provider = parts[0]
		}
		if len(parts) > 1 {
			channel.Name = parts[1]
		}
		return channel
	case "income_with_balance":
		parts := strings.Split(m[8], "-")
		switch {
		case len(parts) >= 3:
			provider := strings.TrimSpace(parts[0])
			info := strings.TrimSpace(parts[2])
			name := info
			if strings.Contains(info, "微信") || strings.Contains(info, "零钱") {
				name = "微信零钱提现"
			}
			return &model.PaymentChannel{Name: name, Provider: provider, Method: "transfer"}
		case len(parts) == 1:
			return &model.PaymentChannel{Name: strings.TrimSpace(parts[0]), Method: "transfer"}
		}
	}

	// Channel keywords anywhere in the text are a weaker signal but still
	// better than nothing.
	if strings.Contains(fullText, "微信支付") || strings.Contains(fullText, "财付通") {
		return &model.PaymentChannel{Name: "微信支付", Provider: "财付通"}
	}
	if strings.Contains(fullText, "支付宝") {
		return &model.PaymentChannel{Name: "支付宝", Provider: "支付宝"}
	}
	return nil
}

// rawID derives a stable source-side identifier from the pattern name
// and the matched span. It is provenance only; dedup relies on the
// content fingerprint, not on this value.
func rawID(patternName, matched string) string {
	sum := md5.Sum([]byte(patternName + ":" + matched))
	return hex.EncodeToString(sum[:])[:16]
}
