/*
Copyright 2025 Billsync Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package billsync

import (
	"context"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/billsync/billsync/config"
	"github.com/billsync/billsync/database"
	"github.com/billsync/billsync/internal/apperror"
	"github.com/billsync/billsync/internal/notification"
	"github.com/billsync/billsync/mail"
	"github.com/billsync/billsync/model"
	"github.com/billsync/billsync/parser"
)

// Processing log statuses, one per message outcome class.
const (
	StatusSaved     = "saved"
	StatusDuplicate = "duplicate"
	StatusNoMatch   = "no_match"
	StatusError     = "error"
)

// SyncOptions tunes one sync run.
type SyncOptions struct {
	Days   int  // overrides the resumption point when > 0
	DryRun bool // parse and report without writing anything
}

// SyncResult summarizes one completed run.
type SyncResult struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Fetched    int       `json:"fetched"`
	Parsed     int       `json:"parsed"`
	New        int       `json:"new"`
	Duplicates int       `json:"duplicates"`
	NoMatch    int       `json:"no_match"`
	Errors     int       `json:"errors"`
	DryRun     bool      `json:"dry_run,omitempty"`
}

type parsedMessage struct {
	msg    mail.Message
	source string
	txn    *model.Transaction
}

// Sync runs one fetch-parse-save cycle over the mailbox. Connection
// failures are retried with backoff; an authentication failure aborts
// immediately. A single bad message never stops the run: parse failures
// are logged and counted, and processing continues with the next one.
func (b *Billsync) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	until := time.Now()
	since, err := b.windowStart(ctx, until, opts.Days, conf)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{From: since, To: until, DryRun: opts.DryRun}

	runID := model.GenerateUUIDWithSuffix("run")
	logrus.WithFields(logrus.Fields{
		"run_id":  runID,
		"from":    since.Format(time.RFC3339),
		"to":      until.Format(time.RFC3339),
		"dry_run": opts.DryRun,
	}).Info("starting sync")

	messages, err := b.fetchWithRetry(ctx, since, until, conf.Sync.MaxRetries)
	if err != nil {
		notification.NotifySyncFailure(notification.SyncContext{RunID: runID, From: since, To: until}, err)
		return nil, err
	}
	result.Fetched = len(messages)

	var parsed []parsedMessage
	for _, msg := range messages {
		p := b.routeParser(msg)
		if p == nil {
			// Unrelated mail in the folder is not ours to log.
			continue
		}
		txn := p.Parse(msg.Body, msg.Subject, msg.Sender, msg.Date.Format(time.RFC1123Z))
		if txn == nil {
			result.NoMatch++
			if !opts.DryRun {
				b.recordOutcome(ctx, p.SourceName(), msg.ID, StatusNoMatch, "no extraction pattern matched")
			}
			continue
		}
		parsed = append(parsed, parsedMessage{msg: msg, source: p.SourceName(), txn: txn})
	}
	result.Parsed = len(parsed)

	// Records apply oldest first so delta-based balances accumulate in
	// event order regardless of mailbox ordering.
	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].txn.TransactionTime.Before(parsed[j].txn.TransactionTime)
	})

	if opts.DryRun {
		return result, nil
	}

	var processedIDs []string
	for _, pm := range parsed {
		outcome, err := b.datasource.SaveTransaction(ctx, pm.txn)
		switch {
		case err != nil:
			result.Errors++
			logrus.WithFields(logrus.Fields{
				"message_id": pm.msg.ID,
				"error":      err,
			}).Error("failed to save transaction")
			b.recordOutcome(ctx, pm.source, pm.msg.ID, StatusError, err.Error())
		case outcome == database.OutcomeDuplicate:
			result.Duplicates++
			// The duplicate still proves the window up to its timestamp has
			// been covered, so the resumption point moves forward.
			hint := model.Account{
				DisplayName: pm.txn.AccountName,
				AccountType: pm.txn.AccountType,
				Currency:    pm.txn.Currency,
			}
			if err := b.datasource.AdvanceAccountSync(ctx, pm.txn.AccountID, pm.txn.TransactionTime, hint); err != nil {
				logrus.Warnf("failed to advance sync time for account %s: %v", pm.txn.AccountID, err)
			}
			b.recordOutcome(ctx, pm.source, pm.msg.ID, StatusDuplicate, "")
			processedIDs = append(processedIDs, pm.msg.ID)
		default:
			result.New++
			b.recordOutcome(ctx, pm.source, pm.msg.ID, StatusSaved, "")
			processedIDs = append(processedIDs, pm.msg.ID)
		}
	}

	if conf.Mail.MarkRead && len(processedIDs) > 0 {
		if err := b.source.MarkRead(ctx, processedIDs); err != nil {
			logrus.Warnf("failed to mark messages as read: %v", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"run_id":     runID,
		"fetched":    result.Fetched,
		"new":        result.New,
		"duplicates": result.Duplicates,
		"no_match":   result.NoMatch,
		"errors":     result.Errors,
	}).Info("sync completed")
	return result, nil
}

// windowStart resolves the fetch window start: an explicit day count
// wins, then the earliest resumption point across active accounts, then
// the configured lookback. An active account that has never synced still
// needs the full lookback, so its presence widens the window even when
// every other account synced recently.
func (b *Billsync) windowStart(ctx context.Context, until time.Time, days int, conf *config.Configuration) (time.Time, error) {
	if days > 0 {
		return until.AddDate(0, 0, -days), nil
	}
	accounts, err := b.datasource.GetAllAccounts(ctx, true)
	if err != nil {
		return time.Time{}, err
	}
	var earliest *time.Time
	neverSynced := false
	for i := range accounts {
		t := accounts[i].LastSyncTime
		if t == nil {
			neverSynced = true
			continue
		}
		if earliest == nil || t.Before(*earliest) {
			earliest = t
		}
	}
	if earliest != nil && !neverSynced {
		return *earliest, nil
	}
	lookback := until.AddDate(0, 0, -conf.Sync.LookbackDays)
	if earliest != nil && earliest.Before(lookback) {
		return *earliest, nil
	}
	return lookback, nil
}

// fetchWithRetry retries transient connection failures with exponential
// backoff. Authentication and other permanent failures abort at once.
func (b *Billsync) fetchWithRetry(ctx context.Context, since, until time.Time, maxRetries int) ([]mail.Message, error) {
	operation := func() ([]mail.Message, error) {
		messages, err := b.source.FetchMessages(ctx, since, until)
		if err != nil && !apperror.Retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return messages, err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxRetries)), ctx)
	return backoff.RetryWithData(operation, policy)
}

func (b *Billsync) routeParser(msg mail.Message) parser.Parser {
	for _, p := range b.parsers {
		if p.InDomain(msg.Subject, msg.Sender) {
			return p
		}
	}
	return nil
}

func (b *Billsync) recordOutcome(ctx context.Context, sourceType, sourceID, status, message string) {
	if err := b.datasource.RecordProcessingOutcome(ctx, sourceType, sourceID, status, message); err != nil {
		logrus.Warnf("failed to record processing outcome for %s: %v", sourceID, err)
	}
}
