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
	"time"

	"github.com/shopspring/decimal"

	"github.com/billsync/billsync/config"
	"github.com/billsync/billsync/model"
	"github.com/billsync/billsync/parser"
)

// CreateAccount registers an account ahead of any transaction touching
// it. Accounts referenced by incoming records are created lazily instead.
func (b *Billsync) CreateAccount(ctx context.Context, account model.Account) (model.Account, error) {
	return b.datasource.CreateAccount(ctx, account)
}

// GetAccount retrieves one account by its business key.
func (b *Billsync) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	return b.datasource.GetAccountByID(ctx, accountID)
}

// ListAccounts lists tracked accounts.
func (b *Billsync) ListAccounts(ctx context.Context, activeOnly bool) ([]model.Account, error) {
	return b.datasource.GetAllAccounts(ctx, activeOnly)
}

// AccountBalance returns the reconciled balance for one account; the
// result is invalid when no record has established a balance yet.
func (b *Billsync) AccountBalance(ctx context.Context, accountID string) (decimal.NullDecimal, error) {
	return b.datasource.GetAccountBalance(ctx, accountID)
}

// TotalBalance sums the balances of active accounts.
func (b *Billsync) TotalBalance(ctx context.Context) (decimal.Decimal, error) {
	return b.datasource.GetTotalBalance(ctx)
}

// DeactivateAccount excludes an account from syncs and balance totals.
// History stays queryable; accounts are never deleted.
func (b *Billsync) DeactivateAccount(ctx context.Context, accountID string) error {
	return b.datasource.DeactivateAccount(ctx, accountID)
}

// Status is the operational summary shown by the status command.
type Status struct {
	Accounts      []model.Account  `json:"accounts"`
	TotalBalance  decimal.Decimal  `json:"total_balance"`
	StoredRecords int64            `json:"stored_records"`
	Outcomes      map[string]int64 `json:"outcomes"`
	LastSyncTime  *time.Time       `json:"last_sync_time,omitempty"`
	MailboxHealth string           `json:"mailbox_health"`
}

// GetStatus aggregates accounts, balances and processing outcomes.
func (b *Billsync) GetStatus(ctx context.Context) (*Status, error) {
	accounts, err := b.datasource.GetAllAccounts(ctx, false)
	if err != nil {
		return nil, err
	}
	total, err := b.datasource.GetTotalBalance(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := b.datasource.CountTransactionsBySource(ctx, parser.SourceType)
	if err != nil {
		return nil, err
	}
	outcomes, err := b.datasource.CountProcessingOutcomes(ctx, parser.SourceType)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Accounts:      accounts,
		TotalBalance:  total,
		StoredRecords: stored,
		Outcomes:      outcomes,
		MailboxHealth: b.mailboxHealth(ctx),
	}
	for i := range accounts {
		t := accounts[i].LastSyncTime
		if t != nil && (status.LastSyncTime == nil || t.After(*status.LastSyncTime)) {
			status.LastSyncTime = t
		}
	}
	return status, nil
}

// mailboxHealth checks transport reachability for the status view.
func (b *Billsync) mailboxHealth(ctx context.Context) string {
	conf, err := config.Fetch()
	if err != nil || conf.Mail.Host == "" {
		return "not configured"
	}
	if err := b.source.Ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}
