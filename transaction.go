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

	"github.com/billsync/billsync/database"
	"github.com/billsync/billsync/model"
)

// SaveTransaction persists one record with dedup and balance effects.
// Duplicate is a successful outcome; callers branch on the outcome, not
// on the error.
func (b *Billsync) SaveTransaction(ctx context.Context, txn *model.Transaction) (database.SaveOutcome, error) {
	return b.datasource.SaveTransaction(ctx, txn)
}

// GetTransactionByFingerprint retrieves one stored record.
func (b *Billsync) GetTransactionByFingerprint(ctx context.Context, fingerprint string) (*model.Transaction, error) {
	return b.datasource.GetTransactionByFingerprint(ctx, fingerprint)
}

// ListTransactions is the read path for the CLI views.
func (b *Billsync) ListTransactions(ctx context.Context, filter database.TransactionFilter) ([]model.Transaction, error) {
	return b.datasource.ListTransactions(ctx, filter)
}
