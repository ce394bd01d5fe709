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
package mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/billsync/billsync/database"
	"github.com/billsync/billsync/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Transaction methods

func (m *MockDataSource) SaveTransaction(ctx context.Context, txn *model.Transaction) (database.SaveOutcome, error) {
	args := m.Called(ctx, txn)
	return args.Get(0).(database.SaveOutcome), args.Error(1)
}

func (m *MockDataSource) TransactionExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	args := m.Called(ctx, fingerprint)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetTransactionByFingerprint(ctx context.Context, fingerprint string) (*model.Transaction, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockDataSource) ListTransactions(ctx context.Context, filter database.TransactionFilter) ([]model.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Transaction), args.Error(1)
}

func (m *MockDataSource) CountTransactionsBySource(ctx context.Context, sourceType string) (int64, error) {
	args := m.Called(ctx, sourceType)
	return args.Get(0).(int64), args.Error(1)
}

// Account methods

func (m *MockDataSource) CreateAccount(ctx context.Context, account model.Account) (model.Account, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *MockDataSource) GetAccountByID(ctx context.Context, accountID string) (*model.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockDataSource) GetAllAccounts(ctx context.Context, activeOnly bool) ([]model.Account, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Account), args.Error(1)
}

func (m *MockDataSource) GetAccountBalance(ctx context.Context, accountID string) (decimal.NullDecimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.NullDecimal), args.Error(1)
}

func (m *MockDataSource) GetTotalBalance(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockDataSource) GetLastSyncTime(ctx context.Context, accountID string) (*time.Time, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockDataSource) AdvanceAccountSync(ctx context.Context, accountID string, syncTime time.Time, hint model.Account) error {
	args := m.Called(ctx, accountID, syncTime, hint)
	return args.Error(0)
}

func (m *MockDataSource) DeactivateAccount(ctx context.Context, accountID string) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

// Processing log methods

func (m *MockDataSource) RecordProcessingOutcome(ctx context.Context, sourceType, sourceID, status, message string) error {
	args := m.Called(ctx, sourceType, sourceID, status, message)
	return args.Error(0)
}

func (m *MockDataSource) CountProcessingOutcomes(ctx context.Context, sourceType string) (map[string]int64, error) {
	args := m.Called(ctx, sourceType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}
