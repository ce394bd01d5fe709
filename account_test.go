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
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/billsync/billsync/database/mocks"
	"github.com/billsync/billsync/model"
	"github.com/billsync/billsync/parser"
)

func TestGetStatus_Aggregates(t *testing.T) {
	mockSyncConfig(false)

	older := time.Date(2025, 2, 20, 10, 0, 0, 0, time.Local)
	newer := time.Date(2025, 2, 21, 19, 25, 0, 0, time.Local)

	ds := new(mocks.MockDataSource)
	ds.On("GetAllAccounts", mock.Anything, false).Return([]model.Account{
		{AccountID: "8551", LastSyncTime: &newer, IsActive: true},
		{AccountID: "1234", LastSyncTime: &older, IsActive: true},
	}, nil)
	ds.On("GetTotalBalance", mock.Anything).Return(decimal.RequireFromString("100638.62"), nil)
	ds.On("CountTransactionsBySource", mock.Anything, parser.SourceType).Return(int64(55), nil)
	ds.On("CountProcessingOutcomes", mock.Anything, parser.SourceType).Return(map[string]int64{
		StatusSaved:     40,
		StatusDuplicate: 12,
		StatusNoMatch:   3,
	}, nil)

	b := newTestBillsync(&fakeMailSource{}, ds)
	status, err := b.GetStatus(context.Background())

	assert.NoError(t, err)
	assert.Len(t, status.Accounts, 2)
	assert.Equal(t, "100638.62", status.TotalBalance.String())
	assert.Equal(t, int64(55), status.StoredRecords)
	assert.Equal(t, int64(12), status.Outcomes[StatusDuplicate])
	assert.Equal(t, newer, *status.LastSyncTime)
	// No mail host in the mock config.
	assert.Equal(t, "not configured", status.MailboxHealth)
	ds.AssertExpectations(t)
}
