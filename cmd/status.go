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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// statusCommands defines the `status` command: accounts, balances, stored
// record counts and processing outcomes in one view.
func statusCommands(b *billsyncInstance) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show accounts, balances and sync health",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := b.billsync.GetStatus(context.Background())
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(status)
			}

			fmt.Printf("project: %s\n", b.cnf.ProjectName)
			fmt.Printf("mailbox: %s\n", status.MailboxHealth)
			if status.LastSyncTime != nil {
				fmt.Printf("last sync: %s\n", status.LastSyncTime.Format("2006-01-02 15:04:05"))
			} else {
				fmt.Println("last sync: never")
			}
			fmt.Printf("stored records: %d\n", status.StoredRecords)
			fmt.Printf("total balance: %s\n", status.TotalBalance.StringFixed(2))

			fmt.Printf("accounts (%d):\n", len(status.Accounts))
			for _, account := range status.Accounts {
				balance := "unknown"
				if account.CurrentBalance.Valid {
					balance = account.CurrentBalance.Decimal.StringFixed(2)
				}
				state := "active"
				if !account.IsActive {
					state = "inactive"
				}
				fmt.Printf("  %s  %-10s %10s %s  %s\n", account.AccountID, account.AccountType, balance, account.Currency, state)
			}

			if len(status.Outcomes) > 0 {
				fmt.Println("processing outcomes:")
				for outcome, count := range status.Outcomes {
					fmt.Printf("  %-12s %d\n", outcome, count)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the status as JSON")
	return cmd
}
