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
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// accountCommands defines the `accounts` command group for read-only
// account inspection plus deactivation.
func accountCommands(b *billsyncInstance) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List tracked accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := b.billsync.ListAccounts(context.Background(), activeOnly)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tNAME\tTYPE\tBALANCE\tCURRENCY\tLAST SYNC\tACTIVE")
			for _, account := range accounts {
				balance := "unknown"
				if account.CurrentBalance.Valid {
					balance = account.CurrentBalance.Decimal.StringFixed(2)
				}
				lastSync := "never"
				if account.LastSyncTime != nil {
					lastSync = account.LastSyncTime.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
					account.AccountID, account.DisplayName, account.AccountType,
					balance, account.Currency, lastSync, account.IsActive)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "List active accounts only")

	deactivate := &cobra.Command{
		Use:   "deactivate <account-id>",
		Short: "Exclude an account from syncs and balance totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := b.billsync.DeactivateAccount(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("account %s deactivated\n", args[0])
			return nil
		},
	}
	cmd.AddCommand(deactivate)
	return cmd
}
