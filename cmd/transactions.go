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
	"time"

	"github.com/spf13/cobra"

	"github.com/billsync/billsync/database"
	"github.com/billsync/billsync/model"
)

// transactionCommands defines the `transactions` command for read-only
// inspection of stored records, newest first.
func transactionCommands(b *billsyncInstance) *cobra.Command {
	var accountID string
	var txnType string
	var since string
	var limit int

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List stored transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := database.TransactionFilter{
				AccountID: accountID,
				Type:      model.TransactionType(txnType),
				Limit:     limit,
			}
			if since != "" {
				from, err := time.ParseInLocation("2006-01-02", since, time.Local)
				if err != nil {
					return fmt.Errorf("bad --since value %q, want YYYY-MM-DD", since)
				}
				filter.From = &from
			}

			transactions, err := b.billsync.ListTransactions(context.Background(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACCOUNT\tTYPE\tAMOUNT\tCOUNTERPARTY\tCATEGORY\tCHANNEL")
			for _, txn := range transactions {
				counterparty, category := "", ""
				if txn.Counterparty != nil {
					counterparty = txn.Counterparty.Name
					category = txn.Counterparty.Category
				}
				channel := ""
				if txn.Channel != nil {
					channel = txn.Channel.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					txn.TransactionTime.Format("2006-01-02 15:04"), txn.AccountID, txn.Type,
					txn.SignedAmount().StringFixed(2), counterparty, category, channel)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "Filter by account id")
	cmd.Flags().StringVar(&txnType, "type", "", "Filter by transaction type")
	cmd.Flags().StringVar(&since, "since", "", "Only records on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to print")
	return cmd
}
