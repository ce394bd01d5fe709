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
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/billsync/billsync"
	"github.com/billsync/billsync/config"
	"github.com/billsync/billsync/database"
	"github.com/billsync/billsync/internal/notification"
)

// Billsync represents the CLI application, encapsulating the root Cobra command.
type Billsync struct {
	cmd *cobra.Command // Root command for the CLI application
}

// billsyncInstance holds the Billsync instance and its configuration.
// This is used to store the runtime instance and configuration globally within the application.
type billsyncInstance struct {
	billsync *billsync.Billsync    // Billsync object initialized from configuration
	cnf      *config.Configuration // Configuration object holding runtime settings
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec) // Log the recovered panic
		os.Exit(1)        // Exit the program with an error status
	}
}

// preRun sets up the configuration and initializes the Billsync instance before running any command.
// It ensures that the configuration is loaded, and the Billsync instance is initialized properly.
func preRun(app *billsyncInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		// Initialize configuration from the specified configuration file.
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		// Fetch the configuration settings.
		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		// Initialize the Billsync instance using the fetched configuration.
		newBillsync, err := setupBillsync(cnf)
		if err != nil {
			notification.NotifyError(err) // Notify via the internal notification system
			log.Fatal(err)                // Log the fatal error
		}

		// Assign the new Billsync instance and configuration to the app struct.
		app.billsync = newBillsync
		app.cnf = cnf

		return nil
	}
}

// setupBillsync creates and initializes a new Billsync instance based on the provided configuration.
// It connects to the data source (the sqlite database) using the configuration settings.
func setupBillsync(cfg *config.Configuration) (*billsync.Billsync, error) {
	// Initialize a new data source from the configuration.
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	// Create a new Billsync instance using the initialized data source.
	newBillsync, err := billsync.NewBillsync(db)
	if err != nil {
		return nil, fmt.Errorf("error creating billsync: %v", err)
	}
	return newBillsync, nil
}

// NewCLI creates the command-line interface (CLI) for the Billsync application.
// It sets up the root command and the sync, schedule, status, accounts and
// transactions subcommands.
func NewCLI() *Billsync {
	var configFile string    // Configuration file path (defaults to ./billsync.json)
	b := &billsyncInstance{} // Instance of Billsync to be passed into commands

	// Define the root command with usage and description.
	var rootCmd = &cobra.Command{
		Use:   "billsync",
		Short: "Personal finance sync from bank notification email",
		Run:   func(cmd *cobra.Command, args []string) {}, // Main function for the root command
	}

	// Add a persistent flag to the root command for specifying the config file.
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./billsync.json", "Configuration file for billsync")

	// Set the persistent pre-run hook to initialize the app and config before executing any command.
	rootCmd.PersistentPreRunE = preRun(b, &configFile)

	// Add various subcommands to the root command.
	rootCmd.AddCommand(syncCommands(b))        // Command for running one sync
	rootCmd.AddCommand(scheduleCommands(b))    // Command for the periodic sync loop
	rootCmd.AddCommand(statusCommands(b))      // Command for the operational summary
	rootCmd.AddCommand(accountCommands(b))     // Commands for account inspection
	rootCmd.AddCommand(transactionCommands(b)) // Command for transaction inspection

	return &Billsync{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
// It serves as the main entry point for the CLI application.
func (w Billsync) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err) // Print any errors that occur
		os.Exit(1)                   // Exit the program with an error status
	}
}

// main is the main function and the entry point for the application.
// It recovers from any panic, initializes the CLI, and executes it.
func main() {
	defer recoverPanic() // Ensure that any panic is handled gracefully

	cli := NewCLI()  // Create the CLI application
	cli.executeCLI() // Execute the CLI commands
}
