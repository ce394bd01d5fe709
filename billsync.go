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
	"github.com/billsync/billsync/config"
	"github.com/billsync/billsync/database"
	"github.com/billsync/billsync/mail"
	"github.com/billsync/billsync/parser"
)

// Billsync represents the main struct for the Billsync application.
type Billsync struct {
	datasource database.IDataSource
	source     mail.Source
	parsers    []parser.Parser
}

// NewBillsync initializes a new instance of Billsync with the provided
// database datasource. The mail source and the parser registry are built
// from the fetched configuration.
func NewBillsync(db database.IDataSource) (*Billsync, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return &Billsync{
		datasource: db,
		source:     mail.NewIMAPSource(configuration.Mail),
		parsers:    []parser.Parser{parser.NewCMBEmailParser()},
	}, nil
}
