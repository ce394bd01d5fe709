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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_LOOKBACK_DAYS   = 7
	DEFAULT_SYNC_INTERVAL   = 30
	DEFAULT_IMAP_PORT       = 993
	DEFAULT_MAIL_FOLDER     = "INBOX"
	DEFAULT_DATA_SOURCE_DNS = "billsync.db"
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"BILLSYNC_DATA_SOURCE_DNS"`
}

// MailConfig holds the IMAP credentials for the mailbox that receives the
// bank notifications. AuthCode is the mail provider's app password, not
// the account login password.
type MailConfig struct {
	Host     string `json:"host" envconfig:"BILLSYNC_MAIL_HOST"`
	Port     int    `json:"port" envconfig:"BILLSYNC_MAIL_PORT"`
	Username string `json:"username" envconfig:"BILLSYNC_MAIL_USERNAME"`
	AuthCode string `json:"auth_code" envconfig:"BILLSYNC_MAIL_AUTH_CODE"`
	Folder   string `json:"folder" envconfig:"BILLSYNC_MAIL_FOLDER"`
	MarkRead bool   `json:"mark_read" envconfig:"BILLSYNC_MAIL_MARK_READ"`
}

// SyncConfig tunes the fetch window and the scheduler cadence.
type SyncConfig struct {
	LookbackDays    int `json:"lookback_days" envconfig:"BILLSYNC_SYNC_LOOKBACK_DAYS"`
	IntervalMinutes int `json:"interval_minutes" envconfig:"BILLSYNC_SYNC_INTERVAL_MINUTES"`
	MaxRetries      int `json:"max_retries" envconfig:"BILLSYNC_SYNC_MAX_RETRIES"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"BILLSYNC_PROJECT_NAME"`
	DataSource   DataSourceConfig `json:"data_source"`
	Mail         MailConfig       `json:"mail"`
	Sync         SyncConfig       `json:"sync"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("billsync", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called billsync.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Billsync"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Mail.Host = strings.TrimSpace(cnf.Mail.Host)
	cnf.Mail.Username = strings.TrimSpace(cnf.Mail.Username)
	cnf.Mail.Folder = strings.TrimSpace(cnf.Mail.Folder)

	if cnf.DataSource.Dns == "" {
		cnf.DataSource.Dns = DEFAULT_DATA_SOURCE_DNS
		log.Printf("Warning: Data source DNS not specified in config. Setting default: %s", DEFAULT_DATA_SOURCE_DNS)
	}
	if cnf.Mail.Port == 0 {
		cnf.Mail.Port = DEFAULT_IMAP_PORT
	}
	if cnf.Mail.Folder == "" {
		cnf.Mail.Folder = DEFAULT_MAIL_FOLDER
	}
	if cnf.Sync.LookbackDays <= 0 {
		cnf.Sync.LookbackDays = DEFAULT_LOOKBACK_DAYS
	}
	if cnf.Sync.IntervalMinutes <= 0 {
		cnf.Sync.IntervalMinutes = DEFAULT_SYNC_INTERVAL
	}
	if cnf.Sync.MaxRetries <= 0 {
		cnf.Sync.MaxRetries = 3
	}

	return validation.ValidateStruct(&cnf.Mail,
		validation.Field(&cnf.Mail.Port, validation.Min(1), validation.Max(65535)),
		validation.Field(&cnf.Mail.AuthCode, validation.When(cnf.Mail.Host != "", validation.Required.Error("mail auth code is required when a mail host is configured"))),
		validation.Field(&cnf.Mail.Username, validation.When(cnf.Mail.Host != "", validation.Required.Error("mail username is required when a mail host is configured"))),
	)
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
