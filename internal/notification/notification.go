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

package notification

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/billsync/billsync/config"
	"github.com/billsync/billsync/internal/request"
)

// SyncContext carries the run identity and fetch window into a failure
// notification, so the alert names which run broke and what it was
// trying to cover.
type SyncContext struct {
	RunID string
	From  time.Time
	To    time.Time
}

// Slack Block Kit payload, reduced to the shapes used here.
type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

func header(text string) slackBlock {
	return slackBlock{Type: "header", Text: &slackText{Type: "plain_text", Text: text, Emoji: true}}
}

func section(fields ...slackText) slackBlock {
	return slackBlock{Type: "section", Fields: fields}
}

func field(label, value string) slackText {
	return slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", label, value)}
}

// SlackError posts a bare error to the configured webhook.
func SlackError(cause error) {
	post(slackMessage{Blocks: []slackBlock{
		header("Billsync error 🐞"),
		section(field("Error", cause.Error())),
		section(field("Time", time.Now().Format(time.RFC822))),
	}})
}

// SlackSyncFailure posts a failed sync run with its id and the window it
// was covering.
func SlackSyncFailure(sc SyncContext, cause error) {
	window := fmt.Sprintf("%s to %s", sc.From.Format(time.RFC3339), sc.To.Format(time.RFC3339))
	post(slackMessage{Blocks: []slackBlock{
		header("Billsync sync failed 🐞"),
		section(field("Run", sc.RunID), field("Window", window)),
		section(field("Error", cause.Error())),
		section(field("Time", time.Now().Format(time.RFC822))),
	}})
}

func post(msg slackMessage) {
	conf, err := config.Fetch()
	if err != nil {
		logrus.Warnf("notification skipped: %v", err)
		return
	}
	webhook := conf.Notification.Slack.WebhookUrl
	if webhook == "" {
		return
	}

	payload, err := request.ToJsonReq(&msg)
	if err != nil {
		logrus.Warnf("failed to encode notification payload: %v", err)
		return
	}
	req, err := http.NewRequest(http.MethodPost, webhook, payload)
	if err != nil {
		logrus.Warnf("failed to build notification request: %v", err)
		return
	}
	// Slack answers webhooks with a plain-text body, so nothing is decoded.
	if _, err := request.Call(req, nil); err != nil {
		logrus.Warnf("failed to deliver notification: %v", err)
	}
}

// NotifyError reports an error asynchronously: logged locally, then
// forwarded to Slack when a webhook is configured. Delivery failures are
// logged, never propagated.
func NotifyError(systemError error) {
	go func() {
		logrus.Error(systemError)
		SlackError(systemError)
	}()
}

// NotifySyncFailure reports a failed sync run asynchronously with its
// run context attached.
func NotifySyncFailure(sc SyncContext, cause error) {
	go func() {
		logrus.WithField("run_id", sc.RunID).Error(cause)
		SlackSyncFailure(sc, cause)
	}()
}
