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
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/billsync/billsync/config"
)

func captureServer(t *testing.T, received *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*received, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("ok"))
	}))
}

func TestSlackSyncFailure_PostsRunContext(t *testing.T) {
	var received []byte
	server := captureServer(t, &received)
	defer server.Close()

	config.MockConfig(&config.Configuration{
		Notification: config.Notification{
			Slack: config.SlackWebhook{WebhookUrl: server.URL},
		},
	})

	sc := SyncContext{
		RunID: "run_9f2c1a",
		From:  time.Date(2025, 2, 14, 0, 0, 0, 0, time.Local),
		To:    time.Date(2025, 2, 21, 19, 25, 0, 0, time.Local),
	}
	SlackSyncFailure(sc, errors.New("mailbox unreachable"))

	payload := string(received)
	assert.Contains(t, payload, "Billsync sync failed")
	assert.Contains(t, payload, "run_9f2c1a")
	assert.Contains(t, payload, sc.From.Format(time.RFC3339))
	assert.Contains(t, payload, sc.To.Format(time.RFC3339))
	assert.Contains(t, payload, "mailbox unreachable")
}

func TestSlackError_PostsPayload(t *testing.T) {
	var received []byte
	server := captureServer(t, &received)
	defer server.Close()

	config.MockConfig(&config.Configuration{
		Notification: config.Notification{
			Slack: config.SlackWebhook{WebhookUrl: server.URL},
		},
	})

	SlackError(errors.New("error loading config"))

	assert.Contains(t, string(received), "Billsync error")
	assert.Contains(t, string(received), "error loading config")
}

func TestSlackError_NoWebhookConfigured(t *testing.T) {
	// An unset webhook URL must not panic; nothing is sent.
	config.MockConfig(&config.Configuration{})
	SlackError(errors.New("boom"))
}
