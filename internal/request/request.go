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

package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const callTimeout = 30 * time.Second

// ToJsonReq serializes payload into a buffer ready to be used as a
// request body.
func ToJsonReq(payload interface{}) (*bytes.Buffer, error) {
	c, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(c), nil
}

// Call sends req with a JSON content type and a bounded timeout. A 4xx
// or 5xx status is an error. When response is non-nil the body is decoded
// into it; a nil response discards the body, which suits webhook
// endpoints that answer with plain text.
func Call(req *http.Request, response interface{}) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: callTimeout}

	resp, err := client.Do(req)
	if err != nil {
		return resp, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return resp, fmt.Errorf("request to %s returned status %d", req.URL.Host, resp.StatusCode)
	}
	if response == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return resp, err
	}
	return resp, json.NewDecoder(resp.Body).Decode(response)
}
