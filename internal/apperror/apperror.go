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

package apperror

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrInternal       ErrorCode = "INTERNAL"
	ErrConnection     ErrorCode = "CONNECTION"
	ErrAuthentication ErrorCode = "AUTHENTICATION"
)

// AppError carries a closed error code alongside the message so callers
// can branch on the failure class instead of matching strings.
type AppError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code ErrorCode, message string, details interface{}) AppError {
	logrus.Error(details)
	return AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Retryable reports whether the failure class is worth retrying.
// Connection drops are transient; a bad credential is not and retrying
// it would only hammer a doomed login.
func Retryable(err error) bool {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrConnection
	}
	return false
}

// IsAuthentication reports whether the error is a credential problem
// requiring operator intervention.
func IsAuthentication(err error) bool {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrAuthentication
	}
	return false
}
