// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"fmt"
)

// APIError represents a structured error response from the chat
// backend. Callers can use errors.As to extract it:
//
//	var apiErr *api.APIError
//	if errors.As(err, &apiErr) {
//	    if apiErr.Code == api.ErrCodeNotFound { ... }
//	}
type APIError struct {
	// Code is the backend error code (e.g., "NOT_FOUND").
	Code string `json:"code"`
	// Message is the human-readable description from the server.
	Message string `json:"message"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Backend error codes.
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInvalidParam = "INVALID_PARAM"
	ErrCodeTooLarge     = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeInternal     = "INTERNAL"
)

// IsAPIError checks whether err is an *APIError with the given code.
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
