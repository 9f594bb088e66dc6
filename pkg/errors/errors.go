// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the typed error taxonomy shared by every crewsum
// component. Codes are stable strings so callers can branch on them, log them
// and map them to transport status codes.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies crewsum errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeConfigNotFound indicates the configuration path does not resolve.
	CodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"

	// CodeConfigParse indicates the configuration is not well-formed.
	CodeConfigParse ErrorCode = "CONFIG_PARSE_ERROR"

	// CodeConfigSchema indicates required configuration keys are missing or invalid.
	CodeConfigSchema ErrorCode = "CONFIG_SCHEMA_ERROR"

	// CodeCredential indicates a missing or unusable API key or provider.
	CodeCredential ErrorCode = "CREDENTIAL_ERROR"

	// CodeInvalidRequest indicates a malformed API request body.
	CodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// CodeEmptyDocument indicates the pipeline was asked to summarise nothing.
	CodeEmptyDocument ErrorCode = "EMPTY_DOCUMENT"

	// CodeAuthentication indicates the provider rejected the credentials.
	CodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"

	// CodeRateLimit indicates provider throttling.
	CodeRateLimit ErrorCode = "RATE_LIMITED"

	// CodeNetwork indicates a transport failure talking to the provider.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeProvider indicates a malformed or unexpected provider response.
	CodeProvider ErrorCode = "PROVIDER_ERROR"

	// CodeTimeout indicates a caller deadline was exceeded.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeCanceled indicates the caller canceled the operation.
	CodeCanceled ErrorCode = "CANCELED"
)

// Error is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int // HTTP status for the JSON API
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Err:         cause,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from by retrying.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// Clone returns a copy of e with its own context map, so annotations on the
// copy never leak into a shared error value.
func (e *Error) Clone() *Error {
	c := *e
	c.Context = make(map[string]interface{}, len(e.Context)+2)
	for k, v := range e.Context {
		c.Context[k] = v
	}
	return &c
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return nil
}

// AsError converts err to an *Error, wrapping unknown errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e := As(err); e != nil {
		return e
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the first *Error in err's chain.
// Errors outside the taxonomy report CodeInternal; nil reports "".
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if e := As(err); e != nil {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsConfigError reports whether err belongs to the configuration family.
func IsConfigError(err error) bool {
	switch CodeOf(err) {
	case CodeConfigNotFound, CodeConfigParse, CodeConfigSchema:
		return true
	}
	return false
}

// IsProviderError reports whether err belongs to the provider family.
func IsProviderError(err error) bool {
	switch CodeOf(err) {
	case CodeAuthentication, CodeRateLimit, CodeNetwork, CodeProvider:
		return true
	}
	return false
}

// IsRecoverable reports whether a retry may succeed.
func IsRecoverable(err error) bool {
	if e := As(err); e != nil {
		return e.Recoverable
	}
	return false
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeEmptyDocument, CodeCredential, CodeInvalidRequest:
		return 400
	case CodeAuthentication:
		return 401
	case CodeRateLimit:
		return 429
	case CodeNetwork, CodeProvider:
		return 502
	case CodeTimeout:
		return 504
	case CodeCanceled:
		return 499
	default:
		return 500
	}
}
