// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("connection reset")
	e := New(CodeNetwork, "provider unreachable", cause)

	if e.Code != CodeNetwork {
		t.Errorf("expected CodeNetwork, got %v", e.Code)
	}
	if e.Message != "provider unreachable" {
		t.Errorf("unexpected message %q", e.Message)
	}
	if !errors.Is(e, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
	if e.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		e        *Error
		expected string
	}{
		{
			name:     "with cause",
			e:        New(CodeTimeout, "run exceeded deadline", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] run exceeded deadline: deadline exceeded",
		},
		{
			name:     "without cause",
			e:        New(CodeEmptyDocument, "document is empty", nil),
			expected: "[EMPTY_DOCUMENT] document is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestCodeOfThroughWrapping(t *testing.T) {
	base := New(CodeAuthentication, "invalid key", nil)
	wrapped := fmt.Errorf("analysis step: %w", base)

	if got := CodeOf(wrapped); got != CodeAuthentication {
		t.Fatalf("expected AUTHENTICATION_ERROR, got %s", got)
	}
	if As(wrapped) != base {
		t.Fatalf("expected As to return the original error")
	}
	if CodeOf(nil) != "" {
		t.Fatalf("expected empty code for nil")
	}
	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Fatalf("expected plain errors to report INTERNAL_ERROR")
	}
}

func TestFamilies(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		config   bool
		provider bool
	}{
		{CodeConfigNotFound, true, false},
		{CodeConfigParse, true, false},
		{CodeConfigSchema, true, false},
		{CodeAuthentication, false, true},
		{CodeRateLimit, false, true},
		{CodeNetwork, false, true},
		{CodeProvider, false, true},
		{CodeEmptyDocument, false, false},
		{CodeCredential, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "x", nil)
			if IsConfigError(err) != tt.config {
				t.Errorf("IsConfigError = %v, want %v", !tt.config, tt.config)
			}
			if IsProviderError(err) != tt.provider {
				t.Errorf("IsProviderError = %v, want %v", !tt.provider, tt.provider)
			}
		})
	}
}

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	e := AsError(errors.New("boom"))
	if e.Code != CodeInternal {
		t.Fatalf("expected INTERNAL_ERROR, got %s", e.Code)
	}
	orig := New(CodeRateLimit, "slow down", nil)
	if AsError(orig) != orig {
		t.Fatalf("expected AsError to return the same instance")
	}
}

func TestMarshalJSON(t *testing.T) {
	e := New(CodeRateLimit, "throttled", errors.New("429")).
		WithContext("stage", "analysis").
		WithRecoverable(true)

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("unexpected error marshaling: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unexpected error unmarshaling: %v", err)
	}

	if result["code"] != "RATE_LIMITED" {
		t.Errorf("expected code RATE_LIMITED, got %v", result["code"])
	}
	if result["recoverable"] != true {
		t.Errorf("expected recoverable true")
	}
	if result["error"] != "429" {
		t.Errorf("expected cause in error field, got %v", result["error"])
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{CodeEmptyDocument, 400},
		{CodeCredential, 400},
		{CodeAuthentication, 401},
		{CodeRateLimit, 429},
		{CodeNetwork, 502},
		{CodeProvider, 502},
		{CodeTimeout, 504},
		{CodeConfigSchema, 500},
		{CodeInternal, 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code, "test", nil).StatusCode; got != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestClone(t *testing.T) {
	orig := New(CodeAuthentication, "bad key", nil).WithContext("provider", "openai")
	c := orig.Clone().WithContext("stage", "analysis")

	if c == orig {
		t.Fatalf("expected a distinct value")
	}
	if c.Code != CodeAuthentication || c.Context["provider"] != "openai" {
		t.Fatalf("clone lost fields: %+v", c)
	}
	if _, ok := orig.Context["stage"]; ok {
		t.Fatalf("annotating the clone must not touch the original")
	}
}
