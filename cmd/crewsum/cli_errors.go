// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/crewsum/pkg/errors"
)

// CLIError wraps a typed error with CLI-specific formatting and hints.
type CLIError struct {
	Typed *errors.Error
	Hint  string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{Typed: e, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.Typed == nil {
		return "unknown error"
	}
	msg := e.Typed.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

func (e *CLIError) Unwrap() error { return e.Typed }

// Print writes "Error [CODE]: message" and the hint, if any.
func (e *CLIError) Print(w io.Writer) {
	fmt.Fprintf(w, "Error [%s]: %s\n", e.Typed.Code, e.Typed.Message)
	if e.Typed.Err != nil && e.Typed.Code == errors.CodeInternal {
		fmt.Fprintf(w, "  Cause: %v\n", e.Typed.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// ExitCode is 2 for usage problems and 1 for everything else.
func (e *CLIError) ExitCode() int {
	switch e.Typed.Code {
	case errors.CodeInvalidRequest, errors.CodeConfigNotFound, errors.CodeConfigParse, errors.CodeConfigSchema:
		return 2
	default:
		return 1
	}
}

// asCLIError attaches the default hint for err's code unless err already
// carries one.
func asCLIError(err error) *CLIError {
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		return cliErr
	}
	e := errors.As(err)
	if e == nil {
		e = errors.New(errors.CodeInternal, err.Error(), nil)
	}
	return NewCLIError(e, hintFor(e.Code))
}

func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeConfigNotFound:
		return "check the path given with --config or the crew.path setting"
	case errors.CodeConfigParse:
		return "check the file for YAML syntax errors"
	case errors.CodeConfigSchema:
		return "every agent needs role, goal and backstory; every task needs description and expected_output"
	case errors.CodeCredential:
		return "pass --api-key or set OPENAI_API_KEY / ANTHROPIC_API_KEY (a .env file works too)"
	case errors.CodeEmptyDocument:
		return "provide a file with content, or try --sample"
	case errors.CodeAuthentication:
		return "check that the API key is valid for the selected provider"
	case errors.CodeRateLimit:
		return "wait a moment and retry, or raise llm.retry_max_attempts"
	case errors.CodeNetwork:
		return "check network access to the provider endpoint"
	case errors.CodeProvider:
		return "the provider returned an unexpected response; try again later"
	case errors.CodeTimeout:
		return "increase pipeline.timeout_seconds"
	case errors.CodeInvalidRequest:
		return "run 'crewsum --help' for usage information"
	default:
		return ""
	}
}

// NewConfigError keeps a typed configuration error and points at path.
func NewConfigError(err error, path string) *CLIError {
	e := errors.As(err)
	if e == nil {
		e = errors.New(errors.CodeConfigParse, "configuration error", err)
	}
	hint := hintFor(e.Code)
	if path != "" && e.Code == errors.CodeConfigParse {
		hint = fmt.Sprintf("check %s for syntax errors", path)
	}
	return NewCLIError(e.WithContext("config_path", path), hint)
}

// NewInvalidArgumentError reports bad flags or arguments.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.New(errors.CodeInvalidRequest, "invalid argument: "+reason, nil).
		WithContext("argument", arg)
	return NewCLIError(e, hintFor(errors.CodeInvalidRequest))
}
