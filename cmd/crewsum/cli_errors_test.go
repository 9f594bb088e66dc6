package main

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jllopis/crewsum/pkg/errors"
)

func TestCLIErrorPrint(t *testing.T) {
	var buf bytes.Buffer
	asCLIError(errors.New(errors.CodeAuthentication, "openai rejected the API key", nil)).Print(&buf)

	out := buf.String()
	if !strings.HasPrefix(out, "Error [AUTHENTICATION_ERROR]: openai rejected the API key\n") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "Hint: check that the API key is valid") {
		t.Fatalf("expected hint, got %q", out)
	}
}

func TestAsCLIErrorKeepsWrappedCode(t *testing.T) {
	base := errors.New(errors.CodeRateLimit, "slow down", nil)
	cliErr := asCLIError(fmt.Errorf("run failed: %w", base))
	if cliErr.Typed.Code != errors.CodeRateLimit {
		t.Fatalf("expected RATE_LIMITED, got %s", cliErr.Typed.Code)
	}
	if cliErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1")
	}
}

func TestAsCLIErrorUntyped(t *testing.T) {
	var buf bytes.Buffer
	cliErr := asCLIError(stderrors.New("unknown flag: --bogus"))
	cliErr.Print(&buf)
	if !strings.Contains(buf.String(), "Error [INTERNAL_ERROR]: unknown flag: --bogus") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestAsCLIErrorPassesThrough(t *testing.T) {
	original := NewInvalidArgumentError("file", "missing")
	if asCLIError(original) != original {
		t.Fatalf("expected the same CLI error")
	}
	if original.ExitCode() != 2 {
		t.Fatalf("usage errors exit with 2")
	}
}

func TestNewConfigError(t *testing.T) {
	err := errors.New(errors.CodeConfigParse, "bad yaml", nil)
	cliErr := NewConfigError(err, "config/crew.yaml")
	if cliErr.Typed.Code != errors.CodeConfigParse {
		t.Fatalf("config error code must be preserved, got %s", cliErr.Typed.Code)
	}
	if !strings.Contains(cliErr.Hint, "config/crew.yaml") {
		t.Fatalf("expected path in hint, got %q", cliErr.Hint)
	}
	if !strings.Contains(cliErr.Error(), "Hint:") {
		t.Fatalf("Error() should include the hint")
	}
}

func TestEveryUserFacingCodeHasHint(t *testing.T) {
	for _, code := range []errors.ErrorCode{
		errors.CodeConfigNotFound, errors.CodeConfigParse, errors.CodeConfigSchema,
		errors.CodeCredential, errors.CodeEmptyDocument, errors.CodeAuthentication,
		errors.CodeRateLimit, errors.CodeNetwork, errors.CodeProvider, errors.CodeTimeout,
	} {
		if hintFor(code) == "" {
			t.Errorf("no hint for %s", code)
		}
	}
}
