package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const shippedCrew = "../../config/crew.yaml"

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "", "version")
	if code != 0 || !strings.HasPrefix(out, "crewsum ") {
		t.Fatalf("unexpected version output %d %q", code, out)
	}
}

func TestValidateShippedCrew(t *testing.T) {
	code, out, errOut := runCLI(t, "", "validate", "--set", "crew.path="+shippedCrew)
	if code != 0 {
		t.Fatalf("validate failed (%d): %s", code, errOut)
	}
	for _, want := range []string{"document_analyst:", "summary_writer:", "analyse_document:", "agent: summary_writer", "max_iter: 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateReportsSchemaError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crew.yaml")
	if err := os.WriteFile(path, []byte("agents: {}\ntasks: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, errOut := runCLI(t, "", "validate", "--set", "crew.path="+path)
	if code != 2 || !strings.Contains(errOut, "Error [CONFIG_SCHEMA_ERROR]") {
		t.Fatalf("expected schema error, got %d: %s", code, errOut)
	}
}

func TestSummariseRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	code, _, errOut := runCLI(t, "some text", "summarise", "--env-file", "", "--set", "crew.path="+shippedCrew)
	if code != 1 || !strings.Contains(errOut, "Error [CREDENTIAL_ERROR]") {
		t.Fatalf("expected credential error, got %d: %s", code, errOut)
	}
}

func TestSummariseEmptyDocument(t *testing.T) {
	code, _, errOut := runCLI(t, "   \n", "summarise", "--env-file", "", "--api-key", "k", "--set", "crew.path="+shippedCrew)
	if code != 1 || !strings.Contains(errOut, "Error [EMPTY_DOCUMENT]") {
		t.Fatalf("expected empty document error, got %d: %s", code, errOut)
	}
}

func TestSummariseRejectsUnknownProvider(t *testing.T) {
	code, _, errOut := runCLI(t, "doc", "summarise", "--env-file", "", "--provider", "gemini", "--set", "crew.path="+shippedCrew)
	if code != 1 || !strings.Contains(errOut, "Error [CREDENTIAL_ERROR]") {
		t.Fatalf("expected credential error, got %d: %s", code, errOut)
	}
}

func TestSummariseAgainstFakeProvider(t *testing.T) {
	var calls atomic.Int32
	var lastBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &lastBody)
		content := "analysis of the portal project"
		if calls.Add(1) == 2 {
			content = "Executive summary: modernise the portal."
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	outPath := filepath.Join(t.TempDir(), "summary.md")
	code, _, errOut := runCLI(t, "",
		"summarise", "--sample", "--env-file", "", "--api-key", "sk-test",
		"--output", outPath,
		"--set", "crew.path="+shippedCrew,
		"--set", "llm.base_url="+srv.URL+"/",
	)
	if code != 0 {
		t.Fatalf("summarise failed (%d): %s", code, errOut)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one call per role, got %d", calls.Load())
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "Executive summary: modernise the portal." {
		t.Fatalf("unexpected summary file %q", data)
	}
	if strings.Contains(errOut, "sk-test") {
		t.Fatalf("stderr leaked the API key")
	}

	raw, _ := json.Marshal(lastBody)
	if !strings.Contains(string(raw), "analysis of the portal project") {
		t.Fatalf("writer request must carry the analysis as context: %s", raw)
	}
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	code, _, errOut := runCLI(t, "", "summarise", "--bogus")
	if code != 2 || !strings.Contains(errOut, "Error [INVALID_REQUEST]") {
		t.Fatalf("expected usage error, got %d: %s", code, errOut)
	}
}
