package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/crewsum/pkg/config"
	"github.com/jllopis/crewsum/pkg/core"
	"github.com/jllopis/crewsum/pkg/errors"
	"github.com/jllopis/crewsum/pkg/llm"
	"github.com/jllopis/crewsum/pkg/modelclient"
	"github.com/jllopis/crewsum/pkg/pipeline"
)

const crewYAML = `
agents:
  document_analyst: {role: Analyst, goal: Analyse, backstory: Experienced}
  summary_writer: {role: Writer, goal: Summarise, backstory: Concise}
tasks:
  analyse_document: {description: "Analyse: {doc}", expected_output: Points}
  create_summary: {description: Summarise, expected_output: Summary}
`

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)) }

func newRunner(t *testing.T, analyst llm.Completer, prefix string) *pipeline.Runner {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crew.yaml")
	if err := os.WriteFile(path, []byte(crewYAML), 0o644); err != nil {
		t.Fatalf("write crew: %v", err)
	}
	store, err := config.LoadCrew(path)
	if err != nil {
		t.Fatalf("LoadCrew: %v", err)
	}
	writer := llm.CompleterFunc(func(ctx context.Context, c llm.Completion) (string, error) {
		return prefix + c.Context, nil
	})
	factory := func(role core.RoleName, creds modelclient.Credentials) (llm.Completer, error) {
		if err := creds.Validate(); err != nil {
			return nil, err
		}
		if role == core.RoleDocumentAnalyst {
			return analyst, nil
		}
		return writer, nil
	}
	r, err := pipeline.New(store, factory, pipeline.WithLogger(quiet()))
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return r
}

func echoAnalyst() llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, c llm.Completion) (string, error) {
		return "ANALYSIS:" + c.Prompt, nil
	})
}

func failingAnalyst(err error) llm.Completer {
	return &llm.MockCompleter{Err: err}
}

func post(t *testing.T, h http.Handler, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/summaries", strings.NewReader(body))
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body.Error
}

func TestSummariesSuccess(t *testing.T) {
	h := NewHandler(newRunner(t, echoAnalyst(), "SUMMARY:"), WithLogger(quiet()))

	rec := post(t, h, `{"provider":"anthropic","document":"Quarterly report text","include_analysis":true}`, "sk-test")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp SummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Summary != "SUMMARY:ANALYSIS:Analyse: Quarterly report text" {
		t.Fatalf("unexpected summary %q", resp.Summary)
	}
	if resp.Analysis != "ANALYSIS:Analyse: Quarterly report text" || resp.RunID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSummariesStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		analyst llm.Completer
		body    string
		key     string
		status  int
		code    errors.ErrorCode
	}{
		{"empty document", echoAnalyst(), `{"document":"  "}`, "k", http.StatusBadRequest, errors.CodeEmptyDocument},
		{"missing key", echoAnalyst(), `{"document":"doc"}`, "", http.StatusBadRequest, errors.CodeCredential},
		{"unknown provider", echoAnalyst(), `{"provider":"gemini","document":"doc"}`, "k", http.StatusBadRequest, errors.CodeCredential},
		{"malformed body", echoAnalyst(), `{"document":`, "k", http.StatusBadRequest, errors.CodeInvalidRequest},
		{"unknown field", echoAnalyst(), `{"doc":"x"}`, "k", http.StatusBadRequest, errors.CodeInvalidRequest},
		{"authentication", failingAnalyst(errors.New(errors.CodeAuthentication, "bad key", nil)), `{"document":"doc"}`, "k", http.StatusUnauthorized, errors.CodeAuthentication},
		{"rate limited", failingAnalyst(errors.New(errors.CodeRateLimit, "slow", nil)), `{"document":"doc"}`, "k", http.StatusTooManyRequests, errors.CodeRateLimit},
		{"network", failingAnalyst(errors.New(errors.CodeNetwork, "reset", nil)), `{"document":"doc"}`, "k", http.StatusBadGateway, errors.CodeNetwork},
		{"provider", failingAnalyst(errors.New(errors.CodeProvider, "garbage", nil)), `{"document":"doc"}`, "k", http.StatusBadGateway, errors.CodeProvider},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(newRunner(t, tc.analyst, "S:"), WithLogger(quiet()))
			rec := post(t, h, tc.body, tc.key)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec); got.Code != string(tc.code) {
				t.Fatalf("expected code %s, got %+v", tc.code, got)
			}
		})
	}
}

func TestSummariesTimeout(t *testing.T) {
	slow := llm.CompleterFunc(func(ctx context.Context, c llm.Completion) (string, error) {
		<-ctx.Done()
		return "", llm.ClassifyError("test", 0, ctx.Err())
	})
	h := NewHandler(newRunner(t, slow, "S:"), WithLogger(quiet()), WithRequestTimeout(20*time.Millisecond))

	rec := post(t, h, `{"document":"doc"}`, "k")
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeError(t, rec); got.Code != string(errors.CodeTimeout) {
		t.Fatalf("expected TIMEOUT, got %+v", got)
	}
}

func TestSummariesBodyTooLarge(t *testing.T) {
	mock := &llm.MockCompleter{Response: "unused"}
	h := NewHandler(newRunner(t, mock, "S:"), WithLogger(quiet()))

	body := `{"document":"` + strings.Repeat("a", maxBodyBytes+1) + `"}`
	rec := post(t, h, body, "sk-test")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %.200s", rec.Code, rec.Body.String())
	}
	if got := decodeError(t, rec); got.Code != string(errors.CodeInvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST, got %+v", got)
	}
	if mock.CallCount() != 0 {
		t.Fatalf("oversized bodies must not reach the pipeline")
	}
}

func TestSummariesMethodNotAllowed(t *testing.T) {
	h := NewHandler(newRunner(t, echoAnalyst(), "S:"), WithLogger(quiet()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summaries", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := NewHandler(newRunner(t, echoAnalyst(), "S:"), WithLogger(quiet()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected health response %d: %s", rec.Code, rec.Body.String())
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != HealthHealthy || len(body.Checks) != 1 || body.Checks[0].Component != "crew" {
		t.Fatalf("unexpected health body %+v", body)
	}
	if !strings.Contains(body.Checks[0].Message, "2 roles") {
		t.Fatalf("expected role count in crew check, got %q", body.Checks[0].Message)
	}
}

func TestHealthzAggregatesWorstStatus(t *testing.T) {
	h := NewHandler(newRunner(t, echoAnalyst(), "S:"), WithLogger(quiet()))
	h.RegisterHealthCheck("watch", func(context.Context) HealthResult {
		return HealthResult{Status: HealthDegraded, Message: "last reload failed"}
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"degraded"`) {
		t.Fatalf("expected degraded 200, got %d: %s", rec.Code, rec.Body.String())
	}

	h.RegisterHealthCheck("upstream", func(context.Context) HealthResult {
		return HealthResult{Status: HealthUnhealthy}
	})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when a check is unhealthy, got %d", rec.Code)
	}
}

func TestSetRunnerSwapsDefinitions(t *testing.T) {
	h := NewHandler(newRunner(t, echoAnalyst(), "OLD:"), WithLogger(quiet()))
	h.SetRunner(newRunner(t, echoAnalyst(), "NEW:"))
	h.SetRunner(nil)

	rec := post(t, h, `{"document":"doc"}`, "k")
	if !strings.Contains(rec.Body.String(), "NEW:") {
		t.Fatalf("expected the swapped runner to serve, got %s", rec.Body.String())
	}
}

func TestRequestLogOmitsKey(t *testing.T) {
	var logs bytes.Buffer
	h := NewHandler(newRunner(t, echoAnalyst(), "S:"), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	post(t, h, `{"document":"doc"}`, "sk-very-secret")
	if strings.Contains(logs.String(), "sk-very-secret") {
		t.Fatalf("request log leaked the API key: %s", logs.String())
	}
	if !strings.Contains(logs.String(), "status=200") {
		t.Fatalf("expected request log line: %s", logs.String())
	}
}
