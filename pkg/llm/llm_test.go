package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/jllopis/crewsum/pkg/errors"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
	if len(mock.Requests()) != 1 {
		t.Errorf("expected one recorded request")
	}
}

func TestScriptedMockProvider(t *testing.T) {
	mock := NewScriptedMockProvider("first", "second")
	for _, want := range []string{"first", "second"} {
		resp, err := mock.Chat(context.Background(), ChatRequest{})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if resp.Content != want {
			t.Fatalf("got %q, want %q", resp.Content, want)
		}
	}
	if _, err := mock.Chat(context.Background(), ChatRequest{}); !errors.HasCode(err, errors.CodeProvider) {
		t.Fatalf("expected PROVIDER_ERROR once the script is exhausted, got %v", err)
	}
	if mock.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.Calls())
	}
}

func TestCompletionMessages(t *testing.T) {
	tests := []struct {
		name string
		in   Completion
		want []Message
	}{
		{
			name: "prompt only",
			in:   Completion{Prompt: "do it"},
			want: []Message{{Role: RoleUser, Content: "do it"}},
		},
		{
			name: "system and prompt",
			in:   Completion{System: "You are X.", Prompt: "do it"},
			want: []Message{
				{Role: RoleSystem, Content: "You are X."},
				{Role: RoleUser, Content: "do it"},
			},
		},
		{
			name: "context is appended to system",
			in:   Completion{System: "You are X.", Context: "prior", Prompt: "do it"},
			want: []Message{
				{Role: RoleSystem, Content: "You are X.\n\nContext from the previous step:\nprior"},
				{Role: RoleUser, Content: "do it"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Messages()
			if len(got) != len(tc.want) {
				t.Fatalf("got %d messages, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("message %d: got %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	cause := stderrors.New("boom")
	dialErr := &url.Error{Op: "Post", URL: "https://api.example.com", Err: &net.OpError{Op: "dial", Err: cause}}

	tests := []struct {
		name        string
		status      int
		err         error
		code        errors.ErrorCode
		recoverable bool
	}{
		{"unauthorized", 401, cause, errors.CodeAuthentication, false},
		{"forbidden", 403, cause, errors.CodeAuthentication, false},
		{"rate limited", 429, cause, errors.CodeRateLimit, true},
		{"server error", 500, cause, errors.CodeProvider, false},
		{"bad request", 400, cause, errors.CodeProvider, false},
		{"dial failure", 0, dialErr, errors.CodeNetwork, true},
		{"deadline", 0, fmt.Errorf("post: %w", context.DeadlineExceeded), errors.CodeTimeout, false},
		{"canceled", 0, context.Canceled, errors.CodeCanceled, false},
		{"unknown", 0, cause, errors.CodeProvider, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyError("openai", tc.status, tc.err)
			if got.Code != tc.code {
				t.Fatalf("code: got %s, want %s", got.Code, tc.code)
			}
			if got.Recoverable != tc.recoverable {
				t.Fatalf("recoverable: got %v, want %v", got.Recoverable, tc.recoverable)
			}
			if !stderrors.Is(got, tc.err) {
				t.Fatalf("expected the cause to be preserved")
			}
			if got.Context["provider"] != "openai" {
				t.Fatalf("expected provider context")
			}
		})
	}
}

func TestClassifyErrorKeepsTypedErrors(t *testing.T) {
	orig := errors.New(errors.CodeRateLimit, "already typed", nil)
	if got := ClassifyError("anthropic", 500, orig); got != orig {
		t.Fatalf("expected typed errors to pass through unchanged")
	}
	if ClassifyError("anthropic", 0, nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
