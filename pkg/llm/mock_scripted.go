package llm

import (
	"context"
	"sync"

	"github.com/jllopis/crewsum/pkg/errors"
)

// ScriptedMockProvider replays a fixed sequence of replies, one per Chat call.
// Blank entries let tests drive the re-ask loop of a role.
type ScriptedMockProvider struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

// NewScriptedMockProvider creates a provider that answers with responses in order.
func NewScriptedMockProvider(responses ...string) *ScriptedMockProvider {
	return &ScriptedMockProvider{responses: responses}
}

// Chat pops the next reply. An exhausted script is a PROVIDER_ERROR.
func (s *ScriptedMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if len(s.responses) == 0 {
		return nil, errors.New(errors.CodeProvider, "scripted mock has no replies left", nil)
	}
	content := s.responses[0]
	s.responses = s.responses[1:]
	return &ChatResponse{Content: content}, nil
}

// Calls returns how many times Chat has been called.
func (s *ScriptedMockProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
