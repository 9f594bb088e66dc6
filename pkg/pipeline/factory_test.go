package pipeline

import (
	"testing"

	"github.com/jllopis/crewsum/pkg/core"
	"github.com/jllopis/crewsum/pkg/errors"
	"github.com/jllopis/crewsum/pkg/modelclient"
	"github.com/jllopis/crewsum/pkg/resilience"
)

func TestModelFactory(t *testing.T) {
	build := ModelFactory(FactoryConfig{
		Base:     modelclient.Options{Model: "gpt-4o-mini", Logger: quietLogger()},
		Provider: modelclient.ProviderOpenAI,
		Retry:    resilience.DefaultRetryConfig().WithMaxAttempts(1),
	})

	c, err := build(core.RoleDocumentAnalyst, testCreds)
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	a, ok := c.(*modelclient.Adapter)
	if !ok {
		t.Fatalf("single attempt should return the bare adapter, got %T", c)
	}
	if a.Model() != "gpt-4o-mini" {
		t.Fatalf("expected configured model, got %q", a.Model())
	}

	c, err = build(core.RoleSummaryWriter, modelclient.Credentials{Provider: modelclient.ProviderAnthropic, APIKey: "k"})
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	if got := c.(*modelclient.Adapter).Model(); got != "claude-3-sonnet-20240229" {
		t.Fatalf("other provider must use its default model, got %q", got)
	}

	if _, err := build(core.RoleSummaryWriter, modelclient.Credentials{Provider: modelclient.ProviderOpenAI}); !errors.HasCode(err, errors.CodeCredential) {
		t.Fatalf("expected CREDENTIAL_ERROR, got %v", err)
	}
}

func TestModelFactoryWrapsRetry(t *testing.T) {
	build := ModelFactory(FactoryConfig{
		Base:  modelclient.Options{Logger: quietLogger()},
		Retry: resilience.DefaultRetryConfig().WithMaxAttempts(3),
	})
	c, err := build(core.RoleDocumentAnalyst, testCreds)
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	if _, ok := c.(*modelclient.Adapter); ok {
		t.Fatalf("expected a retrying wrapper")
	}
}
