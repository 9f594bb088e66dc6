package pipeline

import (
	"github.com/jllopis/crewsum/pkg/core"
	"github.com/jllopis/crewsum/pkg/llm"
	"github.com/jllopis/crewsum/pkg/modelclient"
	"github.com/jllopis/crewsum/pkg/resilience"
)

// FactoryConfig describes how ModelFactory builds adapters.
type FactoryConfig struct {
	// Base is shared by every adapter; its Credentials are replaced per run.
	Base modelclient.Options
	// Provider is the provider Base.Model and Base.BaseURL were chosen for.
	// Runs against another provider fall back to that provider's defaults.
	Provider modelclient.ProviderName
	// Retry wraps each adapter when MaxAttempts is greater than one.
	Retry resilience.RetryConfig
}

// ModelFactory returns an AdapterFactory backed by real provider SDKs.
func ModelFactory(cfg FactoryConfig) AdapterFactory {
	return func(role core.RoleName, creds modelclient.Credentials) (llm.Completer, error) {
		opts := cfg.Base
		opts.Credentials = creds
		if cfg.Provider != "" && creds.Provider != cfg.Provider {
			opts.Model = ""
			opts.BaseURL = ""
		}
		if opts.Logger != nil {
			opts.Logger = opts.Logger.With("role", string(role))
		}
		adapter, err := modelclient.New(opts)
		if err != nil {
			return nil, err
		}
		return resilience.RetryCompleter(adapter, cfg.Retry), nil
	}
}
