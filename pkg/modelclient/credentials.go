// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package modelclient

import (
	"log/slog"
	"strings"

	"github.com/jllopis/crewsum/pkg/errors"
	"github.com/jllopis/crewsum/providers/anthropic"
	"github.com/jllopis/crewsum/providers/openai"
)

// ProviderName selects the chat-completion backend.
type ProviderName string

const (
	ProviderAnthropic ProviderName = anthropic.Name
	ProviderOpenAI    ProviderName = openai.Name
)

// ParseProvider normalises a provider name. Unknown names fail with
// CREDENTIAL_ERROR.
func ParseProvider(name string) (ProviderName, error) {
	switch p := ProviderName(strings.ToLower(strings.TrimSpace(name))); p {
	case ProviderAnthropic, ProviderOpenAI:
		return p, nil
	default:
		return "", errors.New(errors.CodeCredential, "unsupported provider", nil).
			WithContext("provider", name)
	}
}

// EnvVar returns the conventional environment variable holding the provider key.
func (p ProviderName) EnvVar() string {
	switch p {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// Credentials pair a provider with its secret. They live only in memory and
// redact the key whenever formatted or logged.
type Credentials struct {
	Provider ProviderName
	APIKey   string
}

// Validate reports a CREDENTIAL_ERROR for an unknown provider or blank key.
func (c Credentials) Validate() error {
	if _, err := ParseProvider(string(c.Provider)); err != nil {
		return err
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New(errors.CodeCredential, "api key is required", nil).
			WithContext("provider", string(c.Provider))
	}
	return nil
}

// String implements fmt.Stringer without exposing the key.
func (c Credentials) String() string {
	return string(c.Provider) + ":" + redact(c.APIKey)
}

// LogValue implements slog.LogValuer without exposing the key.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", string(c.Provider)),
		slog.String("api_key", redact(c.APIKey)),
	)
}

func redact(key string) string {
	if key == "" {
		return "<empty>"
	}
	return "<redacted>"
}
