// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package modelclient binds a provider, an API key and a model into the
// Completer used by pipeline roles. Each Complete call is exactly one
// provider request; failures are surfaced with their code intact.
package modelclient

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/crewsum/pkg/llm"
	"github.com/jllopis/crewsum/providers/anthropic"
	"github.com/jllopis/crewsum/providers/openai"
)

// Options configure an Adapter.
type Options struct {
	Credentials Credentials
	// Model overrides the provider default.
	Model string
	// Temperature is forwarded on every request when non-nil, zero included.
	Temperature *float64
	// BaseURL points the SDK at a proxy or compatible endpoint.
	BaseURL   string
	MaxTokens int64
	Logger    *slog.Logger
}

// Adapter implements llm.Completer on top of an llm.Provider.
type Adapter struct {
	provider    llm.Provider
	name        ProviderName
	model       string
	temperature *float64
	logger      *slog.Logger
	tracer      trace.Tracer
}

// New validates the credentials and builds the provider they select.
func New(opts Options) (*Adapter, error) {
	if err := opts.Credentials.Validate(); err != nil {
		return nil, err
	}
	name, _ := ParseProvider(string(opts.Credentials.Provider))

	var (
		provider llm.Provider
		model    string
	)
	switch name {
	case ProviderOpenAI:
		p := openai.NewWithAPIKey(opts.Credentials.APIKey,
			openai.WithModel(opts.Model),
			openai.WithBaseURL(opts.BaseURL),
			openai.WithMaxTokens(opts.MaxTokens),
		)
		provider, model = p, p.Model()
	case ProviderAnthropic:
		p := anthropic.NewWithAPIKey(opts.Credentials.APIKey,
			anthropic.WithModel(opts.Model),
			anthropic.WithBaseURL(opts.BaseURL),
			anthropic.WithMaxTokens(opts.MaxTokens),
		)
		provider, model = p, p.Model()
	}
	return newAdapter(provider, name, model, opts), nil
}

// NewWithProvider wraps an existing provider, typically a test double.
func NewWithProvider(provider llm.Provider, name ProviderName, opts Options) *Adapter {
	return newAdapter(provider, name, opts.Model, opts)
}

func newAdapter(provider llm.Provider, name ProviderName, model string, opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		provider:    provider,
		name:        name,
		model:       model,
		temperature: opts.Temperature,
		logger:      logger,
		tracer:      otel.Tracer("crewsum/modelclient"),
	}
}

// Provider returns the provider name the adapter is bound to.
func (a *Adapter) Provider() ProviderName { return a.name }

// Model returns the model identifier sent with each request.
func (a *Adapter) Model() string { return a.model }

// Complete sends one chat request and returns the generated text.
func (a *Adapter) Complete(ctx context.Context, c llm.Completion) (string, error) {
	ctx, span := a.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", string(a.name)),
		attribute.String("llm.model", a.model),
	))
	defer span.End()

	start := time.Now()
	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		Model:       a.model,
		Messages:    c.Messages(),
		Temperature: a.temperature,
	})
	duration := time.Since(start)

	if err != nil {
		e := llm.ClassifyError(string(a.name), 0, err)
		span.RecordError(e)
		span.SetStatus(codes.Error, string(e.Code))
		a.logger.ErrorContext(ctx, "llm completion failed",
			"provider", a.name,
			"model", a.model,
			"code", e.Code,
			"duration", duration,
		)
		return "", e
	}

	span.SetAttributes(
		attribute.Int("llm.usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("llm.usage.completion_tokens", resp.Usage.CompletionTokens),
	)
	a.logger.InfoContext(ctx, "llm completion finished",
		"provider", a.name,
		"model", a.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"duration", duration,
	)
	return resp.Content, nil
}

var _ llm.Completer = (*Adapter)(nil)
