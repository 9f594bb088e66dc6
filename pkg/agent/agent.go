// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent binds a role persona to a model Completer. An Agent keeps no
// state between executions and never delegates work to another role.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jllopis/crewsum/pkg/core"
	kerrors "github.com/jllopis/crewsum/pkg/errors"
	"github.com/jllopis/crewsum/pkg/llm"
)

var ErrMissingCompleter = errors.New("agent completer is required")

// Agent is one bound role instance.
type Agent struct {
	spec      core.RoleSpec
	completer llm.Completer
	logger    *slog.Logger
}

// Option configures an Agent instance.
type Option func(*Agent)

// WithLogger sets the logger used for turn-level logging.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Bind creates an Agent for spec backed by completer.
func Bind(spec core.RoleSpec, completer llm.Completer, opts ...Option) (*Agent, error) {
	if completer == nil {
		return nil, ErrMissingCompleter
	}
	if spec.MaxIterations < 1 {
		spec.MaxIterations = core.DefaultMaxIterations
	}
	a := &Agent{spec: spec, completer: completer, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("role", string(spec.Name))
	return a, nil
}

// Spec returns the role the agent was bound to.
func (a *Agent) Spec() core.RoleSpec { return a.spec }

// AllowDelegation is always false.
func (a *Agent) AllowDelegation() bool { return false }

// Execute runs task and returns its text. priorContext is handed to the model
// verbatim. Blank answers are re-asked up to MaxIterations turns; any
// completer error ends the loop and is returned unchanged.
func (a *Agent) Execute(ctx context.Context, task core.RenderedTask, priorContext string) (string, error) {
	completion := llm.Completion{
		System:  a.systemPrompt(task),
		Context: priorContext,
		Prompt:  task.Description,
	}

	level := slog.LevelDebug
	if a.spec.Verbose {
		level = slog.LevelInfo
	}

	for turn := 1; turn <= a.spec.MaxIterations; turn++ {
		if err := ctx.Err(); err != nil {
			return "", llm.ClassifyError("agent", 0, err)
		}
		out, err := a.completer.Complete(ctx, completion)
		if err != nil {
			return "", err
		}
		a.logger.Log(ctx, level, "role turn finished",
			"task", string(task.Name),
			"turn", turn,
			"output_bytes", len(out),
		)
		if strings.TrimSpace(out) != "" {
			return out, nil
		}
	}

	return "", kerrors.New(kerrors.CodeProvider, "model returned no content", nil).
		WithContext("role", string(a.spec.Name)).
		WithContext("task", string(task.Name)).
		WithContext("max_iterations", a.spec.MaxIterations)
}
