// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs the analyst then writer sequence over one document.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/crewsum/pkg/agent"
	"github.com/jllopis/crewsum/pkg/config"
	"github.com/jllopis/crewsum/pkg/core"
	"github.com/jllopis/crewsum/pkg/errors"
	"github.com/jllopis/crewsum/pkg/llm"
	"github.com/jllopis/crewsum/pkg/modelclient"
	"github.com/jllopis/crewsum/pkg/telemetry"
)

const (
	stageInput    = "input"
	stageAnalysis = "analysis"
	stageSummary  = "summary"
)

// AdapterFactory builds a fresh Completer for role. It is called once per
// role per run, before any provider call is made.
type AdapterFactory func(role core.RoleName, creds modelclient.Credentials) (llm.Completer, error)

// Result is the outcome of a successful run.
type Result struct {
	RunID   string
	Summary string
	// Analysis is only populated when retention was requested.
	Analysis string
}

// Runner executes runs against a fixed Store. It holds no per-run state and
// is safe for concurrent use.
type Runner struct {
	store        *config.Store
	factory      AdapterFactory
	logger       *slog.Logger
	keepAnalysis bool
	observer     Observer
	metrics      *telemetry.PipelineMetrics
	tracer       trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for run and role logging.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithKeepAnalysis retains the intermediate analysis in every Result.
func WithKeepAnalysis(keep bool) Option {
	return func(r *Runner) { r.keepAnalysis = keep }
}

// WithObserver registers a callback for state transitions.
func WithObserver(fn Observer) Option {
	return func(r *Runner) { r.observer = fn }
}

// WithMetrics records run outcomes and stage latency.
func WithMetrics(m *telemetry.PipelineMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// RunOption adjusts a single Run.
type RunOption func(*runSettings)

type runSettings struct {
	keepAnalysis bool
}

// IncludeAnalysis overrides the runner's analysis retention for one run.
func IncludeAnalysis(keep bool) RunOption {
	return func(s *runSettings) { s.keepAnalysis = keep }
}

// New creates a Runner over store. Both arguments are required.
func New(store *config.Store, factory AdapterFactory, opts ...Option) (*Runner, error) {
	if store == nil {
		return nil, errors.New(errors.CodeInternal, "pipeline requires a crew store", nil)
	}
	if factory == nil {
		return nil, errors.New(errors.CodeInternal, "pipeline requires an adapter factory", nil)
	}
	r := &Runner{
		store:   store,
		factory: factory,
		logger:  slog.Default(),
		tracer:  otel.Tracer("crewsum/pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Store returns the crew definitions the runner was built with.
func (r *Runner) Store() *config.Store { return r.store }

// run carries the state of one invocation.
type run struct {
	*Runner
	id     string
	state  State
	logger *slog.Logger
}

// Run summarises document. It returns a non-empty summary or a typed error;
// the error keeps the code produced by the failing component and gains the
// stage and run id as context.
func (r *Runner) Run(ctx context.Context, creds modelclient.Credentials, document string, opts ...RunOption) (*Result, error) {
	settings := runSettings{keepAnalysis: r.keepAnalysis}
	for _, opt := range opts {
		opt(&settings)
	}

	rn := &run{Runner: r, id: uuid.NewString(), state: StateIdle}
	rn.logger = r.logger.With("run_id", rn.id)
	ctx = telemetry.WithRunID(ctx, rn.id)

	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("crewsum.run_id", rn.id),
		attribute.String("crewsum.provider", string(creds.Provider)),
	))
	defer span.End()

	start := time.Now()
	res, stage, err := rn.execute(ctx, creds, document, settings)
	if err != nil {
		err = annotate(err, stage, rn.id)
		rn.transition(StateErrored, "", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
		r.metrics.RecordError(ctx, stage, err)
		r.metrics.RecordRun(ctx, "error")
		rn.logger.ErrorContext(ctx, "pipeline run failed",
			"stage", stage,
			"code", string(errors.CodeOf(err)),
			"duration", time.Since(start),
			"error", err.Error(),
		)
		return nil, err
	}

	r.metrics.RecordRun(ctx, "success")
	rn.logger.InfoContext(ctx, "pipeline run finished",
		"duration", time.Since(start),
		"summary_bytes", len(res.Summary),
	)
	return res, nil
}

func (rn *run) execute(ctx context.Context, creds modelclient.Credentials, document string, settings runSettings) (*Result, string, error) {
	if strings.TrimSpace(document) == "" {
		return nil, stageInput, errors.New(errors.CodeEmptyDocument, "document is empty", nil)
	}
	rn.logger.InfoContext(ctx, "pipeline run started", "document_bytes", len(document))
	rn.transition(StateAnalysisPending, core.RoleDocumentAnalyst, nil)

	analysisSpec, analyst, err := rn.bind(core.TaskAnalyseDocument, creds)
	if err != nil {
		return nil, stageAnalysis, err
	}
	summarySpec, writer, err := rn.bind(core.TaskCreateSummary, creds)
	if err != nil {
		return nil, stageSummary, err
	}

	analysis, err := rn.stage(ctx, stageAnalysis, analyst, analysisSpec.Render(document), "")
	if err != nil {
		return nil, stageAnalysis, err
	}
	rn.transition(StateAnalysisComplete, core.RoleDocumentAnalyst, nil)

	rn.transition(StateSummaryPending, core.RoleSummaryWriter, nil)
	summary, err := rn.stage(ctx, stageSummary, writer, summarySpec.RenderStatic(), analysis)
	if err != nil {
		return nil, stageSummary, err
	}
	rn.transition(StateSummaryComplete, core.RoleSummaryWriter, nil)

	res := &Result{RunID: rn.id, Summary: summary}
	if settings.keepAnalysis {
		res.Analysis = analysis
	}
	return res, "", nil
}

// bind resolves task and its role from the store and builds a fresh agent.
func (rn *run) bind(taskName core.TaskName, creds modelclient.Credentials) (core.TaskSpec, *agent.Agent, error) {
	task, ok := rn.store.Task(taskName)
	if !ok {
		return core.TaskSpec{}, nil, errors.New(errors.CodeConfigSchema, "task is not defined", nil).
			WithContext("task", string(taskName))
	}
	roleName := taskName.AssignedRole()
	role, ok := rn.store.Role(roleName)
	if !ok {
		return core.TaskSpec{}, nil, errors.New(errors.CodeConfigSchema, "role is not defined", nil).
			WithContext("role", string(roleName))
	}

	completer, err := rn.factory(roleName, creds)
	if err != nil {
		return core.TaskSpec{}, nil, err
	}
	a, err := agent.Bind(role, completer, agent.WithLogger(rn.logger))
	if err != nil {
		return core.TaskSpec{}, nil, errors.New(errors.CodeInternal, "cannot bind role", err).
			WithContext("role", string(roleName))
	}
	return task, a, nil
}

func (rn *run) stage(ctx context.Context, name string, a *agent.Agent, task core.RenderedTask, priorContext string) (string, error) {
	ctx, span := rn.tracer.Start(ctx, "pipeline."+name, trace.WithAttributes(
		attribute.String("crewsum.role", string(a.Spec().Name)),
		attribute.String("crewsum.task", string(task.Name)),
	))
	defer span.End()

	start := time.Now()
	out, err := a.Execute(ctx, task, priorContext)
	rn.metrics.RecordStage(ctx, name, time.Since(start))
	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New(errors.CodeProvider, "role produced no output", nil).
			WithContext("role", string(a.Spec().Name))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
		return "", err
	}

	rn.logger.InfoContext(ctx, "stage finished",
		"stage", name,
		"role", string(a.Spec().Name),
		"duration", time.Since(start),
		"output_bytes", len(out),
	)
	return out, nil
}

func (rn *run) transition(to State, role core.RoleName, err error) {
	from := rn.state
	if !CanTransition(from, to) {
		rn.logger.Error("illegal pipeline transition", "from", from.String(), "to", to.String())
		return
	}
	rn.state = to
	rn.logger.Debug("pipeline transition", "from", from.String(), "to", to.String())
	if rn.observer != nil {
		rn.observer(RunEvent{RunID: rn.id, From: from, To: to, Role: role, Err: err, At: time.Now()})
	}
}

// annotate attaches stage and run id without altering the error's code.
func annotate(err error, stage, runID string) error {
	e := errors.AsError(err).Clone()
	if stage != "" {
		e.WithContext("stage", stage)
	}
	return e.WithContext("run_id", runID)
}
