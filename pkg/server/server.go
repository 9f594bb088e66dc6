// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the summarisation pipeline as a small JSON API.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jllopis/crewsum/pkg/errors"
	"github.com/jllopis/crewsum/pkg/modelclient"
	"github.com/jllopis/crewsum/pkg/pipeline"
	"github.com/jllopis/crewsum/pkg/resilience"
)

// APIKeyHeader carries the caller's provider API key.
const APIKeyHeader = "X-API-Key"

const maxBodyBytes = 8 << 20

// SummaryRequest is the body of POST /v1/summaries.
type SummaryRequest struct {
	Provider        string `json:"provider"`
	Document        string `json:"document"`
	IncludeAnalysis bool   `json:"include_analysis"`
}

// SummaryResponse is returned on success.
type SummaryResponse struct {
	RunID    string `json:"run_id"`
	Summary  string `json:"summary"`
	Analysis string `json:"analysis,omitempty"`
}

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// Handler serves the API. The runner can be replaced while serving, e.g. when
// the crew file is reloaded; requests in flight keep the runner they started with.
type Handler struct {
	runner          atomic.Pointer[pipeline.Runner]
	defaultProvider modelclient.ProviderName
	timeout         time.Duration
	logger          *slog.Logger
	mux             *http.ServeMux
	health          healthRegistry
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRequestTimeout bounds each summarisation; zero means no bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithDefaultProvider is used when a request names no provider.
func WithDefaultProvider(p modelclient.ProviderName) Option {
	return func(h *Handler) { h.defaultProvider = p }
}

// NewHandler builds the API around runner.
func NewHandler(runner *pipeline.Runner, opts ...Option) *Handler {
	h := &Handler{
		defaultProvider: modelclient.ProviderOpenAI,
		logger:          slog.Default(),
		mux:             http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.runner.Store(runner)
	h.RegisterHealthCheck("crew", h.checkCrew)
	h.mux.HandleFunc("/v1/summaries", h.handleSummaries)
	h.mux.HandleFunc("/healthz", h.handleHealth)
	return h
}

func (h *Handler) checkCrew(ctx context.Context) HealthResult {
	r := h.runner.Load()
	if r == nil {
		return HealthResult{Status: HealthUnhealthy, Message: "no crew loaded"}
	}
	store := r.Store()
	return HealthResult{
		Status:  HealthHealthy,
		Message: fmt.Sprintf("%d roles and %d tasks from %s", len(store.Roles()), len(store.Tasks()), store.Path()),
	}
}

// SetRunner swaps the runner used by new requests.
func (h *Handler) SetRunner(r *pipeline.Runner) {
	if r != nil {
		h.runner.Store(r)
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)
	h.logger.InfoContext(r.Context(), "http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start),
	)
}

func (h *Handler) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, errors.New(errors.CodeInvalidRequest, "use POST", nil), http.StatusMethodNotAllowed)
		return
	}

	var req SummaryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, errors.New(errors.CodeInvalidRequest, "request body must be a JSON summary request", err), 0)
		return
	}

	provider := h.defaultProvider
	if strings.TrimSpace(req.Provider) != "" {
		p, err := modelclient.ParseProvider(req.Provider)
		if err != nil {
			writeError(w, err, 0)
			return
		}
		provider = p
	}
	creds := modelclient.Credentials{Provider: provider, APIKey: r.Header.Get(APIKeyHeader)}

	runner := h.runner.Load()
	res, err := resilience.WithTimeout(r.Context(), resilience.TimeoutConfig{Duration: h.timeout},
		func(ctx context.Context) (*pipeline.Result, error) {
			return runner.Run(ctx, creds, req.Document, pipeline.IncludeAnalysis(req.IncludeAnalysis))
		})
	if err != nil {
		writeError(w, err, 0)
		return
	}

	writeJSON(w, http.StatusOK, SummaryResponse{
		RunID:    res.RunID,
		Summary:  res.Summary,
		Analysis: res.Analysis,
	})
}

// writeError renders err; status 0 derives the status from the error code.
func writeError(w http.ResponseWriter, err error, status int) {
	e := errors.AsError(err)
	if status == 0 {
		status = e.StatusCode
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
	}
	runID, _ := e.Context["run_id"].(string)
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:    string(e.Code),
		Message: e.Message,
		RunID:   runID,
	}})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("crewsum API listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
