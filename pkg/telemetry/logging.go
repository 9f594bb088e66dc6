// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Redacted replaces the value of any credential-named attribute.
const Redacted = "[REDACTED]"

// credentialKeys are matched case-insensitively against attribute keys.
var credentialKeys = map[string]struct{}{
	"api_key":       {},
	"apikey":        {},
	"x-api-key":     {},
	"authorization": {},
}

type runIDKey struct{}

// WithRunID tags ctx so every record logged with it carries run_id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run id set by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// ConfigureSlog installs the crewsum handler as the default logger.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	logger := slog.New(newSlogHandler(output, level, format))
	slog.SetDefault(logger)
	return logger
}

func newSlogHandler(output io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	var base slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		base = slog.NewJSONHandler(output, opts)
	default:
		base = slog.NewTextHandler(output, opts)
	}
	return NewHandler(base)
}

// NewHandler wraps next so records gain trace_id, span_id and run_id from the
// context and credential attributes are never written in clear.
func NewHandler(next slog.Handler) slog.Handler {
	return &runHandler{next: next}
}

type runHandler struct {
	next slog.Handler
	// bound holds top-level keys already attached through WithAttrs.
	bound   map[string]struct{}
	grouped bool
}

func (h *runHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *runHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	seen := make(map[string]struct{}, record.NumAttrs())
	record.Attrs(func(attr slog.Attr) bool {
		seen[attr.Key] = struct{}{}
		out.AddAttrs(scrub(attr))
		return true
	})

	add := func(key, value string) {
		if value == "" || h.has(seen, key) {
			return
		}
		out.AddAttrs(slog.String(key, value))
	}
	if id, ok := RunIDFromContext(ctx); ok {
		add("run_id", id)
	}
	traceID, spanID := spanIDsFromContext(ctx)
	add("trace_id", traceID)
	add("span_id", spanID)
	return h.next.Handle(ctx, out)
}

func (h *runHandler) has(seen map[string]struct{}, key string) bool {
	if _, ok := seen[key]; ok {
		return true
	}
	_, ok := h.bound[key]
	return ok
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	bound := make(map[string]struct{}, len(h.bound)+len(attrs))
	for k := range h.bound {
		bound[k] = struct{}{}
	}
	for i, attr := range attrs {
		clean[i] = scrub(attr)
		if !h.grouped {
			bound[attr.Key] = struct{}{}
		}
	}
	return &runHandler{next: h.next.WithAttrs(clean), bound: bound, grouped: h.grouped}
}

func (h *runHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &runHandler{next: h.next.WithGroup(name), bound: h.bound, grouped: true}
}

// scrub redacts credential attributes, descending into groups and resolved
// LogValuer values.
func scrub(attr slog.Attr) slog.Attr {
	if _, ok := credentialKeys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, Redacted)
	}
	v := attr.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return slog.Attr{Key: attr.Key, Value: v}
	}
	members := v.Group()
	clean := make([]any, len(members))
	for i, m := range members {
		clean[i] = scrub(m)
	}
	return slog.Group(attr.Key, clean...)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func spanIDsFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
