// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/crewsum/pkg/errors"
)

// PipelineMetrics records run outcomes, stage latency and failures by code.
// All methods are safe on a nil receiver.
type PipelineMetrics struct {
	runCounter    metric.Int64Counter
	stageDuration metric.Float64Histogram
	errorCounter  metric.Int64Counter
}

// NewPipelineMetrics creates the instruments on the global meter provider.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	return NewPipelineMetricsWithMeter(otel.Meter("crewsum/pipeline"))
}

// NewPipelineMetricsWithMeter creates the instruments on meter.
func NewPipelineMetricsWithMeter(meter metric.Meter) (*PipelineMetrics, error) {
	runCounter, err := meter.Int64Counter(
		"crewsum.runs.total",
		metric.WithDescription("Pipeline runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"crewsum.stage.duration",
		metric.WithDescription("Stage execution time"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"crewsum.errors.total",
		metric.WithDescription("Pipeline failures by code and stage"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		runCounter:    runCounter,
		stageDuration: stageDuration,
		errorCounter:  errorCounter,
	}, nil
}

// RecordRun counts one finished run; outcome is "success" or "error".
func (pm *PipelineMetrics) RecordRun(ctx context.Context, outcome string) {
	if pm == nil {
		return
	}
	pm.runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStage records how long a stage took.
func (pm *PipelineMetrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if pm == nil {
		return
	}
	pm.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordError counts a failure in stage.
func (pm *PipelineMetrics) RecordError(ctx context.Context, stage string, err error) {
	if pm == nil || err == nil {
		return
	}
	recoverable := "false"
	if e := errors.As(err); e != nil {
		recoverable = e.RecoverableString()
	}
	pm.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", string(errors.CodeOf(err))),
		attribute.String("stage", stage),
		attribute.String("recoverable", recoverable),
	))
}
