package workflow

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"archflow/internal/logging"
	"archflow/internal/services"
	"archflow/internal/store"
)

type instruments struct {
	jobsCreated     metric.Int64Counter
	taskTransitions metric.Int64Counter
	catalogFailures metric.Int64Counter
}

// newInstruments registers the workflow counters. A meter that refuses an
// instrument degrades to a no-op counter so operations never fail on metrics.
func newInstruments(meter metric.Meter, logger *slog.Logger) *instruments {
	fallback := noop.NewMeterProvider().Meter(instrumentationName)
	counter := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit("{count}"))
		if err != nil {
			logger.Warn("metric instrument unavailable", logging.String("instrument", name), logging.Error(err))
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}
	return &instruments{
		jobsCreated:     counter("archflow.jobs.created", "Jobs created from profile job definitions"),
		taskTransitions: counter("archflow.tasks.transitions", "Task state changes by target state"),
		catalogFailures: counter("archflow.catalog.failures", "Failed catalog lookups during job creation"),
	}
}

func (i *instruments) jobCreated(ctx context.Context, profileName string) {
	i.jobsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("profile", profileName)))
}

func (i *instruments) taskTransition(ctx context.Context, state store.TaskState) {
	i.taskTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
}

func (i *instruments) catalogFailure(ctx context.Context, catalogID string, required bool) {
	i.catalogFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("catalog", catalogID),
		attribute.Bool("required", required),
	))
}

func (m *Manager) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return m.tracer.Start(ctx, "workflow."+operation, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(services.Classify(err)))
	}
	span.End()
}
