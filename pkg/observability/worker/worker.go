package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// WorkerInstrumenter traces and meters background jobs such as stream record handling.
type WorkerInstrumenter struct {
	tracer      trace.Tracer
	inflight    metric.Int64UpDownCounter
	jobDuration metric.Float64Histogram
	jobsTotal   metric.Int64Counter
}

// NewWorkerInstrumenter creates an instrumenter whose instruments are prefixed with serviceName.
func NewWorkerInstrumenter(tracer trace.Tracer, meter metric.Meter, serviceName string) (*WorkerInstrumenter, error) {
	inflight, err := meter.Int64UpDownCounter(
		fmt.Sprintf("%s_jobs_inflight", serviceName),
		metric.WithDescription("Number of jobs currently executing"),
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_job_duration_seconds", serviceName),
		metric.WithDescription("Background job duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	jobsTotal, err := meter.Int64Counter(
		fmt.Sprintf("%s_jobs_total", serviceName),
		metric.WithDescription("Total background jobs processed"),
	)
	if err != nil {
		return nil, err
	}

	return &WorkerInstrumenter{
		tracer:      tracer,
		inflight:    inflight,
		jobDuration: jobDuration,
		jobsTotal:   jobsTotal,
	}, nil
}

// NewNoopInstrumenter returns an instrumenter that records nothing.
func NewNoopInstrumenter() *WorkerInstrumenter {
	w, _ := NewWorkerInstrumenter(tracenoop.NewTracerProvider().Tracer("noop"), metricnoop.NewMeterProvider().Meter("noop"), "noop")
	return w
}

// InstrumentJob runs fn inside a span and records its duration and outcome.
func (w *WorkerInstrumenter) InstrumentJob(ctx context.Context, jobType string, jobID string, fn func(context.Context) error) error {
	w.inflight.Add(ctx, 1)
	defer w.inflight.Add(ctx, -1)

	ctx, span := w.tracer.Start(ctx, fmt.Sprintf("worker.%s", jobType),
		trace.WithAttributes(
			attribute.String("job.type", jobType),
			attribute.String("job.id", jobID),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("job.type", jobType),
		attribute.String("status", status),
	)
	w.jobDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	w.jobsTotal.Add(ctx, 1, attrs)

	return err
}
