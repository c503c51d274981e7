package executor

import (
	"context"
	"fmt"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/dag"
	"github.com/vk/burstmission/internal/mission"
	"github.com/vk/burstmission/internal/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/vk/burstmission/internal/executor"

// Executor runs missions against a session's tools, configuration, and audit log.
// It is safe to run several missions concurrently on one Executor.
type Executor struct {
	session    *session.Session
	tracer     trace.Tracer
	metrics    *instruments
	conditions *conditionEvaluator
}

// Option customizes an Executor.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider sets the provider used for mission and step spans. The
// global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the provider used for step metrics. The global
// provider is used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// New creates an Executor bound to sess.
func New(sess *session.Session, opts ...Option) (*Executor, error) {
	o := options{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	metrics, err := newInstruments(o.meterProvider.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("failed to create executor metrics: %w", err)
	}
	conditions, err := newConditionEvaluator()
	if err != nil {
		return nil, err
	}

	return &Executor{
		session:    sess,
		tracer:     o.tracerProvider.Tracer(instrumentationName),
		metrics:    metrics,
		conditions: conditions,
	}, nil
}

// ExecuteMission validates m and runs it to completion.
//
// A mission that fails validation returns a nil result and an error of kind
// mission.ErrMissionValidation. Otherwise a result is always returned; the
// error is non-nil when a step failure aborted the run (kind
// mission.ErrMissionAborted) or when ctx was cancelled.
func (e *Executor) ExecuteMission(ctx context.Context, m *mission.Mission) (*mission.ExecutionResult, error) {
	logger := ctxlog.FromContext(ctx)

	graph, err := dag.Build(m)
	if err != nil {
		logger.Error("Mission rejected.", "error", err)
		return nil, err
	}

	r, err := newRun(e, m, graph)
	if err != nil {
		return nil, err
	}

	ctx = ctxlog.With(ctx, "mission", m.Name, "missionID", r.id)
	logger = ctxlog.FromContext(ctx)
	_, isSemVer := m.SemVer()
	if !isSemVer {
		logger.Debug("Mission version is not a semantic version.", "version", m.Version)
	}
	ctx, span := e.tracer.Start(ctx, "mission.execute", trace.WithAttributes(
		attribute.String("mission.name", m.Name),
		attribute.String("mission.id", r.id),
		attribute.String("mission.version", m.Version),
		attribute.Bool("mission.version.semver", isSemVer),
		attribute.Int("mission.steps", len(m.Steps)),
	))
	defer span.End()

	logger.Info("🚀 Starting mission execution...", "steps", len(m.Steps), "workers", r.workers)
	r.audit(ctx, "mission.start "+m.Name, "started")

	r.execute(ctx)

	result := r.result(ctx)
	runErr := r.err(ctx)

	span.SetAttributes(attribute.String("mission.status", string(result.Status)))
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	e.metrics.recordMission(ctx, result)
	r.audit(ctx, "mission.finish "+m.Name, string(result.Status))

	logger.Info("🏁 Mission finished.",
		"status", result.Status,
		"attempted", len(result.StepResults),
		"duration", result.Duration,
	)
	return result, runErr
}
