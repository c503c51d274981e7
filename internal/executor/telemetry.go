package executor

import (
	"context"

	"github.com/vk/burstmission/internal/mission"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instruments holds the executor's metric instruments (RED pattern).
type instruments struct {
	steps        metric.Int64Counter
	stepDuration metric.Float64Histogram
	missions     metric.Int64Counter
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	steps, err := meter.Int64Counter("burstmission.steps",
		metric.WithDescription("Attempted steps by type and status"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, err
	}
	stepDuration, err := meter.Float64Histogram("burstmission.step.duration",
		metric.WithDescription("Wall-clock duration of attempted steps"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	missions, err := meter.Int64Counter("burstmission.missions",
		metric.WithDescription("Executed missions by final status"),
		metric.WithUnit("{mission}"),
	)
	if err != nil {
		return nil, err
	}
	return &instruments{steps: steps, stepDuration: stepDuration, missions: missions}, nil
}

func (i *instruments) recordStep(ctx context.Context, res mission.StepResult) {
	attrs := metric.WithAttributes(
		attribute.String("step.type", string(res.Type)),
		attribute.String("step.status", string(res.Status)),
	)
	i.steps.Add(ctx, 1, attrs)
	i.stepDuration.Record(ctx, res.Duration.Seconds(), attrs)
}

func (i *instruments) recordMission(ctx context.Context, res *mission.ExecutionResult) {
	i.missions.Add(ctx, 1, metric.WithAttributes(attribute.String("mission.status", string(res.Status))))
}
