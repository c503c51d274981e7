package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/burstmission/internal/config"
	"github.com/vk/burstmission/internal/mission"
	"github.com/vk/burstmission/internal/session"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestExecuteMission_Telemetry(t *testing.T) {
	// --- Arrange ---
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	sess := session.New(config.Default())
	sess.Tools().RegisterTool(echoTool())
	sess.Tools().RegisterTool(failTool())
	exec, err := New(sess, WithTracerProvider(tp), WithMeterProvider(mp))
	require.NoError(t, err)

	x := step("x", "fail")
	x.ContinueOnError = mission.Bool(true)
	m := newMission(step("a", "echo"), x)

	// --- Act ---
	_, err = exec.ExecuteMission(testContext(t), m)
	require.NoError(t, err)

	// --- Assert: spans ---
	ended := spans.Ended()
	require.Len(t, ended, 3)

	var root sdktrace.ReadOnlySpan
	stepSpans := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range ended {
		switch s.Name() {
		case "mission.execute":
			root = s
		case "step.execute":
			for _, kv := range s.Attributes() {
				if kv.Key == "step.id" {
					stepSpans[kv.Value.AsString()] = s
				}
			}
		}
	}
	require.NotNil(t, root)
	require.Len(t, stepSpans, 2)
	for id, s := range stepSpans {
		assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID(), "step %s must be a child of the mission span", id)
	}
	assert.Equal(t, codes.Error, stepSpans["x"].Status().Code)
	assert.NotEqual(t, codes.Error, stepSpans["a"].Status().Code)

	// --- Assert: metrics ---
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var stepCount int64
	var sawMission bool
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch md.Name {
			case "burstmission.steps":
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					stepCount += dp.Value
				}
			case "burstmission.missions":
				sawMission = true
			}
		}
	}
	assert.Equal(t, int64(2), stepCount)
	assert.True(t, sawMission)
}

func TestExecuteMission_FreeFormVersion(t *testing.T) {
	testCases := []struct {
		version    string
		wantSemVer bool
	}{
		{version: "1.0.0", wantSemVer: true},
		{version: "latest", wantSemVer: false},
	}

	for _, tc := range testCases {
		t.Run(tc.version, func(t *testing.T) {
			// --- Arrange ---
			spans := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
			sess := session.New(config.Default())
			sess.Tools().RegisterTool(echoTool())
			exec, err := New(sess, WithTracerProvider(tp))
			require.NoError(t, err)

			m := newMission(step("a", "echo"))
			m.Version = tc.version

			// --- Act ---
			res, err := exec.ExecuteMission(testContext(t), m)

			// --- Assert ---
			require.NoError(t, err)
			assert.Equal(t, mission.StatusCompleted, res.Status)

			attrs := map[string]any{}
			for _, s := range spans.Ended() {
				if s.Name() != "mission.execute" {
					continue
				}
				for _, kv := range s.Attributes() {
					attrs[string(kv.Key)] = kv.Value.AsInterface()
				}
			}
			assert.Equal(t, tc.version, attrs["mission.version"])
			assert.Equal(t, tc.wantSemVer, attrs["mission.version.semver"])
		})
	}
}
