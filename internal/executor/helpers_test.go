package executor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/burstmission/internal/config"
	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/mission"
	"github.com/vk/burstmission/internal/registry"
	"github.com/vk/burstmission/internal/session"
)

// safeBuffer is a thread-safe buffer for capturing log output in tests.
type safeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// testContext returns a context carrying a debug logger. The captured output
// is printed when BURSTMISSION_TEST_LOGS=true.
func testContext(t *testing.T) context.Context {
	t.Helper()
	buf := &safeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() {
		if os.Getenv("BURSTMISSION_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), buf.String())
		}
	})
	return ctxlog.WithLogger(context.Background(), logger)
}

func setupExecutor(t *testing.T, cfg config.Config, tools ...registry.Tool) (*Executor, *session.Session) {
	t.Helper()
	sess := session.New(cfg)
	for _, tool := range tools {
		sess.Tools().RegisterTool(tool)
	}
	exec, err := New(sess)
	require.NoError(t, err)
	return exec, sess
}

var errBoom = errors.New("boom")

func echoTool() registry.Tool {
	return registry.NewFunc("echo", "", func(_ context.Context, params map[string]any) (any, error) {
		if v, ok := params["value"]; ok {
			return v, nil
		}
		return params["message"], nil
	})
}

func failTool() registry.Tool {
	return registry.NewFunc("fail", "", func(context.Context, map[string]any) (any, error) {
		return nil, errBoom
	})
}

// recorder captures the wall-clock window of every tool invocation.
type recorder struct {
	mu      sync.Mutex
	windows map[string][2]time.Time
}

func newRecorder() *recorder {
	return &recorder{windows: make(map[string][2]time.Time)}
}

func (r *recorder) tool(name string, work time.Duration) registry.Tool {
	return registry.NewFunc(name, "", func(ctx context.Context, params map[string]any) (any, error) {
		start := time.Now()
		select {
		case <-time.After(work):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		id, _ := params["id"].(string)
		r.mu.Lock()
		r.windows[id] = [2]time.Time{start, time.Now()}
		r.mu.Unlock()
		return id, nil
	})
}

func step(id string, typ mission.StepType, deps ...string) mission.Step {
	return mission.Step{ID: id, Type: typ, DependsOn: deps, Parameters: map[string]any{"id": id}}
}

func newMission(steps ...mission.Step) *mission.Mission {
	return &mission.Mission{Version: "1.0.0", Name: "test-mission", Steps: steps}
}

func statuses(res *mission.ExecutionResult) map[string]mission.StepStatus {
	out := make(map[string]mission.StepStatus, len(res.StepResults))
	for _, sr := range res.StepResults {
		out[sr.StepID] = sr.Status
	}
	return out
}
