package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/burstmission/internal/audit"
	"github.com/vk/burstmission/internal/mission"
	"github.com/vk/burstmission/internal/registry"
)

const greetMission = `
version: "1.0.0"
name: greet
steps:
  - id: hello
    step_type: noop
    parameters:
      who: world
  - id: say
    step_type: print
    depends_on: [hello]
    parameters:
      message: "greeting {hello_result}"
`

const brokenMission = `
version: "1.0.0"
name: broken
steps:
  - id: first
    step_type: missing_tool
  - id: second
    step_type: noop
    depends_on: [first]
`

type failingModule struct{}

func (failingModule) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("explode", "", func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("boom")
	}))
}

func writeMission(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestNewConfig(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		errMsg  string
		wantDrv string
	}{
		{name: "minimal", cfg: Config{MissionPath: "m.yaml"}, wantDrv: audit.DriverSQLite},
		{name: "postgres audit", cfg: Config{MissionPath: "m.yaml", AuditDBDriver: "postgres"}, wantDrv: audit.DriverPostgres},
		{name: "missing path", cfg: Config{}, errMsg: "MissionPath is a required"},
		{name: "negative workers", cfg: Config{MissionPath: "m", Workers: -1}, errMsg: "workers must not be negative"},
		{name: "negative timeout", cfg: Config{MissionPath: "m", Timeout: -time.Second}, errMsg: "timeout must not be negative"},
		{name: "bad driver", cfg: Config{MissionPath: "m", AuditDBDriver: "mysql"}, errMsg: "unsupported audit database driver"},
		{name: "bad export", cfg: Config{MissionPath: "m", AuditExport: "audit.xml"}, errMsg: "unsupported export format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewConfig(tc.cfg)
			if tc.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantDrv, got.AuditDBDriver)
		})
	}
}

func TestNewApp_Overrides(t *testing.T) {
	a, _ := SetupAppTest(t, &Config{MissionPath: "unused", Workers: 7, Timeout: 3 * time.Second, NoAudit: true})

	cfg := a.Session().Config()
	assert.Equal(t, 7, cfg.MaxParallelSteps)
	assert.Equal(t, 3*time.Second, cfg.MissionTimeout)
	assert.False(t, cfg.AuditEnabled)
	assert.Contains(t, a.Session().Tools().Names(), "create_file", "core modules are registered by default")
}

func TestRun_Success(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "audit.json")
	a, logs := SetupAppTest(t, &Config{
		MissionPath: writeMission(t, dir, "greet.yaml", greetMission),
		AuditExport: exportPath,
	})

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	out := logs.String()
	assert.Contains(t, out, "mission greet")
	assert.Contains(t, out, string(mission.StatusCompleted))
	assert.Contains(t, out, `greeting {"who":"world"}`, "print receives the substituted upstream output")

	raw, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	var snap audit.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, 4, snap.Count, "mission start, two steps, mission finish")
	assert.Equal(t, a.Session().Audit().ChainHash(), snap.ChainHash)
	assert.NoError(t, audit.VerifyEntries(snap.Entries))
}

func TestRun_Failures(t *testing.T) {
	t.Run("missing tool aborts the mission", func(t *testing.T) {
		dir := t.TempDir()
		a, logs := SetupAppTest(t, &Config{MissionPath: writeMission(t, dir, "broken.yaml", brokenMission)})

		err := a.Run(context.Background())

		require.Error(t, err)
		assert.ErrorIs(t, err, mission.ErrMissionAborted)
		assert.ErrorIs(t, err, mission.ErrToolNotFound)
		assert.Contains(t, logs.String(), "❌ first")
	})

	t.Run("tolerated failure completes with failures", func(t *testing.T) {
		dir := t.TempDir()
		path := writeMission(t, dir, "tolerated.yaml", `
version: "1.0.0"
name: tolerated
steps:
  - id: risky
    step_type: explode
    continue_on_error: true
  - id: after
    step_type: noop
    depends_on: [risky]
`)
		a, logs := SetupAppTest(t, &Config{MissionPath: path}, failingModule{}, &noopModule{})

		err := a.Run(context.Background())

		require.NoError(t, err)
		assert.Contains(t, logs.String(), string(mission.StatusCompletedWithFailures))
		assert.Contains(t, logs.String(), "boom (tolerated)")
	})

	t.Run("invalid mission file", func(t *testing.T) {
		dir := t.TempDir()
		a, _ := SetupAppTest(t, &Config{MissionPath: writeMission(t, dir, "bad.yaml", "name: [")})

		err := a.Run(context.Background())

		assert.ErrorContains(t, err, "failed to load missions")
	})
}

type noopModule struct{}

func (*noopModule) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("noop", "", func(context.Context, map[string]any) (any, error) { return "ok", nil }))
}

func TestRun_AuditDatabaseRestore(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	cfg := Config{
		MissionPath:   writeMission(t, dir, "greet.yaml", greetMission),
		AuditDB:       filepath.Join(dir, "audit.db"),
		AuditDBDriver: audit.DriverSQLite,
	}

	first, _ := SetupAppTest(t, &cfg)
	require.NoError(t, first.Run(context.Background()))
	firstHash := first.Session().Audit().ChainHash()
	require.NoError(t, first.Close())

	// --- Act ---
	second, _ := SetupAppTest(t, &cfg)
	restored := second.Session().Audit().Len()
	require.NoError(t, second.Run(context.Background()))

	// --- Assert ---
	assert.Equal(t, 4, restored)
	assert.Equal(t, 8, second.Session().Audit().Len())
	assert.Equal(t, firstHash, second.Session().Audit().Entries()[4].PreviousHash)
	assert.NoError(t, second.Session().Audit().Verify())
}

func TestRoutes(t *testing.T) {
	// --- Arrange ---
	a, _ := SetupAppTest(t, &Config{MissionPath: "unused"}, &noopModule{})
	_, err := a.Session().Audit().Append(context.Background(), "tester", "probe", "success")
	require.NoError(t, err)
	h := a.routes()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	t.Run("health", func(t *testing.T) {
		rec := get("/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK\n", rec.Body.String())
	})

	t.Run("audit snapshot", func(t *testing.T) {
		rec := get("/audit")
		require.Equal(t, http.StatusOK, rec.Code)
		var snap audit.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, 1, snap.Count)
		assert.Equal(t, "probe", snap.Entries[0].Action)
	})

	t.Run("audit verify", func(t *testing.T) {
		rec := get("/audit/verify")
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["valid"])
		assert.Equal(t, a.Session().Audit().ChainHash(), body["chain_hash"])
	})

	t.Run("unknown route", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get("/nope").Code)
	})
}
