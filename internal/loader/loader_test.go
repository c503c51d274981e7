package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/burstmission/internal/mission"
)

const yamlMission = `
version: "1.0.0"
name: deploy
description: Build and ship
config:
  max_parallel_steps: 2
  fail_fast: false
steps:
  - id: build
    name: Build artefact
    step_type: command
    timeout_seconds: 30
    parameters:
      command: make
      args: ["build"]
  - id: ship
    step_type: http
    depends_on: [build]
    continue_on_error: true
    condition: 'steps.build != null'
    parameters:
      url: https://example.invalid/{build_result}
`

const jsonMission = `{
  "version": "2.1.0",
  "name": "report",
  "steps": [
    {"id": "read", "step_type": "read_file", "parameters": {"path": "in.txt"}},
    {"id": "print", "step_type": "print", "depends_on": ["read"], "parameters": {"message": "{read_result}"}}
  ]
}`

const hclMissionSrc = `
mission "cleanup" {
  version     = "0.3.0"
  description = "Remove stale files"

  config {
    timeout_seconds = 60
    audit_enabled   = false
  }

  step "list" {
    type       = "list_directory"
    parameters = {
      path      = "work"
      recursive = true
      depth     = 2
    }
  }

  step "remove" {
    name              = "Remove old"
    type              = "delete_file"
    depends_on        = ["list"]
    continue_on_error = true
    condition         = "vars.list_result != \"\""
    parameters = {
      path  = "work/old.txt"
      owner = env.BURSTMISSION_TEST_OWNER
      tags  = ["a", "b"]
      ratio = 0.5
    }
  }

  step "done" {
    type       = "noop"
    depends_on = ["remove"]
  }
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_YAML(t *testing.T) {
	// --- Arrange ---
	path := writeFile(t, t.TempDir(), "deploy.yaml", yamlMission)

	// --- Act ---
	m, err := Load(context.Background(), path)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "deploy", m.Name)
	assert.Equal(t, "1.0.0", m.Version)
	require.NotNil(t, m.Config)
	assert.Equal(t, 2, *m.Config.MaxParallelSteps)
	assert.False(t, *m.Config.FailFast)
	require.Len(t, m.Steps, 2)

	build := m.Steps[0]
	assert.Equal(t, mission.StepCommand, build.Type)
	assert.Equal(t, "Build artefact", build.Name)
	assert.Equal(t, 30, *build.TimeoutSeconds)
	assert.Equal(t, []any{"build"}, build.Parameters["args"])

	ship := m.Steps[1]
	assert.Equal(t, []string{"build"}, ship.DependsOn)
	assert.True(t, *ship.ContinueOnError)
	assert.Equal(t, "steps.build != null", ship.Condition)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "report.json", jsonMission)

	m, err := Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "report", m.Name)
	require.Len(t, m.Steps, 2)
	assert.Equal(t, mission.StepReadFile, m.Steps[0].Type)
	assert.Equal(t, "{read_result}", m.Steps[1].Parameters["message"])
	assert.Nil(t, m.Config)
}

func TestLoad_HCL(t *testing.T) {
	// --- Arrange ---
	t.Setenv("BURSTMISSION_TEST_OWNER", "ops")
	path := writeFile(t, t.TempDir(), "cleanup.hcl", hclMissionSrc)

	// --- Act ---
	m, err := Load(context.Background(), path)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "cleanup", m.Name)
	assert.Equal(t, "0.3.0", m.Version)
	assert.Equal(t, "Remove stale files", m.Description)
	require.NotNil(t, m.Config)
	assert.Equal(t, 60, *m.Config.TimeoutSeconds)
	assert.False(t, *m.Config.AuditEnabled)
	assert.Nil(t, m.Config.MaxParallelSteps)

	require.Len(t, m.Steps, 3)
	list := m.Steps[0]
	assert.Equal(t, mission.StepListDirectory, list.Type)
	assert.Equal(t, map[string]any{"path": "work", "recursive": true, "depth": int64(2)}, list.Parameters)

	remove := m.Steps[1]
	assert.Equal(t, "Remove old", remove.Name)
	assert.True(t, *remove.ContinueOnError)
	assert.Equal(t, `vars.list_result != ""`, remove.Condition)
	assert.Equal(t, "ops", remove.Parameters["owner"])
	assert.Equal(t, []any{"a", "b"}, remove.Parameters["tags"])
	assert.Equal(t, 0.5, remove.Parameters["ratio"])

	assert.Nil(t, m.Steps[2].Parameters)
	assert.Equal(t, []string{"remove"}, m.Steps[2].DependsOn)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name    string
		path    string
		errText string
		kind    error
	}{
		{name: "empty path", path: "", errText: "mission path must not be empty"},
		{name: "missing file", path: filepath.Join(dir, "absent.yaml"), errText: "failed to read mission file"},
		{
			name:    "malformed yaml",
			path:    writeFile(t, dir, "bad.yaml", "version: [\n"),
			errText: "failed to parse mission file",
		},
		{
			name:    "unknown json field",
			path:    writeFile(t, dir, "extra.json", `{"version":"1.0.0","name":"x","stepz":[]}`),
			errText: "unknown field",
		},
		{
			name:    "two hcl missions",
			path:    writeFile(t, dir, "two.hcl", "mission \"a\" {\n version = \"1.0.0\"\n}\nmission \"b\" {\n version = \"1.0.0\"\n}\n"),
			errText: "expected exactly one mission block, found 2",
		},
		{
			name:    "hcl parameters not an object",
			path:    writeFile(t, dir, "params.hcl", "mission \"a\" {\n version = \"1.0.0\"\n step \"s\" {\n type = \"noop\"\n parameters = \"oops\"\n }\n}\n"),
			errText: "must be an object",
		},
		{
			name: "invalid mission",
			path: writeFile(t, dir, "invalid.yaml", "version: \"1.0.0\"\nname: empty\nsteps: []\n"),
			kind: mission.ErrMissionValidation,
		},
		{
			name: "dangling dependency",
			path: writeFile(t, dir, "dangling.json", `{"version":"1.0.0","name":"d","steps":[{"id":"a","step_type":"noop","depends_on":["ghost"]}]}`),
			kind: mission.ErrMissionValidation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), tc.path)
			require.Error(t, err)
			if tc.errText != "" {
				assert.ErrorContains(t, err, tc.errText)
			}
			if tc.kind != nil {
				assert.ErrorIs(t, err, tc.kind)
			}
		})
	}
}

func TestLoadDir(t *testing.T) {
	t.Run("loads every format in path order", func(t *testing.T) {
		// --- Arrange ---
		t.Setenv("BURSTMISSION_TEST_OWNER", "ops")
		dir := t.TempDir()
		writeFile(t, dir, "b/report.json", jsonMission)
		writeFile(t, dir, "a/deploy.yml", yamlMission)
		writeFile(t, dir, "c.hcl", hclMissionSrc)
		writeFile(t, dir, "README.md", "# not a mission")

		// --- Act ---
		missions, err := LoadDir(context.Background(), dir)

		// --- Assert ---
		require.NoError(t, err)
		require.Len(t, missions, 3)
		assert.Equal(t, "deploy", missions[0].Name)
		assert.Equal(t, "report", missions[1].Name)
		assert.Equal(t, "cleanup", missions[2].Name)
	})

	t.Run("one bad file fails the load", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "good.json", jsonMission)
		writeFile(t, dir, "bad.yaml", "version: [\n")

		_, err := LoadDir(context.Background(), dir)

		assert.ErrorContains(t, err, "bad.yaml")
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := LoadDir(context.Background(), t.TempDir())
		assert.ErrorContains(t, err, "no mission files found")
	})
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "report.json", jsonMission)

	single, err := LoadPath(context.Background(), file)
	require.NoError(t, err)
	assert.Len(t, single, 1)

	all, err := LoadPath(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = LoadPath(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyPath)
}
