package mission

import (
	"time"

	"github.com/Masterminds/semver/v3"
)

// StepType selects the tool that handles a step. Built-in types are listed
// below; any other value is resolved against the tool registry by name.
type StepType string

const (
	StepNoop StepType = "noop"

	StepCreateFile    StepType = "create_file"
	StepEditFile      StepType = "edit_file"
	StepDeleteFile    StepType = "delete_file"
	StepCopyFile      StepType = "copy_file"
	StepMoveFile      StepType = "move_file"
	StepReadFile      StepType = "read_file"
	StepListDirectory StepType = "list_directory"
	StepFileSearch    StepType = "file_search"

	StepParseJSON      StepType = "parse_json"
	StepParseYAML      StepType = "parse_yaml"
	StepValidateSchema StepType = "validate_schema"
	StepCSVProcess     StepType = "csv_process"

	StepCommand          StepType = "command"
	StepHTTP             StepType = "http"
	StepPrint            StepType = "print"
	StepEnvVars          StepType = "env_vars"
	StepS3Upload         StepType = "s3_upload"
	StepRedisSet         StepType = "redis_set"
	StepRedisGet         StepType = "redis_get"
	StepSQLQuery         StepType = "sql_query"
	StepWebsocketConnect StepType = "websocket_connect"
)

// Mission is an immutable DAG of steps.
type Mission struct {
	Version     string  `json:"version" yaml:"version"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step  `json:"steps" yaml:"steps"`
	Config      *Config `json:"config,omitempty" yaml:"config,omitempty"`
}

// SemVer parses the mission's version as a semantic version. Any non-empty
// string is a valid mission version, so ok is false for free-form values
// such as "latest" rather than an error.
func (m *Mission) SemVer() (v *semver.Version, ok bool) {
	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Config overrides the session's execution configuration for one mission.
// Nil fields inherit the session value.
type Config struct {
	MaxParallelSteps *int  `json:"max_parallel_steps,omitempty" yaml:"max_parallel_steps,omitempty"`
	TimeoutSeconds   *int  `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	FailFast         *bool `json:"fail_fast,omitempty" yaml:"fail_fast,omitempty"`
	AuditEnabled     *bool `json:"audit_enabled,omitempty" yaml:"audit_enabled,omitempty"`
}

// Step is one schedulable unit of work.
type Step struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name,omitempty" yaml:"name,omitempty"`
	Type            StepType       `json:"step_type" yaml:"step_type"`
	DependsOn       []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	TimeoutSeconds  *int           `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	ContinueOnError *bool          `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
	Condition       string         `json:"condition,omitempty" yaml:"condition,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Timeout returns the step's wall-clock limit, or fallback when the step
// does not declare one.
func (s *Step) Timeout(fallback time.Duration) time.Duration {
	if s.TimeoutSeconds != nil && *s.TimeoutSeconds > 0 {
		return time.Duration(*s.TimeoutSeconds) * time.Second
	}
	return fallback
}

// Tolerated reports whether a failure of this step lets the mission go on.
// An explicit continue_on_error always wins over the mission default.
func (s *Step) Tolerated(missionDefault bool) bool {
	if s.ContinueOnError != nil {
		return *s.ContinueOnError
	}
	return missionDefault
}

// DisplayName returns Name, or the ID when the step has no name.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// ContinueOnErrorDefault is the continue_on_error value for steps that do not
// set it. It is true only when the mission disables fail_fast.
func (c *Config) ContinueOnErrorDefault() bool {
	if c == nil || c.FailFast == nil {
		return false
	}
	return !*c.FailFast
}

// Int returns a pointer to v. It keeps literal missions in tests and
// builders short.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
