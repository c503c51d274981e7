package config

import (
	"errors"
	"fmt"
	"time"
)

// Runtime defaults.
const (
	DefaultMissionTimeout   = 300 * time.Second
	DefaultMaxParallelSteps = 4
	DefaultMaxToolCalls     = 100
	DefaultAgentID          = "burstmission"
)

// Config is the runtime configuration. A mission's own config block overrides
// the matching fields for that mission only.
type Config struct {
	// MissionTimeout is the per-step fallback when neither the step nor the
	// mission sets a timeout.
	MissionTimeout   time.Duration `mapstructure:"mission_timeout"`
	MaxParallelSteps int           `mapstructure:"max_parallel_steps"`
	AuditEnabled     bool          `mapstructure:"audit_enabled"`
	// AgentID is recorded as the agent of every audit entry the executor writes.
	AgentID string `mapstructure:"agent_id"`
	// MaxToolCalls caps tool invocations per mission run. Zero disables the cap.
	MaxToolCalls int `mapstructure:"max_tool_calls"`
	// ToolCallsPerSecond throttles invocations. Zero means unlimited.
	ToolCallsPerSecond float64 `mapstructure:"tool_calls_per_second"`
}

// Default returns the runtime defaults.
func Default() Config {
	return Config{
		MissionTimeout:   DefaultMissionTimeout,
		MaxParallelSteps: DefaultMaxParallelSteps,
		AuditEnabled:     true,
		AgentID:          DefaultAgentID,
		MaxToolCalls:     DefaultMaxToolCalls,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.MissionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("mission_timeout must be positive, got %s", c.MissionTimeout))
	}
	if c.MaxParallelSteps <= 0 {
		errs = append(errs, fmt.Errorf("max_parallel_steps must be positive, got %d", c.MaxParallelSteps))
	}
	if c.MaxToolCalls < 0 {
		errs = append(errs, fmt.Errorf("max_tool_calls must not be negative, got %d", c.MaxToolCalls))
	}
	if c.ToolCallsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("tool_calls_per_second must not be negative, got %g", c.ToolCallsPerSecond))
	}
	if c.AgentID == "" {
		errs = append(errs, errors.New("agent_id must not be empty"))
	}
	return errors.Join(errs...)
}
