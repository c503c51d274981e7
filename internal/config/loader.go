package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BURSTMISSION_MAX_PARALLEL_STEPS.
const EnvPrefix = "BURSTMISSION"

// Load reads the runtime configuration. Defaults apply first, then the file
// at path (if any; format chosen by extension), then environment overrides.
// The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("mission_timeout", d.MissionTimeout)
	v.SetDefault("max_parallel_steps", d.MaxParallelSteps)
	v.SetDefault("audit_enabled", d.AuditEnabled)
	v.SetDefault("agent_id", d.AgentID)
	v.SetDefault("max_tool_calls", d.MaxToolCalls)
	v.SetDefault("tool_calls_per_second", d.ToolCallsPerSecond)
}
