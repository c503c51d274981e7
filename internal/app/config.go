package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/vk/burstmission/internal/audit"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	MissionPath string // mission file or directory
	ConfigPath  string // optional runtime config file

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// Overrides for the runtime config. Zero values keep the loaded setting.
	Workers int
	Timeout time.Duration // per-step fallback timeout
	NoAudit bool

	AuditDB       string
	AuditDBDriver string
	AuditExport   string

	OTLPEndpoint string
	OTLPInsecure bool

	// Tool module settings.
	WorkDir   string
	RedisURL  string
	SQLDriver string
	SQLDSN    string
}

// NewConfig validates cfg and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.MissionPath == "" {
		return nil, errors.New("MissionPath is a required configuration field and cannot be empty")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}
	if cfg.AuditDBDriver == "" {
		cfg.AuditDBDriver = audit.DriverSQLite
	}
	if cfg.AuditDBDriver != audit.DriverSQLite && cfg.AuditDBDriver != audit.DriverPostgres {
		return nil, fmt.Errorf("unsupported audit database driver %q", cfg.AuditDBDriver)
	}
	if cfg.SQLDSN != "" && cfg.SQLDriver == "" {
		cfg.SQLDriver = audit.DriverSQLite
	}
	if cfg.AuditExport != "" {
		if _, err := exportFormat(cfg.AuditExport); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}
