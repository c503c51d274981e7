package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/burstmission/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("burstmission", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
BurstMission - Runs declarative missions as dependency graphs of tool calls,
recording every action in a tamper-evident audit trail.

Usage:
  burstmission [options] MISSION_PATH

Arguments:
  MISSION_PATH
    Path to a mission file (.yaml, .yml, .json, .hcl) or a directory of them.

Options:
`)
		flagSet.PrintDefaults()
	}

	missionFlag := flagSet.String("mission", "", "Path to the mission file or directory.")
	mFlag := flagSet.String("m", "", "Path to the mission file or directory (shorthand).")
	configFlag := flagSet.String("config", "", "Path to a runtime config file (yaml, json or toml).")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 0, "Maximum steps run in parallel. 0 keeps the configured value.")
	timeoutFlag := flagSet.Duration("timeout", 0, "Default per-step timeout for steps without timeout_seconds, e.g. 90s. 0 keeps the configured value.")
	noAuditFlag := flagSet.Bool("no-audit", false, "Disable audit logging of mission and step events.")
	auditDBFlag := flagSet.String("audit-db", "", "Persist the audit trail to this database (file path or DSN).")
	auditDriverFlag := flagSet.String("audit-db-driver", "sqlite", "Audit database driver. Options: 'sqlite' or 'postgres'.")
	auditExportFlag := flagSet.String("audit-export", "", "Write the audit trail to this file after the run (.json, .yaml or .csv).")
	otlpEndpointFlag := flagSet.String("otlp-endpoint", "", "OTLP gRPC endpoint for traces and metrics. Empty disables telemetry.")
	otlpInsecureFlag := flagSet.Bool("otlp-insecure", false, "Connect to the OTLP endpoint without TLS.")
	workdirFlag := flagSet.String("workdir", "", "Root directory for file tools. Relative paths resolve against it.")
	redisFlag := flagSet.String("redis-addr", "", "Redis URL used by the redis_set and redis_get tools.")
	sqlDriverFlag := flagSet.String("sql-driver", "", "Driver for the sql_query tool. Options: 'sqlite' or 'postgres'.")
	sqlDSNFlag := flagSet.String("sql-dsn", "", "Data source name for the sql_query tool.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *missionFlag != "" {
		path = *missionFlag
	} else if *mFlag != "" {
		path = *mFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Mission path determined.", "path", path)

	if path == "" {
		slog.Debug("No mission path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "warning", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	sqlDriver := strings.ToLower(*sqlDriverFlag)
	switch sqlDriver {
	case "", "sqlite", "postgres":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid sql-driver: must be 'sqlite' or 'postgres'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		MissionPath:     path,
		ConfigPath:      *configFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
		Workers:         *workersFlag,
		Timeout:         *timeoutFlag,
		NoAudit:         *noAuditFlag,
		AuditDB:         *auditDBFlag,
		AuditDBDriver:   strings.ToLower(*auditDriverFlag),
		AuditExport:     *auditExportFlag,
		OTLPEndpoint:    *otlpEndpointFlag,
		OTLPInsecure:    *otlpInsecureFlag,
		WorkDir:         *workdirFlag,
		RedisURL:        *redisFlag,
		SQLDriver:       sqlDriver,
		SQLDSN:          *sqlDSNFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
