package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vk/burstmission/internal/audit"
	"github.com/vk/burstmission/internal/config"
	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/executor"
	"github.com/vk/burstmission/internal/registry"
	"github.com/vk/burstmission/internal/session"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	session    *session.Session
	executor   *executor.Executor
	telemetry  *telemetry
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, registry, and
// audit log. With no modules given, the core modules are registered.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	runtimeCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.Workers > 0 {
		runtimeCfg.MaxParallelSteps = cfg.Workers
	}
	if cfg.Timeout > 0 {
		runtimeCfg.MissionTimeout = cfg.Timeout
	}
	if cfg.NoAudit {
		runtimeCfg.AuditEnabled = false
	}
	if err := runtimeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid runtime configuration: %w", err)
	}
	logger.Debug("Runtime configuration loaded.", "config", *runtimeCfg)

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules(cfg, outW)
	}
	reg.RegisterModules(modules...)
	logger.Debug("All Go modules registered.", "modules", len(modules), "tools", reg.Len())

	a := &App{ctx: ctx, outW: outW, logger: logger, config: cfg}

	auditLog := audit.New()
	var sink *audit.SQLSink
	if cfg.AuditDB != "" {
		sink, err = a.openAuditStore(ctx, auditLog)
		if err != nil {
			return nil, err
		}
	}

	a.session = session.New(*runtimeCfg, session.WithRegistry(reg), session.WithAuditLog(auditLog))
	if sink != nil {
		a.session.AddSink(sink)
	}
	for _, m := range modules {
		if c, ok := m.(io.Closer); ok {
			a.session.AddCloser(c)
		}
	}

	var execOpts []executor.Option
	if cfg.OTLPEndpoint != "" {
		a.telemetry, err = newTelemetry(ctx, cfg.OTLPEndpoint, cfg.OTLPInsecure)
		if err != nil {
			_ = a.session.Close(ctx)
			return nil, err
		}
		execOpts = append(execOpts,
			executor.WithTracerProvider(a.telemetry.tracerProvider),
			executor.WithMeterProvider(a.telemetry.meterProvider),
		)
		logger.Debug("OTLP telemetry configured.", "endpoint", cfg.OTLPEndpoint)
	}

	a.executor, err = executor.New(a.session, execOpts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// openAuditStore opens the SQL sink and restores the chain it holds.
func (a *App) openAuditStore(ctx context.Context, l *audit.Log) (*audit.SQLSink, error) {
	sink, err := audit.OpenSQLSink(ctx, a.config.AuditDBDriver, a.config.AuditDB)
	if err != nil {
		return nil, err
	}
	entries, err := sink.Load(ctx)
	if err == nil {
		err = l.Restore(entries)
	}
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("failed to restore audit log from %s: %w", a.config.AuditDB, err)
	}
	a.logger.Debug("Audit log restored.", "entries", len(entries), "chain_hash", l.ChainHash())
	return sink, nil
}

// Session returns the application's session. This is primarily for testing.
func (a *App) Session() *session.Session {
	return a.session
}

// Close stops the health check server, flushes telemetry, and releases the
// session's resources.
func (a *App) Close() error {
	var errs []error
	if err := a.closeHealthCheckServer(); err != nil {
		errs = append(errs, err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 10*time.Second)
	defer cancel()
	if err := a.telemetry.shutdown(ctx); err != nil {
		a.logger.Error("Telemetry shutdown failed", "error", err)
		errs = append(errs, err)
	}
	if a.session != nil {
		if err := a.session.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to shut down cleanly: %w", errors.Join(errs...))
	}
	return nil
}
