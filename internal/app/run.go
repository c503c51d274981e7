package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/burstmission/internal/audit"
	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/loader"
	"github.com/vk/burstmission/internal/mission"
)

// Run loads every mission at the configured path and executes them in path
// order. Each mission's steps are summarized on the output writer. The
// returned error is non-nil when any mission did not succeed.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()

	missions, err := loader.LoadPath(ctx, a.config.MissionPath)
	if err != nil {
		return fmt.Errorf("failed to load missions: %w", err)
	}
	a.logger.Info("Missions loaded successfully.", "count", len(missions))

	var failures []error
	for _, m := range missions {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		res, err := a.executor.ExecuteMission(ctx, m)
		a.printSummary(m, res)
		if err != nil {
			failures = append(failures, fmt.Errorf("mission %q: %w", m.Name, err))
			continue
		}
		if !res.Succeeded() {
			failures = append(failures, fmt.Errorf("mission %q finished with status %s", m.Name, res.Status))
		}
	}

	if err := a.session.Audit().Verify(); err != nil {
		failures = append(failures, fmt.Errorf("audit chain verification failed: %w", err))
	} else {
		a.logger.Debug("Audit chain verified.", "entries", a.session.Audit().Len(), "chain_hash", a.session.Audit().ChainHash())
	}

	if a.config.AuditExport != "" {
		if err := a.exportAudit(); err != nil {
			failures = append(failures, err)
		}
	}

	a.logger.Debug("App.Run method finished.")
	return errors.Join(failures...)
}

// printSummary writes one line per attempted step and a closing line for
// the mission.
func (a *App) printSummary(m *mission.Mission, res *mission.ExecutionResult) {
	if res == nil {
		fmt.Fprintf(a.outW, "mission %s: rejected\n", m.Name)
		return
	}
	fmt.Fprintf(a.outW, "mission %s (%s): %s in %s\n", res.MissionName, res.MissionID, res.Status, res.Duration.Round(time.Millisecond))
	for _, sr := range res.StepResults {
		line := fmt.Sprintf("  %s %-20s %-16s %s", statusIcon(sr), sr.StepID, sr.Type, sr.Duration.Round(time.Millisecond))
		if sr.Error != "" {
			line += "  " + sr.Error
			if sr.Tolerated {
				line += " (tolerated)"
			}
		}
		fmt.Fprintln(a.outW, line)
	}
}

func statusIcon(sr mission.StepResult) string {
	switch sr.Status {
	case mission.StepSucceeded:
		return "✅"
	case mission.StepSkipped:
		return "⏭️"
	default:
		return "❌"
	}
}

// exportAudit writes the audit trail to the configured file, choosing the
// format from its extension.
func (a *App) exportAudit() error {
	path := a.config.AuditExport
	format, err := exportFormat(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audit export %s: %w", path, err)
	}
	if err := a.session.Audit().Export(f, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to export audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write audit export %s: %w", path, err)
	}

	a.logger.Info("Audit trail exported.", "path", path, "format", format, "entries", a.session.Audit().Len())
	return nil
}

func exportFormat(path string) (audit.Format, error) {
	return audit.ParseFormat(filepath.Ext(path))
}
