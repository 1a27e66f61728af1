package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"stackpilot-go/internal/config"
	"stackpilot-go/internal/eventlog"
)

// dbInitializer creates the database data directory on first run. The marker
// path decides whether any work happens at all: if it exists the data
// directory is assumed valid and the setup command is never executed.
type dbInitializer struct {
	cfg    *config.DatabaseConfig
	events *eventlog.Log
	logger *zap.SugaredLogger
}

func newDBInitializer(cfg *config.DatabaseConfig, events *eventlog.Log, logger *zap.SugaredLogger) *dbInitializer {
	return &dbInitializer{cfg: cfg, events: events, logger: logger}
}

func (i *dbInitializer) Initialize(ctx context.Context) error {
	if _, err := os.Stat(i.cfg.MarkerPath); err == nil {
		i.logger.Debugw("Database already initialized", "marker", i.cfg.MarkerPath)
		return nil
	}

	i.events.Eventf("initializing database data directory at %s", i.cfg.DataDir)
	i.logger.Infow("Running first-run database initialization",
		"command", i.cfg.InitCommand,
		"args", i.cfg.InitArgs)

	if err := os.MkdirAll(i.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("%w: create data dir: %w", ErrInitialization, err)
	}

	if i.cfg.InitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.InitTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, i.cfg.InitCommand, i.cfg.InitArgs...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	if err != nil {
		i.logger.Errorw("Database initialization command failed",
			"error", err,
			"output", string(out))
		return fmt.Errorf("%w: %s: %w", ErrInitialization, i.cfg.InitCommand, err)
	}

	i.events.Eventf("database initialization complete")
	return nil
}
