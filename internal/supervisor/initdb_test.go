//go:build !windows

package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stackpilot-go/internal/config"
	"stackpilot-go/internal/eventlog"
)

func newInitFixture(t *testing.T) (*config.DatabaseConfig, *logBuffer, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.DatabaseConfig{
		Command:     "mysqld",
		DataDir:     filepath.Join(dir, "data"),
		MarkerPath:  filepath.Join(dir, "data", "mysql"),
		InitCommand: "sh",
	}
	return cfg, &logBuffer{}, dir
}

func TestInitializeRunsCommandOnFirstRun(t *testing.T) {
	cfg, buf, dir := newInitFixture(t)
	out := filepath.Join(dir, "ran")
	cfg.InitArgs = []string{"-c", "touch " + out}

	init := newDBInitializer(cfg, eventlog.NewWithSink(buf), zap.NewNop().Sugar())
	require.NoError(t, init.Initialize(context.Background()))

	_, err := os.Stat(out)
	assert.NoError(t, err, "setup command should have run")
	assert.DirExists(t, cfg.DataDir)
	assert.Contains(t, buf.String(), "database initialization complete")
}

func TestInitializeSkipsWhenMarkerExists(t *testing.T) {
	cfg, buf, dir := newInitFixture(t)
	require.NoError(t, os.MkdirAll(cfg.MarkerPath, 0o755))
	out := filepath.Join(dir, "ran")
	cfg.InitArgs = []string{"-c", "touch " + out}

	init := newDBInitializer(cfg, eventlog.NewWithSink(buf), zap.NewNop().Sugar())
	require.NoError(t, init.Initialize(context.Background()))

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "setup command must not run when the marker exists")
	assert.Empty(t, buf.String())
}

func TestInitializeTimeoutBoundsCommand(t *testing.T) {
	cfg, buf, _ := newInitFixture(t)
	cfg.InitArgs = []string{"-c", "sleep 5"}
	cfg.InitTimeout = 100 * time.Millisecond

	init := newDBInitializer(cfg, eventlog.NewWithSink(buf), zap.NewNop().Sugar())

	start := time.Now()
	err := init.Initialize(context.Background())

	require.ErrorIs(t, err, ErrInitialization)
	assert.Less(t, time.Since(start), 3*time.Second, "a hung init command must be cut off by init_timeout")
}

func TestInitializeCommandFailure(t *testing.T) {
	cfg, buf, _ := newInitFixture(t)
	cfg.InitArgs = []string{"-c", "exit 2"}

	init := newDBInitializer(cfg, eventlog.NewWithSink(buf), zap.NewNop().Sugar())
	err := init.Initialize(context.Background())

	require.ErrorIs(t, err, ErrInitialization)
}
