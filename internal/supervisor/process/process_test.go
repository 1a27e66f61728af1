//go:build !windows

package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	t.Cleanup(func() { _ = logger.Sync() })
	return logger.Sugar()
}

func TestLaunchAssignsPID(t *testing.T) {
	p, err := Launch(NameDatabase, "sleep", []string{"30"}, "", testLogger(t))
	require.NoError(t, err)
	defer p.Terminate()

	assert.Greater(t, p.PID(), 0)
	assert.True(t, p.Alive())
	assert.Equal(t, NameDatabase, p.Name())
}

func TestLaunchMissingExecutable(t *testing.T) {
	_, err := Launch(NameAPI, "/nonexistent/stackpilot-api", nil, "", testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawn api")
}

func TestTerminateKillsProcess(t *testing.T) {
	p, err := Launch(NameDatabase, "sleep", []string{"30"}, "", testLogger(t))
	require.NoError(t, err)

	p.Terminate()

	assert.False(t, p.Alive())

	select {
	case info := <-p.Exited():
		assert.Equal(t, "killed", info.Signal)
	case <-time.After(5 * time.Second):
		t.Fatal("process was not reaped after Terminate")
	}
}

func TestTerminateIsIdempotent(t *testing.T) {
	p, err := Launch(NameAPI, "sleep", []string{"30"}, "", testLogger(t))
	require.NoError(t, err)

	p.Terminate()
	// Second and third calls are no-ops, no panic, no error.
	p.Terminate()
	p.Terminate()

	assert.False(t, p.Alive())
}

func TestTerminateAfterNaturalExit(t *testing.T) {
	p, err := Launch(NameAPI, "true", nil, "", testLogger(t))
	require.NoError(t, err)

	select {
	case info := <-p.Exited():
		assert.Equal(t, 0, info.Code)
		assert.NoError(t, info.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	assert.False(t, p.Alive())
	p.Terminate() // no-op on a dead handle
}

func TestUnexpectedExitIsObservable(t *testing.T) {
	p, err := Launch(NameDatabase, "false", nil, "", testLogger(t))
	require.NoError(t, err)

	select {
	case info := <-p.Exited():
		assert.Equal(t, 1, info.Code)
		assert.Error(t, info.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("exit was not observed")
	}
	assert.False(t, p.Alive())
}

func TestTerminateKillsProcessTree(t *testing.T) {
	// The shell spawns a grandchild; group kill plus the descendant walk
	// must take both down.
	p, err := Launch(NameDatabase, "sh", []string{"-c", "sleep 30 & wait"}, "", testLogger(t))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond) // let the grandchild spawn
	p.Terminate()

	select {
	case <-p.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("shell was not reaped")
	}
	assert.False(t, p.Alive())
}
