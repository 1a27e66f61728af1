package ui

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewHostInfo(t *testing.T) {
	info := NewHostInfo("v1.2.3", "127.0.0.1", 3306)

	assert.Equal(t, runtime.GOOS, info.Platform)
	assert.Equal(t, "v1.2.3", info.AppVersion)
	assert.Equal(t, "127.0.0.1", info.DatabaseHost)
	assert.Equal(t, 3306, info.DatabasePort)
}

func TestConsoleShowMainReturnsOnClose(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	c := NewConsole(logger.Sugar())

	done := make(chan error, 1)
	go func() {
		done <- c.ShowMain(context.Background(), HostInfo{})
	}()

	time.Sleep(50 * time.Millisecond)
	c.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ShowMain did not return after Close")
	}
}

func TestConsoleShowMainReturnsOnContextCancel(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	c := NewConsole(logger.Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.ShowMain(ctx, HostInfo{})
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ShowMain did not return after cancel")
	}
}

func TestConsoleCloseIsIdempotent(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	c := NewConsole(logger.Sugar())

	c.Close()
	c.Close()
}
