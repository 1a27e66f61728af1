// Package ui is the boundary to the user interface layer. The supervisor
// only ever hands it a read-only HostInfo capability and tells it to show or
// close; there is no channel back into the orchestration core.
package ui

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// HostInfo is the one-way, read-only capability object given to the UI at
// load time.
type HostInfo struct {
	Platform     string
	AppVersion   string
	DatabaseHost string
	DatabasePort int
}

// NewHostInfo builds the HostInfo bridge for the current host.
func NewHostInfo(appVersion, databaseHost string, databasePort int) HostInfo {
	return HostInfo{
		Platform:     runtime.GOOS,
		AppVersion:   appVersion,
		DatabaseHost: databaseHost,
		DatabasePort: databasePort,
	}
}

// UI is what the orchestration core knows about the interface layer.
type UI interface {
	// ShowMain displays the main window and blocks until it is closed or
	// the context is cancelled.
	ShowMain(ctx context.Context, info HostInfo) error

	// Close tears the interface down; safe to call at any time.
	Close()
}

// Console is a headless UI used when no graphical frontend is wired in. It
// logs the host info and blocks until shutdown.
type Console struct {
	logger    *zap.SugaredLogger
	closed    chan struct{}
	closeOnce sync.Once
}

// NewConsole creates the headless UI.
func NewConsole(logger *zap.SugaredLogger) *Console {
	return &Console{
		logger: logger,
		closed: make(chan struct{}),
	}
}

// ShowMain implements UI.
func (c *Console) ShowMain(ctx context.Context, info HostInfo) error {
	c.logger.Infow("Stack ready",
		"platform", info.Platform,
		"version", info.AppVersion,
		"database", info.DatabaseHost,
		"port", info.DatabasePort)
	c.logger.Info("Running headless; press Ctrl-C to quit")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return nil
	}
}

// Close implements UI.
func (c *Console) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}
