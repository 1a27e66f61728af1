// Package auth gates startup on the vendor CLI's account state. The gate can
// only observe state before and after the interactive login flow; the flow
// itself happens in a terminal session the user drives.
package auth

import (
	"context"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"stackpilot-go/internal/config"
)

// Gate checks and, when necessary, interactively re-establishes the
// logged-in state of the external CLI tool.
type Gate struct {
	command    string
	statusArgs []string
	loginArgs  []string

	inlineLogin     bool
	checkTimeout    time.Duration
	confirmTimeout  time.Duration
	confirmInterval time.Duration

	logger *zap.SugaredLogger
}

// NewGate creates a Gate from the auth configuration.
func NewGate(cfg *config.AuthConfig, logger *zap.SugaredLogger) *Gate {
	return &Gate{
		command:         cfg.Command,
		statusArgs:      cfg.StatusArgs,
		loginArgs:       cfg.LoginArgs,
		inlineLogin:     cfg.InlineLogin,
		checkTimeout:    cfg.CheckTimeout,
		confirmTimeout:  cfg.ConfirmTimeout,
		confirmInterval: cfg.ConfirmInterval,
		logger:          logger,
	}
}

// CheckLoggedIn runs the non-interactive status command with a bounded
// timeout. Any non-zero exit, missing binary, or timeout means "not logged
// in"; nothing escapes this boundary as an error.
func (g *Gate) CheckLoggedIn(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, g.checkTimeout)
	defer cancel()

	cmd := exec.CommandContext(checkCtx, g.command, g.statusArgs...)
	if err := cmd.Run(); err != nil {
		g.logger.Debugw("Auth status check reported not logged in",
			"command", g.command, "error", err)
		return false
	}

	g.logger.Debugw("Auth status check reported logged in", "command", g.command)
	return true
}

// InteractiveLogin launches the CLI's login flow in a separate visible
// terminal session and blocks until that session closes, then confirms the
// outcome by polling CheckLoggedIn. The session's own exit status is never
// trusted as a success signal: it can report a non-fatal error after a
// completed login, or exit zero without completing one.
func (g *Gate) InteractiveLogin(ctx context.Context) bool {
	g.runLoginSession(ctx)
	return g.confirmLogin(ctx)
}

// runLoginSession runs the login command, preferring a visible terminal
// window and falling back to the current stdio when we are already attached
// to a terminal (or no emulator could be found).
func (g *Gate) runLoginSession(ctx context.Context) {
	if !g.inlineLogin {
		if bin, args, err := terminalCommand(g.command, g.loginArgs); err == nil {
			g.logger.Infow("Launching login flow in terminal", "terminal", bin)
			cmd := exec.CommandContext(ctx, bin, args...)
			if err := cmd.Run(); err != nil {
				g.logger.Warnw("Login terminal session ended with error", "error", err)
			}
			return
		}
		g.logger.Warn("No terminal emulator found, falling back to inline login")
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		g.logger.Warn("Stdin is not a terminal; inline login may not be able to prompt")
	}

	g.logger.Infow("Running login flow inline", "command", g.command)
	cmd := exec.CommandContext(ctx, g.command, g.loginArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		g.logger.Warnw("Inline login session ended with error", "error", err)
	}
}

// confirmLogin polls the status check until it reports logged in or the
// confirmation deadline elapses. Polling instead of a single delayed probe
// closes the race between the login window closing and the CLI persisting
// its credentials.
func (g *Gate) confirmLogin(ctx context.Context) bool {
	confirmCtx, cancel := context.WithTimeout(ctx, g.confirmTimeout)
	defer cancel()

	if g.CheckLoggedIn(confirmCtx) {
		return true
	}

	ticker := time.NewTicker(g.confirmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-confirmCtx.Done():
			g.logger.Warnw("Login not confirmed within deadline", "timeout", g.confirmTimeout)
			return false
		case <-ticker.C:
			if g.CheckLoggedIn(confirmCtx) {
				g.logger.Info("Login confirmed")
				return true
			}
		}
	}
}
