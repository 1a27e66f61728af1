package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stackpilot-go/internal/supervisor/auth"
)

var authTimeout time.Duration

// newAuthCommand returns the auth command group for the root command.
func newAuthCommand() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication management commands",
		Long:  "Commands for checking and establishing authentication with the platform CLI",
	}

	authStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check whether the platform CLI is logged in",
		Long: `Run the platform CLI's non-interactive status check and report the result.

Exit code 0 means logged in; ` + fmt.Sprint(ExitCodeAuthError) + ` means not logged in.

Examples:
  stackpilot auth status
  stackpilot auth status --config=/path/to/config.json`,
		RunE: runAuthStatus,
	}

	authLoginCmd := &cobra.Command{
		Use:   "login",
		Short: "Run the interactive login flow",
		Long: `Open the platform CLI's interactive login, then poll the status check
until the login is confirmed or the timeout elapses.

Examples:
  stackpilot auth login
  stackpilot auth login --timeout=5m`,
		RunE: runAuthLogin,
	}
	authLoginCmd.Flags().DurationVar(&authTimeout, "timeout", 5*time.Minute, "Overall login timeout")

	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLoginCmd)
	return authCmd
}

func newAuthGate() (*auth.Gate, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cleanup := func() {
		_ = logger.Sync()
	}
	return auth.NewGate(&cfg.Auth, logger.Sugar()), cleanup, nil
}

func runAuthStatus(_ *cobra.Command, _ []string) error {
	gate, cleanup, err := newAuthGate()
	if err != nil {
		return err
	}
	defer cleanup()

	if gate.CheckLoggedIn(context.Background()) {
		fmt.Println("Logged in")
		return nil
	}
	fmt.Println("Not logged in")
	return errNotLoggedIn
}

func runAuthLogin(_ *cobra.Command, _ []string) error {
	gate, cleanup, err := newAuthGate()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()

	if gate.CheckLoggedIn(ctx) {
		fmt.Println("Already logged in")
		return nil
	}
	if gate.InteractiveLogin(ctx) {
		fmt.Println("Login confirmed")
		return nil
	}
	return errNotLoggedIn
}
