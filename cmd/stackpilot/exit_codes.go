package main

import (
	"errors"
	"fmt"

	"stackpilot-go/internal/supervisor"
	"stackpilot-go/internal/supervisor/probe"
)

// errNotLoggedIn is returned by the auth subcommands so the shared exit-code
// mapping treats them like an in-session authentication failure.
var errNotLoggedIn = fmt.Errorf("not logged in: %w", supervisor.ErrAuthentication)

// Exit codes for stackpilot to enable specific error handling by launchers
// and support scripts

const (
	// ExitCodeSuccess indicates a clean quit after the stack was ready
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates a generic error (default)
	ExitCodeGeneralError = 1

	// ExitCodeAuthError indicates authentication was not confirmed
	ExitCodeAuthError = 2

	// ExitCodeSpawnError indicates a managed process could not be spawned
	ExitCodeSpawnError = 3

	// ExitCodeInitError indicates first-run database initialization failed
	ExitCodeInitError = 4

	// ExitCodeReadinessTimeout indicates the database never accepted connections
	ExitCodeReadinessTimeout = 5

	// ExitCodeConfigError indicates configuration loading or validation failed
	ExitCodeConfigError = 6
)

// exitCodeForError maps a session error to an exit code.
func exitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, supervisor.ErrAuthentication):
		return ExitCodeAuthError
	case errors.Is(err, supervisor.ErrSpawn):
		return ExitCodeSpawnError
	case errors.Is(err, supervisor.ErrInitialization):
		return ExitCodeInitError
	case errors.Is(err, probe.ErrReadinessTimeout):
		return ExitCodeReadinessTimeout
	default:
		return ExitCodeGeneralError
	}
}

// exitCodeDescription returns a human-readable description of the exit code
func exitCodeDescription(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "Success"
	case ExitCodeGeneralError:
		return "General error"
	case ExitCodeAuthError:
		return "Authentication not confirmed"
	case ExitCodeSpawnError:
		return "Failed to spawn a managed process"
	case ExitCodeInitError:
		return "Database initialization failed"
	case ExitCodeReadinessTimeout:
		return "Database readiness timeout"
	case ExitCodeConfigError:
		return "Configuration error"
	default:
		return "Unknown error"
	}
}
