package supervisor

import "errors"

// Startup error taxonomy. Every fatal startup error wraps exactly one of
// these (or probe.ErrReadinessTimeout), so callers can map failures to exit
// codes without string matching.
var (
	// ErrSpawn means an executable was missing or the OS refused the spawn.
	ErrSpawn = errors.New("spawn failed")

	// ErrInitialization means the first-run database setup command failed.
	ErrInitialization = errors.New("database initialization failed")

	// ErrAuthentication means interactive login did not result in a
	// confirmed logged-in state.
	ErrAuthentication = errors.New("authentication not confirmed")

	// ErrProcessExited means a managed process died while the session
	// was running.
	ErrProcessExited = errors.New("managed process exited unexpectedly")
)
