package state

import (
	"time"
)

// State represents the current phase of the startup sequence.
type State string

const (
	// StateInitializing is the initial state at application start.
	StateInitializing State = "initializing"

	// StateAuthCheck runs the non-interactive logged-in check.
	StateAuthCheck State = "auth_check"

	// StateAuthInteractive runs the CLI login flow in a visible terminal.
	StateAuthInteractive State = "auth_interactive"

	// StateDatabaseInit performs first-run database initialization
	// (skipped internally when the marker path exists).
	StateDatabaseInit State = "database_init"

	// StateDatabaseStarting spawns the database server and probes its port.
	StateDatabaseStarting State = "database_starting"

	// StateDatabaseReady means the database accepted a connection.
	StateDatabaseReady State = "database_ready"

	// StateAPIStarting spawns the API server.
	StateAPIStarting State = "api_starting"

	// StateReady means the whole stack is up and the UI may be shown.
	StateReady State = "ready"

	// StateFailed is the terminal failure state; teardown follows.
	StateFailed State = "failed"

	// StateShuttingDown is the terminal clean-shutdown state.
	StateShuttingDown State = "shutting_down"
)

// Event represents events that can trigger state transitions.
type Event string

const (
	// EventStart triggers the startup sequence.
	EventStart Event = "start"

	// EventAuthOK indicates the non-interactive check reported logged-in.
	EventAuthOK Event = "auth_ok"

	// EventAuthRequired indicates the check reported not logged in.
	EventAuthRequired Event = "auth_required"

	// EventAuthConfirmed indicates interactive login was confirmed by a
	// follow-up check.
	EventAuthConfirmed Event = "auth_confirmed"

	// EventAuthFailed indicates the follow-up check still reported not
	// logged in.
	EventAuthFailed Event = "auth_failed"

	// EventInitDone indicates first-run initialization completed (or was
	// skipped via the marker path).
	EventInitDone Event = "init_done"

	// EventDatabaseReady indicates the readiness probe succeeded.
	EventDatabaseReady Event = "database_ready"

	// EventAPILaunch requests the API server spawn.
	EventAPILaunch Event = "api_launch"

	// EventAPIStarted indicates the API server spawned successfully.
	EventAPIStarted Event = "api_started"

	// EventFatalError indicates an unrecoverable error in any step.
	EventFatalError Event = "fatal_error"

	// EventTimeout indicates a state or probe deadline elapsed.
	EventTimeout Event = "timeout"

	// EventShutdown triggers clean shutdown.
	EventShutdown Event = "shutdown"
)

// Info provides metadata about each state.
type Info struct {
	Name        State
	Description string
	IsError     bool
	UserMessage string
	Timeout     *time.Duration
}

// GetInfo returns metadata for a given state. Fixed backstops exist only for
// states with no configurable deadline of their own; the auth, init, and
// readiness states get theirs derived from config via Machine.SetStateTimeout
// so a fixed value can never undercut a configured deadline.
func GetInfo(state State) Info {
	timeout5s := 5 * time.Second
	timeout30s := 30 * time.Second

	stateInfoMap := map[State]Info{
		StateInitializing: {
			Name:        StateInitializing,
			Description: "Initializing supervisor",
			UserMessage: "Starting up...",
			Timeout:     &timeout5s,
		},
		StateAuthCheck: {
			Name:        StateAuthCheck,
			Description: "Checking account authentication",
			UserMessage: "Checking sign-in status...",
			// Backstop derived from auth.check_timeout.
		},
		StateAuthInteractive: {
			Name:        StateAuthInteractive,
			Description: "Waiting for interactive login in terminal",
			UserMessage: "Complete the sign-in in the terminal window...",
			// No timeout: the wait is bounded by the user, the gate
			// bounds its own confirmation poll.
		},
		StateDatabaseInit: {
			Name:        StateDatabaseInit,
			Description: "Initializing database storage",
			UserMessage: "Preparing database...",
			// Backstop derived from database.init_timeout.
		},
		StateDatabaseStarting: {
			Name:        StateDatabaseStarting,
			Description: "Starting database server",
			UserMessage: "Starting database...",
			// Backstop derived from readiness.timeout.
		},
		StateDatabaseReady: {
			Name:        StateDatabaseReady,
			Description: "Database accepting connections",
			UserMessage: "Database ready",
		},
		StateAPIStarting: {
			Name:        StateAPIStarting,
			Description: "Starting API server",
			UserMessage: "Starting API server...",
			Timeout:     &timeout30s,
		},
		StateReady: {
			Name:        StateReady,
			Description: "Stack fully up",
			UserMessage: "Ready",
		},
		StateFailed: {
			Name:        StateFailed,
			Description: "Unrecoverable startup failure",
			UserMessage: "Startup failed - check logs",
			IsError:     true,
		},
		StateShuttingDown: {
			Name:        StateShuttingDown,
			Description: "Shutting down",
			UserMessage: "Shutting down...",
		},
	}

	if info, exists := stateInfoMap[state]; exists {
		return info
	}

	return Info{
		Name:        state,
		Description: string(state),
		UserMessage: string(state),
	}
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	validTransitions := map[State][]State{
		StateInitializing: {
			StateAuthCheck,
			StateFailed,
			StateShuttingDown,
		},
		StateAuthCheck: {
			StateDatabaseInit,
			StateAuthInteractive,
			StateFailed,
			StateShuttingDown,
		},
		StateAuthInteractive: {
			StateDatabaseInit,
			StateFailed,
			StateShuttingDown,
		},
		StateDatabaseInit: {
			StateDatabaseStarting,
			StateFailed,
			StateShuttingDown,
		},
		StateDatabaseStarting: {
			StateDatabaseReady,
			StateFailed,
			StateShuttingDown,
		},
		StateDatabaseReady: {
			StateAPIStarting,
			StateFailed,
			StateShuttingDown,
		},
		StateAPIStarting: {
			StateReady,
			StateFailed,
			StateShuttingDown,
		},
		StateReady: {
			StateFailed,
			StateShuttingDown,
		},
		StateFailed: {
			StateShuttingDown,
		},
		StateShuttingDown: {
			// Terminal state - no transitions out
		},
	}

	if allowedStates, exists := validTransitions[from]; exists {
		for _, allowedState := range allowedStates {
			if allowedState == to {
				return true
			}
		}
	}

	return false
}
