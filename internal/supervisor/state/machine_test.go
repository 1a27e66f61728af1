package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMachine(t *testing.T) *Machine {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	t.Cleanup(func() { _ = logger.Sync() })
	return NewMachine(logger.Sugar())
}

func TestDetermineNewState(t *testing.T) {
	tests := []struct {
		name          string
		initialState  State
		event         Event
		expectedState State
	}{
		{
			name:          "start moves to auth check",
			initialState:  StateInitializing,
			event:         EventStart,
			expectedState: StateAuthCheck,
		},
		{
			name:          "already logged in skips interactive login",
			initialState:  StateAuthCheck,
			event:         EventAuthOK,
			expectedState: StateDatabaseInit,
		},
		{
			name:          "not logged in requires interactive login",
			initialState:  StateAuthCheck,
			event:         EventAuthRequired,
			expectedState: StateAuthInteractive,
		},
		{
			name:          "confirmed login proceeds to init",
			initialState:  StateAuthInteractive,
			event:         EventAuthConfirmed,
			expectedState: StateDatabaseInit,
		},
		{
			name:          "unconfirmed login fails the session",
			initialState:  StateAuthInteractive,
			event:         EventAuthFailed,
			expectedState: StateFailed,
		},
		{
			name:          "init done starts the database",
			initialState:  StateDatabaseInit,
			event:         EventInitDone,
			expectedState: StateDatabaseStarting,
		},
		{
			name:          "probe success marks database ready",
			initialState:  StateDatabaseStarting,
			event:         EventDatabaseReady,
			expectedState: StateDatabaseReady,
		},
		{
			name:          "database ready launches API",
			initialState:  StateDatabaseReady,
			event:         EventAPILaunch,
			expectedState: StateAPIStarting,
		},
		{
			name:          "API spawn completes the sequence",
			initialState:  StateAPIStarting,
			event:         EventAPIStarted,
			expectedState: StateReady,
		},
		{
			name:          "probe timeout fails the session",
			initialState:  StateDatabaseStarting,
			event:         EventTimeout,
			expectedState: StateFailed,
		},
		{
			name:          "fatal error during init fails the session",
			initialState:  StateDatabaseInit,
			event:         EventFatalError,
			expectedState: StateFailed,
		},
		{
			name:          "fatal error while ready fails the session",
			initialState:  StateReady,
			event:         EventFatalError,
			expectedState: StateFailed,
		},
		{
			name:          "shutdown from failed",
			initialState:  StateFailed,
			event:         EventShutdown,
			expectedState: StateShuttingDown,
		},
		{
			name:          "shutdown mid-startup",
			initialState:  StateAuthInteractive,
			event:         EventShutdown,
			expectedState: StateShuttingDown,
		},
		{
			name:          "unknown event is ignored",
			initialState:  StateAuthCheck,
			event:         EventAPIStarted,
			expectedState: StateAuthCheck,
		},
		{
			name:          "shutting down is terminal",
			initialState:  StateShuttingDown,
			event:         EventStart,
			expectedState: StateShuttingDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMachine(t)
			m.currentState = tt.initialState

			newState := m.determineNewState(tt.initialState, tt.event)
			assert.Equal(t, tt.expectedState, newState)
		})
	}
}

func TestCanTransition(t *testing.T) {
	// Every state except the terminal one can fail.
	for _, from := range []State{
		StateInitializing, StateAuthCheck, StateAuthInteractive,
		StateDatabaseInit, StateDatabaseStarting, StateDatabaseReady,
		StateAPIStarting, StateReady,
	} {
		assert.True(t, CanTransition(from, StateFailed), "expected %s -> failed", from)
		assert.True(t, CanTransition(from, StateShuttingDown), "expected %s -> shutting_down", from)
	}

	assert.True(t, CanTransition(StateFailed, StateShuttingDown))
	assert.False(t, CanTransition(StateShuttingDown, StateInitializing))
	assert.False(t, CanTransition(StateReady, StateAuthCheck))
	assert.False(t, CanTransition(StateDatabaseStarting, StateAPIStarting))
}

func TestHappyPathSequence(t *testing.T) {
	m := testMachine(t)
	transitions := m.Subscribe()
	m.Start()
	defer m.Shutdown()

	sequence := []Event{
		EventStart,
		EventAuthOK,
		EventInitDone,
		EventDatabaseReady,
		EventAPILaunch,
		EventAPIStarted,
	}
	expected := []State{
		StateAuthCheck,
		StateDatabaseInit,
		StateDatabaseStarting,
		StateDatabaseReady,
		StateAPIStarting,
		StateReady,
	}

	for i, event := range sequence {
		m.SendEvent(event)

		select {
		case tr := <-transitions:
			assert.Equal(t, expected[i], tr.To, "transition %d", i)
			assert.Equal(t, event, tr.Event)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for transition to %s", expected[i])
		}
	}

	assert.Equal(t, StateReady, m.CurrentState())
}

func TestSetErrorIsCarriedOnTransition(t *testing.T) {
	m := testMachine(t)
	transitions := m.Subscribe()
	m.Start()
	defer m.Shutdown()

	m.SendEvent(EventStart)
	<-transitions

	wantErr := assert.AnError
	m.SetError(wantErr)
	m.SendEvent(EventFatalError)

	select {
	case tr := <-transitions:
		assert.Equal(t, StateFailed, tr.To)
		require.ErrorIs(t, tr.Error, wantErr)
		require.ErrorIs(t, m.LastError(), wantErr)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure transition")
	}
}

func TestStateTimeoutOverride(t *testing.T) {
	m := testMachine(t)
	m.SetStateTimeout(StateAuthCheck, 50*time.Millisecond)
	transitions := m.Subscribe()
	m.Start()
	defer m.Shutdown()

	m.SendEvent(EventStart)
	<-transitions // into auth_check

	select {
	case tr := <-transitions:
		assert.Equal(t, StateFailed, tr.To)
		assert.Equal(t, EventTimeout, tr.Event)
		require.Error(t, tr.Error)
		assert.Contains(t, tr.Error.Error(), string(StateAuthCheck))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the overridden backstop to fire")
	}
}

func TestNoFixedBackstopForConfiguredDeadlines(t *testing.T) {
	// These states run steps whose deadlines come from configuration, so a
	// fixed backstop here could fire before the step's own deadline and
	// mask its specific error.
	for _, st := range []State{StateAuthCheck, StateDatabaseInit, StateDatabaseStarting} {
		assert.Nil(t, GetInfo(st).Timeout, "state %s must not carry a fixed backstop", st)
	}

	require.NotNil(t, GetInfo(StateInitializing).Timeout)
	require.NotNil(t, GetInfo(StateAPIStarting).Timeout)
}

func TestShutdownTerminatesLoop(t *testing.T) {
	m := testMachine(t)
	m.Start()

	m.SendEvent(EventShutdown)

	select {
	case <-m.shutdownCh:
	case <-time.After(2 * time.Second):
		t.Fatal("state machine loop did not terminate")
	}
	assert.Equal(t, StateShuttingDown, m.CurrentState())
}
