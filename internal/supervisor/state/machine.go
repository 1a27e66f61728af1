package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Event     Event
	Timestamp time.Time
	Error     error
}

// Machine manages the strictly sequential startup state machine.
type Machine struct {
	mu           sync.RWMutex
	currentState State
	lastError    error
	logger       *zap.SugaredLogger

	eventCh       chan Event
	shutdownCh    chan struct{}
	subscribers   []chan Transition
	subscribersMu sync.RWMutex

	timeoutTimer     *time.Timer
	timeoutOverrides map[State]time.Duration
	timeoutMu        sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewMachine creates a new state machine in StateInitializing.
func NewMachine(logger *zap.SugaredLogger) *Machine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Machine{
		currentState: StateInitializing,
		logger:       logger,
		eventCh:      make(chan Event, 10),
		shutdownCh:   make(chan struct{}),
		subscribers:  make([]chan Transition, 0),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the state machine loop. The caller sends EventStart.
func (m *Machine) Start() {
	m.logger.Infow("State machine starting", "initial_state", m.currentState)
	go m.run()
}

// SendEvent sends an event to the state machine.
func (m *Machine) SendEvent(event Event) {
	select {
	case m.eventCh <- event:
		m.logger.Debugw("Event sent", "event", event, "current_state", m.CurrentState())
	case <-m.ctx.Done():
		m.logger.Debugw("Event dropped due to shutdown", "event", event)
	default:
		m.logger.Warnw("Event channel full, dropping event", "event", event)
	}
}

// CurrentState returns the current state.
func (m *Machine) CurrentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentState
}

// LastError returns the last error recorded with SetError.
func (m *Machine) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// SetError records an error for the next transition into an error state.
func (m *Machine) SetError(err error) {
	m.mu.Lock()
	m.lastError = err
	m.mu.Unlock()
}

// Subscribe returns a channel for receiving state transitions.
func (m *Machine) Subscribe() <-chan Transition {
	m.subscribersMu.Lock()
	defer m.subscribersMu.Unlock()

	ch := make(chan Transition, 10)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Shutdown stops the state machine, waiting briefly for the loop to drain.
func (m *Machine) Shutdown() {
	m.logger.Info("State machine shutting down")
	m.SendEvent(EventShutdown)

	select {
	case <-m.shutdownCh:
		m.logger.Info("State machine shut down gracefully")
	case <-time.After(5 * time.Second):
		m.logger.Warn("State machine shutdown timeout, forcing")
	}

	m.cancel()
	m.clearStateTimeout()
}

// run is the main state machine loop.
func (m *Machine) run() {
	defer close(m.shutdownCh)

	for {
		select {
		case event := <-m.eventCh:
			m.handleEvent(event)
		case <-m.ctx.Done():
			m.logger.Info("State machine context cancelled")
			return
		}

		if m.CurrentState() == StateShuttingDown {
			m.logger.Info("State machine reached terminal state")
			return
		}
	}
}

// handleEvent processes an event and potentially triggers a state transition.
func (m *Machine) handleEvent(event Event) {
	currentState := m.CurrentState()

	m.logger.Debugw("Handling event", "event", event, "current_state", currentState)

	newState := m.determineNewState(currentState, event)
	if newState != currentState {
		m.transition(currentState, newState, event)
	}
}

// determineNewState maps (state, event) pairs to the next state. Unknown
// pairs are ignored; the sequence is strictly linear with a failure
// short-circuit from every non-terminal state.
func (m *Machine) determineNewState(currentState State, event Event) State {
	// Failure and shutdown short-circuit from any non-terminal state.
	switch event {
	case EventFatalError, EventTimeout:
		if currentState != StateFailed && currentState != StateShuttingDown {
			return StateFailed
		}
		return currentState
	case EventShutdown:
		if currentState != StateShuttingDown {
			return StateShuttingDown
		}
		return currentState
	}

	switch currentState {
	case StateInitializing:
		if event == EventStart {
			return StateAuthCheck
		}

	case StateAuthCheck:
		switch event {
		case EventAuthOK:
			return StateDatabaseInit
		case EventAuthRequired:
			return StateAuthInteractive
		}

	case StateAuthInteractive:
		switch event {
		case EventAuthConfirmed:
			return StateDatabaseInit
		case EventAuthFailed:
			return StateFailed
		}

	case StateDatabaseInit:
		if event == EventInitDone {
			return StateDatabaseStarting
		}

	case StateDatabaseStarting:
		if event == EventDatabaseReady {
			return StateDatabaseReady
		}

	case StateDatabaseReady:
		if event == EventAPILaunch {
			return StateAPIStarting
		}

	case StateAPIStarting:
		if event == EventAPIStarted {
			return StateReady
		}

	case StateReady, StateFailed:
		// Only the short-circuit events above leave these states.

	case StateShuttingDown:
		return StateShuttingDown
	}

	m.logger.Debugw("No valid transition found", "current_state", currentState, "event", event)
	return currentState
}

// transition performs a state transition.
func (m *Machine) transition(from, to State, event Event) {
	if !CanTransition(from, to) {
		m.logger.Errorw("Invalid state transition", "from", from, "to", to, "event", event)
		return
	}

	m.mu.Lock()
	m.currentState = to
	lastErr := m.lastError
	m.mu.Unlock()

	transition := Transition{
		From:      from,
		To:        to,
		Event:     event,
		Timestamp: time.Now(),
		Error:     lastErr,
	}

	m.logger.Infow("State transition", "from", from, "to", to, "event", event)

	m.handleStateEntry(to)
	m.notifySubscribers(&transition)
}

// SetStateTimeout overrides the backstop timeout armed on entry to a state.
// States whose step enforces a configurable deadline of its own must get a
// backstop derived from that deadline, never a shorter fixed one. Call
// before Start.
func (m *Machine) SetStateTimeout(state State, duration time.Duration) {
	m.timeoutMu.Lock()
	defer m.timeoutMu.Unlock()

	if m.timeoutOverrides == nil {
		m.timeoutOverrides = make(map[State]time.Duration)
	}
	m.timeoutOverrides[state] = duration
}

// handleStateEntry arms or clears the backstop timeout for the new state.
func (m *Machine) handleStateEntry(state State) {
	m.timeoutMu.Lock()
	override, hasOverride := m.timeoutOverrides[state]
	m.timeoutMu.Unlock()

	if hasOverride {
		m.setStateTimeout(state, override)
		return
	}

	stateInfo := GetInfo(state)
	if stateInfo.Timeout != nil {
		m.setStateTimeout(state, *stateInfo.Timeout)
	} else {
		m.clearStateTimeout()
	}
}

// setStateTimeout sets a timeout for the current state.
func (m *Machine) setStateTimeout(state State, duration time.Duration) {
	m.timeoutMu.Lock()
	defer m.timeoutMu.Unlock()

	m.clearTimeoutTimerUnsafe()

	m.timeoutTimer = time.AfterFunc(duration, func() {
		m.logger.Warnw("State timeout", "state", state, "duration", duration)
		if m.LastError() == nil {
			m.SetError(fmt.Errorf("timed out in state %s after %s", state, duration))
		}
		m.SendEvent(EventTimeout)
	})
}

// clearStateTimeout clears the current state timeout.
func (m *Machine) clearStateTimeout() {
	m.timeoutMu.Lock()
	defer m.timeoutMu.Unlock()
	m.clearTimeoutTimerUnsafe()
}

func (m *Machine) clearTimeoutTimerUnsafe() {
	if m.timeoutTimer != nil {
		m.timeoutTimer.Stop()
		m.timeoutTimer = nil
	}
}

// notifySubscribers sends transition notifications to all subscribers.
func (m *Machine) notifySubscribers(transition *Transition) {
	m.subscribersMu.RLock()
	defer m.subscribersMu.RUnlock()

	for _, subscriber := range m.subscribers {
		select {
		case subscriber <- *transition:
		default:
			m.logger.Debug("Subscriber channel full, dropping transition notification")
		}
	}
}
