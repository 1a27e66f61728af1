package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"stackpilot-go/internal/config"
	"stackpilot-go/internal/eventlog"
	"stackpilot-go/internal/store"
	"stackpilot-go/internal/supervisor/auth"
	"stackpilot-go/internal/supervisor/probe"
	"stackpilot-go/internal/supervisor/process"
	"stackpilot-go/internal/supervisor/state"
	"stackpilot-go/internal/ui"
)

// Supervisor drives one desktop session: authentication gate, first-run
// database initialization, database and API process startup in strict order,
// then waiting for quit, with teardown on every exit path.
type Supervisor struct {
	cfg     *config.Config
	logger  *zap.SugaredLogger
	events  *eventlog.Log
	machine *state.Machine

	launcher    Launcher
	prober      Prober
	gate        Gate
	initializer Initializer

	ui       ui.UI
	notifier *ui.Notifier
	sessions *store.Store
	version  string

	sessionID string

	mu  sync.Mutex
	db  Handle
	api Handle

	teardownOnce sync.Once
	tearingDown  atomic.Bool
	reachedReady atomic.Bool

	runCtx    context.Context
	runCancel context.CancelFunc

	doneOnce sync.Once
	done     chan struct{}
	runErr   error
}

// Option overrides a collaborator, mainly for tests.
type Option func(*Supervisor)

func WithLauncher(l Launcher) Option       { return func(s *Supervisor) { s.launcher = l } }
func WithProber(p Prober) Option           { return func(s *Supervisor) { s.prober = p } }
func WithGate(g Gate) Option               { return func(s *Supervisor) { s.gate = g } }
func WithInitializer(i Initializer) Option { return func(s *Supervisor) { s.initializer = i } }
func WithUI(u ui.UI) Option                { return func(s *Supervisor) { s.ui = u } }
func WithSessions(st *store.Store) Option  { return func(s *Supervisor) { s.sessions = st } }
func WithSessionID(id string) Option       { return func(s *Supervisor) { s.sessionID = id } }

// New builds a supervisor with production collaborators, then applies opts.
func New(cfg *config.Config, events *eventlog.Log, logger *zap.SugaredLogger, version string, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		logger:   logger,
		events:   events,
		machine:  state.NewMachine(logger),
		launcher: &execLauncher{logger: logger},
		prober:   probe.New(cfg.Readiness.DialTimeout, logger),
		gate:     auth.NewGate(&cfg.Auth, logger),
		ui:       ui.NewConsole(logger),
		notifier: ui.NewNotifier(cfg.Notifications, logger),
		version:  version,
		done:     make(chan struct{}),
	}
	s.initializer = newDBInitializer(&cfg.Database, events, logger)
	s.sessionID = store.NewSessionID()
	for st, d := range stateTimeouts(cfg) {
		s.machine.SetStateTimeout(st, d)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// backstopGrace pads each derived state backstop past the step's own
// deadline, so the step always fails with its specific error before the
// machine's generic timeout can fire.
const backstopGrace = 15 * time.Second

// stateTimeouts derives the machine's backstop timeouts from the configured
// step deadlines. A step with no configured bound gets no backstop.
func stateTimeouts(cfg *config.Config) map[state.State]time.Duration {
	timeouts := make(map[state.State]time.Duration)
	if cfg.Auth.CheckTimeout > 0 {
		timeouts[state.StateAuthCheck] = cfg.Auth.CheckTimeout + backstopGrace
	}
	if cfg.Database.InitTimeout > 0 {
		timeouts[state.StateDatabaseInit] = cfg.Database.InitTimeout + backstopGrace
	}
	if cfg.Readiness.Timeout > 0 {
		timeouts[state.StateDatabaseStarting] = cfg.Readiness.Timeout + backstopGrace
	}
	return timeouts
}

// SessionID identifies this run in the event log and session history.
func (s *Supervisor) SessionID() string { return s.sessionID }

// Run executes the session and blocks until it ends. The returned error is
// nil for a clean quit after READY and wraps one of the package sentinels
// (or probe.ErrReadinessTimeout) otherwise.
func (s *Supervisor) Run(ctx context.Context) error {
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	defer s.runCancel()

	if s.sessions != nil {
		if err := s.sessions.RecordStart(s.sessionID); err != nil {
			s.logger.Warnw("Failed to record session start", "error", err)
		}
	}

	transitions := s.machine.Subscribe()
	s.machine.Start()
	go s.handleTransitions(transitions)

	s.events.Eventf("session %s starting (version %s)", s.sessionID, s.version)
	s.machine.SendEvent(state.EventStart)

	select {
	case <-s.done:
	case <-ctx.Done():
		// runCtx is already cancelled here, so the transition loop may
		// quit without delivering the shutdown transition. Finish
		// directly rather than waiting on it.
		s.machine.SendEvent(state.EventShutdown)
		s.Teardown()
		s.finish(nil)
		<-s.done
	}

	s.Teardown()
	s.machine.Shutdown()

	err := s.runErr
	if s.sessions != nil {
		outcome := store.OutcomeAborted
		switch {
		case err != nil:
			outcome = store.OutcomeFailed
		case s.reachedReady.Load():
			outcome = store.OutcomeReady
		}
		if recErr := s.sessions.RecordEnd(s.sessionID, outcome, err); recErr != nil {
			s.logger.Warnw("Failed to record session end", "error", recErr)
		}
	}
	if err == nil {
		s.events.Eventf("session %s ended", s.sessionID)
	}
	return err
}

// Shutdown requests an orderly stop. Safe to call from any goroutine,
// including signal handlers, and safe to call more than once.
func (s *Supervisor) Shutdown() {
	s.machine.SendEvent(state.EventShutdown)
}

// CurrentState reports the startup phase, for status displays.
func (s *Supervisor) CurrentState() state.State {
	return s.machine.CurrentState()
}

func (s *Supervisor) handleTransitions(transitions <-chan state.Transition) {
	for {
		select {
		case t := <-transitions:
			s.logger.Debugw("State transition",
				"from", t.From,
				"to", t.To,
				"event", t.Event)
			s.onEnter(t)
		case <-s.runCtx.Done():
			return
		}
	}
}

func (s *Supervisor) onEnter(t state.Transition) {
	switch t.To {
	case state.StateAuthCheck:
		s.guard("auth check", s.stepAuthCheck)
	case state.StateAuthInteractive:
		s.guard("interactive login", s.stepAuthInteractive)
	case state.StateDatabaseInit:
		s.guard("database init", s.stepDatabaseInit)
	case state.StateDatabaseStarting:
		s.guard("database start", s.stepDatabaseStart)
	case state.StateDatabaseReady:
		s.machine.SendEvent(state.EventAPILaunch)
	case state.StateAPIStarting:
		s.guard("api start", s.stepAPIStart)
	case state.StateReady:
		s.guard("ready", s.stepReady)
	case state.StateFailed:
		s.finishFailed(t.Error)
	case state.StateShuttingDown:
		s.finishShutdown()
	}
}

// guard runs a startup step in its own goroutine. A panic inside a step
// would otherwise leave the machine stuck in a non-terminal state with no
// event ever arriving, so it is converted into a fatal error.
func (s *Supervisor) guard(step string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic during %s: %v", step, r)
				s.logger.Errorw("Startup step panicked", "step", step, "panic", r)
				s.fail(err, state.EventFatalError)
			}
		}()
		fn()
	}()
}

// fail records err as the session error, writes one ERROR line to the event
// log, and pushes the machine toward StateFailed.
func (s *Supervisor) fail(err error, event state.Event) {
	s.machine.SetError(err)
	s.events.Errorf("%v", err)
	s.machine.SendEvent(event)
}

func (s *Supervisor) stepAuthCheck() {
	if s.gate.CheckLoggedIn(s.runCtx) {
		s.events.Eventf("already authenticated")
		s.machine.SendEvent(state.EventAuthOK)
		return
	}
	s.events.Eventf("authentication required, opening login")
	s.machine.SendEvent(state.EventAuthRequired)
}

func (s *Supervisor) stepAuthInteractive() {
	if s.gate.InteractiveLogin(s.runCtx) {
		s.events.Eventf("authentication confirmed")
		s.machine.SendEvent(state.EventAuthConfirmed)
		return
	}
	s.fail(ErrAuthentication, state.EventAuthFailed)
}

func (s *Supervisor) stepDatabaseInit() {
	if err := s.initializer.Initialize(s.runCtx); err != nil {
		s.fail(err, state.EventFatalError)
		return
	}
	s.machine.SendEvent(state.EventInitDone)
}

func (s *Supervisor) stepDatabaseStart() {
	db := s.cfg.Database
	h, err := s.launcher.Launch(process.NameDatabase, db.Command, db.Args(), "")
	if err != nil {
		s.fail(fmt.Errorf("%w: %w", ErrSpawn, err), state.EventFatalError)
		return
	}
	s.setHandle(&s.db, h)
	s.events.Eventf("database process started (pid %d)", h.PID())
	s.watch(h)

	r := s.cfg.Readiness
	if err := s.prober.AwaitReady(s.runCtx, db.Host, db.Port, r.Timeout, r.Interval); err != nil {
		event := state.EventFatalError
		if errors.Is(err, probe.ErrReadinessTimeout) {
			event = state.EventTimeout
		}
		s.fail(err, event)
		return
	}
	s.events.Eventf("database ready on %s:%d", db.Host, db.Port)
	s.machine.SendEvent(state.EventDatabaseReady)
}

func (s *Supervisor) stepAPIStart() {
	api := s.cfg.API
	h, err := s.launcher.Launch(process.NameAPI, api.Command, nil, api.WorkingDir)
	if err != nil {
		s.fail(fmt.Errorf("%w: %w", ErrSpawn, err), state.EventFatalError)
		return
	}
	s.setHandle(&s.api, h)
	s.events.Eventf("api process started (pid %d)", h.PID())
	s.watch(h)
	s.machine.SendEvent(state.EventAPIStarted)
}

func (s *Supervisor) stepReady() {
	s.reachedReady.Store(true)
	s.events.Eventf("stack ready")
	s.notifier.Ready()

	info := ui.NewHostInfo(s.version, s.cfg.Database.Host, s.cfg.Database.Port)
	if err := s.ui.ShowMain(s.runCtx, info); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warnw("UI session ended with error", "error", err)
	}
	s.machine.SendEvent(state.EventShutdown)
}

func (s *Supervisor) finishFailed(tErr error) {
	err := tErr
	if err == nil {
		err = s.machine.LastError()
	}
	if err == nil {
		err = errors.New("startup failed")
	}
	s.notifier.Failed(err.Error())
	s.Teardown()
	s.finish(err)
}

func (s *Supervisor) finishShutdown() {
	if !s.tearingDown.Load() {
		s.events.Eventf("shutdown requested")
	}
	s.Teardown()
	s.finish(nil)
}

func (s *Supervisor) finish(err error) {
	s.doneOnce.Do(func() {
		s.runErr = err
		if s.ui != nil {
			s.ui.Close()
		}
		close(s.done)
	})
}

// watch reports an unexpected child exit as a fatal error. Exits observed
// during teardown are the teardown's own doing and are ignored.
func (s *Supervisor) watch(h Handle) {
	go func() {
		select {
		case info := <-h.Exited():
			if s.tearingDown.Load() {
				return
			}
			err := fmt.Errorf("%w: %s (pid %d) exit code %d",
				ErrProcessExited, h.Name(), h.PID(), info.Code)
			s.fail(err, state.EventFatalError)
		case <-s.runCtx.Done():
		}
	}()
}

func (s *Supervisor) setHandle(slot *Handle, h Handle) {
	s.mu.Lock()
	*slot = h
	s.mu.Unlock()
}

// Teardown stops both managed processes, API first so nothing talks to the
// database while it is going down. Runs at most once no matter how many
// exit paths reach it; repeated and concurrent calls are no-ops. Errors are
// logged, never propagated.
func (s *Supervisor) Teardown() {
	s.teardownOnce.Do(func() {
		s.tearingDown.Store(true)
		s.events.Eventf("teardown: stopping managed processes")

		s.mu.Lock()
		api, db := s.api, s.db
		s.api, s.db = nil, nil
		s.mu.Unlock()

		if api != nil {
			api.Terminate()
		}
		if db != nil {
			db.Terminate()
		}
		s.events.Eventf("teardown complete")
	})
}
