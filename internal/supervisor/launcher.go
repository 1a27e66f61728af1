package supervisor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stackpilot-go/internal/supervisor/process"
)

// Handle is the supervisor's view of a managed process. *process.Proc is the
// production implementation; tests substitute fakes.
type Handle interface {
	Name() process.Name
	PID() int
	Alive() bool
	Terminate()
	Exited() <-chan process.ExitInfo
}

// Launcher spawns managed processes.
type Launcher interface {
	Launch(name process.Name, path string, args []string, workdir string) (Handle, error)
}

// Prober reports when a TCP endpoint accepts connections.
type Prober interface {
	AwaitReady(ctx context.Context, host string, port int, timeout, interval time.Duration) error
}

// Gate answers authentication questions via the external CLI.
type Gate interface {
	CheckLoggedIn(ctx context.Context) bool
	InteractiveLogin(ctx context.Context) bool
}

// Initializer performs first-run database setup.
type Initializer interface {
	Initialize(ctx context.Context) error
}

type execLauncher struct {
	logger *zap.SugaredLogger
}

func (l *execLauncher) Launch(name process.Name, path string, args []string, workdir string) (Handle, error) {
	return process.Launch(name, path, args, workdir, l.logger)
}
