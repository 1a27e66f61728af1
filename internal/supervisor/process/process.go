// Package process wraps spawned child processes of the managed stack. A Proc
// is created by Launch, reaped by a background goroutine, and torn down with
// Terminate, which is idempotent and never propagates errors: teardown runs
// during already-abnormal conditions and must not throw.
package process

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Name identifies a managed process.
type Name string

const (
	NameDatabase Name = "database"
	NameAPI      Name = "api"
)

// ExitInfo describes how a process exited.
type ExitInfo struct {
	Code      int
	Signal    string
	Err       error
	Timestamp time.Time
}

// Proc is a handle for one spawned child process.
type Proc struct {
	name   Name
	path   string
	args   []string
	logger *zap.SugaredLogger

	mu    sync.Mutex
	cmd   *exec.Cmd
	pid   int
	alive bool

	exitCh chan ExitInfo
	done   chan struct{}
}

// Launch spawns the executable as a detached background process with standard
// I/O discarded and, on unix, its own process group. The returned handle
// carries the OS-assigned PID.
func Launch(name Name, path string, args []string, workdir string, logger *zap.SugaredLogger) (*Proc, error) {
	cmd := exec.Command(path, args...)
	if workdir != "" {
		cmd.Dir = workdir
	}
	// Stdin/Stdout/Stderr left nil: os/exec connects them to the null
	// device, which is exactly the detached behavior we want.
	setSysProcAttr(cmd)

	logger.Infow("Starting process", "name", name, "binary", path, "args", args, "working_dir", workdir)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s (%s): %w", name, path, err)
	}

	p := &Proc{
		name:   name,
		path:   path,
		args:   args,
		logger: logger,
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		alive:  true,
		exitCh: make(chan ExitInfo, 1),
		done:   make(chan struct{}),
	}

	logger.Infow("Process started", "name", name, "pid", p.pid)

	go p.reap()

	return p, nil
}

// Name returns the process name.
func (p *Proc) Name() Name { return p.name }

// PID returns the OS-assigned process identifier.
func (p *Proc) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// Alive reports whether the process has been confirmed terminated.
func (p *Proc) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// Exited returns a channel that receives the exit info once the process is
// reaped. The channel is buffered; the value stays readable after exit.
func (p *Proc) Exited() <-chan ExitInfo {
	return p.exitCh
}

// Terminate forcefully and recursively stops the process and any children it
// spawned. It is idempotent: calling it on an already-terminated handle is a
// no-op. Termination failures are logged, never returned.
func (p *Proc) Terminate() {
	p.mu.Lock()
	if !p.alive || p.pid == 0 {
		p.mu.Unlock()
		p.logger.Debugw("Terminate on dead handle, nothing to do", "name", p.name)
		return
	}
	pid := p.pid
	p.alive = false
	p.mu.Unlock()

	p.logger.Infow("Terminating process", "name", p.name, "pid", pid)

	p.killDescendants(pid)

	if err := killProcess(pid); err != nil {
		p.logger.Warnw("Failed to kill process", "name", p.name, "pid", pid, "error", err)
	}

	// Wait for the reaper so the child does not linger as a zombie.
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		p.logger.Warnw("Timed out waiting for process to be reaped", "name", p.name, "pid", pid)
	}
}

// killDescendants kills the child's own children bottom-up. The process-group
// kill on unix covers the common case; this walk additionally catches
// children that moved to their own group.
func (p *Proc) killDescendants(pid int) {
	proc, err := gops.NewProcess(int32(pid))
	if err != nil {
		return // already gone
	}

	children, err := proc.Children()
	if err != nil {
		return
	}

	for _, child := range children {
		p.killDescendants(int(child.Pid))
		if err := child.Kill(); err != nil {
			p.logger.Debugw("Failed to kill child process", "pid", child.Pid, "error", err)
		}
	}
}

// reap waits for the process to exit and records the outcome.
func (p *Proc) reap() {
	defer close(p.done)

	err := p.cmd.Wait()

	info := ExitInfo{
		Timestamp: time.Now(),
		Err:       err,
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		info.Code = exitErr.ExitCode()
		info.Signal = exitSignal(exitErr)
	}

	p.mu.Lock()
	wasAlive := p.alive
	p.alive = false
	p.mu.Unlock()

	if err != nil {
		if wasAlive {
			p.logger.Warnw("Process exited unexpectedly",
				"name", p.name, "pid", p.pid, "code", info.Code, "signal", info.Signal, "error", err)
		} else {
			p.logger.Debugw("Process reaped after termination",
				"name", p.name, "pid", p.pid, "signal", info.Signal)
		}
	} else {
		p.logger.Infow("Process exited normally", "name", p.name, "pid", p.pid)
	}

	p.exitCh <- info
}
