package playback

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Process is a started player process.
type Process interface {
	// Wait blocks until the process exits. A nil error means a clean exit.
	Wait() error
	// Signal delivers a graceful stop signal.
	Signal(sig os.Signal) error
	// Kill terminates the process immediately.
	Kill() error
}

// Runner spawns player processes. The seam exists so tests can substitute
// a scripted fake for the real player binary.
type Runner interface {
	Start(ctx context.Context, argv []string) (Process, error)
}

// execRunner runs the player via os/exec in its own process group, so stop
// signals reach any children the player forks.
type execRunner struct{}

// NewExecRunner returns the production Runner backed by os/exec.
//
//nolint:ireturn // Constructor intentionally returns the seam interface.
func NewExecRunner() Runner {
	return execRunner{}
}

// Start spawns the player with output discarded.
func (execRunner) Start(_ context.Context, argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty player command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start player: %w", err)
	}

	return &execProcess{cmd: cmd}, nil
}

// execProcess adapts exec.Cmd to the Process interface.
type execProcess struct {
	cmd *exec.Cmd
}

// Wait blocks until the player exits.
func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

// Signal delivers the signal to the player's process group.
func (p *execProcess) Signal(sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return p.cmd.Process.Signal(sig)
	}

	return syscall.Kill(-p.cmd.Process.Pid, s)
}

// Kill force-terminates the player's process group.
func (p *execProcess) Kill() error {
	return syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
}
