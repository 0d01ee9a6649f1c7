package orchestrator

import (
	"errors"
	"io"
	"os/exec"

	"github.com/kilnworks/autodev/internal/procattr"
)

// osProcess wraps exec.Cmd to satisfy Process.
type osProcess struct {
	cmd            *exec.Cmd
	stdout, stderr io.ReadCloser
}

func (p *osProcess) Pid() int               { return p.cmd.Process.Pid }
func (p *osProcess) Stdout() io.ReadCloser  { return p.stdout }
func (p *osProcess) Stderr() io.ReadCloser  { return p.stderr }

func (p *osProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// OSLauncher spawns real child processes via os/exec, one process group
// per child (internal/procattr) so that SIGTERM/SIGKILL reach any
// grandchildren the CLI itself spawns, and with stdin left unset so the
// child reads from the null device (spec §4.1 step 4: "stdin closed").
type OSLauncher struct{}

// Launch starts binary with args in dir, merging env on top of nothing
// extra — callers are expected to have already merged the host
// environment with the adapter's BuildEnv output.
func (OSLauncher) Launch(dir, binary string, args []string, env []string) (Process, error) {
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.SysProcAttr = procattr.New()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &osProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}
