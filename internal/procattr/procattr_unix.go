//go:build !windows

// Package procattr builds the per-platform os/exec.Cmd.SysProcAttr that
// puts a spawned agent child into its own process group, so that
// signaling the child (SIGTERM/SIGKILL) also reaches any grandchildren
// the CLI itself spawns. Grounded on the teacher's
// client/launcher/sysprocattr_default.go build-tag split.
package procattr

import "syscall"

// New returns a SysProcAttr that creates a new process group for the
// child, rooted at the child itself.
func New() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
