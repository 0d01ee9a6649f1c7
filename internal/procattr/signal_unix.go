//go:build !windows

package procattr

import "syscall"

// Terminate sends SIGTERM to the child's process group.
func Terminate(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// Kill sends SIGKILL to the child's process group.
func Kill(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// IsAlive reports whether pid is still alive, via signal 0.
func IsAlive(pid int) bool {
	return syscall.Kill(pid, syscall.Signal(0)) == nil
}
