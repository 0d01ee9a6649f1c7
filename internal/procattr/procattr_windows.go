//go:build windows

package procattr

import "syscall"

// New returns nil on Windows: job objects (not process groups) would be
// the equivalent primitive, and are out of scope for this module's
// Unix-first deployment target.
func New() *syscall.SysProcAttr {
	return nil
}
