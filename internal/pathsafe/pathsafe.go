// Package pathsafe enforces the path sandbox: any user-supplied absolute
// path accepted by project creation, directory probing, or raw-log
// streaming must resolve under the user's home directory, /tmp, or the
// current process working directory.
package pathsafe

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned when a path falls outside every allowed root.
var ErrUnsafePath = errors.New("pathsafe: path is outside the allowed sandbox")

// roots returns the allowed sandbox roots, resolved to absolute,
// symlink-free form where possible.
func roots() ([]string, error) {
	var out []string

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if r, err := resolve(home); err == nil {
			out = append(out, r)
		}
	}

	if r, err := resolve(os.TempDir()); err == nil {
		out = append(out, r)
	} else {
		out = append(out, filepath.Clean(os.TempDir()))
	}

	if cwd, err := os.Getwd(); err == nil {
		if r, err := resolve(cwd); err == nil {
			out = append(out, r)
		}
	}

	if len(out) == 0 {
		return nil, errors.New("pathsafe: no sandbox roots could be resolved")
	}
	return out, nil
}

// resolve returns the canonical, symlink-evaluated absolute form of p.
// Falls back to the cleaned absolute path if the target does not exist
// yet (e.g. a project directory about to be created).
func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}

// IsPathSafe reports whether p resolves to, or underneath, one of the
// allowed sandbox roots (home, /tmp, cwd).
func IsPathSafe(p string) bool {
	return Check(p) == nil
}

// Check is IsPathSafe with the underlying error, for callers that want to
// surface ErrUnsafePath distinctly from a resolution failure.
func Check(p string) error {
	if p == "" {
		return ErrUnsafePath
	}

	target, err := resolve(p)
	if err != nil {
		return ErrUnsafePath
	}

	allowed, err := roots()
	if err != nil {
		return ErrUnsafePath
	}

	for _, root := range allowed {
		if target == root || strings.HasPrefix(target, root+string(filepath.Separator)) {
			return nil
		}
	}
	return ErrUnsafePath
}
