// Package permissions stores user folder grants and answers whether a path
// falls inside one of them.
package permissions

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Canonicalize returns the absolute, cleaned form of path. Symlinks are
// resolved for the deepest ancestor that exists, so a not-yet-created file
// still canonicalizes under its real parent directory.
func Canonicalize(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	existing := filepath.Clean(abs)
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			parts := make([]string, 0, len(missing)+1)
			parts = append(parts, resolved)
			for i := len(missing) - 1; i >= 0; i-- {
				parts = append(parts, missing[i])
			}
			return normalizePath(filepath.Join(parts...)), nil
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return normalizePath(abs), nil
		}
		missing = append(missing, filepath.Base(existing))
		existing = parent
	}
}

func normalizePath(path string) string {
	path = filepath.Clean(path)

	// On Windows, normalize drive letters to uppercase
	if runtime.GOOS == "windows" && len(path) >= 2 && path[1] == ':' {
		path = strings.ToUpper(path[:1]) + path[1:]
	}

	return path
}

// IsSubPath reports whether child equals parent or lies beneath it.
// /home/u/docs2 is not inside /home/u/docs.
func IsSubPath(parent, child string) bool {
	parent = normalizePath(parent)
	child = normalizePath(child)

	if child == parent {
		return true
	}
	if !strings.HasSuffix(parent, string(filepath.Separator)) {
		parent += string(filepath.Separator)
	}
	return strings.HasPrefix(child, parent)
}
