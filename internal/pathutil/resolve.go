package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveAbsolutePath turns a local path from the config or the command line
// into an absolute one. "~" expands to the home directory and symlinks are
// resolved as far as the path exists, so a log file in a directory that has
// not been created yet still gets a stable location.
func ResolveAbsolutePath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	existing, missing := abs, ""
	for {
		if real, err := filepath.EvalSymlinks(existing); err == nil {
			if missing == "" {
				return real, nil
			}
			return filepath.Join(real, missing), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		missing = filepath.Join(filepath.Base(existing), missing)
		existing = parent
	}
}
