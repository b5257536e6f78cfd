// Package workspace resolves and validates the planner's two independent
// filesystem roots: the codepath (the project under planning) and the
// workspace (where logs land).
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading "~" or "~/" to the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		// "~otheruser" is not supported; return unchanged.
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// ResolveCodepath expands "~" and verifies the directory exists.
func ResolveCodepath(path string) (string, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve codepath %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("codepath %q does not exist: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("codepath %q is not a directory", abs)
	}
	return abs, nil
}

// ResolveWorkspace expands "~" and creates the workspace directory (and its
// logs/ subdirectory) if missing.
func ResolveWorkspace(path string) (string, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve workspace %q: %w", path, err)
	}
	if err := os.MkdirAll(LogsDir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create workspace logs dir: %w", err)
	}
	return abs, nil
}

// LogsDir returns `<workspace>/logs`, the exclusive root for every log file
// the planner (or a sub-agent it launches) writes once G3_WORKSPACE_PATH is set.
func LogsDir(workspaceDir string) string {
	return filepath.Join(workspaceDir, "logs")
}
