package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func UserConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); strings.TrimSpace(xdg) != "" {
		return filepath.Join(xdg, "shelfsync", "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "shelfsync", "config.yaml"), nil
}

func ProjectConfigPath(cwd string) string {
	return filepath.Join(cwd, "shelfsync.yaml")
}

func defaultStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); strings.TrimSpace(xdg) != "" {
		return filepath.Join(xdg, "shelfsync")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./.shelfsync-state"
	}
	return filepath.Join(home, ".local", "state", "shelfsync")
}

func ExpandPath(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(strings.TrimSpace(raw))
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~/"))
	}

	return filepath.Clean(expanded), nil
}

// ResolveStatePath anchors a relative state file (db, downloads dir,
// log) under the configured state dir.
func ResolveStatePath(stateDir string, name string) (string, error) {
	expandedName, err := ExpandPath(name)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expandedName) {
		return expandedName, nil
	}

	expandedDir, err := ExpandPath(stateDir)
	if err != nil {
		return "", err
	}

	return filepath.Clean(filepath.Join(expandedDir, expandedName)), nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}
	return nil
}
