// Package paths resolves the XDG locations parley reads and writes.
package paths

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const appDir = "parley"

var errNoHome = errors.New("unable to resolve user home directory")

// ConfigFile is $XDG_CONFIG_HOME/parley/config.jsonc, falling back to ~/.config.
func ConfigFile() (string, error) {
	base, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDir, "config.jsonc"), nil
}

// StateFile joins elem under $XDG_STATE_HOME/parley, falling back to ~/.local/state.
func StateFile(elem ...string) (string, error) {
	base, err := xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{base, appDir}, elem...)...), nil
}

// CreateStateFile opens a fresh state file with mode 0600, creating parents.
func CreateStateFile(flag int, elem ...string) (*os.File, error) {
	path, err := StateFile(elem...)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, flag|os.O_CREATE|os.O_WRONLY, 0o600)
}

// ExpandHome rewrites a leading ~ to the user's home directory.
func ExpandHome(raw string) string {
	raw = strings.TrimSpace(raw)
	rest, ok := strings.CutPrefix(raw, "~")
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, rest)
}

func xdgDir(env string, homeRel string) (string, error) {
	if dir := strings.TrimSpace(os.Getenv(env)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", errNoHome
	}
	return filepath.Join(home, homeRel), nil
}
