package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rbright/parley/internal/paths"
)

// resolveClientID returns configured when set, otherwise a uuid persisted
// under $XDG_STATE_HOME/parley/client_id so the server sees a stable client.
func resolveClientID(configured string) (string, error) {
	if id := strings.TrimSpace(configured); id != "" {
		return id, nil
	}

	path, err := paths.StateFile("client_id")
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if id := strings.TrimSpace(string(data)); id != "" {
			if _, parseErr := uuid.Parse(id); parseErr == nil {
				return id, nil
			}
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read client id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write client id: %w", err)
	}
	return id, nil
}
