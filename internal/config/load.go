package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const missingAPIKeyWarning = "no API key configured; set PARLEY_API_KEY or server.api_key"

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration,
// then applies .env and PARLEY_* overrides.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath, Config: Default()}
	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		cfg, warnings, err := Parse(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return Loaded{}, err
	}
	if err := ApplyEnv(&loaded.Config); err != nil {
		return Loaded{}, err
	}
	if _, err := Validate(loaded.Config); err != nil {
		return Loaded{}, fmt.Errorf("environment override: %w", err)
	}
	if strings.TrimSpace(loaded.Config.Server.APIKey) == "" {
		loaded.Warnings = append(loaded.Warnings, Warning{Message: missingAPIKeyWarning})
	}

	return loaded, nil
}
