package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "PARLEY"

// envOverrides are applied after the config file. Unset variables leave the
// file value alone.
type envOverrides struct {
	APIKey      string   `envconfig:"API_KEY"`
	Server      string   `envconfig:"SERVER"`
	QueryServer string   `envconfig:"QUERY_SERVER"`
	ClientID    string   `envconfig:"CLIENT_ID"`
	VoiceID     string   `envconfig:"VOICE_ID"`
	VoiceSpeed  *float64 `envconfig:"VOICE_SPEED"`
	Private     *bool    `envconfig:"PRIVATE"`
	Engine      string   `envconfig:"ENGINE"`
}

// loadDotEnv reads a .env file beside the config file, if one exists.
// Variables already in the environment win.
func loadDotEnv(configPath string) error {
	path := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays PARLEY_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	overlay := func(dst *string, value string) {
		if value = strings.TrimSpace(value); value != "" {
			*dst = value
		}
	}
	overlay(&cfg.Server.APIKey, env.APIKey)
	overlay(&cfg.Server.URL, env.Server)
	overlay(&cfg.Server.QueryServer, env.QueryServer)
	overlay(&cfg.Client.ID, env.ClientID)
	overlay(&cfg.Voice.ID, env.VoiceID)
	overlay(&cfg.Session.Engine, env.Engine)
	if env.VoiceSpeed != nil {
		cfg.Voice.Speed = *env.VoiceSpeed
	}
	if env.Private != nil {
		cfg.Session.Private = *env.Private
	}
	return nil
}
