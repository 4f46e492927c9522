package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateHTTPURL("server.url", cfg.Server.URL); err != nil {
		return nil, err
	}
	if err := validateHTTPURL("server.query_server", cfg.Server.QueryServer); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Voice.ID) == "" {
		return nil, fmt.Errorf("voice.id must not be empty")
	}
	if cfg.Voice.Speed <= 0 || cfg.Voice.Speed > 3 {
		return nil, fmt.Errorf("voice.speed must be in (0, 3]")
	}
	if (cfg.Location.Latitude == nil) != (cfg.Location.Longitude == nil) {
		warnings = append(warnings, Warning{Message: "location needs both latitude and longitude; it will not be sent"})
	}
	if lat := cfg.Location.Latitude; lat != nil && (*lat < -90 || *lat > 90) {
		return nil, fmt.Errorf("location.latitude must be in [-90, 90]")
	}
	if lon := cfg.Location.Longitude; lon != nil && (*lon < -180 || *lon > 180) {
		return nil, fmt.Errorf("location.longitude must be in [-180, 180]")
	}
	if cfg.Session.Private && cfg.Location.Coordinates() != nil {
		warnings = append(warnings, Warning{Message: "session.private is set; location will not be sent"})
	}

	if len(cfg.Playback.Command.Argv) == 0 {
		return nil, fmt.Errorf("playback.command must not be empty")
	}
	if !cfg.Playback.Command.Uses("file") {
		return nil, fmt.Errorf("playback.command must contain a {file} placeholder")
	}
	if err := validateHTTPURL("playback.sound_base_url", cfg.Playback.SoundBaseURL); err != nil {
		return nil, err
	}
	if cfg.Playback.DownloadTimeout <= 0 {
		return nil, fmt.Errorf("playback.download_timeout_s must be > 0")
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}
	if cfg.Clipboard.Enable && len(cfg.Clipboard.Cmd.Argv) == 0 {
		return nil, fmt.Errorf("clipboard.cmd must not be empty when clipboard.enable=true")
	}

	return warnings, nil
}

func validateHTTPURL(field string, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", field)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}
