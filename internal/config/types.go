// Package config resolves, parses, validates, and defaults parley configuration.
package config

// Config is the fully materialized runtime configuration used by parley.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Voice     VoiceConfig
	Client    ClientConfig
	Location  LocationConfig
	Audio     AudioConfig
	Playback  PlaybackConfig
	Indicator IndicatorConfig
	Clipboard ClipboardConfig
	Metrics   MetricsConfig
	Debug     DebugConfig
}

// ServerConfig locates the speech service and the query service it forwards to.
type ServerConfig struct {
	URL         string
	APIKey      string
	QueryServer string
}

// SessionConfig holds per-session feature flags sent in the greeting.
type SessionConfig struct {
	Query    bool
	TTS      bool
	UISounds bool
	Private  bool
	Engine   string
}

// VoiceConfig selects the speech synthesis voice.
type VoiceConfig struct {
	ID    string
	Speed float64
}

// ClientConfig identifies this installation to the query service.
// An empty ID is replaced by a persisted random one at runtime.
type ClientConfig struct {
	ID   string
	Type string
}

// LocationConfig is a fixed position reported with queries. Both values
// must be set for it to be sent.
type LocationConfig struct {
	Latitude  *float64
	Longitude *float64
}

// Coordinates returns [lat, lon] or nil when either is unset.
func (l LocationConfig) Coordinates() []float64 {
	if l.Latitude == nil || l.Longitude == nil {
		return nil
	}
	return []float64{*l.Latitude, *l.Longitude}
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// PlaybackConfig controls how remote audio and UI cues are played.
type PlaybackConfig struct {
	Command         CommandConfig
	SoundBaseURL    string
	CueStartFile    string
	CueConfirmFile  string
	CueCancelFile   string
	DownloadTimeout int
}

// IndicatorConfig controls desktop notifications.
type IndicatorConfig struct {
	Enable         bool
	DesktopAppName string
	ErrorTimeoutMS int
}

// ClipboardConfig controls copying the final answer.
type ClipboardConfig struct {
	Enable bool
	Cmd    CommandConfig
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// MetricsConfig controls the node-exporter textfile written after a session.
type MetricsConfig struct {
	Textfile string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
