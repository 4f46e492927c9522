package config

import "github.com/rbright/parley/internal/version"

const (
	DefaultServer       = "https://api.greynir.is"
	DefaultQueryServer  = "https://greynir.is"
	DefaultSoundBaseURL = "https://embla.is/assets/audio"
	DefaultVoiceID      = "Guðrún"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"
	player := "mpv --no-terminal --no-video --speed={speed} {file}"

	return Config{
		Server: ServerConfig{
			URL:         DefaultServer,
			QueryServer: DefaultQueryServer,
		},
		Session: SessionConfig{
			Query:    true,
			TTS:      true,
			UISounds: true,
		},
		Voice:  VoiceConfig{ID: DefaultVoiceID, Speed: 1.0},
		Client: ClientConfig{Type: version.ClientType},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Playback: PlaybackConfig{
			Command:         mustCommand(player),
			SoundBaseURL:    DefaultSoundBaseURL,
			DownloadTimeout: 10,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "parley",
			ErrorTimeoutMS: 1600,
		},
		Clipboard: ClipboardConfig{
			Enable: false,
			Cmd:    mustCommand(clipboard),
		},
	}
}
