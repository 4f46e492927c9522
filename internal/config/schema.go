package config

import (
	"fmt"
	"strings"
)

// fileConfig mirrors the on-disk layout. Nil fields keep the base value.
type fileConfig struct {
	Server    *fileServer    `json:"server"`
	Session   *fileSession   `json:"session"`
	Voice     *fileVoice     `json:"voice"`
	Client    *fileClient    `json:"client"`
	Location  *fileLocation  `json:"location"`
	Audio     *fileAudio     `json:"audio"`
	Playback  *filePlayback  `json:"playback"`
	Indicator *fileIndicator `json:"indicator"`
	Clipboard *fileClipboard `json:"clipboard"`
	Metrics   *struct {
		Textfile *string `json:"textfile"`
	} `json:"metrics"`
	Debug *struct {
		AudioDump *bool `json:"audio_dump"`
	} `json:"debug"`
}

type fileServer struct {
	URL         *string `json:"url"`
	APIKey      *string `json:"api_key"`
	QueryServer *string `json:"query_server"`
}

type fileSession struct {
	Query    *bool   `json:"query"`
	TTS      *bool   `json:"tts"`
	UISounds *bool   `json:"ui_sounds"`
	Private  *bool   `json:"private"`
	Engine   *string `json:"engine"`
}

type fileVoice struct {
	ID    *string  `json:"id"`
	Speed *float64 `json:"speed"`
}

type fileClient struct {
	ID   *string `json:"id"`
	Type *string `json:"type"`
}

type fileLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type fileAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type filePlayback struct {
	Command          *string `json:"command"`
	SoundBaseURL     *string `json:"sound_base_url"`
	CueStartFile     *string `json:"cue_start_file"`
	CueConfirmFile   *string `json:"cue_confirm_file"`
	CueCancelFile    *string `json:"cue_cancel_file"`
	DownloadTimeoutS *int    `json:"download_timeout_s"`
}

type fileIndicator struct {
	Enable         *bool   `json:"enable"`
	DesktopAppName *string `json:"desktop_app_name"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type fileClipboard struct {
	Enable *bool   `json:"enable"`
	Cmd    *string `json:"cmd"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	plain, err := blankJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	var file fileConfig
	if err := decodeStrict(plain, &file); err != nil {
		return Config{}, nil, err
	}

	cfg := base
	warnings, err := file.merge(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	more, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, more...), nil
}

// overlay copies *src into *dst when src is set. Strings are trimmed.
func overlay[T any](dst *T, src *T) {
	if src == nil {
		return
	}
	v := *src
	if s, ok := any(v).(string); ok {
		v = any(strings.TrimSpace(s)).(T)
	}
	*dst = v
}

func overlayCommand(field string, dst *CommandConfig, src *string) error {
	if src == nil {
		return nil
	}
	cmd, err := ParseCommand(*src)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	*dst = cmd
	return nil
}

func (f fileConfig) merge(cfg *Config) ([]Warning, error) {
	var warnings []Warning

	if s := f.Server; s != nil {
		overlay(&cfg.Server.URL, s.URL)
		overlay(&cfg.Server.APIKey, s.APIKey)
		overlay(&cfg.Server.QueryServer, s.QueryServer)
		if s.APIKey != nil && strings.TrimSpace(*s.APIKey) != "" {
			warnings = append(warnings, Warning{Message: "server.api_key is stored in plain text; prefer PARLEY_API_KEY"})
		}
	}

	if s := f.Session; s != nil {
		overlay(&cfg.Session.Query, s.Query)
		overlay(&cfg.Session.TTS, s.TTS)
		overlay(&cfg.Session.UISounds, s.UISounds)
		overlay(&cfg.Session.Private, s.Private)
		overlay(&cfg.Session.Engine, s.Engine)
	}

	if v := f.Voice; v != nil {
		overlay(&cfg.Voice.ID, v.ID)
		overlay(&cfg.Voice.Speed, v.Speed)
	}

	if c := f.Client; c != nil {
		overlay(&cfg.Client.ID, c.ID)
		overlay(&cfg.Client.Type, c.Type)
	}

	if l := f.Location; l != nil {
		if l.Latitude != nil {
			cfg.Location.Latitude = l.Latitude
		}
		if l.Longitude != nil {
			cfg.Location.Longitude = l.Longitude
		}
	}

	if a := f.Audio; a != nil {
		overlay(&cfg.Audio.Input, a.Input)
		overlay(&cfg.Audio.Fallback, a.Fallback)
	}

	if p := f.Playback; p != nil {
		if err := overlayCommand("playback.command", &cfg.Playback.Command, p.Command); err != nil {
			return nil, err
		}
		overlay(&cfg.Playback.SoundBaseURL, p.SoundBaseURL)
		overlay(&cfg.Playback.CueStartFile, p.CueStartFile)
		overlay(&cfg.Playback.CueConfirmFile, p.CueConfirmFile)
		overlay(&cfg.Playback.CueCancelFile, p.CueCancelFile)
		overlay(&cfg.Playback.DownloadTimeout, p.DownloadTimeoutS)
	}

	if i := f.Indicator; i != nil {
		overlay(&cfg.Indicator.Enable, i.Enable)
		overlay(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		overlay(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if c := f.Clipboard; c != nil {
		overlay(&cfg.Clipboard.Enable, c.Enable)
		if err := overlayCommand("clipboard.cmd", &cfg.Clipboard.Cmd, c.Cmd); err != nil {
			return nil, err
		}
	}

	if m := f.Metrics; m != nil {
		overlay(&cfg.Metrics.Textfile, m.Textfile)
	}
	if d := f.Debug; d != nil {
		overlay(&cfg.Debug.EnableAudioDump, d.AudioDump)
	}

	return warnings, nil
}
