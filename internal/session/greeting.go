package session

import "github.com/rbright/parley/internal/protocol"

// GreetingFromConfig snapshots cfg into the opening message. Client identity
// and location are left out in private mode; location is sent only when the
// provider yields exactly two values.
func GreetingFromConfig(cfg *Config) protocol.Greeting {
	queryOpts := protocol.QueryOptions{URL: cfg.QueryURL()}
	if !cfg.PrivateMode {
		queryOpts.ClientID = cfg.ClientID
		queryOpts.ClientType = cfg.ClientType
		queryOpts.ClientVersion = cfg.ClientVersion
		if cfg.Location != nil {
			if loc := cfg.Location(); len(loc) == 2 {
				lat, lon := loc[0], loc[1]
				queryOpts.Latitude = &lat
				queryOpts.Longitude = &lon
			}
		}
	}

	return protocol.Greeting{
		Type:  protocol.TypeGreetings,
		Token: cfg.Token(),
		Data: protocol.GreetingData{
			Private:      cfg.PrivateMode,
			ASROptions:   protocol.ASROptions{Engine: cfg.Engine},
			Query:        cfg.Query,
			QueryOptions: queryOpts,
			TTS:          cfg.TTS,
			TTSOptions: protocol.TTSOptions{
				VoiceID:    cfg.VoiceID,
				VoiceSpeed: cfg.VoiceSpeed,
			},
		},
	}
}
