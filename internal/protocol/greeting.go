package protocol

import "encoding/json"

// Greeting is the first message the client sends on a new channel.
type Greeting struct {
	Type  MessageType  `json:"type"`
	Token string       `json:"token"`
	Data  GreetingData `json:"data"`
}

type GreetingData struct {
	Private      bool         `json:"private"`
	ASROptions   ASROptions   `json:"asr_options"`
	Query        bool         `json:"query"`
	QueryOptions QueryOptions `json:"query_options"`
	TTS          bool         `json:"tts"`
	TTSOptions   TTSOptions   `json:"tts_options"`
}

type ASROptions struct {
	Engine string `json:"engine,omitempty"`
}

type QueryOptions struct {
	URL           string   `json:"url"`
	ClientID      string   `json:"client_id,omitempty"`
	ClientType    string   `json:"client_type,omitempty"`
	ClientVersion string   `json:"client_version,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
}

type TTSOptions struct {
	VoiceID    string  `json:"voice_id"`
	VoiceSpeed float64 `json:"voice_speed"`
}

// Wire serializes the greeting as a single JSON text frame.
func (g Greeting) Wire() ([]byte, error) {
	g.Type = TypeGreetings
	return json.Marshal(g)
}
