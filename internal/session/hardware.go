package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rbright/parley/internal/api"
)

// ErrHardwareBusy is returned by Start while another session holds the
// capture/playback pair.
var ErrHardwareBusy = errors.New("audio hardware is in use by another session")

// Recorder captures 16 kHz mono 16-bit PCM.
type Recorder interface {
	IsRecording() bool
	Start(ctx context.Context, onData func([]byte), onError func(error)) error
	Stop(ctx context.Context) error
}

// Player plays UI cues, canned phrases and remote audio one after another.
type Player interface {
	PlaySessionStart()
	PlaySessionConfirm()
	PlaySessionCancel()
	PlayNoMic(voiceID string, speed float64)
	// PlayDunno plays a random "cannot answer" phrase and returns its text.
	PlayDunno(voiceID string, speed float64) string
	PlaySound(name, voiceID string, speed float64)
	PlayURL(url string, speed float64)
	Stop()
	Speak(ctx context.Context, text string, opts api.SpeechOptions) error
}

// Hardware is the single capture/playback pair sessions lease. At most one
// session owns it at a time.
type Hardware struct {
	recorder Recorder
	player   Player

	mu    sync.Mutex
	owner string
}

// NewHardware wires rec and player, substituting no-op devices for nil.
func NewHardware(rec Recorder, player Player) *Hardware {
	if rec == nil {
		rec = noopRecorder{}
	}
	if player == nil {
		player = noopPlayer{}
	}
	return &Hardware{recorder: rec, player: player}
}

// Owner returns the id of the leasing session, or "".
func (h *Hardware) Owner() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.owner
}

func (h *Hardware) acquire(owner string) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.owner != "" {
		return nil, ErrHardwareBusy
	}
	h.owner = owner

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if h.owner == owner {
				h.owner = ""
			}
			h.mu.Unlock()
		})
	}, nil
}

type noopRecorder struct{}

func (noopRecorder) IsRecording() bool { return false }
func (noopRecorder) Start(context.Context, func([]byte), func(error)) error {
	return nil
}
func (noopRecorder) Stop(context.Context) error { return nil }

type noopPlayer struct{}

func (noopPlayer) PlaySessionStart()                 {}
func (noopPlayer) PlaySessionConfirm()               {}
func (noopPlayer) PlaySessionCancel()                {}
func (noopPlayer) PlayNoMic(string, float64)         {}
func (noopPlayer) PlayDunno(string, float64) string  { return "" }
func (noopPlayer) PlaySound(string, string, float64) {}
func (noopPlayer) PlayURL(string, float64)           {}
func (noopPlayer) Stop()                             {}
func (noopPlayer) Speak(context.Context, string, api.SpeechOptions) error {
	return nil
}
