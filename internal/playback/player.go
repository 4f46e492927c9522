// Package playback plays UI cues and remote speech audio one clip at a time.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/api"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/logging"
	"github.com/rbright/parley/internal/transcript"
)

// ErrNoSynthesizer is returned by Speak when no speech API is wired.
var ErrNoSynthesizer = errors.New("speech synthesis is not configured")

// Synthesizer turns text into a playable audio URL.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts api.SpeechOptions) (string, error)
}

var dunnoPhrases = map[string]string{
	"dunno01": "Ég get ekki svarað því.",
	"dunno02": "Ég get því miður ekki svarað því.",
	"dunno03": "Ég kann ekki svar við því.",
	"dunno04": "Ég skil ekki þessa fyrirspurn.",
	"dunno05": "Ég veit það ekki.",
	"dunno06": "Því miður skildi ég þetta ekki.",
	"dunno07": "Því miður veit ég það ekki.",
}

// clip is one queued playback item: a synthesized cue or a remote file.
type clip struct {
	cue   cueKind
	url   string
	speed float64
}

func (c clip) String() string {
	if c.url != "" {
		return c.url
	}
	return c.cue.String()
}

type commandRunner func(ctx context.Context, argv []string) error

// Player is the runtime session.Player. Clips play strictly in order on one
// background goroutine; Stop drops the queue and interrupts the current clip.
type Player struct {
	cfg    config.PlaybackConfig
	synth  Synthesizer
	logger *slog.Logger
	client *http.Client
	run    commandRunner
	tone   func(ctx context.Context, samples []int16) error
	intn   func(n int) int

	mu     sync.Mutex
	queue  []clip
	cancel context.CancelFunc
	busy   bool
	idle   chan struct{}
	closed bool
}

// Option customizes New.
type Option func(*Player)

// WithHTTPClient overrides the client used to download audio.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Player) { p.client = client }
}

func withRunner(run commandRunner) Option {
	return func(p *Player) { p.run = run }
}

func withTone(tone func(ctx context.Context, samples []int16) error) Option {
	return func(p *Player) { p.tone = tone }
}

func withIntn(intn func(n int) int) Option {
	return func(p *Player) { p.intn = intn }
}

// New creates a Player. synth may be nil when Speak is never used.
func New(cfg config.PlaybackConfig, synth Synthesizer, logger *slog.Logger, opts ...Option) *Player {
	if logger == nil {
		logger = logging.Discard()
	}
	timeout := time.Duration(cfg.DownloadTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &Player{
		cfg:    cfg,
		synth:  synth,
		logger: logger,
		client: &http.Client{Timeout: timeout},
		run:    runCommand,
		tone:   playTone,
		intn:   rand.IntN,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Player) PlaySessionStart()   { p.enqueue(clip{cue: cueStart}) }
func (p *Player) PlaySessionConfirm() { p.enqueue(clip{cue: cueConfirm}) }

// PlaySessionCancel interrupts anything playing before the cancel cue.
func (p *Player) PlaySessionCancel() {
	p.Stop()
	p.enqueue(clip{cue: cueCancel})
}

func (p *Player) PlayNoMic(voiceID string, speed float64) {
	p.PlaySound("nomic", voiceID, speed)
}

// PlayDunno queues a random "cannot answer" phrase and returns its text.
func (p *Player) PlayDunno(voiceID string, speed float64) string {
	name := fmt.Sprintf("dunno%02d", p.intn(len(dunnoPhrases))+1)
	p.PlaySound(name, voiceID, speed)
	return dunnoPhrases[name]
}

func (p *Player) PlaySound(name, voiceID string, speed float64) {
	p.PlayURL(SoundURL(p.cfg.SoundBaseURL, name, voiceID), speed)
}

func (p *Player) PlayURL(url string, speed float64) {
	if strings.TrimSpace(url) == "" {
		return
	}
	p.enqueue(clip{url: url, speed: speed})
}

// Speak synthesizes text and queues the result.
func (p *Player) Speak(ctx context.Context, text string, opts api.SpeechOptions) error {
	if p.synth == nil {
		return ErrNoSynthesizer
	}
	url, err := p.synth.Synthesize(ctx, text, opts)
	if err != nil {
		return err
	}
	p.PlayURL(url, opts.Speed)
	return nil
}

// Stop clears the queue and interrupts the current clip.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = nil
	if p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until the queue is drained or ctx ends.
func (p *Player) Wait(ctx context.Context) error {
	p.mu.Lock()
	busy, idle := p.busy, p.idle
	p.mu.Unlock()
	if !busy {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops playback and rejects further clips.
func (p *Player) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.Stop()
}

func (p *Player) enqueue(c clip) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.queue = append(p.queue, c)
	if p.busy {
		return
	}
	p.busy = true
	p.idle = make(chan struct{})
	go p.drain(p.idle)
}

func (p *Player) drain(idle chan struct{}) {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.busy = false
			p.cancel = nil
			close(idle)
			p.mu.Unlock()
			return
		}
		next := p.queue[0]
		p.queue = p.queue[1:]
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.mu.Unlock()

		err := p.play(ctx, next)
		if err != nil && ctx.Err() == nil {
			p.logger.Warn("playback failed", "clip", next.String(), "error", err.Error())
		}
		cancel()
	}
}

func (p *Player) play(ctx context.Context, c clip) error {
	if c.url == "" {
		return p.playCue(ctx, c.cue)
	}

	path, cleanup, err := p.download(ctx, c.url)
	if err != nil {
		return err
	}
	defer cleanup()
	return p.run(ctx, p.cfg.Command.Expand(map[string]string{
		"file":  path,
		"speed": formatSpeed(c.speed),
	}))
}

func (p *Player) playCue(ctx context.Context, kind cueKind) error {
	if path := cuePath(kind, p.cfg); path != "" {
		err := p.run(ctx, p.cfg.Command.Expand(map[string]string{"file": path, "speed": "1"}))
		if err == nil || ctx.Err() != nil {
			return err
		}
		p.logger.Debug("cue file failed; using synthesized tone", "path", path, "error", err.Error())
	}

	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}
	return p.tone(ctx, samples)
}

// SoundURL builds the remote path of a named sound. Voice-specific sounds
// carry the lowercase ASCII voice name as a suffix.
func SoundURL(base, name, voiceID string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = config.DefaultSoundBaseURL
	}
	if voice := transcript.Asciify(strings.ToLower(strings.TrimSpace(voiceID))); voice != "" {
		name += "-" + voice
	}
	return base + "/" + name + ".mp3"
}

func formatSpeed(speed float64) string {
	if speed <= 0 {
		speed = 1
	}
	return strconv.FormatFloat(speed, 'f', -1, 64)
}

func runCommand(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("player command is empty")
	}
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("run %s: %w", argv[0], err)
		}
		return fmt.Errorf("run %s: %w (%s)", argv[0], err, trimmed)
	}
	return nil
}
