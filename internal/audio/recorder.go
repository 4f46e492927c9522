package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rbright/parley/internal/logging"
)

// ErrCaptureEnded reports a capture stream that closed without Stop.
var ErrCaptureEnded = errors.New("capture stream ended unexpectedly")

// source is the running capture a Recorder forwards from.
type source interface {
	Chunks() <-chan []byte
	Stop() error
	RawPCM() []byte
	Device() Device
	BytesCaptured() int64
}

type opener func(ctx context.Context, input, fallback string) (source, Selection, error)

// openPulse keeps raw PCM only when the debug dump will need it.
func (r *Recorder) openPulse(ctx context.Context, input, fallback string) (source, Selection, error) {
	selection, err := SelectDevice(ctx, input, fallback)
	if err != nil {
		return nil, Selection{}, err
	}
	capture, err := StartCapture(ctx, selection.Device, r.dumpAudio)
	if err != nil {
		return nil, selection, err
	}
	return capture, selection, nil
}

// Recorder captures from the configured Pulse source and hands each PCM
// chunk to the session.
type Recorder struct {
	input     string
	fallback  string
	dumpAudio bool
	logger    *slog.Logger
	open      opener

	mu       sync.Mutex
	active   source
	stopping bool
	forward  chan struct{}
}

// RecorderOption customizes NewRecorder.
type RecorderOption func(*Recorder)

// WithAudioDump writes each capture to a WAV file under the state dir.
func WithAudioDump(enabled bool) RecorderOption {
	return func(r *Recorder) { r.dumpAudio = enabled }
}

func NewRecorder(input, fallback string, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Recorder{
		input:    input,
		fallback: fallback,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.open = r.openPulse
	return r
}

func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Start opens the capture stream and forwards chunks to onData until Stop.
// onError fires if the stream ends on its own.
func (r *Recorder) Start(ctx context.Context, onData func([]byte), onError func(error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return errors.New("recorder already running")
	}

	src, selection, err := r.open(ctx, r.input, r.fallback)
	if err != nil {
		return err
	}
	if selection.Warning != "" {
		r.logger.Warn(selection.Warning)
	}
	r.logger.Debug("audio capture started", "device", describeDevice(src.Device()))

	done := make(chan struct{})
	r.active = src
	r.stopping = false
	r.forward = done

	go func() {
		defer close(done)
		for chunk := range src.Chunks() {
			if len(chunk) == 0 {
				continue
			}
			onData(chunk)
		}

		r.mu.Lock()
		unexpected := !r.stopping && ctx.Err() == nil
		r.mu.Unlock()
		if unexpected && onError != nil {
			onError(ErrCaptureEnded)
		}
	}()
	return nil
}

// Stop halts capture and waits for the last chunk to be forwarded.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	src, done := r.active, r.forward
	r.active, r.forward = nil, nil
	r.stopping = true
	r.mu.Unlock()

	if src == nil {
		return nil
	}
	if err := src.Stop(); err != nil {
		return fmt.Errorf("stop capture: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.logger.Debug("audio capture stopped", "bytes_captured", src.BytesCaptured())
	if r.dumpAudio {
		r.writeDebugAudio(src.RawPCM())
	}
	return nil
}

// describeDevice formats device metadata for logs.
func describeDevice(device Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}
