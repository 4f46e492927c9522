package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	SampleRate = 16000
	// frameBytes is 20ms of 16 kHz mono s16le.
	frameBytes = 640
)

// framer cuts a PCM byte stream into frameBytes frames. It keeps a copy of
// the whole stream when keepRaw is set.
type framer struct {
	keepRaw bool
	pending []byte
	raw     []byte
}

func (f *framer) push(pcm []byte) [][]byte {
	if f.keepRaw {
		f.raw = append(f.raw, pcm...)
	}
	f.pending = append(f.pending, pcm...)

	var frames [][]byte
	for len(f.pending) >= frameBytes {
		frames = append(frames, append([]byte(nil), f.pending[:frameBytes]...))
		f.pending = f.pending[frameBytes:]
	}
	return frames
}

// flush returns the trailing partial frame, or nil.
func (f *framer) flush() []byte {
	if len(f.pending) == 0 {
		return nil
	}
	rest := append([]byte(nil), f.pending...)
	f.pending = nil
	return rest
}

// Capture is a running Pulse record stream.
type Capture struct {
	device Device
	client *pulse.Client
	stream *pulse.RecordStream

	frames chan []byte
	halt   chan struct{}

	mu      sync.Mutex
	framer  framer
	stopped bool

	writers sync.WaitGroup
	bytes   atomic.Int64
}

// StartCapture opens a 16 kHz mono s16 record stream on device. It stops
// when ctx ends. keepRaw retains the full stream for RawPCM.
func StartCapture(ctx context.Context, device Device, keepRaw bool) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	src, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	c := newCapture(device, keepRaw)
	c.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.write), pulseproto.FormatInt16LE),
		pulse.RecordSource(src),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(frameBytes),
		pulse.RecordMediaName("parley voice query"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	context.AfterFunc(ctx, func() { _ = c.Stop() })
	return c, nil
}

func newCapture(device Device, keepRaw bool) *Capture {
	return &Capture{
		device: device,
		frames: make(chan []byte, 128),
		halt:   make(chan struct{}),
		framer: framer{keepRaw: keepRaw},
	}
}

func (c *Capture) Device() Device { return c.device }

// Chunks yields frameBytes frames; the last one may be shorter. It closes
// after Stop.
func (c *Capture) Chunks() <-chan []byte { return c.frames }

func (c *Capture) BytesCaptured() int64 { return c.bytes.Load() }

// RawPCM returns a copy of everything captured when keepRaw was set.
func (c *Capture) RawPCM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.framer.raw...)
}

// Stop ends the stream, emits any partial frame and closes Chunks. Only the
// first call does anything.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.halt)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
	c.writers.Wait()

	c.mu.Lock()
	rest := c.framer.flush()
	c.mu.Unlock()
	if rest != nil {
		select {
		case c.frames <- rest:
		default:
		}
	}
	close(c.frames)
	return nil
}

// write is the Pulse sink. It returns io.EOF once stopped.
func (c *Capture) write(pcm []byte) (int, error) {
	if len(pcm) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under mu so Stop's Wait cannot race it.
	c.writers.Add(1)
	frames := c.framer.push(pcm)
	c.mu.Unlock()
	defer c.writers.Done()

	c.bytes.Add(int64(len(pcm)))
	for _, frame := range frames {
		select {
		case <-c.halt:
			return 0, io.EOF
		case c.frames <- frame:
		}
	}
	return len(pcm), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }
