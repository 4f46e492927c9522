package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/parley/internal/api"
	"github.com/rbright/parley/internal/channel"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/protocol"
	"github.com/rbright/parley/internal/token"
)

type fakeRecorder struct {
	startErr error
	starts   atomic.Int32
	stops    atomic.Int32

	mu      sync.Mutex
	onData  func([]byte)
	onError func(error)
}

func (f *fakeRecorder) IsRecording() bool {
	return f.starts.Load() > f.stops.Load()
}

func (f *fakeRecorder) Start(_ context.Context, onData func([]byte), onError func(error)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.onData, f.onError = onData, onError
	f.mu.Unlock()
	f.starts.Add(1)
	return nil
}

func (f *fakeRecorder) Stop(context.Context) error {
	f.stops.Add(1)
	return nil
}

func (f *fakeRecorder) emit(chunk []byte) {
	f.mu.Lock()
	onData := f.onData
	f.mu.Unlock()
	onData(chunk)
}

func (f *fakeRecorder) failWith(err error) {
	f.mu.Lock()
	onError := f.onError
	f.mu.Unlock()
	onError(err)
}

const dunnoText = "Ég veit það ekki."

type fakePlayer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakePlayer) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakePlayer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlayer) PlaySessionStart()   { f.record("start") }
func (f *fakePlayer) PlaySessionConfirm() { f.record("confirm") }
func (f *fakePlayer) PlaySessionCancel()  { f.record("cancel") }
func (f *fakePlayer) PlayNoMic(string, float64) {
	f.record("nomic")
}
func (f *fakePlayer) PlayDunno(string, float64) string {
	f.record("dunno")
	return dunnoText
}
func (f *fakePlayer) PlaySound(name, _ string, _ float64) { f.record("sound:" + name) }
func (f *fakePlayer) PlayURL(url string, _ float64)       { f.record("url:" + url) }
func (f *fakePlayer) Stop()                               { f.record("stop") }
func (f *fakePlayer) Speak(context.Context, string, api.SpeechOptions) error {
	return nil
}

type fakeConn struct {
	inbound chan channel.Frame
	closed  chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	text      [][]byte
	binary    [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan channel.Frame, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) WriteText(data []byte) error {
	if c.isClosed() {
		return channel.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = append(c.text, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) WriteBinary(data []byte) error {
	if c.isClosed() {
		return channel.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.binary = append(c.binary, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Read() (channel.Frame, error) {
	select {
	case frame := <-c.inbound:
		return frame, nil
	case <-c.closed:
		return channel.Frame{}, net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) Text() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.text...)
}

func (c *fakeConn) Binary() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.binary...)
}

func (c *fakeConn) push(raw string) {
	c.inbound <- channel.Frame{Data: []byte(raw)}
}

type fakeDialer struct {
	conn  *fakeConn
	err   error
	gate  chan struct{}
	dials atomic.Int32
	url   atomic.Value
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (channel.Conn, error) {
	d.dials.Add(1)
	d.url.Store(url)
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// callbackLog records handler invocations in order.
type callbackLog struct {
	mu     sync.Mutex
	events []string
}

func (l *callbackLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *callbackLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *callbackLog) count(event string) int {
	n := 0
	for _, e := range l.Events() {
		if e == event {
			n++
		}
	}
	return n
}

func (l *callbackLog) handlers() Handlers {
	return Handlers{
		OnStartStreaming: func() { l.add("streaming") },
		OnSpeechTextReceived: func(text string, isFinal bool, _ protocol.ASRResult) {
			l.add("speech:%s:%t", text, isFinal)
		},
		OnStartQuerying:       func() { l.add("querying") },
		OnQueryAnswerReceived: func(answer protocol.QueryData) { l.add("answer:%s", answer.Answer) },
		OnStartAnswering:      func() { l.add("answering") },
		OnDone:                func() { l.add("done") },
		OnError:               func(message string) { l.add("error:%s", message) },
	}
}

type harness struct {
	session  *Session
	cfg      *Config
	conn     *fakeConn
	dialer   *fakeDialer
	recorder *fakeRecorder
	player   *fakePlayer
	log      *callbackLog
	fetches  *atomic.Int32
}

func validTokenSource(fetches *atomic.Int32) TokenSource {
	return func(context.Context) (*token.Token, error) {
		fetches.Add(1)
		return &token.Token{Value: "tok-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	h := &harness{
		conn:     newFakeConn(),
		recorder: &fakeRecorder{},
		player:   &fakePlayer{},
		log:      &callbackLog{},
		fetches:  &atomic.Int32{},
	}
	h.dialer = &fakeDialer{conn: h.conn}

	h.cfg = NewConfig("https://speech.example")
	h.cfg.TokenSource = validTokenSource(h.fetches)
	h.cfg.Handlers = h.log.handlers()
	if mutate != nil {
		mutate(h.cfg)
	}

	h.session = New(h.cfg, NewHardware(h.recorder, h.player), WithDialer(h.dialer))
	return h
}

func (h *harness) startStreaming(t *testing.T) {
	t.Helper()
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForState(t, h.session, fsm.StateStreaming)
	waitFor(t, "recorder start", func() bool { return h.recorder.starts.Load() == 1 })
	if h.cfg.Audio {
		waitFor(t, "start cue", func() bool { return len(h.player.Calls()) > 0 })
	}
}

func waitForState(t *testing.T, s *Session, desired fsm.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == desired {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s (current=%s)", desired, s.State())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not finish (state=%s)", s.State())
	}
}

var errBoom = errors.New("boom")
