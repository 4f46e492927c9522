// Package session drives one voice interaction against the speech service:
// token, channel, greeting, audio streaming, transcript, answer.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/parley/internal/channel"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/logging"
	"github.com/rbright/parley/internal/protocol"
	"github.com/rbright/parley/internal/transcript"
)

var (
	// ErrNotIdle is returned by Start on a session that already ran.
	ErrNotIdle = errors.New("session is not idle")
	// ErrMissingToken indicates no valid token could be obtained.
	ErrMissingToken = errors.New("missing session token")
)

const recorderStopTimeout = 2 * time.Second

// Outcome classifies how a session terminated.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Result is a snapshot of what the session produced.
type Result struct {
	ID         string
	State      fsm.State
	Outcome    Outcome
	Transcript string
	Answer     string
	AudioURL   string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Session is a single-use interaction. All state changes go through one
// serialized event queue, so callbacks never run concurrently and may call
// Stop or Cancel re-entrantly.
type Session struct {
	id       string
	cfg      *Config
	hw       *Hardware
	dialer   channel.Dialer
	logger   *slog.Logger
	observer Observer

	mu       sync.Mutex
	state    fsm.State
	queue    []event
	draining bool
	started  bool
	conn     channel.Conn
	result   Result

	// owned by the draining goroutine
	ctx       context.Context
	cancelCtx context.CancelFunc
	release   func()
	capturing bool

	done chan struct{}
}

// Option customizes New.
type Option func(*Session)

func WithDialer(d channel.Dialer) Option {
	return func(s *Session) {
		if d != nil {
			s.dialer = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(s *Session) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// New builds an idle session. A nil hw gets no-op devices.
func New(cfg *Config, hw *Hardware, opts ...Option) *Session {
	if cfg == nil {
		cfg = NewConfig("")
	}
	if hw == nil {
		hw = NewHardware(nil, nil)
	}

	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		hw:       hw,
		dialer:   channel.WebSocketDialer{HandshakeTimeout: 10 * time.Second},
		logger:   logging.Discard(),
		observer: noopObserver{},
		state:    fsm.StateIdle,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)
	s.result.ID = s.id
	return s
}

func (s *Session) ID() string { return s.id }

// State returns the current state snapshot.
func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsActive reports whether the session is neither idle nor done.
func (s *Session) IsActive() bool {
	state := s.State()
	return state != fsm.StateIdle && state != fsm.StateDone
}

// Done is closed after the terminal callback returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.result
	res.State = s.state
	return res
}

func (s *Session) String() string {
	activity := "inactive"
	if s.IsActive() {
		activity = "active"
	}
	return fmt.Sprintf("Session { state: %s (%s) }", s.State(), activity)
}

// Start leases the hardware and begins the token/channel handshake. It
// returns at once; wait on Done for the outcome.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.state != fsm.StateIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	s.started = true
	s.mu.Unlock()

	release, err := s.hw.acquire(s.id)
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return err
	}

	s.dispatch(startEvent{ctx: ctx, release: release})
	return nil
}

// Stop ends the session normally. No-op once done.
func (s *Session) Stop() {
	s.dispatch(stopEvent{})
}

// Cancel ends the session and plays the cancel cue. No-op once done.
func (s *Session) Cancel() {
	s.dispatch(cancelEvent{})
}

type event interface{ isEvent() }

type (
	startEvent struct {
		ctx     context.Context
		release func()
	}
	tokenEvent struct{ err error }
	openEvent  struct{ conn channel.Conn }
	dialEvent  struct{ err error }
	frameEvent struct {
		msg protocol.Message
		err error
	}
	lostEvent    struct{ err error }
	captureEvent struct{ err error }
	stopEvent    struct{}
	cancelEvent  struct{}
)

func (startEvent) isEvent()   {}
func (tokenEvent) isEvent()   {}
func (openEvent) isEvent()    {}
func (dialEvent) isEvent()    {}
func (frameEvent) isEvent()   {}
func (lostEvent) isEvent()    {}
func (captureEvent) isEvent() {}
func (stopEvent) isEvent()    {}
func (cancelEvent) isEvent()  {}

// dispatch enqueues ev. The first caller drains the queue; callers arriving
// while a drain is in progress return immediately.
func (s *Session) dispatch(ev event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.handle(next)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func (s *Session) handle(ev event) {
	switch e := ev.(type) {
	case startEvent:
		s.onStart(e)
	case tokenEvent:
		s.onToken(e)
	case openEvent:
		s.onOpen(e.conn)
	case dialEvent:
		s.fail(fmt.Errorf("communicate with server: %w", e.err))
	case frameEvent:
		if e.err != nil {
			s.fail(fmt.Errorf("handle message: %w", e.err))
			return
		}
		s.onMessage(e.msg)
	case lostEvent:
		s.fail(fmt.Errorf("channel closed: %w", e.err))
	case captureEvent:
		s.fail(fmt.Errorf("audio capture: %w", e.err))
	case stopEvent:
		s.finish(OutcomeCompleted)
	case cancelEvent:
		s.cancel()
	}
}

func (s *Session) onStart(e startEvent) {
	if err := s.transition(fsm.EventStart); err != nil {
		e.release()
		return
	}
	s.release = e.release
	s.ctx, s.cancelCtx = context.WithCancel(e.ctx)

	s.mu.Lock()
	s.result.StartedAt = time.Now()
	s.mu.Unlock()
	s.logger.Info("session start", "server", s.cfg.Server(), "query", s.cfg.Query, "private", s.cfg.PrivateMode)

	ctx := s.ctx
	go func() {
		s.dispatch(tokenEvent{err: s.cfg.FetchToken(ctx)})
	}()
}

func (s *Session) onToken(e tokenEvent) {
	if s.State() != fsm.StateStarting {
		return
	}
	if !s.cfg.HasValidToken() {
		if e.err != nil {
			s.logger.Debug("token fetch failed", "error", e.err.Error())
		}
		s.fail(ErrMissingToken)
		return
	}

	ctx, url := s.ctx, s.cfg.SocketURL()
	go func() {
		conn, err := s.dialer.Dial(ctx, url)
		if err != nil {
			s.dispatch(dialEvent{err: err})
			return
		}
		s.dispatch(openEvent{conn: conn})
	}()
}

func (s *Session) onOpen(conn channel.Conn) {
	if s.State() != fsm.StateStarting {
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	greeting, err := GreetingFromConfig(s.cfg).Wire()
	if err != nil {
		s.fail(fmt.Errorf("encode greeting: %w", err))
		return
	}
	if err := conn.WriteText(greeting); err != nil {
		s.fail(fmt.Errorf("send greeting: %w", err))
		return
	}
	go s.readLoop(conn)

	if err := s.transition(fsm.EventOpen); err != nil {
		s.fail(err)
		return
	}

	if err := s.hw.recorder.Start(s.ctx, s.sendAudio, s.captureFailed); err != nil {
		s.failNoMic(fmt.Errorf("start audio capture: %w", err))
		return
	}
	s.capturing = true
	if s.cfg.Audio {
		s.hw.player.PlaySessionStart()
	}
}

// sendAudio runs on the recorder's goroutine.
func (s *Session) sendAudio(chunk []byte) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.WriteBinary(chunk); err != nil && !channel.IsClosure(err) {
		go s.dispatch(lostEvent{err: err})
	}
}

// captureFailed runs on the recorder's goroutine, which Stop may wait for.
func (s *Session) captureFailed(err error) {
	go s.dispatch(captureEvent{err: err})
}

func (s *Session) readLoop(conn channel.Conn) {
	for {
		frame, err := conn.Read()
		if err != nil {
			s.dispatch(lostEvent{err: err})
			return
		}
		if frame.Binary {
			s.dispatch(frameEvent{err: errors.New("unexpected binary frame")})
			continue
		}
		msg, err := protocol.Parse(frame.Data)
		s.dispatch(frameEvent{msg: msg, err: err})
	}
}

func (s *Session) onMessage(msg protocol.Message) {
	if s.State().Terminal() {
		return
	}

	switch m := msg.(type) {
	case protocol.Greetings:
		s.cfg.Handlers.startStreaming()
	case protocol.ASRResult:
		s.onASRResult(m)
	case protocol.QueryResult:
		s.onQueryResult(m)
	case protocol.ServerError:
		switch m.Name {
		case protocol.ErrorNameTimeout:
			s.cancel()
			return
		case protocol.ErrorNameToken:
			s.cfg.ResetToken()
		}
		message := m.Message
		if message == "" {
			message = m.Name
		}
		s.fail(errors.New(message))
	default:
		s.fail(fmt.Errorf("invalid message type: %q", msg.MessageType()))
	}
}

func (s *Session) onASRResult(m protocol.ASRResult) {
	if state := s.State(); state != fsm.StateStreaming {
		s.fail(fmt.Errorf("received %s while %s", m.MessageType(), state))
		return
	}

	text := transcript.CapFirst(m.Transcript)
	s.mu.Lock()
	s.result.Transcript = text
	s.mu.Unlock()

	if m.IsFinal {
		s.stopCapture()
		if s.cfg.Query {
			if err := s.transition(fsm.EventFinal); err != nil {
				s.fail(err)
				return
			}
			if s.cfg.Audio {
				s.hw.player.PlaySessionConfirm()
			}
			s.cfg.Handlers.startQuerying()
		}
	}

	s.cfg.Handlers.speechText(text, m.IsFinal, m)

	if !m.IsFinal {
		return
	}
	if text == "" {
		s.cancel()
		return
	}
	if !s.cfg.Query {
		s.finish(OutcomeCompleted)
	}
}

func (s *Session) onQueryResult(m protocol.QueryResult) {
	if state := s.State(); state != fsm.StateAnswering {
		s.fail(fmt.Errorf("received %s while %s", m.MessageType(), state))
		return
	}

	if !m.Data.Usable() {
		dunno := s.hw.player.PlayDunno(s.cfg.VoiceID, s.cfg.VoiceSpeed)
		answer := protocol.QueryData{}
		if m.Data != nil {
			answer = *m.Data
		}
		answer.Answer = dunno

		s.mu.Lock()
		s.result.Answer = dunno
		s.mu.Unlock()

		s.cfg.Handlers.answer(answer)
		s.finish(OutcomeCompleted)
		return
	}

	data := *m.Data
	s.mu.Lock()
	s.result.Answer = data.Answer
	s.result.AudioURL = data.Audio
	s.mu.Unlock()

	s.cfg.Handlers.answer(data)
	if data.Audio != "" && !s.State().Terminal() {
		s.cfg.Handlers.startAnswering()
		s.hw.player.PlayURL(data.Audio, s.cfg.VoiceSpeed)
	}
	s.finish(OutcomeCompleted)
}

func (s *Session) transition(event fsm.Event) error {
	s.mu.Lock()
	from := s.state
	next, err := fsm.Transition(from, event)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	s.mu.Unlock()

	s.observer.ObserveTransition(from, next)
	s.logger.Debug("session transition", "from", string(from), "to", string(next), "event", string(event))
	return nil
}

// finish is the stop path: release resources, then OnDone.
func (s *Session) finish(outcome Outcome) {
	if !s.terminate(fsm.EventFinish, outcome, nil) {
		return
	}
	s.cfg.Handlers.done()
	close(s.done)
}

func (s *Session) cancel() {
	if !s.terminate(fsm.EventFinish, OutcomeCancelled, nil) {
		return
	}
	if s.cfg.Audio {
		s.hw.player.PlaySessionCancel()
	}
	s.cfg.Handlers.done()
	close(s.done)
}

// fail is the error path: release resources, then OnError.
func (s *Session) fail(err error) {
	s.failWith(err, func() { s.hw.player.PlaySound("err", s.cfg.VoiceID, s.cfg.VoiceSpeed) })
}

func (s *Session) failNoMic(err error) {
	s.failWith(err, func() { s.hw.player.PlayNoMic(s.cfg.VoiceID, s.cfg.VoiceSpeed) })
}

func (s *Session) failWith(err error, sound func()) {
	if !s.terminate(fsm.EventFail, OutcomeFailed, err) {
		return
	}
	s.cfg.Handlers.fail(err.Error())
	if s.cfg.Audio {
		sound()
	}
	close(s.done)
}

// terminate moves to done exactly once and tears down capture and channel.
// It reports false when the session was already done.
func (s *Session) terminate(event fsm.Event, outcome Outcome, err error) bool {
	s.mu.Lock()
	from := s.state
	if from.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.state = fsm.StateDone
	conn := s.conn
	s.conn = nil
	s.result.Outcome = outcome
	s.result.Err = err
	s.result.FinishedAt = time.Now()
	started := s.result.StartedAt
	s.mu.Unlock()

	s.observer.ObserveTransition(from, fsm.StateDone)

	s.stopCapture()
	if conn != nil {
		if cerr := conn.Close(); cerr != nil {
			s.logger.Debug("close channel", "error", cerr.Error())
		}
	}
	if s.cancelCtx != nil {
		s.cancelCtx()
	}
	if s.release != nil {
		s.release()
		s.release = nil
	}

	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = time.Since(started)
	}
	s.observer.ObserveOutcome(outcome, elapsed)

	attrs := []any{"from", string(from), "event", string(event), "outcome", string(outcome), "elapsed_ms", elapsed.Milliseconds()}
	if err != nil {
		s.logger.Error("session failed", append(attrs, "error", err.Error())...)
	} else {
		s.logger.Info("session done", attrs...)
	}
	return true
}

func (s *Session) stopCapture() {
	if !s.capturing {
		return
	}
	s.capturing = false

	ctx, cancel := context.WithTimeout(context.Background(), recorderStopTimeout)
	defer cancel()
	if err := s.hw.recorder.Stop(ctx); err != nil {
		s.logger.Debug("stop audio capture", "error", err.Error())
	}
}
