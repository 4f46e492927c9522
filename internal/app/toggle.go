package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/parley/internal/api"
	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/indicator"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/metrics"
	"github.com/rbright/parley/internal/output"
	"github.com/rbright/parley/internal/playback"
	"github.com/rbright/parley/internal/protocol"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/version"
)

const (
	acquireProbeTimeout = 180 * time.Millisecond
	acquireRetries      = 8
	playbackDrainLimit  = 45 * time.Second
	uiTimeout           = time.Second
)

func (r Runner) commandToggle(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if code, handled := r.forwardToggle(ctx, socketPath); handled {
		return code
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{
		ProbeTimeout: acquireProbeTimeout,
		Retries:      acquireRetries,
	})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			if code, handled := r.forwardToggle(ctx, socketPath); handled {
				return code
			}
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	clientID, err := resolveClientID(cfg.Client.ID)
	if err != nil {
		logger.Warn("client id unavailable", "error", err.Error())
	}

	client := api.NewClient(cfg.Server.URL, cfg.Server.APIKey)
	player := newPlayer(cfg, client, logger)
	defer player.Close()

	recorder := audio.NewRecorder(cfg.Audio.Input, cfg.Audio.Fallback, logger,
		audio.WithAudioDump(cfg.Debug.EnableAudioDump))
	ui := indicator.NewDesktopNotify(cfg.Indicator, logger)
	stats := metrics.New()

	sessCfg := sessionConfig(cfg, clientID, stats)
	sessCfg.Handlers = indicatorHandlers(ctx, ui)

	sess := session.New(sessCfg, session.NewHardware(recorder, player),
		session.WithLogger(logger),
		session.WithObserver(stats),
	)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, sess, ipc.WithLogger(logger))
	}()

	if err := sess.Start(ctx); err != nil {
		serverCancel()
		<-serverErrCh
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	select {
	case <-sess.Done():
	case <-ctx.Done():
		sess.Cancel()
		<-sess.Done()
	}

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		logger.Error("ipc server failed", "error", serverErr.Error())
	}

	result := sess.Result()
	logSessionResult(logger, result)

	if result.Outcome == session.OutcomeCompleted {
		r.finishAnswer(result, output.NewClipboard(cfg.Clipboard, logger), logger)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), playbackDrainLimit)
	if err := player.Wait(drainCtx); err != nil {
		logger.Warn("playback did not finish", "error", err.Error())
		player.Stop()
	}
	drainCancel()

	if err := stats.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn("write metrics textfile", "error", err.Error())
	}

	switch result.Outcome {
	case session.OutcomeCancelled:
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	case session.OutcomeFailed:
		if result.Err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		}
		return 1
	}

	if text := strings.TrimSpace(result.Transcript); text != "" {
		fmt.Fprintln(r.Stdout, text)
	}
	if answer := strings.TrimSpace(result.Answer); answer != "" {
		fmt.Fprintln(r.Stdout, answer)
	}
	return 0
}

// forwardToggle hands toggle to a running owner. handled is false when no
// owner is listening.
func (r Runner) forwardToggle(ctx context.Context, socketPath string) (int, bool) {
	resp, handled, err := ipc.Forward(ctx, socketPath, ipc.CommandToggle, forwardTimeout)
	if !handled {
		return 0, false
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1, true
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0, true
}

func (r Runner) finishAnswer(result session.Result, clip *output.Clipboard, logger *slog.Logger) {
	if !clip.Enabled() || strings.TrimSpace(result.Answer) == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), uiTimeout)
	defer cancel()
	if err := clip.Copy(ctx, result.Answer); err != nil {
		logger.Warn("clipboard commit failed", "error", err.Error())
	}
}

func newPlayer(cfg config.Config, synth playback.Synthesizer, logger *slog.Logger) *playback.Player {
	return playback.New(cfg.Playback, synth, logger)
}

// sessionConfig maps the loaded file/env config onto one session.
func sessionConfig(cfg config.Config, clientID string, observer session.Observer) *session.Config {
	sc := session.NewConfig(cfg.Server.URL, session.WithConfigObserver(observer))
	sc.APIKey = cfg.Server.APIKey
	sc.Engine = cfg.Session.Engine
	sc.VoiceID = cfg.Voice.ID
	sc.VoiceSpeed = cfg.Voice.Speed
	sc.PrivateMode = cfg.Session.Private
	sc.ClientID = clientID
	sc.ClientType = cfg.Client.Type
	sc.ClientVersion = version.Version
	sc.Query = cfg.Session.Query
	sc.TTS = cfg.Session.TTS
	sc.QueryServer = cfg.Server.QueryServer
	sc.Audio = cfg.Session.UISounds
	sc.Location = cfg.Location.Coordinates
	return sc
}

// indicatorHandlers forwards lifecycle callbacks to the desktop indicator.
func indicatorHandlers(ctx context.Context, ui indicator.Controller) session.Handlers {
	// An answer stays on screen past OnDone; the indicator times it out.
	answered := false
	return session.Handlers{
		OnStartStreaming: func() { ui.ShowListening(ctx) },
		OnSpeechTextReceived: func(transcript string, _ bool, _ protocol.ASRResult) {
			ui.ShowTranscript(ctx, transcript)
		},
		OnStartQuerying: func() { ui.ShowQuerying(ctx) },
		OnQueryAnswerReceived: func(answer protocol.QueryData) {
			if strings.TrimSpace(answer.Answer) == "" {
				return
			}
			answered = true
			ui.ShowAnswer(ctx, answer.Answer)
		},
		OnDone: func() {
			if !answered {
				ui.Hide(ctx)
			}
		},
		OnError: func(message string) { ui.ShowError(ctx, message) },
	}
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"session_id", result.ID,
		"state", string(result.State),
		"outcome", string(result.Outcome),
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"transcript_length", len(result.Transcript),
		"answer_length", len(result.Answer),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
