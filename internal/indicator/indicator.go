// Package indicator shows session progress as a replaceable desktop notification.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/config"
)

// Controller is the session-facing indicator contract.
type Controller interface {
	ShowListening(context.Context)
	ShowTranscript(context.Context, string)
	ShowQuerying(context.Context)
	ShowAnswer(context.Context, string)
	ShowError(context.Context, string)
	Hide(context.Context)
}

const (
	persistentTimeoutMS = 300000
	answerTimeoutMS     = 8000
)

// DesktopNotify routes indicator output to org.freedesktop.Notifications.
// Every update replaces the previous notification.
type DesktopNotify struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu             sync.Mutex
	notificationID uint32
}

var _ Controller = (*DesktopNotify)(nil)

// NewDesktopNotify creates an indicator controller from config.
func NewDesktopNotify(cfg config.IndicatorConfig, logger *slog.Logger) *DesktopNotify {
	return &DesktopNotify{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// ShowListening signals that audio is streaming.
func (d *DesktopNotify) ShowListening(ctx context.Context) {
	d.show(ctx, notification{summary: d.messages.listening, timeoutMS: persistentTimeoutMS})
}

// ShowTranscript updates the notification body with the running transcript.
func (d *DesktopNotify) ShowTranscript(ctx context.Context, text string) {
	d.show(ctx, notification{summary: d.messages.listening, body: text, timeoutMS: persistentTimeoutMS})
}

// ShowQuerying signals the final transcript was sent for an answer.
func (d *DesktopNotify) ShowQuerying(ctx context.Context) {
	d.show(ctx, notification{summary: d.messages.querying, timeoutMS: persistentTimeoutMS})
}

// ShowAnswer displays the answer text.
func (d *DesktopNotify) ShowAnswer(ctx context.Context, answer string) {
	d.show(ctx, notification{summary: d.messages.answer, body: answer, timeoutMS: answerTimeoutMS})
}

// ShowError displays an error-state indicator message.
func (d *DesktopNotify) ShowError(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		text = d.messages.errorText
	}
	timeout := d.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	d.show(ctx, notification{summary: d.messages.errorTitle, body: text, timeoutMS: timeout, urgent: true})
}

// Hide dismisses the active notification.
func (d *DesktopNotify) Hide(ctx context.Context) {
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		d.mu.Lock()
		id := d.notificationID
		d.notificationID = 0
		d.mu.Unlock()

		if id == 0 {
			return nil
		}
		return desktopDismiss(ctx, id)
	})
}

func (d *DesktopNotify) show(ctx context.Context, n notification) {
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		d.mu.Lock()
		replaceID := d.notificationID
		d.mu.Unlock()

		appName := strings.TrimSpace(d.cfg.DesktopAppName)
		if appName == "" {
			appName = "parley"
		}

		n.appName = appName
		n.replaceID = replaceID
		id, err := desktopNotify(ctx, n)
		if err != nil {
			return err
		}

		d.mu.Lock()
		d.notificationID = id
		d.mu.Unlock()
		return nil
	})
}

// run executes an indicator operation with a bounded timeout.
func (d *DesktopNotify) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		d.log("indicator dispatch failed", err)
	}
}

// log emits debug-only indicator failures to the runtime logger.
func (d *DesktopNotify) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, "error", err.Error())
}
