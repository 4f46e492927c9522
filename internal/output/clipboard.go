// Package output copies session results to the clipboard.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/logging"
)

const copyTimeout = 2 * time.Second

var errNoCommand = errors.New("clipboard command is empty")

// Clipboard hands text to the configured clipboard command. The text goes
// to stdin unless the command has a {text} placeholder.
type Clipboard struct {
	enabled bool
	cmd     config.CommandConfig
	logger  *slog.Logger
}

func NewClipboard(cfg config.ClipboardConfig, logger *slog.Logger) *Clipboard {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Clipboard{
		enabled: cfg.Enable && len(cfg.Cmd.Argv) > 0,
		cmd:     cfg.Cmd,
		logger:  logger,
	}
}

func (c *Clipboard) Enabled() bool { return c.enabled }

// Copy is a no-op for blank text or a disabled clipboard.
func (c *Clipboard) Copy(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" || !c.enabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	argv, stdin := c.cmd.Argv, text
	if c.cmd.Uses("text") {
		argv, stdin = c.cmd.Expand(map[string]string{"text": text}), ""
	}
	if err := run(ctx, argv, stdin); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	c.logger.Debug("answer copied to clipboard", "chars", len([]rune(text)))
	return nil
}

func run(ctx context.Context, argv []string, stdin string) error {
	if len(argv) == 0 {
		return errNoCommand
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}
