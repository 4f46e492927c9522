// Package doctor checks that config, credentials, tools and audio are usable
// before the first voice query.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/parley/internal/api"
	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/config"
)

type Check struct {
	Name    string
	Pass    bool
	Message string
}

func pass(name, format string, args ...any) Check {
	return Check{Name: name, Pass: true, Message: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) Check {
	return Check{Name: name, Message: fmt.Sprintf(format, args...)}
}

type Report struct {
	Checks []Check
}

func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders one "[OK] name: message" line per check.
func (r Report) String() string {
	lines := make([]string, 0, len(r.Checks))
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", status, check.Name, check.Message))
	}
	return strings.Join(lines, "\n")
}

// Probes are the checks that touch the network or the sound server.
type Probes struct {
	FetchToken   func(ctx context.Context, cfg config.Config) error
	SelectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
}

func DefaultProbes() Probes {
	return Probes{
		FetchToken: func(ctx context.Context, cfg config.Config) error {
			_, err := api.NewClient(cfg.Server.URL, cfg.Server.APIKey).FetchToken(ctx)
			return err
		},
		SelectDevice: audio.SelectDevice,
	}
}

// Run checks loaded in order. The token probe runs only with an API key;
// busctl and the clipboard command only when their feature is enabled.
func Run(ctx context.Context, loaded config.Loaded, probes Probes) Report {
	cfg := loaded.Config
	hasKey := strings.TrimSpace(cfg.Server.APIKey) != ""

	steps := []struct {
		when  bool
		check func() Check
	}{
		{true, func() Check { return configCheck(loaded) }},
		{true, func() Check { return checkAPIKey(hasKey) }},
		{hasKey, func() Check { return checkToken(ctx, cfg, probes.FetchToken) }},
		{true, func() Check { return checkAudioSelection(ctx, cfg.Audio, probes.SelectDevice) }},
		{true, func() Check { return checkCommand(cfg.Playback.Command.Argv, "playback.command") }},
		{cfg.Indicator.Enable, func() Check { return checkBinary("busctl", "desktop notifications") }},
		{cfg.Clipboard.Enable, func() Check { return checkCommand(cfg.Clipboard.Cmd.Argv, "clipboard.cmd") }},
	}

	var report Report
	for _, step := range steps {
		if step.when {
			report.Checks = append(report.Checks, step.check())
		}
	}
	return report
}

func configCheck(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("%q not found; using defaults", loaded.Path)
	}
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(" (%d warning(s))", n)
	}
	return pass("config", "%s", message)
}

func checkAPIKey(configured bool) Check {
	if !configured {
		return fail("api_key", "set PARLEY_API_KEY or server.api_key")
	}
	return pass("api_key", "configured")
}

func checkToken(ctx context.Context, cfg config.Config, fetch func(context.Context, config.Config) error) Check {
	ctx, cancel := context.WithTimeout(ctx, api.TokenTimeout)
	defer cancel()

	start := time.Now()
	if err := fetch(ctx, cfg); err != nil {
		return fail("server.token", "%v", err)
	}
	return pass("server.token", "token issued by %s in %s", cfg.Server.URL, time.Since(start).Round(time.Millisecond))
}

func checkCommand(argv []string, field string) Check {
	if len(argv) == 0 {
		return fail(field, "command is empty")
	}
	return checkBinary(argv[0], field+" command is available")
}

func checkBinary(bin string, purpose string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return fail(bin, "binary not found in PATH: %s", bin)
	}
	return pass(bin, "found at %s (%s)", path, purpose)
}

func checkAudioSelection(ctx context.Context, cfg config.AudioConfig, selectDevice func(context.Context, string, string) (audio.Selection, error)) Check {
	selection, err := selectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return fail("audio.device", "%v", err)
	}
	if selection.Warning != "" {
		return pass("audio.device", "selected %q (%s)", selection.Device.ID, selection.Warning)
	}
	return pass("audio.device", "selected %q", selection.Device.ID)
}
