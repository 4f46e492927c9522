package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/parley.jsonc", "--verbose", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/parley.jsonc", parsed.ConfigPath)
	require.True(t, parsed.Verbose)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
		wantText string
		wantAll  bool
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "config after command", args: []string{"status", "--config", "/tmp/cfg"}, wantErr: "unexpected arguments after command"},
		{name: "missing config path", args: []string{"--config"}, wantErr: "requires a path"},
		{name: "config equals form", args: []string{"--config=/tmp/cfg", "status"}, wantCmd: CommandStatus, wantPath: "/tmp/cfg"},
		{name: "empty config equals form", args: []string{"--config=", "status"}, wantErr: "requires a path"},
		{name: "help command", args: []string{"help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "unknown command", args: []string{"bogus"}, wantErr: "unknown command"},
		{name: "extra args after command", args: []string{"doctor", "extra"}, wantErr: "unexpected arguments"},
		{name: "valid cancel command", args: []string{"cancel"}, wantCmd: CommandCancel},
		{name: "valid stop with config", args: []string{"--config", "/tmp/cfg", "stop"}, wantCmd: CommandStop, wantPath: "/tmp/cfg"},
		{name: "say joins words", args: []string{"say", "Góðan", "daginn"}, wantCmd: CommandSay, wantText: "Góðan daginn"},
		{name: "say keeps dash words", args: []string{"say", "-", "já"}, wantCmd: CommandSay, wantText: "- já"},
		{name: "say without text", args: []string{"say", " "}, wantErr: "say requires text"},
		{name: "clear history", args: []string{"clear-history"}, wantCmd: CommandClearHistory},
		{name: "clear all history", args: []string{"clear-history", "--all"}, wantCmd: CommandClearHistory, wantAll: true},
		{name: "clear history bad flag", args: []string{"clear-history", "--some"}, wantErr: "unexpected argument for clear-history"},
		{name: "token", args: []string{"token"}, wantCmd: CommandToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			require.Equal(t, tc.wantText, parsed.Text)
			require.Equal(t, tc.wantAll, parsed.All)
		})
	}
}

func TestHelpTextListsEveryCommand(t *testing.T) {
	text := HelpText("parley")
	require.True(t, strings.HasPrefix(text, "Usage:\n  parley [--config PATH]"))
	for _, spec := range commands {
		require.Contains(t, text, string(spec.name))
		require.Contains(t, text, spec.summary)
	}
	require.Contains(t, text, "say TEXT...")
	require.Contains(t, text, "clear-history [--all]")
	require.Contains(t, text, "parley/config.jsonc")
}
