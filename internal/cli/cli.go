// Package cli parses parley command lines.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandToggle       Command = "toggle"
	CommandStop         Command = "stop"
	CommandCancel       Command = "cancel"
	CommandStatus       Command = "status"
	CommandSay          Command = "say"
	CommandClearHistory Command = "clear-history"
	CommandToken        Command = "token"
	CommandDevices      Command = "devices"
	CommandDoctor       Command = "doctor"
	CommandVersion      Command = "version"
	CommandHelp         Command = "help"
)

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	Verbose    bool

	// Text is the joined argument of say.
	Text string
	// All selects clear_all for clear-history.
	All bool
}

type commandSpec struct {
	name    Command
	usage   string
	summary string
	args    func(p *Parsed, rest []string) error
}

var commands = []commandSpec{
	{name: CommandToggle, summary: "Start a voice query, or stop the one in progress"},
	{name: CommandStop, summary: "Stop listening and wait for the answer"},
	{name: CommandCancel, summary: "Cancel the active voice query"},
	{name: CommandStatus, summary: "Print current session state"},
	{name: CommandSay, usage: "say TEXT...", summary: "Speak TEXT with the configured voice", args: sayArgs},
	{name: CommandClearHistory, usage: "clear-history [--all]", summary: "Clear query history for this client (--all: all user data)", args: clearHistoryArgs},
	{name: CommandToken, summary: "Fetch and print a session token"},
	{name: CommandDevices, summary: "List available input devices"},
	{name: CommandDoctor, summary: "Run configuration and environment checks"},
	{name: CommandVersion, summary: "Print version information"},
	{name: CommandHelp, summary: "Show this help"},
}

func lookup(name string) (commandSpec, bool) {
	for _, spec := range commands {
		if string(spec.name) == name {
			return spec, true
		}
	}
	return commandSpec{}, false
}

// Parse reads global flags up to the first command word. Everything after
// the command belongs to it.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help":
			parsed.Command, parsed.ShowHelp = CommandHelp, true
		case arg == "--version":
			parsed.Command, parsed.ShowHelp = CommandVersion, false
		case arg == "-v" || arg == "--verbose":
			parsed.Verbose = true
		case arg == "--config":
			i++
			if i >= len(args) || args[i] == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			parsed.ConfigPath = strings.TrimPrefix(arg, "--config=")
			if parsed.ConfigPath == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
		case strings.HasPrefix(arg, "-"):
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		default:
			spec, ok := lookup(arg)
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = spec.name
			parsed.ShowHelp = spec.name == CommandHelp

			rest := args[i+1:]
			if spec.args != nil {
				if err := spec.args(&parsed, rest); err != nil {
					return Parsed{}, err
				}
				return parsed, nil
			}
			if len(rest) > 0 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", spec.name)
			}
			return parsed, nil
		}
	}
	return parsed, nil
}

func sayArgs(p *Parsed, rest []string) error {
	p.Text = strings.TrimSpace(strings.Join(rest, " "))
	if p.Text == "" {
		return errors.New("say requires text")
	}
	return nil
}

func clearHistoryArgs(p *Parsed, rest []string) error {
	for _, arg := range rest {
		if arg != "--all" {
			return fmt.Errorf("unexpected argument for clear-history: %s", arg)
		}
		p.All = true
	}
	return nil
}

func HelpText(binaryName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage:\n  %s [--config PATH] [--verbose] <command>\n\nCommands:\n", binaryName)
	for _, spec := range commands {
		usage := spec.usage
		if usage == "" {
			usage = string(spec.name)
		}
		fmt.Fprintf(&b, "  %-22s %s\n", usage, spec.summary)
	}
	b.WriteString(`
Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/parley/config.jsonc)
  -v, --verbose   Log debug records
  -h, --help      Show help
  --version       Show version
`)
	return b.String()
}
