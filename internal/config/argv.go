package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	errUnterminatedQuote  = errors.New("unterminated quote")
	errUnterminatedEscape = errors.New("unterminated escape sequence")
)

// ParseCommand splits raw into argv using shell-style quoting and
// backslash escapes. Blank input and input starting with # give an empty
// command.
func ParseCommand(raw string) (CommandConfig, error) {
	argv, err := splitArgv(raw)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("%w in command: %q", err, raw)
	}
	return CommandConfig{Raw: strings.TrimSpace(raw), Argv: argv}, nil
}

func mustCommand(raw string) CommandConfig {
	cmd, err := ParseCommand(raw)
	if err != nil {
		panic(err)
	}
	return cmd
}

// argvSplitter accumulates words rune by rune.
type argvSplitter struct {
	words   []string
	word    strings.Builder
	inWord  bool
	quote   rune
	escaped bool
}

func (s *argvSplitter) feed(r rune) {
	switch {
	case s.escaped:
		s.escaped = false
		s.add(r)
	case r == '\\' && s.quote != '\'':
		s.escaped = true
		s.inWord = true
	case s.quote != 0 && r == s.quote:
		s.quote = 0
	case s.quote != 0:
		s.add(r)
	case r == '\'' || r == '"':
		s.quote = r
		s.inWord = true
	case unicode.IsSpace(r):
		s.end()
	default:
		s.add(r)
	}
}

func (s *argvSplitter) add(r rune) {
	s.word.WriteRune(r)
	s.inWord = true
}

func (s *argvSplitter) end() {
	if !s.inWord {
		return
	}
	s.words = append(s.words, s.word.String())
	s.word.Reset()
	s.inWord = false
}

func splitArgv(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, nil
	}

	var s argvSplitter
	for _, r := range raw {
		s.feed(r)
	}
	switch {
	case s.escaped:
		return nil, errUnterminatedEscape
	case s.quote != 0:
		return nil, errUnterminatedQuote
	}
	s.end()
	return s.words, nil
}

// Uses reports whether any argument contains {name}.
func (c CommandConfig) Uses(name string) bool {
	placeholder := "{" + name + "}"
	for _, arg := range c.Argv {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}

// Expand returns a copy of the argv with each {key} placeholder replaced.
func (c CommandConfig) Expand(vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{"+key+"}", value)
	}
	replacer := strings.NewReplacer(pairs...)

	out := make([]string, len(c.Argv))
	for i, arg := range c.Argv {
		out[i] = replacer.Replace(arg)
	}
	return out
}
