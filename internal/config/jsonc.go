package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errMultipleValues = errors.New("multiple JSON values are not allowed")

// blankJSONC turns JSONC into plain JSON by overwriting comments and
// trailing commas with spaces. Byte offsets are preserved so decoder
// errors still point at the original text.
func blankJSONC(content string) (string, error) {
	buf := []byte(content)
	if err := blankComments(buf); err != nil {
		return "", err
	}
	blankTrailingCommas(buf)
	return string(buf), nil
}

// scanStrings calls visit for every byte outside a JSON string literal.
// visit returns how many extra bytes it consumed.
func scanStrings(buf []byte, visit func(i int) int) {
	inString, escaped := false, false
	for i := 0; i < len(buf); i++ {
		ch := buf[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case inString && ch == '"':
			inString = false
		case inString:
		case ch == '"':
			inString = true
		default:
			i += visit(i)
		}
	}
}

func blankComments(buf []byte) error {
	unterminated := false
	scanStrings(buf, func(i int) int {
		if buf[i] != '/' || i+1 >= len(buf) {
			return 0
		}
		var end int
		switch buf[i+1] {
		case '/':
			end = i + 2
			for end < len(buf) && buf[end] != '\n' && buf[end] != '\r' {
				end++
			}
		case '*':
			closeAt := strings.Index(string(buf[i+2:]), "*/")
			if closeAt < 0 {
				unterminated = true
				end = len(buf)
			} else {
				end = i + 2 + closeAt + 2
			}
		default:
			return 0
		}
		for j := i; j < end; j++ {
			if !isJSONWhitespace(buf[j]) {
				buf[j] = ' '
			}
		}
		return end - i - 1
	})
	if unterminated {
		return errors.New("unterminated block comment in JSONC")
	}
	return nil
}

func blankTrailingCommas(buf []byte) {
	scanStrings(buf, func(i int) int {
		if buf[i] != ',' {
			return 0
		}
		j := i + 1
		for j < len(buf) && isJSONWhitespace(buf[j]) {
			j++
		}
		if j < len(buf) && (buf[j] == '}' || buf[j] == ']') {
			buf[i] = ' '
		}
		return 0
	})
}

func isJSONWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

// decodeStrict decodes exactly one JSON value into v and rejects unknown fields.
func decodeStrict(content string, v any) error {
	decoder := json.NewDecoder(strings.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return locate(content, err)
	}

	var extra json.RawMessage
	switch err := decoder.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err == nil:
		return errMultipleValues
	default:
		return locate(content, err)
	}
}

// locate prefixes decoder errors that carry an offset with line and column.
func locate(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := lineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// lineCol converts a decoder offset (bytes read so far) to a 1-based position.
func lineCol(content string, offset int64) (int, int) {
	end := min(max(int(offset)-1, 0), len(content))
	before := content[:end]
	line := strings.Count(before, "\n") + 1
	col := end - strings.LastIndexByte(before, '\n')
	return line, col
}
