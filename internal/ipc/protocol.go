// Package ipc lets later parley invocations control the process that owns
// the running session. Messages are single-line JSON over a per-user unix
// socket.
package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	CommandStatus = "status"
	CommandToggle = "toggle"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

// maxMessageBytes bounds one request or response line.
const maxMessageBytes = 64 << 10

var errMessageTooLarge = errors.New("message exceeds size limit")

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK         bool   `json:"ok"`
	State      string `json:"state,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

func failure(format string, args ...any) Response {
	return Response{OK: false, Error: fmt.Sprintf(format, args...)}
}

// writeLine encodes v as one newline-terminated JSON line.
func writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// readLine reads one line into v. readErr and decodeErr are reported
// separately so callers can label them.
func readLine(r *bufio.Reader, v any) (readErr error, decodeErr error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxMessageBytes {
			return errMessageTooLarge, nil
		}
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err, nil
		}
	}
	return nil, json.Unmarshal(line, v)
}
