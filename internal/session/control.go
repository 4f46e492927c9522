package session

import (
	"context"
	"fmt"

	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/ipc"
)

// Handle serves IPC commands for the running session.
func (s *Session) Handle(_ context.Context, req ipc.Request) ipc.Response {
	state := s.State()
	switch req.Command {
	case ipc.CommandStatus:
		res := s.Result()
		return ipc.Response{OK: true, State: string(state), SessionID: s.id, Transcript: res.Transcript, Message: s.String()}
	case ipc.CommandToggle, ipc.CommandStop:
		return s.requestEnd(req.Command, state, s.Stop)
	case ipc.CommandCancel:
		return s.requestEnd(req.Command, state, s.Cancel)
	default:
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (s *Session) requestEnd(command string, state fsm.State, end func()) ipc.Response {
	if state.Terminal() {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", command, state)}
	}
	end()
	return ipc.Response{OK: true, State: string(state), Message: command + " requested"}
}
