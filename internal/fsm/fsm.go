// Package fsm defines the session lifecycle states and their legal transitions.
package fsm

import (
	"errors"
	"fmt"
)

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateStreaming State = "streaming"
	StateAnswering State = "answering"
	StateDone      State = "done"
)

const (
	EventStart  Event = "start"
	EventOpen   Event = "open"
	EventFinal  Event = "final"
	EventFinish Event = "finish"
	EventFail   Event = "fail"
)

// Terminal reports whether no further transition can leave state.
func (s State) Terminal() bool {
	return s == StateDone
}

// ErrInvalidTransition is returned, wrapped, for events the current state
// does not accept.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition returns the state event leads to. finish and fail end any live
// state; on error the current state is returned unchanged.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle, StateStarting, StateStreaming, StateAnswering:
	case StateDone:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}

	if event == EventFinish || event == EventFail {
		return StateDone, nil
	}

	switch current {
	case StateIdle:
		if event == EventStart {
			return StateStarting, nil
		}
	case StateStarting:
		if event == EventOpen {
			return StateStreaming, nil
		}
	case StateStreaming:
		if event == EventFinal {
			return StateAnswering, nil
		}
	}
	return current, invalidTransition(current, event)
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, state, event)
}
