package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	allStates = []State{StateIdle, StateStarting, StateStreaming, StateAnswering, StateDone}
	allEvents = []Event{EventStart, EventOpen, EventFinal, EventFinish, EventFail}
)

func TestTransitionTable(t *testing.T) {
	// Pairs absent from legal are rejected.
	legal := map[State]map[Event]State{
		StateIdle:      {EventStart: StateStarting, EventFinish: StateDone, EventFail: StateDone},
		StateStarting:  {EventOpen: StateStreaming, EventFinish: StateDone, EventFail: StateDone},
		StateStreaming: {EventFinal: StateAnswering, EventFinish: StateDone, EventFail: StateDone},
		StateAnswering: {EventFinish: StateDone, EventFail: StateDone},
	}

	for _, state := range allStates {
		for _, event := range allEvents {
			t.Run(string(state)+"/"+string(event), func(t *testing.T) {
				next, err := Transition(state, event)
				want, ok := legal[state][event]
				if !ok {
					require.ErrorIs(t, err, ErrInvalidTransition)
					require.Equal(t, state, next)
					return
				}
				require.NoError(t, err)
				require.Equal(t, want, next)
			})
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, state := range allStates {
		require.Equal(t, state == StateDone, state.Terminal(), state)
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.ErrorContains(t, err, "unknown state")
	require.NotErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, State("mystery"), next)
}
