// Package viewer publishes live snapshots of running state machines and
// serves the latest snapshot of each machine over HTTP.
//
// A Publisher flattens a machine tree into a list of StateInfo at a fixed rate
// and hands the encoded list to a Sink (HTTP or Redis). A Server keeps the
// latest list per machine in an expiring Store and exposes it as JSON.
package viewer

import (
	"github.com/amp-labs/nestfsm/statemachine"
)

// NoState is used for the parent of the root and for machines with no active child.
const NoState = -1

// StateInfo describes one node of a flattened machine tree.
type StateInfo struct {
	ID           int               `json:"id"`
	Parent       int               `json:"parent"`
	Name         string            `json:"name"`
	Transitions  map[string]string `json:"transitions"`
	Outcomes     []string          `json:"outcomes"`
	IsFSM        bool              `json:"is_fsm"`
	CurrentState int               `json:"current_state"`
	StartState   int               `json:"start_state"`
}

// Snapshot flattens sm depth-first. The root is named name and has id 0;
// children follow their parent in registration order. CurrentState and
// StartState hold the ids of the active and start child of a machine, or NoState.
func Snapshot(name string, sm *statemachine.StateMachine) []StateInfo {
	return appendState(nil, name, sm, nil, NoState)
}

func appendState(
	infos []StateInfo, name string, state statemachine.State, transitions map[string]string, parent int,
) []StateInfo {
	if transitions == nil {
		transitions = map[string]string{}
	}

	id := len(infos)
	infos = append(infos, StateInfo{
		ID:           id,
		Parent:       parent,
		Name:         name,
		Transitions:  transitions,
		Outcomes:     state.Outcomes(),
		CurrentState: NoState,
		StartState:   NoState,
	})

	// Wrapped machines (retry, timeout) are drawn as the machine they wrap.
	sm, ok := statemachine.Unwrap(state).(*statemachine.StateMachine)
	if !ok {
		return infos
	}

	infos[id].IsFSM = true

	// Read current before walking children so the id refers to this walk.
	current := sm.CurrentState()
	start := sm.StartState()
	states := sm.States()

	for _, child := range sm.StateNames() {
		// Registered after the states were copied.
		entry, ok := states[child]
		if !ok {
			continue
		}

		childID := len(infos)

		if child == current {
			infos[id].CurrentState = childID
		}

		if child == start {
			infos[id].StartState = childID
		}

		infos = appendState(infos, child, entry.State, entry.Transitions, id)
	}

	return infos
}

// Root returns the machine name of a snapshot, or "" for an empty one.
func Root(infos []StateInfo) string {
	if len(infos) == 0 {
		return ""
	}

	return infos[0].Name
}

// Active returns the names of the active states from the root down.
func Active(infos []StateInfo) []string {
	var path []string

	for id := 0; id >= 0 && id < len(infos); {
		next := infos[id].CurrentState
		if next <= id || next >= len(infos) {
			break
		}

		path = append(path, infos[next].Name)
		id = next
	}

	return path
}
