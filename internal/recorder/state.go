package recorder

import "fmt"

// State tracks the recorder lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateEnded     State = "ended"
	StateTimedOut  State = "timed_out"
	StateErrored   State = "errored"
	StateStopped   State = "stopped"
)

var stateTransitions = map[State][]State{
	StateIdle:      {StateRecording},
	StateRecording: {StateEnded, StateTimedOut, StateErrored},
	StateEnded:     {StateStopped},
	StateTimedOut:  {StateStopped},
	StateErrored:   {StateStopped},
}

func (s State) canTransition(to State) bool {
	for _, next := range stateTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (r *Recorder) transition(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.canTransition(to) {
		return fmt.Errorf("invalid recorder transition %s -> %s", r.state, to)
	}
	r.state = to
	return nil
}

// State reports the recorder's current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
