package workflow

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a step is attempted out of order
var ErrInvalidTransition = errors.New("invalid workflow transition")

// State is a phase of building one trip's roster
type State string

const (
	CollectingEboard     State = "CollectingEboard"
	CollectingDrivers    State = "CollectingDrivers"
	DecidingRoster       State = "DecidingRoster"
	CollectingNonDrivers State = "CollectingNonDrivers"
	Done                 State = "Done"
)

var next = map[State]State{
	CollectingEboard:     CollectingDrivers,
	CollectingDrivers:    DecidingRoster,
	DecidingRoster:       CollectingNonDrivers,
	CollectingNonDrivers: Done,
}

// Machine tracks the phase of one trip. The zero value is not usable; call New.
type Machine struct {
	state State
}

func New() *Machine {
	return &Machine{state: CollectingEboard}
}

func (m *Machine) State() State {
	return m.state
}

// Advance moves to the state after the current one. to must be that state.
func (m *Machine) Advance(to State) error {
	expected, ok := next[m.state]
	if !ok || expected != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.state = to
	return nil
}

// Next returns the state after s, or false if s is Done or unknown
func Next(s State) (State, bool) {
	n, ok := next[s]
	return n, ok
}

// Require returns an error unless the machine is in state
func (m *Machine) Require(state State) error {
	if m.state != state {
		return fmt.Errorf("%w: step needs %s but trip is in %s", ErrInvalidTransition, state, m.state)
	}
	return nil
}

// Reset starts the trip over
func (m *Machine) Reset() {
	m.state = CollectingEboard
}
