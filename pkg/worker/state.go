// Package worker drives the edge lifecycle: install the caches, wait (or
// skip waiting), activate, and take control of page traffic.
package worker

import (
	"errors"
	"fmt"
)

// State is a lifecycle phase.
type State string

const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"

	// StateRedundant is an activated worker another version took control
	// from. It no longer serves traffic.
	StateRedundant State = "redundant"
)

// ErrInvalidTransition is returned when a lifecycle step is attempted from
// the wrong state.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

var transitions = map[State][]State{
	StateParsed:     {StateInstalling},
	StateInstalling: {StateInstalled},
	StateInstalled:  {StateActivating},
	StateActivating: {StateActivated},
	StateActivated:  {StateRedundant},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
