// Package analysis turns an uploaded audio file into a rendered spectrogram.
// It tracks each request through a small state machine and classifies
// failures so callers can tell bad input apart from rendering problems.
package analysis

import (
	"errors"
	"slices"
)

// State is the position of a single upload request in its lifecycle.
type State string

const (
	// StateNoFile is the initial state before an upload is examined.
	StateNoFile State = "NO_FILE"
	// StateSaved indicates the upload was written to the upload directory.
	StateSaved State = "SAVED"
	// StateRendered indicates the spectrogram image is available.
	StateRendered State = "RENDERED"
	// StateFormOnly indicates the page is shown without an image.
	StateFormOnly State = "FORM_ONLY"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[State][]State{
	StateNoFile:   {StateFormOnly, StateSaved},
	StateSaved:    {StateRendered, StateFormOnly},
	StateRendered: {},
	StateFormOnly: {},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// IsTerminal returns true if no further transitions are allowed from s.
func (s State) IsTerminal() bool {
	allowed, ok := validTransitions[s]
	return ok && len(allowed) == 0
}

// request carries the state of one upload through Process.
type request struct {
	state State
}

func newRequest() *request {
	return &request{state: StateNoFile}
}

// transitionTo changes the state or returns ErrInvalidTransition.
func (r *request) transitionTo(to State) error {
	if !canTransition(r.state, to) {
		return ErrInvalidTransition
	}
	r.state = to
	return nil
}
