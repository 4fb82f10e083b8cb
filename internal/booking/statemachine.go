package booking

import "fmt"

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusAssigningDriver Status = "ASSIGNING_DRIVER"
	StatusScheduled       Status = "SCHEDULED"
	StatusCabArrived      Status = "CAB_ARRIVED"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

// transitions lists the forward edges of the lifecycle. Terminal states
// (COMPLETED, CANCELLED) have no outgoing edges; nothing moves backward
// and nothing skips a state.
var transitions = map[Status][]Status{
	StatusAssigningDriver: {StatusScheduled, StatusCancelled},
	StatusScheduled:       {StatusCabArrived, StatusCancelled},
	StatusCabArrived:      {StatusInProgress},
	StatusInProgress:      {StatusCompleted},
}

// Valid reports whether s is a known status.
func Valid(s Status) bool {
	switch s {
	case StatusAssigningDriver, StatusScheduled, StatusCabArrived,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func Terminal(s Status) bool {
	return Valid(s) && len(transitions[s]) == 0
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Sources returns every status from which to is directly reachable.
// Conditional store updates use this as the guard set.
func Sources(to Status) []Status {
	var out []Status
	for from, nexts := range transitions {
		for _, next := range nexts {
			if next == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// InvalidTransitionError reports a rejected state change. The record must
// not be mutated when this is returned.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid booking transition %s -> %s", e.From, e.To)
}

// Transition validates from -> to, returning an *InvalidTransitionError
// for any edge not in the lifecycle.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
