package booking

import (
	"errors"
	"testing"
)

func TestAllowedTransitions(t *testing.T) {
	allowed := [][2]Status{
		{StatusAssigningDriver, StatusScheduled},
		{StatusAssigningDriver, StatusCancelled},
		{StatusScheduled, StatusCabArrived},
		{StatusScheduled, StatusCancelled},
		{StatusCabArrived, StatusInProgress},
		{StatusInProgress, StatusCompleted},
	}
	for _, tc := range allowed {
		if err := Transition(tc[0], tc[1]); err != nil {
			t.Errorf("%s -> %s should be allowed, got %v", tc[0], tc[1], err)
		}
	}
}

func TestRejectedTransitions(t *testing.T) {
	rejected := [][2]Status{
		{StatusAssigningDriver, StatusInProgress}, // skip
		{StatusAssigningDriver, StatusCabArrived}, // skip
		{StatusScheduled, StatusCompleted},        // skip
		{StatusScheduled, StatusAssigningDriver},  // backward
		{StatusCabArrived, StatusScheduled},       // backward
		{StatusCabArrived, StatusCancelled},       // cancel window closed
		{StatusCompleted, StatusCancelled},        // terminal
		{StatusCancelled, StatusScheduled},        // terminal
		{StatusCompleted, StatusCompleted},        // self
	}
	for _, tc := range rejected {
		err := Transition(tc[0], tc[1])
		if err == nil {
			t.Errorf("%s -> %s should be rejected", tc[0], tc[1])
			continue
		}
		var ite *InvalidTransitionError
		if !errors.As(err, &ite) {
			t.Errorf("%s -> %s: expected InvalidTransitionError, got %T", tc[0], tc[1], err)
		}
	}
}

func TestTerminal(t *testing.T) {
	if !Terminal(StatusCompleted) || !Terminal(StatusCancelled) {
		t.Fatal("COMPLETED and CANCELLED must be terminal")
	}
	for _, s := range []Status{StatusAssigningDriver, StatusScheduled, StatusCabArrived, StatusInProgress} {
		if Terminal(s) {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestSources(t *testing.T) {
	got := Sources(StatusCancelled)
	if len(got) != 2 {
		t.Fatalf("CANCELLED should be reachable from 2 states, got %v", got)
	}
	if len(Sources(StatusAssigningDriver)) != 0 {
		t.Fatal("nothing transitions into ASSIGNING_DRIVER")
	}
}

func TestValid(t *testing.T) {
	if Valid(Status("DRIVING_BACKWARDS")) {
		t.Fatal("unknown status reported valid")
	}
	if !Valid(StatusScheduled) {
		t.Fatal("SCHEDULED reported invalid")
	}
}
