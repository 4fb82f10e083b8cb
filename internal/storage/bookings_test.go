package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/booking"
	"github.com/example/ride-dispatch/internal/models"
)

func seedBooking(t *testing.T, m *MemoryStore, id string) {
	t.Helper()
	now := time.Now().UTC()
	err := m.CreateBooking(context.Background(), &models.Booking{
		ID:          id,
		PassengerID: "p1",
		Start:       models.Coord{Lat: 12.9, Lon: 77.6},
		End:         models.Coord{Lat: 12.95, Lon: 77.65},
		Status:      booking.StatusAssigningDriver,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAssignDriver(t *testing.T) {
	m := NewMemoryStore()
	seedBooking(t, m, "b1")

	b, err := m.AssignDriver(context.Background(), "b1", "d7")
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != booking.StatusScheduled || b.DriverID != "d7" {
		t.Fatalf("got status=%s driver=%s", b.Status, b.DriverID)
	}
}

func TestAssignDriverGuard(t *testing.T) {
	m := NewMemoryStore()
	seedBooking(t, m, "b1")

	if _, err := m.AssignDriver(context.Background(), "b1", "d7"); err != nil {
		t.Fatal(err)
	}
	// second accept loses to the guard and must not mutate
	if _, err := m.AssignDriver(context.Background(), "b1", "d8"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	b, _ := m.GetBooking(context.Background(), "b1")
	if b.DriverID != "d7" {
		t.Fatalf("driver overwritten: %s", b.DriverID)
	}
}

func TestAssignDriverNotFound(t *testing.T) {
	m := NewMemoryStore()
	if _, err := m.AssignDriver(context.Background(), "nope", "d7"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignDriverConcurrent(t *testing.T) {
	m := NewMemoryStore()
	seedBooking(t, m, "b1")

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan string, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A' + i))
			if _, err := m.AssignDriver(context.Background(), "b1", id); err == nil {
				wins <- id
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for id := range wins {
		winners = append(winners, id)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %v", winners)
	}
	b, _ := m.GetBooking(context.Background(), "b1")
	if b.Status != booking.StatusScheduled || b.DriverID != winners[0] {
		t.Fatalf("final state %s/%s does not match winner %s", b.Status, b.DriverID, winners[0])
	}
}

func TestUpdateStatusLifecycle(t *testing.T) {
	m := NewMemoryStore()
	seedBooking(t, m, "b1")
	ctx := context.Background()

	if _, err := m.AssignDriver(ctx, "b1", "d7"); err != nil {
		t.Fatal(err)
	}
	for _, next := range []booking.Status{booking.StatusCabArrived, booking.StatusInProgress, booking.StatusCompleted} {
		if _, err := m.UpdateStatus(ctx, "b1", next); err != nil {
			t.Fatalf("to %s: %v", next, err)
		}
	}
	// terminal
	_, err := m.UpdateStatus(ctx, "b1", booking.StatusCancelled)
	var ite *booking.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError from COMPLETED, got %v", err)
	}
}

func TestUpdateStatusRejectsSkip(t *testing.T) {
	m := NewMemoryStore()
	seedBooking(t, m, "b1")

	_, err := m.UpdateStatus(context.Background(), "b1", booking.StatusInProgress)
	var ite *booking.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	b, _ := m.GetBooking(context.Background(), "b1")
	if b.Status != booking.StatusAssigningDriver {
		t.Fatalf("record mutated on rejected transition: %s", b.Status)
	}
}

func TestPassengerExists(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if ok, _ := m.PassengerExists(ctx, "p1"); ok {
		t.Fatal("unexpected passenger")
	}
	_ = m.CreatePassenger(ctx, &models.Passenger{ID: "p1", Name: "Asha", CreatedAt: time.Now()})
	if ok, _ := m.PassengerExists(ctx, "p1"); !ok {
		t.Fatal("passenger missing after create")
	}
}
