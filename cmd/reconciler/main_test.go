package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/booking"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/reconcile"
	"github.com/example/ride-dispatch/internal/storage"
)

func TestApplyWithRetry_SettledDecisionsDoNotRetry(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now().UTC()
	_ = store.CreateBooking(context.Background(), &models.Booking{
		ID: "X", PassengerID: "42", Status: booking.StatusAssigningDriver,
		CreatedAt: now, UpdatedAt: now,
	})
	rec := &reconcile.Reconciler{Store: store, Logger: slog.Default()}

	d := models.RideDecision{BookingID: "X", DriverID: "7", Accept: true}
	if err := applyWithRetry(context.Background(), rec, d, 3, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	// redelivery settles against the guard without error
	if err := applyWithRetry(context.Background(), rec, d, 3, time.Millisecond); err != nil {
		t.Fatalf("duplicate delivery must settle, got %v", err)
	}
	b, _ := store.GetBooking(context.Background(), "X")
	if b.DriverID != "7" || b.Status != booking.StatusScheduled {
		t.Fatalf("got %+v", b)
	}
}

func TestApplyWithRetry_ReturnsContextError(t *testing.T) {
	rec := &reconcile.Reconciler{Store: failingStore{}, Logger: slog.Default()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := models.RideDecision{BookingID: "X", DriverID: "7", Accept: true}
	if err := applyWithRetry(ctx, rec, d, 3, time.Millisecond); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

type failingStore struct{}

func (failingStore) CreateBooking(context.Context, *models.Booking) error {
	return context.DeadlineExceeded
}
func (failingStore) GetBooking(context.Context, string) (*models.Booking, error) {
	return nil, context.DeadlineExceeded
}
func (failingStore) AssignDriver(context.Context, string, string) (*models.Booking, error) {
	return nil, context.DeadlineExceeded
}
func (failingStore) UpdateStatus(context.Context, string, booking.Status) (*models.Booking, error) {
	return nil, context.DeadlineExceeded
}
