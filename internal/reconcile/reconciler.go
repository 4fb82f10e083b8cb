package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/storage"
)

// Notifier pushes a booking's new state to whoever is watching it.
type Notifier interface {
	BookingUpdated(ctx context.Context, b *models.Booking) error
}

// Reconciler turns driver decisions into booking state. All safety comes
// from the store's guarded AssignDriver: duplicates, late deliveries and
// racing accepts for the same booking all fall out as ErrConflict and are
// dropped, so exactly one accept wins.
type Reconciler struct {
	Store    storage.BookingStore
	Notifier Notifier
	Logger   *slog.Logger
}

// Apply processes one decision. A nil return means the event is settled
// and must not be redelivered; a non-nil return is a transient store
// failure the caller may retry (the guard makes retries safe).
func (r *Reconciler) Apply(ctx context.Context, d models.RideDecision) error {
	if !d.Accept {
		// No re-offer on reject: log and move on.
		observability.DecisionsProcessed.WithLabelValues("rejected").Inc()
		r.Logger.Info("driver rejected ride",
			"booking_id", d.BookingID, "driver_id", d.DriverID)
		return nil
	}

	b, err := r.Store.AssignDriver(ctx, d.BookingID, d.DriverID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		observability.DecisionsProcessed.WithLabelValues("unknown_booking").Inc()
		r.Logger.Warn("decision for unknown booking, discarding",
			"booking_id", d.BookingID, "driver_id", d.DriverID)
		return nil
	case errors.Is(err, storage.ErrConflict):
		// Duplicate delivery or a lost race: the booking already left
		// ASSIGNING_DRIVER.
		observability.DecisionsProcessed.WithLabelValues("stale").Inc()
		r.Logger.Info("decision discarded, booking already assigned",
			"booking_id", d.BookingID, "driver_id", d.DriverID)
		return nil
	case err != nil:
		observability.DecisionsProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("assign driver: %w", err)
	}

	observability.DecisionsProcessed.WithLabelValues("applied").Inc()
	r.Logger.Info("driver assigned",
		"booking_id", b.ID, "driver_id", b.DriverID, "status", string(b.Status))

	if r.Notifier != nil {
		if nerr := r.Notifier.BookingUpdated(ctx, b); nerr != nil {
			// The durable write already landed; visibility is only delayed.
			r.Logger.Warn("booking update notification failed",
				"booking_id", b.ID, "error", nerr)
		}
	}
	return nil
}

// Inline adapts a Reconciler into the decision sink the API uses when no
// broker is configured: decisions apply in process.
type Inline struct {
	R *Reconciler
}

func (s Inline) Publish(ctx context.Context, d models.RideDecision) error {
	return s.R.Apply(ctx, d)
}
