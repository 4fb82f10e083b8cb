package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-dispatch/internal/booking"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/storage"
)

// Geo is the slice of the driver index the orchestrator needs.
type Geo interface {
	Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]models.DriverLocation, error)
}

// Publisher fans a payload out to a topic's current subscribers.
type Publisher interface {
	Publish(topic string, payload any) int
}

// Orchestrator owns the create-booking use case: persist first, then find
// and notify candidate drivers off the request path.
type Orchestrator struct {
	Bookings   storage.BookingStore
	Passengers storage.PassengerStore
	Geo        Geo
	Notify     Publisher
	Logger     *slog.Logger

	SearchRadiusKm float64
	MatchTimeout   time.Duration
}

// CreateBooking validates the passenger, persists the booking in
// ASSIGNING_DRIVER and returns it immediately. Driver discovery and the
// offer broadcast run on a goroutine; the caller never waits on them, and
// a failed match leaves the booking trackable in ASSIGNING_DRIVER.
func (o *Orchestrator) CreateBooking(ctx context.Context, passengerID string, start, end models.Coord) (*models.Booking, error) {
	ok, err := o.Passengers.PassengerExists(ctx, passengerID)
	if err != nil {
		return nil, fmt.Errorf("passenger lookup: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("passenger %s: %w", passengerID, storage.ErrNotFound)
	}

	now := time.Now().UTC()
	b := &models.Booking{
		ID:          uuid.NewString(),
		PassengerID: passengerID,
		Start:       start,
		End:         end,
		Status:      booking.StatusAssigningDriver,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.Bookings.CreateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("persist booking: %w", err)
	}
	observability.BookingsCreated.Inc()
	o.Logger.Info("booking created",
		"booking_id", b.ID, "passenger_id", passengerID, "status", string(b.Status))

	go o.offerToNearbyDrivers(*b)

	return b, nil
}

// offerToNearbyDrivers is detached from the request: it gets its own
// context so the HTTP response finishing does not cancel the match.
func (o *Orchestrator) offerToNearbyDrivers(b models.Booking) {
	timeout := o.MatchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	drivers, err := o.Geo.Nearby(ctx, b.Start.Lat, b.Start.Lon, o.SearchRadiusKm)
	if err != nil {
		// Index unavailable degrades to zero candidates; the booking
		// stays in ASSIGNING_DRIVER.
		observability.IndexErrors.Inc()
		o.Logger.Warn("driver index unavailable", "booking_id", b.ID, "error", err)
		return
	}
	if len(drivers) == 0 {
		o.Logger.Info("no drivers nearby",
			"booking_id", b.ID, "lat", b.Start.Lat, "lon", b.Start.Lon, "radius_km", o.SearchRadiusKm)
		return
	}

	offer := models.RideOffer{
		BookingID:   b.ID,
		PassengerID: b.PassengerID,
		Start:       b.Start,
		End:         b.End,
		Status:      b.Status,
	}
	delivered := o.Notify.Publish(notify.TopicOffers, offer)
	observability.OffersPublished.Inc()
	o.Logger.Info("ride offer broadcast",
		"booking_id", b.ID, "candidates", len(drivers), "delivered", delivered)
}
