package models

import (
	"time"

	"github.com/example/ride-dispatch/internal/booking"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Passenger is the minimal identity record a booking references.
type Passenger struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Booking is the durable record of a requested ride. DriverID stays empty
// until the booking transitions into SCHEDULED.
type Booking struct {
	ID          string         `json:"id"`
	PassengerID string         `json:"passenger_id"`
	DriverID    string         `json:"driver_id,omitempty"`
	Start       Coord          `json:"start"`
	End         Coord          `json:"end"`
	Status      booking.Status `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DriverLocation is a transient presence signal, not a booking artifact.
// Freshness is last-write-wins.
type DriverLocation struct {
	DriverID string `json:"driver_id"`
	Coord    Coord  `json:"coord"`
}

// RideOffer is broadcast to candidate drivers. It only exists on the wire.
type RideOffer struct {
	BookingID   string         `json:"booking_id"`
	PassengerID string         `json:"passenger_id"`
	Start       Coord          `json:"start"`
	End         Coord          `json:"end"`
	Status      booking.Status `json:"status"`
}

// RideDecision is a driver's accept/reject response to an offer. Delivery
// is at-least-once; consumers must tolerate duplicates.
type RideDecision struct {
	BookingID string `json:"booking_id"`
	DriverID  string `json:"driver_id"`
	Accept    bool   `json:"accept"`
}

// BookingUpdate is pushed on a booking's notification topic whenever its
// durable state changes.
type BookingUpdate struct {
	Type    string  `json:"type"`
	Booking Booking `json:"booking"`
}

const BookingUpdateType = "booking.update"

func NewBookingUpdate(b Booking) BookingUpdate {
	return BookingUpdate{Type: BookingUpdateType, Booking: b}
}
