package httpapi

import (
	"fmt"
	"strings"

	"github.com/example/ride-dispatch/internal/booking"
	"github.com/example/ride-dispatch/internal/models"
)

// ValidationError names the offending field so clients can fix the input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func validateCreatePassenger(req createPassengerRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{Field: "name", Msg: "must not be empty"}
	}
	return nil
}

func validateCreateBooking(req createBookingRequest) error {
	if strings.TrimSpace(req.PassengerID) == "" {
		return &ValidationError{Field: "passenger_id", Msg: "must not be empty"}
	}
	if err := validateCoord(req.Start, "start"); err != nil {
		return err
	}
	return validateCoord(req.End, "end")
}

func validateUpdateBooking(req updateBookingRequest) error {
	if !booking.Valid(req.Status) {
		return &ValidationError{Field: "status", Msg: fmt.Sprintf("unknown status %q", req.Status)}
	}
	if req.Status == booking.StatusAssigningDriver {
		return &ValidationError{Field: "status", Msg: "cannot move a booking back to ASSIGNING_DRIVER"}
	}
	// A driver may only be attached on the transition into SCHEDULED.
	if req.DriverID != "" && req.Status != booking.StatusScheduled {
		return &ValidationError{Field: "driver_id", Msg: "only allowed with status SCHEDULED"}
	}
	if req.DriverID == "" && req.Status == booking.StatusScheduled {
		return &ValidationError{Field: "driver_id", Msg: "required with status SCHEDULED"}
	}
	return nil
}

func validateDriverLocation(loc models.DriverLocation) error {
	if strings.TrimSpace(loc.DriverID) == "" {
		return &ValidationError{Field: "driver_id", Msg: "must not be empty"}
	}
	return validateCoord(loc.Coord, "coord")
}

func validateCoord(c models.Coord, field string) error {
	if c.Lat < -90 || c.Lat > 90 {
		return &ValidationError{Field: field + ".lat", Msg: "must be within [-90, 90]"}
	}
	if c.Lon < -180 || c.Lon > 180 {
		return &ValidationError{Field: field + ".lon", Msg: "must be within [-180, 180]"}
	}
	return nil
}
