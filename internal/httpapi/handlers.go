package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/ride-dispatch/internal/booking"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/storage"
)

type createPassengerRequest struct {
	Name string `json:"name"`
}

type createBookingRequest struct {
	PassengerID string       `json:"passenger_id"`
	Start       models.Coord `json:"start"`
	End         models.Coord `json:"end"`
}

type createBookingResponse struct {
	BookingID string         `json:"booking_id"`
	Status    booking.Status `json:"status"`
}

type updateBookingRequest struct {
	Status   booking.Status `json:"status"`
	DriverID string         `json:"driver_id,omitempty"`
}

type nearbyDriversRequest struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKm float64 `json:"radius_km,omitempty"`
}

func (s *Server) handleCreatePassenger(w http.ResponseWriter, r *http.Request) {
	var req createPassengerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateCreatePassenger(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p := &models.Passenger{ID: uuid.NewString(), Name: req.Name, CreatedAt: time.Now().UTC()}
	if err := s.Passengers.CreatePassenger(r.Context(), p); err != nil {
		s.logger.Error("create passenger failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateCreateBooking(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, err := s.Orchestrator.CreateBooking(r.Context(), req.PassengerID, req.Start, req.End)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "passenger not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("create booking failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, createBookingResponse{BookingID: b.ID, Status: b.Status})
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["booking_id"]
	b, err := s.Bookings.GetBooking(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("get booking failed", "booking_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleUpdateBooking serves the reconciliation-path update: trip
// progress (CAB_ARRIVED, IN_PROGRESS, COMPLETED), cancellation, or an
// explicit driver assignment.
func (s *Server) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["booking_id"]
	var req updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateUpdateBooking(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		b   *models.Booking
		err error
	)
	if req.DriverID != "" {
		b, err = s.Bookings.AssignDriver(r.Context(), id, req.DriverID)
	} else {
		b, err = s.Bookings.UpdateStatus(r.Context(), id, req.Status)
	}

	var ite *booking.InvalidTransitionError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	case errors.Is(err, storage.ErrConflict), errors.As(err, &ite):
		http.Error(w, "conflicting booking state", http.StatusConflict)
		return
	case err != nil:
		s.logger.Error("update booking failed", "booking_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Durable write done; session visibility is best-effort.
	s.Hub.Publish(notify.BookingTopic(b.ID), models.NewBookingUpdate(*b))
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.DriverLocation
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateDriverLocation(loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.Locations != nil {
		if err := s.Locations.Publish(r.Context(), loc); err != nil {
			s.logger.Warn("location feed publish failed", "driver_id", loc.DriverID, "error", err)
		}
	}
	if err := s.Geo.Upsert(r.Context(), loc); err != nil {
		s.logger.Warn("driver index upsert failed", "driver_id", loc.DriverID, "error", err)
	} else {
		observability.LocationUpdates.Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNearbyDrivers exposes the proximity query. An unavailable index
// answers with an empty list, never an error.
func (s *Server) handleNearbyDrivers(w http.ResponseWriter, r *http.Request) {
	var req nearbyDriversRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateCoord(models.Coord{Lat: req.Lat, Lon: req.Lon}, "position"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	radius := req.RadiusKm
	if radius <= 0 {
		radius = s.DefaultRadiusKm
	}
	drivers, err := s.Geo.Nearby(r.Context(), req.Lat, req.Lon, radius)
	if err != nil {
		observability.IndexErrors.Inc()
		s.logger.Warn("nearby query degraded to empty", "error", err)
		drivers = nil
	}
	if drivers == nil {
		drivers = []models.DriverLocation{}
	}
	writeJSON(w, http.StatusOK, drivers)
}

// handleNotifyBooking lets the out-of-process reconciler publish into the
// hub this process owns.
func (s *Server) handleNotifyBooking(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["booking_id"]
	var update models.BookingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Hub.Publish(notify.BookingTopic(id), update)
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
