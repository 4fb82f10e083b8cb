package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/observability"
)

// decisionMessage is what a driver session sends in response to an offer.
// The driver id comes from the session path, never from the payload.
type decisionMessage struct {
	BookingID string `json:"booking_id"`
	Accept    bool   `json:"accept"`
}

// handleDriverWS attaches a driver session: it receives broadcast offers
// plus addressed messages, and its inbound frames are accept/reject
// decisions fed to the decision channel.
func (s *Server) handleDriverWS(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		return
	}
	session := notify.NewWSSession(conn)
	s.Hub.Subscribe(notify.TopicOffers, session)
	s.Hub.Subscribe(notify.DriverTopic(driverID), session)
	observability.WSSessions.Inc()
	s.logger.Info("driver session connected", "driver_id", driverID)

	defer func() {
		s.Hub.Unsubscribe(notify.TopicOffers, session)
		s.Hub.Unsubscribe(notify.DriverTopic(driverID), session)
		observability.WSSessions.Dec()
		// A disconnected driver should stop surfacing as a candidate.
		if rerr := s.Geo.Remove(context.Background(), driverID); rerr != nil {
			s.logger.Warn("driver index remove failed", "driver_id", driverID, "error", rerr)
		}
		session.Close()
		s.logger.Info("driver session closed", "driver_id", driverID)
	}()

	for {
		var msg decisionMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.BookingID == "" {
			s.logger.Warn("decision without booking id ignored", "driver_id", driverID)
			continue
		}
		d := models.RideDecision{BookingID: msg.BookingID, DriverID: driverID, Accept: msg.Accept}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.Decisions.Publish(ctx, d); err != nil {
			s.logger.Error("decision publish failed",
				"booking_id", d.BookingID, "driver_id", driverID, "error", err)
		}
		cancel()
	}
}

// handleBookingWS attaches a session watching one booking; the originating
// passenger subscribes here to observe the match.
func (s *Server) handleBookingWS(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["booking_id"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	session := notify.NewWSSession(conn)
	topic := notify.BookingTopic(bookingID)
	s.Hub.Subscribe(topic, session)
	observability.WSSessions.Inc()
	s.logger.Info("booking session connected", "booking_id", bookingID)

	defer func() {
		s.Hub.Unsubscribe(topic, session)
		observability.WSSessions.Dec()
		session.Close()
		s.logger.Info("booking session closed", "booking_id", bookingID)
	}()

	// Drain inbound frames only to detect the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
