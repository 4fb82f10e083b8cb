package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/storage"
)

// DecisionSink receives driver accept/reject decisions. Backed by the
// Kafka producer in production, or an in-process reconciler locally.
type DecisionSink interface {
	Publish(ctx context.Context, d models.RideDecision) error
}

// LocationSink forwards driver position reports to the feed topic.
type LocationSink interface {
	Publish(ctx context.Context, loc models.DriverLocation) error
}

type Server struct {
	Orchestrator *dispatch.Orchestrator
	Bookings     storage.BookingStore
	Passengers   storage.PassengerStore
	Geo          geo.Geo
	Hub          *notify.Hub
	Decisions    DecisionSink
	Locations    LocationSink // nil when no broker is configured

	DefaultRadiusKm float64

	logger   *slog.Logger
	mux      *mux.Router
	upgrader websocket.Upgrader
}

func NewServer(o *dispatch.Orchestrator, bookings storage.BookingStore, passengers storage.PassengerStore,
	g geo.Geo, hub *notify.Hub, decisions DecisionSink, locations LocationSink,
	defaultRadiusKm float64, logger *slog.Logger) *Server {
	s := &Server{
		Orchestrator:    o,
		Bookings:        bookings,
		Passengers:      passengers,
		Geo:             g,
		Hub:             hub,
		Decisions:       decisions,
		Locations:       locations,
		DefaultRadiusKm: defaultRadiusKm,
		logger:          logger,
		mux:             mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/passengers", s.handleCreatePassenger).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings", s.handleCreateBooking).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{booking_id}", s.handleGetBooking).Methods("GET")
	s.mux.HandleFunc("/api/v1/bookings/{booking_id}", s.handleUpdateBooking).Methods("PATCH")
	s.mux.HandleFunc("/api/location/drivers", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/api/location/nearby/drivers", s.handleNearbyDrivers).Methods("POST")
	s.mux.HandleFunc("/internal/notify/bookings/{booking_id}", s.handleNotifyBooking).Methods("POST")
	s.mux.HandleFunc("/ws/drivers/{driver_id}", s.handleDriverWS)
	s.mux.HandleFunc("/ws/bookings/{booking_id}", s.handleBookingWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
