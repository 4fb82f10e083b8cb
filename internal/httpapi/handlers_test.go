package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/booking"
	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/reconcile"
	"github.com/example/ride-dispatch/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	index := geo.NewMemoryIndex(10)
	logger := slog.Default()
	hub := notify.NewHub(logger)
	rec := &reconcile.Reconciler{Store: store, Notifier: &notify.HubNotifier{Hub: hub}, Logger: logger}
	orch := &dispatch.Orchestrator{
		Bookings:       store,
		Passengers:     store,
		Geo:            index,
		Notify:         hub,
		Logger:         logger,
		SearchRadiusKm: 5,
		MatchTimeout:   time.Second,
	}
	return NewServer(orch, store, store, index, hub, reconcile.Inline{R: rec}, nil, 5, logger), store
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func seedPassenger(t *testing.T, store *storage.MemoryStore) string {
	t.Helper()
	p := &models.Passenger{ID: "42", Name: "Asha", CreatedAt: time.Now()}
	if err := store.CreatePassenger(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p.ID
}

func TestCreateBooking(t *testing.T) {
	s, store := newTestServer(t)
	pid := seedPassenger(t, store)

	w := doJSON(t, s, http.MethodPost, "/api/v1/bookings", map[string]any{
		"passenger_id": pid,
		"start":        map[string]float64{"lat": 12.9, "lon": 77.6},
		"end":          map[string]float64{"lat": 12.95, "lon": 77.65},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp createBookingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.BookingID == "" || resp.Status != booking.StatusAssigningDriver {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateBookingUnknownPassenger(t *testing.T) {
	s, _ := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/v1/bookings", map[string]any{
		"passenger_id": "ghost",
		"start":        map[string]float64{"lat": 12.9, "lon": 77.6},
		"end":          map[string]float64{"lat": 12.95, "lon": 77.65},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateBookingRejectsBadCoords(t *testing.T) {
	s, store := newTestServer(t)
	pid := seedPassenger(t, store)
	w := doJSON(t, s, http.MethodPost, "/api/v1/bookings", map[string]any{
		"passenger_id": pid,
		"start":        map[string]float64{"lat": 123.0, "lon": 77.6},
		"end":          map[string]float64{"lat": 12.95, "lon": 77.65},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetBookingNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/v1/bookings/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func createBookingForTest(t *testing.T, s *Server, store *storage.MemoryStore) string {
	t.Helper()
	pid := seedPassenger(t, store)
	w := doJSON(t, s, http.MethodPost, "/api/v1/bookings", map[string]any{
		"passenger_id": pid,
		"start":        map[string]float64{"lat": 12.9, "lon": 77.6},
		"end":          map[string]float64{"lat": 12.95, "lon": 77.65},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("seed booking failed: %d", w.Code)
	}
	var resp createBookingResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.BookingID
}

func TestUpdateBookingAssignsDriver(t *testing.T) {
	s, store := newTestServer(t)
	id := createBookingForTest(t, s, store)

	w := doJSON(t, s, http.MethodPatch, "/api/v1/bookings/"+id, map[string]any{
		"status":    "SCHEDULED",
		"driver_id": "7",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var b models.Booking
	_ = json.Unmarshal(w.Body.Bytes(), &b)
	if b.Status != booking.StatusScheduled || b.DriverID != "7" {
		t.Fatalf("got %+v", b)
	}

	// late second assignment conflicts
	w = doJSON(t, s, http.MethodPatch, "/api/v1/bookings/"+id, map[string]any{
		"status":    "SCHEDULED",
		"driver_id": "8",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestUpdateBookingRejectsSkip(t *testing.T) {
	s, store := newTestServer(t)
	id := createBookingForTest(t, s, store)

	w := doJSON(t, s, http.MethodPatch, "/api/v1/bookings/"+id, map[string]any{
		"status": "IN_PROGRESS",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateBookingValidation(t *testing.T) {
	s, store := newTestServer(t)
	id := createBookingForTest(t, s, store)

	cases := []map[string]any{
		{"status": "WARP_SPEED"},                  // unknown status
		{"status": "SCHEDULED"},                   // driver required
		{"status": "CANCELLED", "driver_id": "7"}, // driver not allowed here
		{"status": "ASSIGNING_DRIVER"},            // backward
	}
	for i, body := range cases {
		w := doJSON(t, s, http.MethodPatch, "/api/v1/bookings/"+id, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("case %d: expected 400, got %d", i, w.Code)
		}
	}
}

func TestCancelBooking(t *testing.T) {
	s, store := newTestServer(t)
	id := createBookingForTest(t, s, store)

	w := doJSON(t, s, http.MethodPatch, "/api/v1/bookings/"+id, map[string]any{"status": "CANCELLED"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	b, _ := store.GetBooking(context.Background(), id)
	if b.Status != booking.StatusCancelled {
		t.Fatalf("got %s", b.Status)
	}
}

func TestDriverLocationAndNearby(t *testing.T) {
	s, _ := newTestServer(t)

	for i, lat := range []float64{12.901, 12.902, 13.5} {
		w := doJSON(t, s, http.MethodPost, "/api/location/drivers", map[string]any{
			"driver_id": fmt.Sprintf("d%d", i),
			"coord":     map[string]float64{"lat": lat, "lon": 77.6},
		})
		if w.Code != http.StatusNoContent {
			t.Fatalf("location report %d: status %d", i, w.Code)
		}
	}

	w := doJSON(t, s, http.MethodPost, "/api/location/nearby/drivers", map[string]any{
		"lat": 12.9, "lon": 77.6, "radius_km": 5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var got []models.DriverLocation
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 nearby drivers, got %+v", got)
	}
}

func TestDriverLocationValidation(t *testing.T) {
	s, _ := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/location/drivers", map[string]any{
		"driver_id": "",
		"coord":     map[string]float64{"lat": 12.9, "lon": 77.6},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestNotifyBookingEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	update := models.NewBookingUpdate(models.Booking{ID: "X", Status: booking.StatusScheduled, DriverID: "7"})
	w := doJSON(t, s, http.MethodPost, "/internal/notify/bookings/X", update)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
}

func TestCreatePassenger(t *testing.T) {
	s, store := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/v1/passengers", map[string]any{"name": "Asha"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var p models.Passenger
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.ID == "" {
		t.Fatal("passenger id missing")
	}
	if ok, _ := store.PassengerExists(context.Background(), p.ID); !ok {
		t.Fatal("passenger not persisted")
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/passengers", map[string]any{"name": "  "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", w.Code)
	}
}
