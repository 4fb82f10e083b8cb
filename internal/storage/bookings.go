package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/booking"
	"github.com/example/ride-dispatch/internal/models"
)

var (
	// ErrNotFound: the referenced booking or passenger does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a guarded update lost its race; the record was not in
	// a state the transition is allowed from.
	ErrConflict = errors.New("booking state conflict")
)

// BookingStore is the durable record of bookings. AssignDriver is the
// first-class conditional update the reconciler depends on: the
// status guard and the write are atomic with respect to concurrent
// callers, which is what makes duplicate and racing accept events safe.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	// AssignDriver sets the driver and moves ASSIGNING_DRIVER -> SCHEDULED
	// in one guarded step. ErrConflict when the booking already left
	// ASSIGNING_DRIVER, ErrNotFound when it does not exist.
	AssignDriver(ctx context.Context, bookingID, driverID string) (*models.Booking, error)
	// UpdateStatus applies a trip-progress or cancellation transition,
	// enforcing the lifecycle edges. Rejected transitions do not mutate
	// the record.
	UpdateStatus(ctx context.Context, bookingID string, to booking.Status) (*models.Booking, error)
}

// PassengerStore backs passenger existence checks at the dispatch boundary.
type PassengerStore interface {
	CreatePassenger(ctx context.Context, p *models.Passenger) error
	PassengerExists(ctx context.Context, id string) (bool, error)
}

// MemoryStore keeps bookings and passengers in process. A single mutex
// serializes guarded updates, giving the same single-writer-per-booking
// behavior the Postgres store gets from conditional UPDATEs.
type MemoryStore struct {
	mu         sync.RWMutex
	bookings   map[string]*models.Booking
	passengers map[string]*models.Passenger
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings:   make(map[string]*models.Booking),
		passengers: make(map[string]*models.Passenger),
	}
}

func (m *MemoryStore) CreateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) AssignDriver(_ context.Context, bookingID, driverID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Status != booking.StatusAssigningDriver {
		return nil, ErrConflict
	}
	b.DriverID = driverID
	b.Status = booking.StatusScheduled
	b.UpdatedAt = time.Now().UTC()
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, bookingID string, to booking.Status) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := booking.Transition(b.Status, to); err != nil {
		return nil, err
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) CreatePassenger(_ context.Context, p *models.Passenger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.passengers[p.ID] = &cp
	return nil
}

func (m *MemoryStore) PassengerExists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.passengers[id]
	return ok, nil
}
