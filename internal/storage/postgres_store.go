package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/booking"
	"github.com/example/ride-dispatch/internal/models"
)

// PostgresStore implements BookingStore and PassengerStore on Postgres.
// Guarded transitions are single conditional UPDATEs, so the guard check
// and the write are atomic even with multiple reconciler instances.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO bookings(id, passenger_id, driver_id, start_lat, start_lon, end_lat, end_lon, status, created_at, updated_at)
		 VALUES($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10)`,
		b.ID, b.PassengerID, b.DriverID, b.Start.Lat, b.Start.Lon, b.End.Lat, b.End.Lon, string(b.Status), b.CreatedAt, b.UpdatedAt)
	return err
}

const bookingColumns = `id, passenger_id, COALESCE(driver_id, ''), start_lat, start_lon, end_lat, end_lon, status, created_at, updated_at`

func scanBooking(row *sql.Row) (*models.Booking, error) {
	var b models.Booking
	var status string
	err := row.Scan(&b.ID, &b.PassengerID, &b.DriverID,
		&b.Start.Lat, &b.Start.Lon, &b.End.Lat, &b.End.Lon,
		&status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = booking.Status(status)
	return &b, nil
}

func (p *PostgresStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (p *PostgresStore) AssignDriver(ctx context.Context, bookingID, driverID string) (*models.Booking, error) {
	row := p.db.QueryRowContext(ctx,
		`UPDATE bookings
		 SET driver_id=$2, status=$3, updated_at=$4
		 WHERE id=$1 AND status=$5
		 RETURNING `+bookingColumns,
		bookingID, driverID, string(booking.StatusScheduled), time.Now().UTC(), string(booking.StatusAssigningDriver))
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, p.conflictOrNotFound(ctx, bookingID)
	}
	return b, err
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, bookingID string, to booking.Status) (*models.Booking, error) {
	sources := booking.Sources(to)
	if len(sources) == 0 {
		return nil, &booking.InvalidTransitionError{To: to}
	}
	froms := make([]string, len(sources))
	for i, s := range sources {
		froms[i] = string(s)
	}
	row := p.db.QueryRowContext(ctx,
		`UPDATE bookings
		 SET status=$2, updated_at=$3
		 WHERE id=$1 AND status = ANY($4)
		 RETURNING `+bookingColumns,
		bookingID, string(to), time.Now().UTC(), pq.Array(froms))
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, p.conflictOrNotFound(ctx, bookingID)
	}
	return b, err
}

// conflictOrNotFound disambiguates a guard miss: an existing row means the
// booking was in a disallowed state, an absent row means ErrNotFound.
func (p *PostgresStore) conflictOrNotFound(ctx context.Context, bookingID string) error {
	var one int
	err := p.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id=$1`, bookingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

func (p *PostgresStore) CreatePassenger(ctx context.Context, pass *models.Passenger) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO passengers(id, name, created_at) VALUES($1,$2,$3)`,
		pass.ID, pass.Name, pass.CreatedAt)
	return err
}

func (p *PostgresStore) PassengerExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := p.db.QueryRowContext(ctx, `SELECT 1 FROM passengers WHERE id=$1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }
