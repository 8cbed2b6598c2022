package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for booking and slot persistence.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	Upcoming(ctx context.Context, today string, limit, offset int) ([]Booking, error)
	InRange(ctx context.Context, startDate, endDate string) ([]Booking, error)
	ByCustomer(ctx context.Context, customerID string) ([]Booking, error)
	Update(ctx context.Context, b *Booking) error
	UpdateStatus(ctx context.Context, id, status string) error
	CountByStatus(ctx context.Context, status string) (int, error)
	CountUpcoming(ctx context.Context, today string) (int, error)
	CompletedCostInRange(ctx context.Context, startDate, endDate string) ([]CostRow, error)

	GetSlot(ctx context.Context, date, t string) (*Slot, error)
	SlotsForDate(ctx context.Context, date string) ([]Slot, error)
	SetSlotAvailable(ctx context.Context, date, t string, available bool) error
}

// CostRow is one booking's revenue contribution, used for period bucketing.
type CostRow struct {
	Date string
	Cost float64
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed booking repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const bookingColumns = `id, customer_id, customer_name, customer_phone,
	vehicle_make, vehicle_model, vehicle_year, service_type, date, time,
	estimated_cost, status, notes, created_at, updated_at`

// Create inserts a new booking. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, b *Booking) error {
	if b.ID == "" {
		b.ID = "bkg-" + uuid.NewString()[:8]
	}
	if b.Status == "" {
		b.Status = StatusPending
	}

	now := time.Now().UTC().Format(time.RFC3339)
	b.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	b.UpdatedAt = b.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (id, customer_id, customer_name, customer_phone,
			vehicle_make, vehicle_model, vehicle_year, service_type, date, time,
			estimated_cost, status, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CustomerID, b.CustomerName, b.CustomerPhone,
		b.VehicleMake, b.VehicleModel, b.VehicleYear, b.ServiceType, b.Date, b.Time,
		b.EstimatedCost, b.Status, b.Notes, now, now)
	if err != nil {
		return fmt.Errorf("creating booking: %w", err)
	}
	return nil
}

// GetByID returns a single booking by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)

	b, err := scanBooking(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning booking: %w", err)
	}
	return b, nil
}

// Upcoming returns non-cancelled bookings with date >= today, soonest first.
func (r *SQLiteRepository) Upcoming(ctx context.Context, today string, limit, offset int) ([]Booking, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE date >= ? AND status != ?
		 ORDER BY date, time LIMIT ? OFFSET ?`,
		today, StatusCancelled, limit, offset)
}

// InRange returns bookings with date between startDate and endDate inclusive.
func (r *SQLiteRepository) InRange(ctx context.Context, startDate, endDate string) ([]Booking, error) {
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE date >= ? AND date <= ?
		 ORDER BY date, time`,
		startDate, endDate)
}

// ByCustomer returns all bookings for a customer, newest date first.
func (r *SQLiteRepository) ByCustomer(ctx context.Context, customerID string) ([]Booking, error) {
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE customer_id = ? ORDER BY date DESC, time DESC`,
		customerID)
}

// Update rewrites a booking's mutable fields.
func (r *SQLiteRepository) Update(ctx context.Context, b *Booking) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET service_type = ?, date = ?, time = ?,
			estimated_cost = ?, status = ?, notes = ?,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE id = ?`,
		b.ServiceType, b.Date, b.Time, b.EstimatedCost, b.Status, b.Notes, b.ID)
	if err != nil {
		return fmt.Errorf("updating booking %s: %w", b.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus sets only the booking's status.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating booking status %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns the number of bookings with the given status.
func (r *SQLiteRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE status = ?", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting bookings by status: %w", err)
	}
	return count, nil
}

// CountUpcoming returns the number of non-cancelled bookings with
// date >= today.
func (r *SQLiteRepository) CountUpcoming(ctx context.Context, today string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE date >= ? AND status != ?",
		today, StatusCancelled).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting upcoming bookings: %w", err)
	}
	return count, nil
}

// CompletedCostInRange returns (date, estimated_cost) rows for confirmed and
// completed bookings in the inclusive date range, for revenue bucketing.
func (r *SQLiteRepository) CompletedCostInRange(ctx context.Context, startDate, endDate string) ([]CostRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, estimated_cost FROM bookings
		 WHERE date >= ? AND date <= ? AND status IN (?, ?)
		 ORDER BY date`,
		startDate, endDate, StatusConfirmed, StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("querying booking costs: %w", err)
	}
	defer rows.Close()

	var out []CostRow
	for rows.Next() {
		var cr CostRow
		if err := rows.Scan(&cr.Date, &cr.Cost); err != nil {
			return nil, fmt.Errorf("scanning cost row: %w", err)
		}
		out = append(out, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cost rows: %w", err)
	}
	return out, nil
}

// GetSlot returns the slot row for (date, time), or ErrNotFound when no row
// exists yet (which means the slot is free).
func (r *SQLiteRepository) GetSlot(ctx context.Context, date, t string) (*Slot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, date, time, available, created_at FROM slots
		 WHERE date = ? AND time = ?`, date, t)

	s, err := scanSlot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning slot: %w", err)
	}
	return s, nil
}

// SlotsForDate returns all slot rows for a date.
func (r *SQLiteRepository) SlotsForDate(ctx context.Context, date string) ([]Slot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, time, available, created_at FROM slots
		 WHERE date = ? ORDER BY time`, date)
	if err != nil {
		return nil, fmt.Errorf("querying slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning slot row: %w", err)
		}
		slots = append(slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating slot rows: %w", err)
	}
	return slots, nil
}

// SetSlotAvailable upserts the slot row for (date, time) with the given
// availability.
func (r *SQLiteRepository) SetSlotAvailable(ctx context.Context, date, t string, available bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO slots (id, date, time, available)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(date, time) DO UPDATE SET available = excluded.available`,
		"slot-"+uuid.NewString()[:8], date, t, boolToInt(available))
	if err != nil {
		return fmt.Errorf("setting slot %s %s: %w", date, t, err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning booking row: %w", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating booking rows: %w", err)
	}
	return bookings, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (*Booking, error) {
	var b Booking
	var createdAt, updatedAt string

	err := s.Scan(&b.ID, &b.CustomerID, &b.CustomerName, &b.CustomerPhone,
		&b.VehicleMake, &b.VehicleModel, &b.VehicleYear, &b.ServiceType,
		&b.Date, &b.Time, &b.EstimatedCost, &b.Status, &b.Notes,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // schema-enforced format
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // schema-enforced format
	return &b, nil
}

func scanSlot(s scanner) (*Slot, error) {
	var slot Slot
	var available int
	var createdAt string

	if err := s.Scan(&slot.ID, &slot.Date, &slot.Time, &available, &createdAt); err != nil {
		return nil, err
	}
	slot.Available = available != 0
	slot.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // schema-enforced format
	return &slot, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
