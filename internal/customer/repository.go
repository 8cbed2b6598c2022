package customer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for customer persistence operations.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id string) (*Customer, error)
	GetByPhone(ctx context.Context, phone string) (*Customer, error)
	Search(ctx context.Context, query string, limit int) ([]Customer, error)
	List(ctx context.Context, limit, offset int) ([]Customer, int, error)
	Update(ctx context.Context, c *Customer) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	CountWithMinVisits(ctx context.Context, minVisits int) (int, error)
	RecordVisit(ctx context.Context, id string, visitedAt time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed customer repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const customerColumns = `id, phone, name, vehicle_make, vehicle_model, vehicle_year,
	last_visit, total_visits, created_at, updated_at`

// Create inserts a new customer. The ID is generated if empty.
// Returns ErrPhoneExists when the phone number is already registered.
func (r *SQLiteRepository) Create(ctx context.Context, c *Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = "cust-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	c.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (id, phone, name, vehicle_make, vehicle_model, vehicle_year,
			total_visits, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Phone, c.Name, c.VehicleMake, c.VehicleModel, c.VehicleYear,
		c.TotalVisits, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPhoneExists
		}
		return fmt.Errorf("creating customer: %w", err)
	}

	return nil
}

// GetByID returns a single customer by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Customer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	return scanCustomer(row)
}

// GetByPhone returns a single customer by (normalised) phone number.
func (r *SQLiteRepository) GetByPhone(ctx context.Context, phone string) (*Customer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE phone = ?`, NormalisePhone(phone))
	return scanCustomer(row)
}

// Search returns customers whose name or phone contains the query string,
// most recently updated first.
func (r *SQLiteRepository) Search(ctx context.Context, query string, limit int) ([]Customer, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.TrimSpace(query) + "%"
	return r.queryCustomers(ctx,
		`SELECT `+customerColumns+` FROM customers
		 WHERE name LIKE ? OR phone LIKE ?
		 ORDER BY updated_at DESC LIMIT ?`,
		pattern, pattern, limit)
}

// List returns a page of customers ordered by name, plus the total count.
func (r *SQLiteRepository) List(ctx context.Context, limit, offset int) ([]Customer, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting customers: %w", err)
	}

	customers, err := r.queryCustomers(ctx,
		`SELECT `+customerColumns+` FROM customers
		 ORDER BY name COLLATE NOCASE LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

// Update updates a customer's details. Visit tracking fields are managed
// separately via RecordVisit.
func (r *SQLiteRepository) Update(ctx context.Context, c *Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE customers SET phone = ?, name = ?, vehicle_make = ?,
			vehicle_model = ?, vehicle_year = ?,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE id = ?`,
		c.Phone, c.Name, c.VehicleMake, c.VehicleModel, c.VehicleYear, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPhoneExists
		}
		return fmt.Errorf("updating customer %s: %w", c.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a customer by ID. Bookings cascade via FK.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting customer %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the total number of customers.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting customers: %w", err)
	}
	return count, nil
}

// CountSince returns the number of customers created at or after the given time.
func (r *SQLiteRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM customers WHERE created_at >= ?",
		since.UTC().Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting customers since %s: %w", since.Format(time.RFC3339), err)
	}
	return count, nil
}

// CountWithMinVisits returns the number of customers with at least minVisits
// recorded visits.
func (r *SQLiteRepository) CountWithMinVisits(ctx context.Context, minVisits int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM customers WHERE total_visits >= ?", minVisits).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting customers with min visits: %w", err)
	}
	return count, nil
}

// RecordVisit sets the customer's last visit time and increments the visit
// counter.
func (r *SQLiteRepository) RecordVisit(ctx context.Context, id string, visitedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE customers SET last_visit = ?, total_visits = total_visits + 1,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE id = ?`,
		visitedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("recording visit for customer %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// queryCustomers executes a query and returns a slice of Customer.
func (r *SQLiteRepository) queryCustomers(ctx context.Context, query string, args ...any) ([]Customer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning customer row: %w", err)
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating customer rows: %w", err)
	}
	return customers, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanCustomerFrom(s scanner) (*Customer, error) {
	var c Customer
	var vehicleMake, vehicleModel, vehicleYear sql.NullString
	var lastVisit sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&c.ID, &c.Phone, &c.Name, &vehicleMake, &vehicleModel, &vehicleYear,
		&lastVisit, &c.TotalVisits, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.VehicleMake = vehicleMake.String
	c.VehicleModel = vehicleModel.String
	c.VehicleYear = vehicleYear.String
	if lastVisit.Valid {
		if t, err := time.Parse(time.RFC3339, lastVisit.String); err == nil {
			c.LastVisit = &t
		}
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// scanCustomer scans a single row into a Customer (for QueryRow).
func scanCustomer(row *sql.Row) (*Customer, error) {
	c, err := scanCustomerFrom(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning customer: %w", err)
	}
	return c, nil
}

// scanCustomerRow scans a customer from a Rows cursor.
func scanCustomerRow(rows *sql.Rows) (*Customer, error) {
	return scanCustomerFrom(rows)
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
