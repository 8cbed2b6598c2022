package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ServiceRepository defines the interface for service catalog persistence.
type ServiceRepository interface {
	Create(ctx context.Context, s *Service) error
	GetByID(ctx context.Context, id string) (*Service, error)
	ListActive(ctx context.Context) ([]Service, error)
	ListAll(ctx context.Context) ([]Service, error)
	Update(ctx context.Context, s *Service) error
	Deactivate(ctx context.Context, id string) error
}

// SQLiteServiceRepository implements ServiceRepository using SQLite.
type SQLiteServiceRepository struct {
	db *sql.DB
}

// NewServiceRepository creates a new SQLite-backed service catalog repository.
func NewServiceRepository(db *sql.DB) *SQLiteServiceRepository {
	return &SQLiteServiceRepository{db: db}
}

const serviceColumns = `id, name, description, duration_minutes, price, category, active,
	created_at, updated_at`

// Create inserts a new catalog service. The ID is generated if empty.
func (r *SQLiteServiceRepository) Create(ctx context.Context, s *Service) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = "srv-" + strings.ToLower(uuid.NewString()[:8])
	}
	s.Active = true

	now := time.Now().UTC().Format(time.RFC3339)
	s.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	s.UpdatedAt = s.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO services (id, name, description, duration_minutes, price, category,
			active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		s.ID, s.Name, s.Description, s.DurationMinutes, s.Price, s.Category, now, now)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	return nil
}

// GetByID returns a single service by ID.
func (r *SQLiteServiceRepository) GetByID(ctx context.Context, id string) (*Service, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = ?`, id)

	s, err := scanService(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("scanning service: %w", err)
	}
	return s, nil
}

// ListActive returns active services ordered by category then name.
func (r *SQLiteServiceRepository) ListActive(ctx context.Context) ([]Service, error) {
	return r.query(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE active = 1
		 ORDER BY category, name`)
}

// ListAll returns every service including deactivated ones.
func (r *SQLiteServiceRepository) ListAll(ctx context.Context) ([]Service, error) {
	return r.query(ctx,
		`SELECT `+serviceColumns+` FROM services ORDER BY category, name`)
}

// Update updates a service's details and active flag.
func (r *SQLiteServiceRepository) Update(ctx context.Context, s *Service) error {
	if err := s.Validate(); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE services SET name = ?, description = ?, duration_minutes = ?,
			price = ?, category = ?, active = ?,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE id = ?`,
		s.Name, s.Description, s.DurationMinutes, s.Price, s.Category,
		boolToInt(s.Active), s.ID)
	if err != nil {
		return fmt.Errorf("updating service %s: %w", s.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrServiceNotFound
	}
	return nil
}

// Deactivate marks a service inactive. The row is kept so existing bookings
// retain their service reference.
func (r *SQLiteServiceRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE services SET active = 0,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivating service %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrServiceNotFound
	}
	return nil
}

func (r *SQLiteServiceRepository) query(ctx context.Context, query string, args ...any) ([]Service, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning service row: %w", err)
		}
		services = append(services, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating service rows: %w", err)
	}
	return services, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanService(s scanner) (*Service, error) {
	var svc Service
	var description, category sql.NullString
	var active int
	var createdAt, updatedAt string

	err := s.Scan(&svc.ID, &svc.Name, &description, &svc.DurationMinutes, &svc.Price,
		&category, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	svc.Description = description.String
	svc.Category = category.String
	svc.Active = active != 0
	svc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // schema-enforced format
	svc.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // schema-enforced format
	return &svc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
