package activity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Activity is a single entry in the shop's activity feed.
type Activity struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	CustomerID *string   `json:"customer_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Activity types written by the services.
const (
	TypeCustomerCreated  = "customer_created"
	TypeBookingCreated   = "booking_created"
	TypeBookingUpdated   = "booking_updated"
	TypeBookingCancelled = "booking_cancelled"
	TypeDocumentUploaded = "document_uploaded"
	TypeDocumentDeleted  = "document_deleted"
	TypeMessageReceived  = "message_received"
)

// Repository defines the interface for activity feed persistence.
type Repository interface {
	Log(ctx context.Context, a *Activity) error
	Recent(ctx context.Context, limit int) ([]Activity, error)
	ByCustomer(ctx context.Context, customerID string, limit int) ([]Activity, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed activity repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Log appends an entry to the activity feed. The ID and timestamp are
// generated if empty.
func (r *SQLiteRepository) Log(ctx context.Context, a *Activity) error {
	if a.ID == "" {
		a.ID = "act-" + uuid.NewString()[:8]
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var customerID sql.NullString
	if a.CustomerID != nil {
		customerID = sql.NullString{String: *a.CustomerID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activities (id, type, message, customer_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Message, customerID, a.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// Recent returns the latest feed entries, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.query(ctx,
		`SELECT id, type, message, customer_id, created_at
		 FROM activities ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

// ByCustomer returns feed entries for a specific customer, newest first.
func (r *SQLiteRepository) ByCustomer(ctx context.Context, customerID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.query(ctx,
		`SELECT id, type, message, customer_id, created_at
		 FROM activities WHERE customer_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, customerID, limit)
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Activity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var entries []Activity
	for rows.Next() {
		var a Activity
		var customerID sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Type, &a.Message, &customerID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning activity row: %w", err)
		}
		if customerID.Valid {
			a.CustomerID = &customerID.String
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // schema-enforced format
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity rows: %w", err)
	}
	return entries, nil
}
