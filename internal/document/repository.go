package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for submission persistence operations.
type Repository interface {
	Create(ctx context.Context, sub *Submission) error
	GetBySubmissionID(ctx context.Context, submissionID string) (*Submission, error)
	List(ctx context.Context, limit, offset int) ([]Submission, error)
	ListForCustomer(ctx context.Context, customerID string) ([]Submission, error)
	Search(ctx context.Context, term string) ([]Submission, error)
	UpdateFiles(ctx context.Context, submissionID string, documentNames []string, fileLinks map[string][]FileLink) error
	Delete(ctx context.Context, submissionID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed submission repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const submissionColumns = `id, submission_id, company_name, email, phone, city,
	business_type, customer_id, document_names, file_links, created_at, updated_at`

// Create inserts a new submission. The database ID is generated here;
// the caller supplies the external submission ID.
func (r *SQLiteRepository) Create(ctx context.Context, sub *Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if sub.ID == "" {
		sub.ID = "sub-" + uuid.NewString()[:8]
	}
	names, links, err := marshalFiles(sub.DocumentNames, sub.FileLinks)
	if err != nil {
		return err
	}

	const query = `INSERT INTO submissions (id, submission_id, company_name, email,
		phone, city, business_type, customer_id, document_names, file_links)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		sub.ID, sub.SubmissionID, sub.CompanyName, sub.Email, sub.Phone,
		sub.City, sub.BusinessType, nullString(sub.CustomerID), names, links)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrSubmissionExists, sub.SubmissionID)
		}
		return fmt.Errorf("inserting submission %s: %w", sub.SubmissionID, err)
	}
	return nil
}

// GetBySubmissionID fetches a submission by its external identifier.
func (r *SQLiteRepository) GetBySubmissionID(ctx context.Context, submissionID string) (*Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE submission_id = ?`
	return scanSubmission(r.db.QueryRowContext(ctx, query, submissionID))
}

// List returns submissions newest-first.
func (r *SQLiteRepository) List(ctx context.Context, limit, offset int) ([]Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	return r.querySubmissions(ctx, query, limit, offset)
}

// ListForCustomer returns every submission linked to a customer.
func (r *SQLiteRepository) ListForCustomer(ctx context.Context, customerID string) ([]Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE customer_id = ? ORDER BY created_at DESC, id DESC`
	return r.querySubmissions(ctx, query, customerID)
}

// Search matches submissions by company name, phone or submission ID.
func (r *SQLiteRepository) Search(ctx context.Context, term string) ([]Submission, error) {
	pattern := "%" + term + "%"
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE company_name LIKE ? OR phone LIKE ? OR submission_id LIKE ?
		ORDER BY created_at DESC, id DESC`
	return r.querySubmissions(ctx, query, pattern, pattern, pattern)
}

// UpdateFiles persists a submission's document names and file links.
func (r *SQLiteRepository) UpdateFiles(ctx context.Context, submissionID string, documentNames []string, fileLinks map[string][]FileLink) error {
	names, links, err := marshalFiles(documentNames, fileLinks)
	if err != nil {
		return err
	}
	const query = `UPDATE submissions
		SET document_names = ?, file_links = ?,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE submission_id = ?`
	result, err := r.db.ExecContext(ctx, query, names, links, submissionID)
	if err != nil {
		return fmt.Errorf("updating submission files %s: %w", submissionID, err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, submissionID)
	}
	return nil
}

// Delete removes a submission record. Objects in the bucket are the
// caller's responsibility.
func (r *SQLiteRepository) Delete(ctx context.Context, submissionID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM submissions WHERE submission_id = ?`, submissionID)
	if err != nil {
		return fmt.Errorf("deleting submission %s: %w", submissionID, err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, submissionID)
	}
	return nil
}

func (r *SQLiteRepository) querySubmissions(ctx context.Context, query string, args ...any) ([]Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmissionFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning submission row: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submission rows: %w", err)
	}
	return subs, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanSubmissionFrom(s scanner) (*Submission, error) {
	var sub Submission
	var customerID sql.NullString
	var names, links string
	var createdAt, updatedAt string

	err := s.Scan(&sub.ID, &sub.SubmissionID, &sub.CompanyName, &sub.Email,
		&sub.Phone, &sub.City, &sub.BusinessType, &customerID,
		&names, &links, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if customerID.Valid {
		sub.CustomerID = &customerID.String
	}
	if err := json.Unmarshal([]byte(names), &sub.DocumentNames); err != nil {
		return nil, fmt.Errorf("decoding document names for %s: %w", sub.SubmissionID, err)
	}
	if err := json.Unmarshal([]byte(links), &sub.FileLinks); err != nil {
		return nil, fmt.Errorf("decoding file links for %s: %w", sub.SubmissionID, err)
	}
	if sub.DocumentNames == nil {
		sub.DocumentNames = []string{}
	}
	if sub.FileLinks == nil {
		sub.FileLinks = map[string][]FileLink{}
	}
	sub.CreatedAt = parseTime(createdAt)
	sub.UpdatedAt = parseTime(updatedAt)
	return &sub, nil
}

func scanSubmission(row *sql.Row) (*Submission, error) {
	sub, err := scanSubmissionFrom(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning submission: %w", err)
	}
	return sub, nil
}

// marshalFiles serialises the JSON columns, normalising nils to empty
// containers so the stored form is stable.
func marshalFiles(documentNames []string, fileLinks map[string][]FileLink) (string, string, error) {
	if documentNames == nil {
		documentNames = []string{}
	}
	if fileLinks == nil {
		fileLinks = map[string][]FileLink{}
	}
	names, err := json.Marshal(documentNames)
	if err != nil {
		return "", "", fmt.Errorf("encoding document names: %w", err)
	}
	links, err := json.Marshal(fileLinks)
	if err != nil {
		return "", "", fmt.Errorf("encoding file links: %w", err)
	}
	return string(names), string(links), nil
}

// nullString converts a *string to a sql.NullString for nullable columns.
func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
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
