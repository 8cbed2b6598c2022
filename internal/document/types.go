package document

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a submission does not exist.
	ErrNotFound = errors.New("submission not found")
	// ErrSubmissionExists is returned when a submission ID is already taken.
	ErrSubmissionExists = errors.New("submission already exists")
	// ErrFileNotFound is returned when a file link cannot be located.
	ErrFileNotFound = errors.New("file not found")
	// ErrInvalidSubmission is returned when required submission fields are missing.
	ErrInvalidSubmission = errors.New("invalid submission")
)

// Sync actions reported by SyncFileChange.
const (
	ActionAdded   = "added"
	ActionUpdated = "updated"
)

// DefaultCategory is where files land when their object key carries no
// category directory.
const DefaultCategory = "files"

// FileLink is one tracked file within a submission category. Versions holds
// prior records of the same file, newest last; entries inside Versions never
// carry their own Versions slice.
type FileLink struct {
	OriginalName string     `json:"original_name"`
	ObjectKey    string     `json:"object_key"`
	URL          string     `json:"url,omitempty"`
	Size         int64      `json:"size"`
	ContentType  string     `json:"content_type,omitempty"`
	Version      string     `json:"version"`
	CreatedAt    string     `json:"created_at,omitempty"`
	UpdatedAt    string     `json:"updated_at,omitempty"`
	Versions     []FileLink `json:"versions,omitempty"`
}

// Submission groups the documents a customer has provided.
type Submission struct {
	ID            string                `json:"id"`
	SubmissionID  string                `json:"submission_id"`
	CompanyName   string                `json:"company_name"`
	Email         string                `json:"email"`
	Phone         string                `json:"phone"`
	City          string                `json:"city"`
	BusinessType  string                `json:"business_type"`
	CustomerID    *string               `json:"customer_id,omitempty"`
	DocumentNames []string              `json:"document_names"`
	FileLinks     map[string][]FileLink `json:"file_links"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Validate checks the fields required to create a submission.
func (s *Submission) Validate() error {
	if strings.TrimSpace(s.SubmissionID) == "" {
		return fmt.Errorf("%w: submission_id is required", ErrInvalidSubmission)
	}
	return nil
}

// FileChange describes one file event to record against a submission.
// Version defaults to "v<unix-timestamp>" when empty.
type FileChange struct {
	Category     string
	OriginalName string
	ObjectKey    string
	URL          string
	Size         int64
	ContentType  string
	Version      string
}
